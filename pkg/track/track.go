// Package track records reproducibility metadata for function calls. A
// Tracked wrapper binds call arguments against a declared signature, resolves
// an output directory, seeds randomness sources, and persists a JSON record
// of the invocation both before and after execution, so provenance survives
// a crash of the wrapped function.
package track

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"reflect"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/zeromicro/go-zero/core/logx"

	"crumbtrail/pkg/record"
	"crumbtrail/pkg/runenv"
	"crumbtrail/pkg/seed"
	"crumbtrail/pkg/sig"
	"crumbtrail/pkg/vcs"
)

// Func is the shape of a trackable function. Arguments arrive already bound
// (and possibly mutated by directory/seed injection).
type Func func(ctx context.Context, args *sig.BoundArgs) (any, error)

// Kwargs carries keyword arguments for Call.
type Kwargs map[string]any

// Tracked wraps one function together with everything captured at
// construction time: the declared signature, the validated options, the
// environment snapshot, the package inventory, and the version records of
// every tracked module. Code identity is assumed constant for the lifetime of
// the wrapper, so git resolution happens here exactly once.
type Tracked struct {
	fn   Func
	sign *sig.Signature
	opts options

	name       string
	modulePath string
	sourceFile string
	recordName string

	env           map[string]any
	inventory     map[string]string
	version       *record.VersionRecord
	extraVersions map[string]*record.VersionRecord

	nowFn func() time.Time
	idFn  func() string
}

// New validates the decoration options against the signature, captures the
// environment and version metadata, and returns the wrapper. Configuration
// and resolution failures surface here, before any call is made.
func New(fn Func, signature *sig.Signature, opts ...Option) (*Tracked, error) {
	if fn == nil {
		return nil, fmt.Errorf("%w: function must not be nil", ErrConfig)
	}
	if signature == nil {
		return nil, fmt.Errorf("%w: signature must not be nil", ErrConfig)
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.validate(signature); err != nil {
		return nil, err
	}

	t := &Tracked{
		fn:    fn,
		sign:  signature,
		opts:  o,
		env:   runenv.Snapshot(),
		nowFn: time.Now,
		idFn:  uuid.NewString,
	}
	t.name, t.modulePath, t.sourceFile = describeFunc(fn)

	t.recordName = o.recordFilename
	if t.recordName == "" {
		t.recordName = t.name + "_record"
	}

	if !o.disableVersionTracking {
		version, err := vcs.Describe(
			vcs.Module{Name: t.modulePath, Path: t.sourceFile}, o.allowDirty)
		if err != nil {
			return nil, err
		}
		t.version = version
	}
	if len(o.extraModules) > 0 {
		t.extraVersions = make(map[string]*record.VersionRecord, len(o.extraModules))
		for _, m := range o.extraModules {
			version, err := vcs.Describe(m, o.allowDirty)
			if err != nil {
				return nil, err
			}
			t.extraVersions[m.Name] = version
		}
	}

	if o.includeInventory {
		if inventory, ok := runenv.Packages(); ok {
			t.inventory = inventory
		}
	}

	return t, nil
}

// MustNew is like New but panics on error.
func MustNew(fn Func, signature *sig.Signature, opts ...Option) *Tracked {
	t, err := New(fn, signature, opts...)
	if err != nil {
		panic(err)
	}
	return t
}

// Name returns the derived name of the wrapped function.
func (t *Tracked) Name() string { return t.name }

// Call invokes the wrapped function with tracking. The record is written
// once before execution (so provenance survives a crash or hang) and once
// after a normal return, with end time and duration added. Errors from the
// wrapped function propagate unchanged; the pre-call record then remains the
// last durable state.
func (t *Tracked) Call(ctx context.Context, positional []any, keyword Kwargs) (any, error) {
	start := t.nowFn()
	id := t.idFn()

	rec := &record.Record{UUID: id}
	rec.SetStart(start)

	rec.Environment = runenv.CloneSnapshot(t.env)
	rec.Environment["environment_variables"] = runenv.Variables(t.opts.extraEnvVars...)
	if t.opts.includeInventory {
		rec.PackageInventory = t.inventory
	}

	bound, err := t.bind(positional, keyword)
	if err != nil {
		return nil, err
	}

	rec.CalledFunction = &record.CalledFunction{
		Name:       t.name,
		Module:     t.modulePath,
		SourceFile: t.sourceFile,
		Parameters: normalizeArgs(bound),
	}
	rec.TrackedModule = t.version
	rec.ExtraTrackedModules = t.extraVersions

	dir, err := t.resolveDir(bound, start, id)
	if err != nil {
		return nil, err
	}

	seedValue, err := t.resolveSeed(bound)
	if err != nil {
		return nil, err
	}
	seed.Apply(seedValue)
	rec.Seed = seedValue
	if t.opts.seedParam != "" {
		if err := bound.Set(t.opts.seedParam, seedValue); err != nil {
			return nil, err
		}
	}

	rec.CalledFunction.AlteredParameters = normalizeArgs(bound)

	recordPath := record.CanonicalPath(filepath.Join(dir, t.recordName))

	// The chain decision and the previous content are captured once, here,
	// and reused for the post-call write so both writes of one invocation
	// produce the same structure.
	var previous json.RawMessage
	if t.opts.chainRecords {
		previous, err = record.ReadRaw(recordPath)
		if err != nil {
			return nil, err
		}
	}

	doc, err := record.Chain(previous, rec)
	if err != nil {
		return nil, err
	}
	if _, err := record.Write(recordPath, doc); err != nil {
		return nil, err
	}
	logx.Debugf("track: wrote pre-call record %s", recordPath)

	result, err := t.fn(ctx, bound)
	if err != nil {
		return nil, err
	}

	rec.SetEnd(start, t.nowFn())
	doc, err = record.Chain(previous, rec)
	if err != nil {
		return nil, err
	}
	if _, err := record.Write(recordPath, doc); err != nil {
		return nil, err
	}
	logx.Debugf("track: wrote post-call record %s", recordPath)

	return result, nil
}

// bind maps the call arguments onto the signature. When an injection target
// is declared required but absent from the call, binding is retried with a
// nil placeholder so the later injection can overwrite it.
func (t *Tracked) bind(positional []any, keyword Kwargs) (*sig.BoundArgs, error) {
	bound, err := t.sign.Bind(positional, keyword)
	if err == nil {
		return bound, nil
	}
	if t.opts.injectParam == "" {
		return nil, err
	}
	if _, supplied := keyword[t.opts.injectParam]; supplied {
		return nil, err
	}

	retry := make(map[string]any, len(keyword)+1)
	for k, v := range keyword {
		retry[k] = v
	}
	retry[t.opts.injectParam] = nil
	bound, retryErr := t.sign.Bind(positional, retry)
	if retryErr != nil {
		return nil, err
	}
	return bound, nil
}

// resolveSeed picks the seed for this call: the bound integer value if one
// was supplied, a generated one when the parameter is nil or no parameter is
// configured.
func (t *Tracked) resolveSeed(bound *sig.BoundArgs) (int64, error) {
	if t.opts.seedParam == "" {
		return seed.Generate(), nil
	}
	v, _ := bound.Get(t.opts.seedParam)
	if v == nil {
		return seed.Generate(), nil
	}
	n, ok := asInt64(v)
	if !ok {
		return 0, fmt.Errorf("%w: parameter %q has type %T",
			ErrSeedType, t.opts.seedParam, v)
	}
	return n, nil
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	default:
		return 0, false
	}
}

func normalizeArgs(bound *sig.BoundArgs) map[string]any {
	args := make(map[string]any, len(bound.Names()))
	bound.Each(func(name string, value any) {
		args[name] = record.Normalize(value, paramCharLimit)
	})
	return args
}

// describeFunc derives the function's name, package path, and source file
// from its code pointer.
func describeFunc(fn Func) (name, modulePath, sourceFile string) {
	pc := reflect.ValueOf(fn).Pointer()
	rf := runtime.FuncForPC(pc)
	if rf == nil {
		return "unknown", "", ""
	}
	full := rf.Name()
	sourceFile, _ = rf.FileLine(rf.Entry())
	if idx := strings.LastIndex(full, "."); idx >= 0 {
		return full[idx+1:], full[:idx], sourceFile
	}
	return full, "", sourceFile
}
