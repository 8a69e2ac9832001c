package track

import (
	"fmt"

	"crumbtrail/pkg/sig"
	"crumbtrail/pkg/vcs"
)

// paramCharLimit caps the serialized length of each recorded argument.
const paramCharLimit = 200

type options struct {
	staticDir   string
	dirParam    string
	subdirParam string
	injectParam string

	appendTimestamp bool
	appendUnique    bool

	recordFilename string
	seedParam      string

	extraModules []vcs.Module
	extraEnvVars []string

	disableVersionTracking bool
	allowDirty             bool
	includeInventory       bool
	createParents          bool
	requireEmpty           bool
	chainRecords           bool
}

func defaultOptions() options {
	return options{
		allowDirty:       true,
		includeInventory: true,
	}
}

// Option customises a Tracked construction.
type Option func(*options)

// WithStaticDir stores records under a fixed directory. Mutually exclusive
// with WithDirectoryParameter; exactly one of the two is required.
func WithStaticDir(dir string) Option {
	return func(o *options) { o.staticDir = dir }
}

// WithDirectoryParameter reads the output directory from the named parameter
// at call time. Mutually exclusive with WithStaticDir.
func WithDirectoryParameter(name string) Option {
	return func(o *options) { o.dirParam = name }
}

// WithSubdirectoryParameter appends the named parameter's call-time value to
// the output directory as a path segment.
func WithSubdirectoryParameter(name string) Option {
	return func(o *options) { o.subdirParam = name }
}

// WithInjectionParameter writes the final resolved directory into the named
// parameter before the wrapped function runs.
func WithInjectionParameter(name string) Option {
	return func(o *options) { o.injectParam = name }
}

// WithTimestampSuffix appends the call's start time to the directory name.
// Mutually exclusive with WithUniqueSuffix.
func WithTimestampSuffix() Option {
	return func(o *options) { o.appendTimestamp = true }
}

// WithUniqueSuffix appends the record's UUID to the directory name.
// Mutually exclusive with WithTimestampSuffix.
func WithUniqueSuffix() Option {
	return func(o *options) { o.appendUnique = true }
}

// WithRecordFilename overrides the default <function>_record.json filename.
// The canonical extension is still appended when missing.
func WithRecordFilename(name string) Option {
	return func(o *options) { o.recordFilename = name }
}

// WithSeedParameter designates the parameter carrying the random seed. An
// integer value is used verbatim, nil generates one; either way the value the
// function observes equals the value recorded.
func WithSeedParameter(name string) Option {
	return func(o *options) { o.seedParam = name }
}

// WithExtraModule tracks the git state of an additional module, identified by
// a name and any path inside its checkout.
func WithExtraModule(name, path string) Option {
	return func(o *options) {
		o.extraModules = append(o.extraModules, vcs.Module{Name: name, Path: path})
	}
}

// WithExtraEnvironmentVariables records additional environment variables on
// every call.
func WithExtraEnvironmentVariables(names ...string) Option {
	return func(o *options) { o.extraEnvVars = append(o.extraEnvVars, names...) }
}

// WithoutVersionTracking skips git resolution for the wrapped function's own
// module. Extra modules are still tracked.
func WithoutVersionTracking() Option {
	return func(o *options) { o.disableVersionTracking = true }
}

// RequireCleanRepository makes construction fail when any tracked module has
// uncommitted changes.
func RequireCleanRepository() Option {
	return func(o *options) { o.allowDirty = false }
}

// WithoutPackageInventory omits the module dependency inventory from records.
func WithoutPackageInventory() Option {
	return func(o *options) { o.includeInventory = false }
}

// WithParentCreation creates missing parents of the output directory.
func WithParentCreation() Option {
	return func(o *options) { o.createParents = true }
}

// RequireEmptyDirectory fails the call when the resolved output directory
// already contains entries.
func RequireEmptyDirectory() Option {
	return func(o *options) { o.requireEmpty = true }
}

// WithChainedRecords appends to a pre-existing record file instead of
// overwriting it.
func WithChainedRecords() Option {
	return func(o *options) { o.chainRecords = true }
}

// validate enforces the decoration-time invariants against the declared
// signature. All violations are configuration errors.
func (o *options) validate(signature *sig.Signature) error {
	if (o.staticDir == "") == (o.dirParam == "") {
		return fmt.Errorf(
			"%w: exactly one of WithStaticDir or WithDirectoryParameter must be provided",
			ErrConfig)
	}
	if o.appendTimestamp && o.appendUnique {
		return fmt.Errorf(
			"%w: WithTimestampSuffix and WithUniqueSuffix are mutually exclusive",
			ErrConfig)
	}
	if (o.appendTimestamp || o.appendUnique) &&
		o.injectParam == "" && o.dirParam == "" && o.subdirParam == "" {
		return fmt.Errorf(
			"%w: a directory suffix requires an injection parameter (or a directory/subdirectory parameter) so the function can observe the final directory",
			ErrConfig)
	}

	for _, named := range []struct{ option, name string }{
		{"WithDirectoryParameter", o.dirParam},
		{"WithSubdirectoryParameter", o.subdirParam},
		{"WithInjectionParameter", o.injectParam},
		{"WithSeedParameter", o.seedParam},
	} {
		if named.name != "" && !signature.Has(named.name) {
			return fmt.Errorf("%w: %s names unknown parameter %q",
				ErrConfig, named.option, named.name)
		}
	}
	return nil
}
