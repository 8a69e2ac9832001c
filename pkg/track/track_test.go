package track

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crumbtrail/pkg/record"
	"crumbtrail/pkg/sig"
)

func addOne(_ context.Context, args *sig.BoundArgs) (any, error) {
	x, _ := args.Get("x")
	return x.(int) + 1, nil
}

func loadRecordFile(t *testing.T, path string) *record.Record {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var rec record.Record
	require.NoError(t, json.Unmarshal(data, &rec))
	return &rec
}

func TestTrackedBasicScenario(t *testing.T) {
	dir := t.TempDir()

	tracked, err := New(addOne, sig.MustNew(sig.Required("x")),
		WithStaticDir(dir),
		WithoutVersionTracking(),
	)
	require.NoError(t, err)

	out, err := tracked.Call(context.Background(), []any{4}, nil)
	require.NoError(t, err)
	assert.Equal(t, 5, out)

	path := filepath.Join(dir, "addOne_record.json")
	rec := loadRecordFile(t, path)

	assert.NotEmpty(t, rec.UUID)
	assert.Equal(t, "addOne", rec.CalledFunction.Name)
	assert.Equal(t, map[string]any{"x": float64(4)}, rec.CalledFunction.Parameters)
	assert.NotEmpty(t, rec.Timing.StartTime)
	assert.NotEmpty(t, rec.Timing.EndTime)

	start, err := time.Parse(record.TimeLayout, rec.Timing.StartTime)
	require.NoError(t, err)
	end, err := time.Parse(record.TimeLayout, rec.Timing.EndTime)
	require.NoError(t, err)
	assert.False(t, end.Before(start))

	assert.GreaterOrEqual(t, rec.Seed, int64(0))
	assert.Contains(t, rec.Environment, "hostname")
	assert.Contains(t, rec.Environment, "environment_variables")
}

func TestConfigurationErrors(t *testing.T) {
	fn := addOne
	signature := sig.MustNew(sig.Required("x"))

	tests := []struct {
		name string
		opts []Option
	}{
		{"no directory source", []Option{WithoutVersionTracking()}},
		{"both directory sources", []Option{
			WithStaticDir("/a"), WithDirectoryParameter("x"), WithoutVersionTracking()}},
		{"both suffixes", []Option{
			WithStaticDir("/a"), WithTimestampSuffix(), WithUniqueSuffix(),
			WithInjectionParameter("x"), WithoutVersionTracking()}},
		{"suffix without exposure", []Option{
			WithStaticDir("/a"), WithUniqueSuffix(), WithoutVersionTracking()}},
		{"unknown directory parameter", []Option{
			WithDirectoryParameter("nope"), WithoutVersionTracking()}},
		{"unknown seed parameter", []Option{
			WithStaticDir("/a"), WithSeedParameter("nope"), WithoutVersionTracking()}},
		{"unknown injection parameter", []Option{
			WithStaticDir("/a"), WithInjectionParameter("nope"), WithoutVersionTracking()}},
		{"nil function", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := fn
			if tt.name == "nil function" {
				target = nil
			}
			_, err := New(target, signature, tt.opts...)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrConfig)
		})
	}
}

func TestDynamicDirectoryParameter(t *testing.T) {
	base := t.TempDir()
	out := filepath.Join(base, "run1")

	fn := func(_ context.Context, args *sig.BoundArgs) (any, error) {
		dir, _ := args.Get("out_dir")
		return dir, nil
	}
	tracked, err := New(fn, sig.MustNew(sig.Required("out_dir")),
		WithDirectoryParameter("out_dir"),
		WithoutVersionTracking(),
	)
	require.NoError(t, err)

	got, err := tracked.Call(context.Background(), nil, Kwargs{"out_dir": out})
	require.NoError(t, err)
	assert.Equal(t, out, got)

	files, err := filepath.Glob(filepath.Join(out, "*_record.json"))
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestSubdirectoryParameter(t *testing.T) {
	base := t.TempDir()

	fn := func(_ context.Context, _ *sig.BoundArgs) (any, error) { return nil, nil }
	tracked, err := New(fn, sig.MustNew(sig.Required("model_name")),
		WithStaticDir(base),
		WithSubdirectoryParameter("model_name"),
		WithRecordFilename("run"),
		WithoutVersionTracking(),
	)
	require.NoError(t, err)

	_, err = tracked.Call(context.Background(), []any{"resnet"}, nil)
	require.NoError(t, err)

	_, statErr := os.Stat(filepath.Join(base, "resnet", "run.json"))
	assert.NoError(t, statErr)
}

func TestTimestampSuffix(t *testing.T) {
	base := t.TempDir()
	start := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)

	fn := func(_ context.Context, args *sig.BoundArgs) (any, error) {
		name, _ := args.Get("model_name")
		return name, nil
	}
	tracked, err := New(fn, sig.MustNew(sig.Required("model_name")),
		WithStaticDir(base),
		WithSubdirectoryParameter("model_name"),
		WithTimestampSuffix(),
		WithoutVersionTracking(),
	)
	require.NoError(t, err)
	tracked.nowFn = func() time.Time { return start }

	observed, err := tracked.Call(context.Background(), []any{"model"}, nil)
	require.NoError(t, err)

	want := "model_2024_05_06_07_08_09"
	assert.Equal(t, want, observed, "suffixed leaf name should be fed back into the parameter")

	_, statErr := os.Stat(filepath.Join(base, want))
	assert.NoError(t, statErr)
}

func TestUniqueSuffixUsesRecordUUID(t *testing.T) {
	base := t.TempDir()

	fn := func(_ context.Context, args *sig.BoundArgs) (any, error) {
		name, _ := args.Get("model_name")
		return name, nil
	}
	tracked, err := New(fn, sig.MustNew(sig.Required("model_name")),
		WithStaticDir(base),
		WithSubdirectoryParameter("model_name"),
		WithUniqueSuffix(),
		WithRecordFilename("run"),
		WithoutVersionTracking(),
	)
	require.NoError(t, err)
	tracked.idFn = func() string { return "fixed-uuid" }

	observed, err := tracked.Call(context.Background(), []any{"model"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "model_fixed-uuid", observed)

	rec := loadRecordFile(t, filepath.Join(base, "model_fixed-uuid", "run.json"))
	assert.Equal(t, "fixed-uuid", rec.UUID)
}

func TestInjectionParameter(t *testing.T) {
	base := t.TempDir()

	var observedDir any
	fn := func(_ context.Context, args *sig.BoundArgs) (any, error) {
		observedDir, _ = args.Get("run_dir")
		return nil, nil
	}
	// run_dir is required by the signature but never supplied by the caller:
	// binding succeeds via the nil placeholder retry, then injection fills it.
	tracked, err := New(fn, sig.MustNew(sig.Required("x"), sig.Required("run_dir")),
		WithStaticDir(base),
		WithUniqueSuffix(),
		WithInjectionParameter("run_dir"),
		WithParentCreation(),
		WithRecordFilename("run"),
		WithoutVersionTracking(),
	)
	require.NoError(t, err)
	tracked.idFn = func() string { return "abc123" }

	_, err = tracked.Call(context.Background(), []any{1}, nil)
	require.NoError(t, err)

	wantDir := base + "_abc123"
	assert.Equal(t, wantDir, observedDir)

	rec := loadRecordFile(t, filepath.Join(wantDir, "run.json"))
	assert.Nil(t, rec.CalledFunction.Parameters["run_dir"],
		"parameters must show the pre-injection value")
	assert.Equal(t, wantDir, rec.CalledFunction.AlteredParameters["run_dir"],
		"altered_parameters must show the injected value")
}

func TestSeedParameterExplicitAndGenerated(t *testing.T) {
	dir := t.TempDir()

	var observedSeed any
	fn := func(_ context.Context, args *sig.BoundArgs) (any, error) {
		observedSeed, _ = args.Get("seed")
		return nil, nil
	}
	tracked, err := New(fn, sig.MustNew(sig.Required("x"), sig.Optional("seed", nil)),
		WithStaticDir(dir),
		WithSeedParameter("seed"),
		WithoutVersionTracking(),
	)
	require.NoError(t, err)

	// Explicit seed is used verbatim.
	_, err = tracked.Call(context.Background(), []any{1}, Kwargs{"seed": 98})
	require.NoError(t, err)
	assert.Equal(t, int64(98), observedSeed)

	path := filepath.Join(dir, tracked.recordName+".json")
	rec := loadRecordFile(t, path)
	assert.Equal(t, int64(98), rec.Seed)
	assert.Equal(t, float64(98), rec.CalledFunction.AlteredParameters["seed"])

	// Absent seed generates one; the function observes exactly the recorded value.
	_, err = tracked.Call(context.Background(), []any{1}, nil)
	require.NoError(t, err)

	rec = loadRecordFile(t, path)
	assert.Equal(t, observedSeed, rec.Seed)
	assert.Nil(t, rec.CalledFunction.Parameters["seed"],
		"parameters must keep the pre-injection nil")
}

func TestSeedParameterWrongType(t *testing.T) {
	dir := t.TempDir()

	tracked, err := New(addOne, sig.MustNew(sig.Required("x"), sig.Optional("seed", nil)),
		WithStaticDir(dir),
		WithSeedParameter("seed"),
		WithoutVersionTracking(),
	)
	require.NoError(t, err)

	_, err = tracked.Call(context.Background(), []any{1}, Kwargs{"seed": "not-a-seed"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSeedType)
}

func TestBindingFailurePropagates(t *testing.T) {
	tracked, err := New(addOne, sig.MustNew(sig.Required("x")),
		WithStaticDir(t.TempDir()),
		WithoutVersionTracking(),
	)
	require.NoError(t, err)

	_, err = tracked.Call(context.Background(), nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, sig.ErrBind)
}

func TestRequireEmptyDirectory(t *testing.T) {
	dir := t.TempDir()

	tracked, err := New(addOne, sig.MustNew(sig.Required("x")),
		WithStaticDir(dir),
		RequireEmptyDirectory(),
		WithoutVersionTracking(),
	)
	require.NoError(t, err)

	_, err = tracked.Call(context.Background(), []any{1}, nil)
	require.NoError(t, err)

	path := filepath.Join(dir, "addOne_record.json")
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	// The record from the first call makes the directory non-empty.
	_, err = tracked.Call(context.Background(), []any{2}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDirectoryNotEmpty)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after), "failed call must not touch the record")
}

func TestChainedRecords(t *testing.T) {
	dir := t.TempDir()

	tracked, err := New(addOne, sig.MustNew(sig.Required("x")),
		WithStaticDir(dir),
		WithChainedRecords(),
		WithoutVersionTracking(),
	)
	require.NoError(t, err)

	path := filepath.Join(dir, "addOne_record.json")
	ctx := context.Background()

	_, err = tracked.Call(ctx, []any{1}, nil)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var single record.Record
	require.NoError(t, json.Unmarshal(data, &single), "first call should write a single record")

	_, err = tracked.Call(ctx, []any{2}, nil)
	require.NoError(t, err)

	data, err = os.ReadFile(path)
	require.NoError(t, err)
	var pair []record.Record
	require.NoError(t, json.Unmarshal(data, &pair))
	require.Len(t, pair, 2)
	assert.Equal(t, single.UUID, pair[0].UUID)
	assert.NotEmpty(t, pair[1].Timing.EndTime, "post-call write must carry the end time")

	_, err = tracked.Call(ctx, []any{3}, nil)
	require.NoError(t, err)

	data, err = os.ReadFile(path)
	require.NoError(t, err)
	var triple []record.Record
	require.NoError(t, json.Unmarshal(data, &triple))
	assert.Len(t, triple, 3)
}

func TestWrappedErrorLeavesPreCallRecord(t *testing.T) {
	dir := t.TempDir()
	boom := errors.New("boom")

	fn := func(_ context.Context, _ *sig.BoundArgs) (any, error) { return nil, boom }
	tracked, err := New(fn, sig.MustNew(sig.Required("x")),
		WithStaticDir(dir),
		WithRecordFilename("crash"),
		WithoutVersionTracking(),
	)
	require.NoError(t, err)

	_, err = tracked.Call(context.Background(), []any{1}, nil)
	assert.ErrorIs(t, err, boom)

	rec := loadRecordFile(t, filepath.Join(dir, "crash.json"))
	assert.NotEmpty(t, rec.Timing.StartTime)
	assert.Empty(t, rec.Timing.EndTime, "failed calls must not be finalized")
}

func TestParameterNormalization(t *testing.T) {
	dir := t.TempDir()

	fn := func(_ context.Context, _ *sig.BoundArgs) (any, error) { return nil, nil }
	tracked, err := New(fn,
		sig.MustNew(sig.Required("callback"), sig.Required("blob")),
		WithStaticDir(dir),
		WithRecordFilename("norm"),
		WithoutVersionTracking(),
	)
	require.NoError(t, err)

	// callback is not serializable (recorded as its debug form); blob is
	// serializable but exceeds the 200-char ceiling (recorded as placeholder).
	_, err = tracked.Call(context.Background(), []any{
		func() {},
		strings.Repeat("x", 1000),
	}, nil)
	require.NoError(t, err)

	rec := loadRecordFile(t, filepath.Join(dir, "norm.json"))

	callback, ok := rec.CalledFunction.Parameters["callback"].(string)
	require.True(t, ok, "unserializable values should be recorded as strings")
	assert.NotEqual(t, record.TruncationPlaceholder, callback)

	assert.Equal(t, record.TruncationPlaceholder, rec.CalledFunction.Parameters["blob"])
}

func TestExtraEnvironmentVariables(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CRUMBTRAIL_RUN_TAG", "nightly")

	tracked, err := New(addOne, sig.MustNew(sig.Required("x")),
		WithStaticDir(dir),
		WithExtraEnvironmentVariables("CRUMBTRAIL_RUN_TAG"),
		WithoutVersionTracking(),
	)
	require.NoError(t, err)

	_, err = tracked.Call(context.Background(), []any{1}, nil)
	require.NoError(t, err)

	rec := loadRecordFile(t, filepath.Join(dir, "addOne_record.json"))
	vars, ok := rec.Environment["environment_variables"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "nightly", vars["CRUMBTRAIL_RUN_TAG"])
}

func TestReturnValuePassesThrough(t *testing.T) {
	tracked, err := New(addOne, sig.MustNew(sig.Required("x")),
		WithStaticDir(t.TempDir()),
		WithoutVersionTracking(),
	)
	require.NoError(t, err)

	out, err := tracked.Call(context.Background(), []any{41}, nil)
	require.NoError(t, err)
	assert.Equal(t, 42, out)
}
