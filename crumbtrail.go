// Package crumbtrail records how a function was run so the run can be
// reproduced later.
//
// The entry point is pkg/track: wrap a function with a declared signature
// and every call binds its arguments, resolves an output directory, seeds
// the registered randomness sources and persists a JSON run record into
// that directory, once before the call and once after it finishes.
//
// The run record (pkg/record) captures the call parameters, the execution
// environment (pkg/runenv), the state of the source repository and any
// extra tracked repositories (pkg/vcs), and the seed that was applied
// (pkg/seed). Records for repeated runs into the same directory can be
// chained into a list instead of overwritten.
//
// cmd/records is a small CLI that validates and summarizes record files.
package crumbtrail
