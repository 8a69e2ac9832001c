package record

import "time"

// TimeLayout is the format used for the timing fields of a record.
const TimeLayout = "2006-01-02 15:04:05.000000"

// Timing captures when a tracked call started and finished. The end fields
// stay empty until the post-call write.
type Timing struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time,omitempty"`
	RunTime   string `json:"run_time,omitempty"`
}

// VersionRecord describes the git state of one tracked module.
type VersionRecord struct {
	ModulePath      string            `json:"module_path"`
	Name            string            `json:"name"`
	GitActiveBranch string            `json:"git_active_branch"`
	GitCommitHash   string            `json:"git_commit_hash"`
	GitIsDirty      bool              `json:"git_is_dirty"`
	GitRemotes      map[string]string `json:"git_remotes"`
	GitWorkingDir   string            `json:"git_working_dir"`
}

// CalledFunction describes the wrapped function and its arguments.
// Parameters holds the arguments as bound against the declared signature,
// defaults applied, before any directory/seed injection. AlteredParameters
// holds the same mapping after injection, i.e. what the function observed.
type CalledFunction struct {
	Name              string         `json:"name"`
	Module            string         `json:"module"`
	SourceFile        string         `json:"source_file,omitempty"`
	Parameters        map[string]any `json:"parameters"`
	AlteredParameters map[string]any `json:"altered_parameters,omitempty"`
}

// Record is the JSON document written for one tracked invocation.
type Record struct {
	UUID                string                    `json:"uuid"`
	Timing              Timing                    `json:"timing"`
	Environment         map[string]any            `json:"environment"`
	PackageInventory    map[string]string         `json:"package_inventory,omitempty"`
	CalledFunction      *CalledFunction           `json:"called_function"`
	TrackedModule       *VersionRecord            `json:"tracked_module,omitempty"`
	ExtraTrackedModules map[string]*VersionRecord `json:"extra_tracked_modules,omitempty"`
	Seed                int64                     `json:"seed"`
}

// SetStart stamps the start time.
func (r *Record) SetStart(t time.Time) {
	r.Timing.StartTime = t.Format(TimeLayout)
}

// SetEnd stamps the end time and the elapsed duration since start.
func (r *Record) SetEnd(start, end time.Time) {
	r.Timing.EndTime = end.Format(TimeLayout)
	r.Timing.RunTime = end.Sub(start).String()
}
