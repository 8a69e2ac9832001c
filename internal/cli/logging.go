package cli

import (
	"encoding/json"
	"fmt"

	"github.com/zeromicro/go-zero/core/logx"

	"crumbtrail/pkg/record"
)

// RecordSummaryLines returns human readable lines describing one run record.
func RecordSummaryLines(rec *record.Record, previewChars int) []string {
	if rec == nil {
		return []string{"Record: <nil>"}
	}

	lines := []string{
		fmt.Sprintf("UUID: %s", rec.UUID),
		fmt.Sprintf("Started: %s", rec.Timing.StartTime),
		fmt.Sprintf("Finished: %s", finishedLine(rec)),
		fmt.Sprintf("Seed: %d", rec.Seed),
	}

	if fn := rec.CalledFunction; fn != nil {
		lines = append(lines,
			fmt.Sprintf("Function: %s (%s)", fn.Name, fn.Module),
			fmt.Sprintf("Parameters: %s", previewValue(fn.Parameters, previewChars)),
		)
	}
	if mod := rec.TrackedModule; mod != nil {
		lines = append(lines, fmt.Sprintf("Commit: %s on %s (%s)",
			shortHash(mod.GitCommitHash), mod.GitActiveBranch, presence(!mod.GitIsDirty)))
	}
	if n := len(rec.ExtraTrackedModules); n > 0 {
		lines = append(lines, fmt.Sprintf("Extra tracked modules: %d", n))
	}
	if n := len(rec.PackageInventory); n > 0 {
		lines = append(lines, fmt.Sprintf("Package inventory: %d modules", n))
	}

	return lines
}

// LogRecordSummary emits the record summary using logx.
func LogRecordSummary(path string, rec *record.Record, previewChars int) {
	logx.Infof("record %s", path)
	for _, line := range RecordSummaryLines(rec, previewChars) {
		logx.Infof("record • %s", line)
	}
}

func finishedLine(rec *record.Record) string {
	if rec.Timing.EndTime == "" {
		return "not finished (pre-call record)"
	}
	return fmt.Sprintf("%s (%s)", rec.Timing.EndTime, rec.Timing.RunTime)
}

func previewValue(v any, limit int) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "<unprintable>"
	}
	s := string(data)
	if limit > 0 && len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}

func shortHash(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}

func presence(clean bool) string {
	if clean {
		return "clean"
	}
	return "dirty"
}
