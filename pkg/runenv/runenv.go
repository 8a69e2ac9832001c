// Package runenv gathers facts about the running process and its host for
// inclusion in tracking records.
package runenv

import (
	"bufio"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"strings"
)

// BuildHashMarkerPath is the well-known location of the build-time git hash
// marker written into container images by the build pipeline. If the file
// exists, its first line is recorded verbatim.
const BuildHashMarkerPath = "/etc/docker-build-git-hash"

// slurmPrefix marks batch-scheduler variables swept up wholesale when the
// process runs inside a SLURM job.
const slurmPrefix = "SLURM"

// defaultVariables is the fixed allow-list collected on every call.
var defaultVariables = []string{
	"CUDA_VISIBLE_DEVICES",
	"GOPATH",
	"GOFLAGS",
	"GOMAXPROCS",
}

// Snapshot collects static process/platform facts. Lookups that can fail
// degrade to empty values; Snapshot itself never fails. The result is
// captured once per tracker and copied into every record.
func Snapshot() map[string]any {
	info := map[string]any{
		"argv":          append([]string(nil), os.Args...),
		"platform":      runtime.GOOS,
		"platform_info": fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
		"go_version":    runtime.Version(),
		"go_compiler":   runtime.Compiler,
		"cpu_count":     runtime.NumCPU(),
		"exec_path":     filepath.SplitList(os.Getenv("PATH")),
	}

	if exe, err := os.Executable(); err == nil {
		info["executable"] = exe
	} else {
		info["executable"] = ""
	}
	if wd, err := os.Getwd(); err == nil {
		info["cwd"] = wd
	} else {
		info["cwd"] = ""
	}
	if host, err := os.Hostname(); err == nil {
		info["hostname"] = host
	} else {
		info["hostname"] = ""
	}
	if u, err := user.Current(); err == nil {
		info["user"] = u.Username
	} else {
		info["user"] = ""
	}

	if hash, ok := readBuildHashMarker(BuildHashMarkerPath); ok {
		info["git_hash_at_docker_build"] = hash
	}

	return info
}

func readBuildHashMarker(path string) (string, bool) {
	f, err := os.Open(path)
	if err != nil {
		return "", false
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	if scanner.Scan() {
		return scanner.Text(), true
	}
	return "", false
}

// Variables collects the allow-listed environment variables, every
// SLURM-prefixed variable when the process runs under SLURM, and any extra
// names the caller asks for. Unset variables map to nil so the record shows
// they were requested but absent. Values can change between calls, so this
// runs per invocation.
func Variables(extra ...string) map[string]any {
	names := append([]string(nil), defaultVariables...)

	if _, inSlurm := os.LookupEnv("SLURM_JOB_ID"); inSlurm {
		for _, kv := range os.Environ() {
			name, _, ok := strings.Cut(kv, "=")
			if ok && strings.HasPrefix(name, slurmPrefix) {
				names = append(names, name)
			}
		}
	}
	names = append(names, extra...)

	vars := make(map[string]any, len(names))
	for _, name := range names {
		if v, ok := os.LookupEnv(name); ok {
			vars[name] = v
		} else {
			vars[name] = nil
		}
	}
	return vars
}

// Packages returns the module dependency inventory compiled into the running
// binary, mapping module path to version. The boolean is false when build
// info is unavailable (e.g. binaries built without module support).
func Packages() (map[string]string, bool) {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return nil, false
	}
	packages := make(map[string]string, len(info.Deps)+1)
	packages[info.Main.Path] = info.Main.Version
	for _, dep := range info.Deps {
		if dep.Replace != nil {
			packages[dep.Path] = dep.Replace.Version
			continue
		}
		packages[dep.Path] = dep.Version
	}
	return packages, true
}

// CloneSnapshot deep-copies a snapshot so per-call overlays never leak into
// the cached copy.
func CloneSnapshot(src map[string]any) map[string]any {
	dst := make(map[string]any, len(src))
	for k, v := range src {
		switch t := v.(type) {
		case []string:
			dst[k] = append([]string(nil), t...)
		case map[string]any:
			dst[k] = CloneSnapshot(t)
		default:
			dst[k] = v
		}
	}
	return dst
}
