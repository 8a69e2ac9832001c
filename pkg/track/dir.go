package track

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"crumbtrail/pkg/sig"
)

// timestampLayout formats the start time appended to directory names.
const timestampLayout = "2006_01_02_15_04_05"

// resolveDir computes the final output directory for one call and performs
// the feedback step: injecting the result (or the suffixed leaf name) back
// into the bound arguments so the wrapped function observes what it was
// actually given.
func (t *Tracked) resolveDir(bound *sig.BoundArgs, start time.Time, id string) (string, error) {
	var dir string
	if t.opts.staticDir != "" {
		dir = t.opts.staticDir
	} else {
		v, _ := bound.Get(t.opts.dirParam)
		s, err := stringArg(t.opts.dirParam, v)
		if err != nil {
			return "", err
		}
		dir = s
	}

	if t.opts.subdirParam != "" {
		if err := ensureDir(dir, t.opts.createParents); err != nil {
			return "", err
		}
		v, _ := bound.Get(t.opts.subdirParam)
		s, err := stringArg(t.opts.subdirParam, v)
		if err != nil {
			return "", err
		}
		dir = filepath.Join(dir, s)
	}

	if t.opts.appendTimestamp || t.opts.appendUnique {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return "", fmt.Errorf("track: resolve %s: %w", dir, err)
		}
		suffix := id
		if t.opts.appendTimestamp {
			suffix = start.Format(timestampLayout)
		}
		dir = filepath.Join(filepath.Dir(abs), filepath.Base(abs)+"_"+suffix)
	}

	// Feedback: an explicit injection target wins; otherwise a suffixed
	// directory is pushed back into whichever parameter supplied it.
	switch {
	case t.opts.injectParam != "":
		if err := bound.Set(t.opts.injectParam, dir); err != nil {
			return "", err
		}
	case t.opts.appendTimestamp || t.opts.appendUnique:
		if t.opts.subdirParam != "" {
			if err := bound.Set(t.opts.subdirParam, filepath.Base(dir)); err != nil {
				return "", err
			}
		} else if t.opts.dirParam != "" {
			if err := bound.Set(t.opts.dirParam, dir); err != nil {
				return "", err
			}
		}
	}

	if err := ensureDir(dir, t.opts.createParents); err != nil {
		return "", err
	}
	if t.opts.requireEmpty {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return "", fmt.Errorf("track: list %s: %w", dir, err)
		}
		if len(entries) > 0 {
			return "", fmt.Errorf("%w: %s", ErrDirectoryNotEmpty, dir)
		}
	}
	return dir, nil
}

func ensureDir(dir string, parents bool) error {
	if parents {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("track: create %s: %w", dir, err)
		}
		return nil
	}
	if err := os.Mkdir(dir, 0o755); err != nil && !os.IsExist(err) {
		return fmt.Errorf("track: create %s: %w", dir, err)
	}
	return nil
}

func stringArg(name string, v any) (string, error) {
	switch s := v.(type) {
	case string:
		return s, nil
	case fmt.Stringer:
		return s.String(), nil
	default:
		return "", fmt.Errorf("%w: parameter %q must be a string, got %T", ErrArgument, name, v)
	}
}
