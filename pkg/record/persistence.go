package record

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Extension is the canonical record file extension. Write appends it whenever
// the requested path carries a different one (or none).
const Extension = ".json"

const writeIndent = "    "

// CanonicalPath rewrites a record file path so that it ends in Extension.
func CanonicalPath(path string) string {
	if strings.HasSuffix(path, Extension) {
		return path
	}
	if ext := fileExt(path); ext != "" {
		path = strings.TrimSuffix(path, ext)
	}
	return path + Extension
}

func fileExt(path string) string {
	for i := len(path) - 1; i >= 0 && path[i] != '/' && path[i] != '\\'; i-- {
		if path[i] == '.' {
			return path[i:]
		}
	}
	return ""
}

// Write persists a document (a Record, or a chained list of records) as
// pretty-printed JSON. It returns the path actually written.
func Write(path string, doc any) (string, error) {
	path = CanonicalPath(path)
	data, err := json.MarshalIndent(doc, "", writeIndent)
	if err != nil {
		return "", fmt.Errorf("record: marshal %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("record: write %s: %w", path, err)
	}
	return path, nil
}

// ReadRaw loads a record file without interpreting it. A missing file yields
// (nil, nil) so callers can distinguish "no previous record" cheaply.
func ReadRaw(path string) (json.RawMessage, error) {
	data, err := os.ReadFile(CanonicalPath(path))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("record: read %s: %w", path, err)
	}
	return json.RawMessage(data), nil
}

// IsList reports whether a raw record document holds a chained list.
func IsList(raw json.RawMessage) bool {
	trimmed := bytes.TrimLeft(raw, " \t\r\n")
	return len(trimmed) > 0 && trimmed[0] == '['
}

// Chain combines previously persisted content with the current record into
// the document to write. With no previous content the record stands alone; a
// previous list is extended; a previous single record is wrapped into a pair.
// Prior entries are kept as raw messages so their bytes survive re-encoding
// unchanged.
func Chain(previous json.RawMessage, rec *Record) (any, error) {
	if previous == nil {
		return rec, nil
	}
	current, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("record: marshal chained record: %w", err)
	}
	if IsList(previous) {
		var entries []json.RawMessage
		if err := json.Unmarshal(previous, &entries); err != nil {
			return nil, fmt.Errorf("record: previous chain is malformed: %w", err)
		}
		return append(entries, current), nil
	}
	return []json.RawMessage{previous, current}, nil
}
