package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/zeromicro/go-zero/core/logx"

	"crumbtrail/internal/cli"
	"crumbtrail/internal/config"
	"crumbtrail/pkg/record"
)

var configFile = flag.String("f", "etc/records.yaml", "the config file")

func main() {
	flag.Parse()

	cfg := config.MustLoad(*configFile)

	paths := flag.Args()
	if len(paths) == 0 {
		found, err := scanRecords(cfg.RecordsDir)
		if err != nil {
			logx.Errorf("scan %s: %v", cfg.RecordsDir, err)
			os.Exit(1)
		}
		paths = found
	}
	if len(paths) == 0 {
		fmt.Printf("No record files found under %s\n", cfg.RecordsDir)
		return
	}

	failures := 0
	for _, path := range paths {
		if err := inspect(path, cfg.MaxPreviewChars); err != nil {
			logx.Errorf("inspect %s: %v", path, err)
			failures++
		}
	}
	if failures > 0 {
		os.Exit(1)
	}
}

// scanRecords collects every record file under dir.
func scanRecords(dir string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(path, record.Extension) {
			paths = append(paths, path)
		}
		return nil
	})
	if os.IsNotExist(err) {
		return nil, nil
	}
	return paths, err
}

// inspect validates a record file (single record or chain) and prints a
// summary for each entry it holds.
func inspect(path string, previewChars int) error {
	raw, err := record.ReadRaw(path)
	if err != nil {
		return err
	}
	if raw == nil {
		return fmt.Errorf("no such record file")
	}

	var records []record.Record
	if record.IsList(raw) {
		if err := json.Unmarshal(raw, &records); err != nil {
			return fmt.Errorf("malformed chain: %w", err)
		}
	} else {
		var rec record.Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return fmt.Errorf("malformed record: %w", err)
		}
		records = []record.Record{rec}
	}

	if len(records) > 1 {
		fmt.Printf("%s: chain of %d records\n", path, len(records))
	}
	for i := range records {
		cli.LogRecordSummary(path, &records[i], previewChars)
	}
	return nil
}
