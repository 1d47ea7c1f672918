package generation

import (
	"archive/zip"
	"bytes"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"
)

// Bundle zips the artifacts of SUCCESS and PARTIAL_SUCCESS outcomes.
// Duplicate filenames are suffixed so every artifact is kept.
func Bundle(outcomes []Outcome) ([]byte, []string, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	seen := make(map[string]bool)
	var files []string

	for _, o := range outcomes {
		if o.Status == OutcomeFailed || o.Artifact == nil {
			continue
		}

		name := uniqueName(o.Filename, seen)
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     name,
			Method:   zip.Deflate,
			Modified: o.Timestamp,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("add %s: %w", name, err)
		}
		if _, err := w.Write(o.Artifact); err != nil {
			return nil, nil, fmt.Errorf("write %s: %w", name, err)
		}
		files = append(files, name)
	}

	if err := zw.Close(); err != nil {
		return nil, nil, fmt.Errorf("close package: %w", err)
	}
	return buf.Bytes(), files, nil
}

func uniqueName(name string, seen map[string]bool) string {
	if name == "" {
		name = "contract"
	}

	ext := path.Ext(name)
	base := strings.TrimSuffix(name, ext)
	candidate := name
	for i := 2; seen[candidate]; i++ {
		candidate = base + "-" + strconv.Itoa(i) + ext
	}
	seen[candidate] = true
	return candidate
}

func hasSuccess(outcomes []Outcome) bool {
	for _, o := range outcomes {
		if o.Status == OutcomeSuccess {
			return true
		}
	}
	return false
}

func packageKey(prefix, runID string, t time.Time) string {
	return path.Join(prefix, t.UTC().Format("2006/01/02"), runID+".zip")
}
