package export

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/codelens/internal/scan"
)

func scanOf(t *testing.T, req scan.Request) *scan.Result {
	t.Helper()
	res, err := scan.New(scan.Config{}).Scan(context.Background(), req)
	require.NoError(t, err)
	return res
}

func TestNewReport(t *testing.T) {
	res := scanOf(t, scan.Request{Files: []scan.File{
		{Path: "a.js", Content: []byte("var password = \"hunter2\";\nconsole.log(password);\n")},
		{Path: "b.txt", Content: []byte("hi")},
	}})
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600))

	r := NewReport(res, "/src/app", now)
	assert.Equal(t, res.ScanID, r.ScanID)
	assert.Equal(t, "2026-03-01T11:00:00Z", r.ExportedAt)
	assert.Equal(t, 1, r.Summary.Files)
	assert.Equal(t, 1, r.Summary.Skipped)
	assert.Equal(t, 3, r.Summary.Findings)
	assert.Equal(t, map[string]int{"warning": 2, "critical": 1}, r.Summary.BySeverity)
	assert.Equal(t, map[string]int{"no-var": 1, "hardcoded-secret": 1, "debug-print": 1}, r.Summary.ByRule)
	assert.Nil(t, r.Summary.Changes)
}

func TestWrite(t *testing.T) {
	res := scanOf(t, scan.Request{
		Files:       []scan.File{{Path: "m.py", Content: []byte("class A:\n    def run(self):\n        helper()\n\n\ndef helper():\n    pass\n")}},
		EntryPoints: []string{"A.run"},
	})
	require.Len(t, res.Diagrams, 2)

	dir := filepath.Join(t.TempDir(), "out")
	paths, err := Write(dir, NewReport(res, "/src", time.Now()))
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "report.json"),
		filepath.Join(dir, "class.mmd"),
		filepath.Join(dir, "sequence.mmd"),
	}, paths)

	mmd, err := os.ReadFile(filepath.Join(dir, "sequence.mmd"))
	require.NoError(t, err)
	assert.Contains(t, string(mmd), "participant P0 as A.run")

	raw, err := os.ReadFile(filepath.Join(dir, "report.json"))
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, res.ScanID, decoded["scanId"])
	result := decoded["result"].(map[string]any)
	assert.Len(t, result["diagrams"], 2)
	assert.Contains(t, result, "capabilityReport")
}

func TestNewReport_Changes(t *testing.T) {
	res := scanOf(t, scan.Request{
		Files:  []scan.File{{Path: "x.go", Content: []byte("package x\n\nfunc New() {}\n")}},
		Before: []scan.File{{Path: "x.go", Content: []byte("package x\n\nfunc Old() {}\n")}},
	})
	r := NewReport(res, "", time.Now())
	assert.Equal(t, 1, r.Summary.Changes["added"])
	assert.Equal(t, 1, r.Summary.Changes["removed"])
}
