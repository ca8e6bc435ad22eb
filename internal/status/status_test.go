package status

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSanitizeName(t *testing.T) {
	cases := map[string]string{
		"Track A (Taint Analysis)": "track_a_taint_analysis_",
		"Track B":                  "track_b",
		"simple":                   "simple",
	}
	for in, want := range cases {
		if got := SanitizeName(in); got != want {
			t.Errorf("SanitizeName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestReporter_UpdateAndRead(t *testing.T) {
	dir := t.TempDir()
	r := New(dir, "Track A (Taint Analysis)", 3)
	if err := r.Update("taint-analyze", 1); err != nil {
		t.Fatalf("Update: %v", err)
	}
	rec, err := Read(dir, "Track A (Taint Analysis)")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if rec.Current != "taint-analyze" || rec.Completed != 1 || rec.Total != 3 {
		t.Errorf("unexpected record: %+v", rec)
	}
}

func TestReporter_LastWriteWins(t *testing.T) {
	dir := t.TempDir()
	r := New(dir, "Track B", 2)
	r.Update("lint", 0)
	r.Update("detect-patterns", 1)
	rec, err := Read(dir, "Track B")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if rec.Current != "detect-patterns" || rec.Completed != 1 {
		t.Errorf("expected last write to win, got %+v", rec)
	}
}

func TestDeleteAll(t *testing.T) {
	dir := t.TempDir()
	a := New(dir, "Track A (Taint Analysis)", 1)
	b := New(dir, "Track B", 1)
	a.Update("taint-analyze", 0)
	b.Update("lint", 0)

	if err := DeleteAll(dir); err != nil {
		t.Fatalf("DeleteAll: %v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("expected empty status dir after DeleteAll, got %v", entries)
	}
}

func TestMarkInterrupted(t *testing.T) {
	dir := t.TempDir()
	r := New(dir, "Track C (Network I/O)", 2)
	r.Update("deps", 0)
	if err := r.MarkInterrupted("deps", 0); err != nil {
		t.Fatalf("MarkInterrupted: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "track_c_network_i_o_.status"))
	if err != nil {
		t.Fatalf("reading status file: %v", err)
	}
	if len(data) == 0 {
		t.Error("expected non-empty status file")
	}
}
