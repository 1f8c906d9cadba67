package watch

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, path string, content string, mtime time.Time) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	if !mtime.IsZero() {
		if err := os.Chtimes(path, mtime, mtime); err != nil {
			t.Fatalf("chtimes %s: %v", path, err)
		}
	}
}

func TestNewRejectsMalformedPattern(t *testing.T) {
	_, err := New([]string{"results/[*.json"})
	if err == nil {
		t.Fatal("expected error for malformed pattern")
	}
}

func TestNewRejectsEmptyPatternList(t *testing.T) {
	_, err := New([]string{"", "   "})
	if err == nil {
		t.Fatal("expected error for empty pattern list")
	}
}

func TestScanFindsMatchesAcrossPatterns(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.json"), "{}", time.Time{})
	writeFile(t, filepath.Join(dir, "b.txt"), "x", time.Time{})
	writeFile(t, filepath.Join(dir, "c.log"), "x", time.Time{})

	w, err := New([]string{filepath.Join(dir, "*.json"), filepath.Join(dir, "*.txt")})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	cands, err := w.Scan()
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(cands) != 2 {
		t.Fatalf("expected 2 candidates, got %d: %+v", len(cands), cands)
	}
}

func TestScanIgnoresDirectories(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "sub.json"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	writeFile(t, filepath.Join(dir, "real.json"), "{}", time.Time{})

	w, err := New([]string{filepath.Join(dir, "*.json")})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	cands, err := w.Scan()
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(cands) != 1 || cands[0].Name() != "real.json" {
		t.Fatalf("candidates = %+v", cands)
	}
}

func TestFreshClassification(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	window := 600 * time.Second

	tests := []struct {
		name  string
		mtime time.Time
		want  bool
	}{
		{"just written", now, true},
		{"inside window", now.Add(-599 * time.Second), true},
		{"on boundary", now.Add(-600 * time.Second), true},
		{"stale", now.Add(-601 * time.Second), false},
		{"twenty minutes old", now.Add(-20 * time.Minute), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Fresh(now, tt.mtime, window); got != tt.want {
				t.Errorf("Fresh = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFreshIsIdempotent(t *testing.T) {
	// Two sessions classifying the same snapshot at the same instant must
	// reach the same decision.
	now := time.Now()
	mtime := now.Add(-5 * time.Minute)
	a := Fresh(now, mtime, 600*time.Second)
	b := Fresh(now, mtime, 600*time.Second)
	if a != b {
		t.Fatal("classification disagreed across calls")
	}
}

func TestNewestPicksMostRecentlyModified(t *testing.T) {
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	cands := []Candidate{
		{Path: "old.json", ModTime: base.Add(-time.Hour)},
		{Path: "new.json", ModTime: base},
		{Path: "mid.json", ModTime: base.Add(-time.Minute)},
	}
	best, ok := Newest(cands)
	if !ok {
		t.Fatal("expected a candidate")
	}
	if best.Path != "new.json" {
		t.Errorf("Newest = %s", best.Path)
	}
}

func TestNewestEmpty(t *testing.T) {
	if _, ok := Newest(nil); ok {
		t.Fatal("expected no candidate")
	}
}

func TestLatestSkipsStaleOnlyDirectory(t *testing.T) {
	dir := t.TempDir()
	stale := time.Now().Add(-20 * time.Minute)
	writeFile(t, filepath.Join(dir, "leftover.json"), "{}", stale)

	w, err := New([]string{filepath.Join(dir, "*.json")})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, ok, err := w.Latest(time.Now(), 600*time.Second)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if ok {
		t.Fatal("stale file must not be selected")
	}
}

func TestLatestPrefersFreshestFile(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	writeFile(t, filepath.Join(dir, "first.json"), "1", now.Add(-2*time.Minute))
	writeFile(t, filepath.Join(dir, "second.json"), "2", now.Add(-time.Minute))

	w, err := New([]string{filepath.Join(dir, "*.json")})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	best, ok, err := w.Latest(now, 600*time.Second)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if !ok {
		t.Fatal("expected a fresh candidate")
	}
	if best.Name() != "second.json" {
		t.Errorf("Latest = %s", best.Name())
	}
}

func TestReadContentBestEffort(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "result.json")
	writeFile(t, path, `{"score": 1}`, time.Time{})

	got := ReadContent(Candidate{Path: path})
	if string(got) != `{"score": 1}` {
		t.Errorf("content = %q", got)
	}

	missing := ReadContent(Candidate{Path: filepath.Join(dir, "gone.json")})
	if missing != nil {
		t.Errorf("expected nil content for missing file, got %q", missing)
	}
}
