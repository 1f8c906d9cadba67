package watch

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Candidate is a filesystem entry matched by one of the watch patterns.
// Candidates are recomputed on every scan and never cached across polls.
type Candidate struct {
	Path    string
	ModTime time.Time
}

func (c Candidate) Name() string { return filepath.Base(c.Path) }

// Watcher scans an ordered list of glob patterns for result files. It only
// ever reads the filesystem; result files are never written, moved, or
// deleted.
type Watcher struct {
	patterns []string
}

func New(patterns []string) (*Watcher, error) {
	cleaned := make([]string, 0, len(patterns))
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, err := filepath.Match(p, ""); err != nil {
			return nil, fmt.Errorf("watch pattern %q: %w", p, err)
		}
		cleaned = append(cleaned, p)
	}
	if len(cleaned) == 0 {
		return nil, fmt.Errorf("at least one watch pattern is required")
	}
	return &Watcher{patterns: cleaned}, nil
}

func (w *Watcher) Patterns() []string {
	out := make([]string, len(w.patterns))
	copy(out, w.patterns)
	return out
}

// Scan globs every pattern and stats the matches. Entries that disappear
// between glob and stat are skipped; directories are ignored.
func (w *Watcher) Scan() ([]Candidate, error) {
	var out []Candidate
	for _, pattern := range w.patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			// Patterns are validated at construction; treat this as a scan miss.
			continue
		}
		for _, m := range matches {
			info, err := os.Stat(m)
			if err != nil || info.IsDir() {
				continue
			}
			out = append(out, Candidate{Path: m, ModTime: info.ModTime()})
		}
	}
	return out, nil
}

// Fresh reports whether a file modified at mtime still belongs to the
// current job. Classification depends only on (now - mtime, window) so two
// sessions scanning the same snapshot always agree.
func Fresh(now, mtime time.Time, window time.Duration) bool {
	return now.Sub(mtime) <= window
}

// Newest returns the most recently modified candidate.
func Newest(cands []Candidate) (Candidate, bool) {
	if len(cands) == 0 {
		return Candidate{}, false
	}
	best := cands[0]
	for _, c := range cands[1:] {
		if c.ModTime.After(best.ModTime) {
			best = c
		}
	}
	return best, true
}

// Latest scans and returns the newest candidate within the freshness
// window. A stale-only directory reports no candidate at all, so residue
// from an earlier run is never replayed as a new completion.
func (w *Watcher) Latest(now time.Time, window time.Duration) (Candidate, bool, error) {
	cands, err := w.Scan()
	if err != nil {
		return Candidate{}, false, err
	}
	best, ok := Newest(cands)
	if !ok || !Fresh(now, best.ModTime, window) {
		return Candidate{}, false, nil
	}
	return best, true, nil
}

// ReadContent reads the candidate best-effort. A read failure yields empty
// content rather than an error: the session must still terminate
// successfully, and an empty artifact beats a hung client.
func ReadContent(c Candidate) []byte {
	data, err := os.ReadFile(c.Path)
	if err != nil {
		return nil
	}
	return data
}
