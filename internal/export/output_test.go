package export

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCueSheetFileName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "Gala Night", "Gala Night.csv"},
		{"path separator", "Gala/Night", "Gala-Night.csv"},
		{"windows separator", `tour\2026`, "tour-2026.csv"},
		{"control runes dropped", "a\nb\tc", "abc.csv"},
		{"shell metacharacters", `q"u|o<t>e`, "q-u-o-t-e.csv"},
		{"surrounding dots trimmed", ".show.", "show.csv"},
		{"empty falls back", "", "cuesheet.csv"},
		{"nothing survives", "...", "cuesheet.csv"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := cueSheetFileName(tc.in, ".csv"); got != tc.want {
				t.Errorf("cueSheetFileName(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestCueSheetFileNameCapsLength(t *testing.T) {
	got := cueSheetFileName(strings.Repeat("x", 300), ".edl")
	if want := maxCueSheetNameRunes + len(".edl"); len(got) != want {
		t.Errorf("len = %d, want %d (%q)", len(got), want, got)
	}
}

func TestCheckOutputDir(t *testing.T) {
	dir := t.TempDir()
	if err := checkOutputDir(dir); err != nil {
		t.Fatalf("checkOutputDir(%q) error = %v", dir, err)
	}
}

func TestCheckOutputDirEmpty(t *testing.T) {
	if err := checkOutputDir("  "); err == nil {
		t.Error("blank directory should be rejected")
	}
}

func TestCheckOutputDirTraversal(t *testing.T) {
	// filepath.Join would clean the dots away; the raw request path is
	// what gets vetted.
	if err := checkOutputDir(t.TempDir() + "/../elsewhere"); err == nil {
		t.Error("traversal element should be rejected")
	}
}

func TestCheckOutputDirMissing(t *testing.T) {
	if err := checkOutputDir(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("missing directory should be rejected")
	}
}

func TestCheckOutputDirNotADir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plain.txt")
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := checkOutputDir(path); err == nil {
		t.Error("regular file should be rejected")
	}
}
