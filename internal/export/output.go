package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

// Cue-sheet file names come from the project name, which is whatever the
// presenter called their descriptor. Keep them portable across the
// filesystems exports land on.
const maxCueSheetNameRunes = 64

// cueSheetFileName derives the exported file's name from the project name.
// Path separators and shell-hostile runes become '-', control runes are
// dropped, and a name that sanitises away entirely falls back to
// "cuesheet".
func cueSheetFileName(projectName, ext string) string {
	var b strings.Builder
	for _, r := range projectName {
		switch {
		case unicode.IsControl(r):
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case r == ' ' || r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}

	name := strings.Trim(b.String(), " .")
	if runes := []rune(name); len(runes) > maxCueSheetNameRunes {
		name = string(runes[:maxCueSheetNameRunes])
	}
	if name == "" {
		name = "cuesheet"
	}
	return name + ext
}

// checkOutputDir vets the caller-chosen export directory before anything is
// written. The path arrives over the control API, so traversal elements are
// rejected outright rather than cleaned away.
func checkOutputDir(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return fmt.Errorf("output directory is required")
	}
	for _, part := range strings.Split(filepath.ToSlash(dir), "/") {
		if part == ".." {
			return fmt.Errorf("output directory must not contain %q", "..")
		}
	}

	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("output directory %s does not exist", dir)
		}
		return fmt.Errorf("cannot stat output directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}
	return nil
}
