package report

import (
	"fmt"
	"os"
	"path/filepath"
)

// WriteFile replaces path with content. The content goes to a temp file in
// the same directory first and is renamed into place, so readers never see
// a half-written report.
func WriteFile(path, content string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create report dir: %w", err)
		}
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write temp report: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename temp report: %w", err)
	}
	return nil
}
