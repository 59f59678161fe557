// Package artifact writes run outputs to disk under a per-run directory.
package artifact

import (
	"os"
	"path/filepath"
	"regexp"

	"github.com/rotisserie/eris"
)

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// Store writes artifacts below Dir/<run-id>/.
type Store struct {
	dir string
}

// NewStore returns a store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the root directory.
func (s *Store) Dir() string {
	return s.dir
}

// Write stores data as name in the run's directory and returns the path.
// Path separators in runID or name are replaced so writes stay inside the
// run directory.
func (s *Store) Write(runID, name string, data []byte) (string, error) {
	if runID == "" || name == "" {
		return "", eris.New("artifact: run id and name are required")
	}
	runDir := filepath.Join(s.dir, unsafeName.ReplaceAllString(runID, "_"))
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", eris.Wrapf(err, "artifact: create %s", runDir)
	}
	path := filepath.Join(runDir, unsafeName.ReplaceAllString(name, "_"))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", eris.Wrapf(err, "artifact: write %s", path)
	}
	return path, nil
}
