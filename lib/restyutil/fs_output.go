package restyutil

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// FilesystemOutput writes every exchange to its own file in a directory.
type FilesystemOutput struct {
	dir string
}

// NewFilesystemOutput creates dir when missing. Files of a previous run with
// the same ids are overwritten.
func NewFilesystemOutput(dir string) (FilesystemOutput, error) {
	if info, err := os.Stat(dir); err == nil && !info.IsDir() {
		return FilesystemOutput{}, fmt.Errorf("%s is not a directory", dir)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return FilesystemOutput{}, err
	}
	return FilesystemOutput{dir: dir}, nil
}

func (o FilesystemOutput) Dir() string {
	return o.dir
}

func (o FilesystemOutput) Write(id string, contents string) {
	path := filepath.Join(o.dir, filepath.Base(id))
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		slog.Warn("dump exchange", "path", path, "err", err)
	}
}
