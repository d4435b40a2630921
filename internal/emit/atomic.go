package emit

import (
	"bytes"
	"path/filepath"

	"github.com/spf13/afero"

	"tagc/internal/domain"
)

// writeAtomic replaces path with data. The content goes to a temporary file
// in the same directory first and is renamed over path only once fully
// written, so readers never observe a half-written artifact.
func writeAtomic(fs afero.Fs, target, path string, data *bytes.Buffer) (err error) {
	dir := filepath.Dir(path)
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return domain.IOError(target, path, err)
	}

	tmp, err := afero.TempFile(fs, dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return domain.IOError(target, path, err)
	}
	tmpName := tmp.Name()
	closed := false
	defer func() {
		if err == nil {
			return
		}
		if !closed {
			_ = tmp.Close()
		}
		_ = fs.Remove(tmpName)
	}()

	if _, err := data.WriteTo(tmp); err != nil {
		return domain.IOError(target, path, err)
	}
	if err := tmp.Sync(); err != nil {
		return domain.IOError(target, path, err)
	}
	closed = true
	if err := tmp.Close(); err != nil {
		return domain.IOError(target, path, err)
	}
	if err := fs.Chmod(tmpName, 0o644); err != nil {
		return domain.IOError(target, path, err)
	}
	if err := fs.Rename(tmpName, path); err != nil {
		return domain.IOError(target, path, err)
	}
	return nil
}

// readAll reads a whole artifact from fs.
func readAll(fs afero.Fs, target, path string) ([]byte, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, domain.IOError(target, path, err)
	}
	return data, nil
}
