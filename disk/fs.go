package disk

import (
	"os"
	"path/filepath"
)

// FS is the filesystem surface the cache engine runs on. The default is the
// real OS filesystem; tests substitute an in-memory one to inject faults.
// Paths are plain strings joined by the engine; implementations must treat
// them opaquely.
type FS interface {
	MkdirAll(dir string) error
	ReadFile(name string) ([]byte, error)
	// WriteFile must be atomic: name appears with the full contents or not
	// at all, and an existing file is replaced in one step.
	WriteFile(name string, data []byte) error
	Remove(name string) error
	RemoveAll(dir string) error
	// Size returns the byte size of name. Must error when name is absent.
	Size(name string) (int64, error)
}

// OS returns the production FS backed by the operating system.
func OS() FS { return osFS{} }

type osFS struct{}

var _ FS = osFS{}

func (osFS) MkdirAll(dir string) error { return os.MkdirAll(dir, 0o755) }

func (osFS) ReadFile(name string) ([]byte, error) { return os.ReadFile(name) }

// WriteFile stages data in a dot-prefixed temp file next to name and renames
// it into place. Rename within a directory is atomic on POSIX filesystems, so
// readers never observe a partial file. The dot prefix keeps staging files
// out of the blob namespace.
func (osFS) WriteFile(name string, data []byte) error {
	dir := filepath.Dir(name)
	tmp, err := os.CreateTemp(dir, ".stash-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, name); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

func (osFS) Remove(name string) error { return os.Remove(name) }

func (osFS) RemoveAll(dir string) error { return os.RemoveAll(dir) }

func (osFS) Size(name string) (int64, error) {
	st, err := os.Stat(name)
	if err != nil {
		return 0, err
	}
	return st.Size(), nil
}
