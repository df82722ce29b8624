package receipts

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// DiskStore writes blobs under a base directory with uuid-derived names so
// uploads can never collide or traverse paths. The returned reference is the
// stored name, not the full path.
type DiskStore struct {
	Dir string
}

func NewDiskStore(dir string) *DiskStore { return &DiskStore{Dir: dir} }

func (s *DiskStore) Save(name string, r io.Reader) (string, error) {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", err
	}
	stored := uuid.NewString() + strings.ToLower(filepath.Ext(name))
	f, err := os.Create(filepath.Join(s.Dir, stored))
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return stored, nil
}

// Remove deletes a stored blob. The base name guard keeps refs from reaching
// outside the store directory.
func (s *DiskStore) Remove(ref string) error {
	return os.Remove(filepath.Join(s.Dir, filepath.Base(ref)))
}
