// Package store defines the backing store a dialogue graph is saved to. A
// saved graph lives under a path: one root record plus any number of
// sub-object records, each keyed by the entity id it encodes.
package store

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
)

// Extension is the suffix every saved graph path carries.
const Extension = ".dialogue"

var (
	ErrNotFound    = errors.New("no graph saved at path")
	ErrStaleHandle = errors.New("root handle has been replaced")
	ErrInvalidPath = errors.New("invalid save path")
)

type Store interface {
	// CreateRoot stages a new revision at path holding root, discarding any
	// revision staged there before. The save already at path stays what
	// LoadAll and List see until Commit.
	CreateRoot(ctx context.Context, root Record, path string) (Handle, error)
	// AddSubObject writes rec under the revision h names, replacing an
	// earlier record with the same id. h may name the committed or the
	// staged revision. Writing the root's own id updates the root.
	AddSubObject(ctx context.Context, rec Record, h Handle) error
	// Commit makes the staged revision h the save at h.Path and drops the
	// one it replaces.
	Commit(ctx context.Context, h Handle) error
	LoadAll(ctx context.Context, path string) (*Snapshot, error)
	// List returns every saved path in lexical order.
	List(ctx context.Context) ([]string, error)
	Close(ctx context.Context) error
}

// Record is one encoded entity.
type Record struct {
	ID   uint64
	Kind string
	Data []byte
}

// Handle identifies one revision of a saved root.
type Handle struct {
	Path     string
	Revision uuid.UUID
}

// Snapshot is everything saved under a path. Objects are ordered by id and
// do not include the root.
type Snapshot struct {
	Handle  Handle
	Root    Record
	Objects []Record
}

// Records returns the root followed by every sub-object.
func (s *Snapshot) Records() []Record {
	out := make([]Record, 0, len(s.Objects)+1)
	out = append(out, s.Root)
	return append(out, s.Objects...)
}

// ValidatePath checks a save path: relative, slash separated, free of NUL
// and ".." segments, and ending in Extension.
func ValidatePath(p string) error {
	switch {
	case strings.TrimSpace(p) == "":
		return fmt.Errorf("%w: path is empty", ErrInvalidPath)
	case strings.HasPrefix(p, "/"):
		return fmt.Errorf("%w: %q is absolute", ErrInvalidPath, p)
	case strings.ContainsRune(p, 0):
		return fmt.Errorf("%w: %q contains NUL", ErrInvalidPath, p)
	case strings.Contains(p, `\`):
		return fmt.Errorf("%w: %q must use forward slashes", ErrInvalidPath, p)
	case !strings.HasSuffix(p, Extension) || path.Base(p) == Extension:
		return fmt.Errorf("%w: %q must end in %s", ErrInvalidPath, p, Extension)
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." || seg == "" {
			return fmt.Errorf("%w: %q has an empty or parent segment", ErrInvalidPath, p)
		}
	}
	return nil
}

// NewHandle issues a fresh revision for path.
func NewHandle(path string) Handle {
	return Handle{Path: path, Revision: uuid.New()}
}
