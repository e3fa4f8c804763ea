package store

import "errors"

var (
	ErrNotOpen        = errors.New("store is not open")
	ErrFolderNotFound = errors.New("folder not found")
)

// Record is what the catalog remembers about one image. Path is relative
// to the folder root, slash-separated.
type Record struct {
	Path   string
	Size   int64
	MTime  int64
	Width  int
	Height int
	Format string
	Hash   string
}

// Unchanged reports whether r still describes a file with this size and
// modification time.
func (r Record) Unchanged(size, mtime int64) bool {
	return r.Size == size && r.MTime == mtime
}

type Folder struct {
	ID        string
	Root      string
	CreatedAt int64
	Version   int64
}

type Store interface {
	Close() error
	Backend() string

	EnsureFolder(id string, root string) error
	GetFolder(id string) (Folder, error)
	GetVersion(id string) (int64, error)
	BumpVersion(id string) error

	UpsertRecords(folderID string, recs []Record) error
	GetRecord(folderID string, path string) (Record, bool, error)
	ListRecords(folderID string) (map[string]Record, error)
	DeleteRecords(folderID string, paths []string) error
	CountRecords(folderID string) (int, error)
}

// BuildPragmaApplier is implemented by stores that can trade durability for
// speed during a bulk build.
type BuildPragmaApplier interface {
	ApplyBuildPragmas() error
}
