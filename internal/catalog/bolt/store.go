package bolt

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.etcd.io/bbolt"

	"imgview/internal/catalog/store"
)

// Store keeps the catalog in a single bbolt file: one bucket of folder
// metadata and one nested records bucket per folder.
type Store struct {
	db *bbolt.DB
}

func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("dbPath is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, err
	}
	s := &Store{db: db}
	if err := s.ensureBuckets(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Backend() string { return "bolt" }

func (s *Store) EnsureFolder(id string, root string) error {
	if s == nil || s.db == nil {
		return store.ErrNotOpen
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("folderID is required")
	}
	root = strings.TrimSpace(root)

	return s.db.Update(func(tx *bbolt.Tx) error {
		fb := tx.Bucket([]byte(bucketFolders))
		rb := tx.Bucket([]byte(bucketRecords))
		if _, err := rb.CreateBucketIfNotExists([]byte(id)); err != nil {
			return err
		}

		meta := folderMeta{}
		if raw := fb.Get([]byte(id)); raw != nil {
			if err := decode(raw, &meta); err != nil {
				return err
			}
		}
		if meta.ID == "" {
			meta.ID = id
		}
		if meta.CreatedAt == 0 {
			meta.CreatedAt = nowUnix()
		}
		if meta.Version == 0 {
			meta.Version = 1
		}
		if root != "" {
			meta.Root = root
		}
		buf, err := encode(meta)
		if err != nil {
			return err
		}
		return fb.Put([]byte(id), buf)
	})
}

func (s *Store) GetFolder(id string) (store.Folder, error) {
	if s == nil || s.db == nil {
		return store.Folder{}, store.ErrNotOpen
	}
	id = strings.TrimSpace(id)
	var out store.Folder
	err := s.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket([]byte(bucketFolders)).Get([]byte(id))
		if raw == nil {
			return store.ErrFolderNotFound
		}
		meta := folderMeta{}
		if err := decode(raw, &meta); err != nil {
			return err
		}
		out = store.Folder{ID: meta.ID, Root: meta.Root, CreatedAt: meta.CreatedAt, Version: meta.Version}
		return nil
	})
	return out, err
}

func (s *Store) GetVersion(id string) (int64, error) {
	f, err := s.GetFolder(id)
	if err != nil {
		return 0, err
	}
	return f.Version, nil
}

func (s *Store) BumpVersion(id string) error {
	if s == nil || s.db == nil {
		return store.ErrNotOpen
	}
	id = strings.TrimSpace(id)
	return s.db.Update(func(tx *bbolt.Tx) error {
		fb := tx.Bucket([]byte(bucketFolders))
		raw := fb.Get([]byte(id))
		if raw == nil {
			return store.ErrFolderNotFound
		}
		meta := folderMeta{}
		if err := decode(raw, &meta); err != nil {
			return err
		}
		if meta.Version <= 0 {
			meta.Version = 1
		} else {
			meta.Version++
		}
		buf, err := encode(meta)
		if err != nil {
			return err
		}
		return fb.Put([]byte(id), buf)
	})
}

func (s *Store) UpsertRecords(folderID string, recs []store.Record) error {
	if s == nil || s.db == nil {
		return store.ErrNotOpen
	}
	folderID = strings.TrimSpace(folderID)
	if folderID == "" {
		return fmt.Errorf("folderID is required")
	}
	if err := s.EnsureFolder(folderID, ""); err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		rb := recordBucket(tx, folderID)
		if rb == nil {
			return store.ErrFolderNotFound
		}
		for _, r := range recs {
			path := filepath.ToSlash(r.Path)
			if strings.TrimSpace(path) == "" {
				return fmt.Errorf("path is required")
			}
			buf, err := encode(recordMeta{
				Size: r.Size, MTime: r.MTime,
				Width: r.Width, Height: r.Height,
				Format: r.Format, Hash: r.Hash,
			})
			if err != nil {
				return err
			}
			if err := rb.Put([]byte(path), buf); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) GetRecord(folderID string, path string) (store.Record, bool, error) {
	if s == nil || s.db == nil {
		return store.Record{}, false, store.ErrNotOpen
	}
	folderID = strings.TrimSpace(folderID)
	path = filepath.ToSlash(path)
	if folderID == "" {
		return store.Record{}, false, fmt.Errorf("folderID is required")
	}
	if strings.TrimSpace(path) == "" {
		return store.Record{}, false, fmt.Errorf("path is required")
	}

	var (
		out   store.Record
		found bool
	)
	err := s.db.View(func(tx *bbolt.Tx) error {
		rb := recordBucket(tx, folderID)
		if rb == nil {
			return nil
		}
		raw := rb.Get([]byte(path))
		if raw == nil {
			return nil
		}
		meta := recordMeta{}
		if err := decode(raw, &meta); err != nil {
			return err
		}
		out = toRecord(path, meta)
		found = true
		return nil
	})
	return out, found, err
}

func (s *Store) ListRecords(folderID string) (map[string]store.Record, error) {
	if s == nil || s.db == nil {
		return nil, store.ErrNotOpen
	}
	folderID = strings.TrimSpace(folderID)
	out := map[string]store.Record{}
	err := s.db.View(func(tx *bbolt.Tx) error {
		rb := recordBucket(tx, folderID)
		if rb == nil {
			return nil
		}
		return rb.ForEach(func(k, v []byte) error {
			meta := recordMeta{}
			if err := decode(v, &meta); err != nil {
				return err
			}
			out[string(k)] = toRecord(string(k), meta)
			return nil
		})
	})
	return out, err
}

func (s *Store) DeleteRecords(folderID string, paths []string) error {
	if s == nil || s.db == nil {
		return store.ErrNotOpen
	}
	folderID = strings.TrimSpace(folderID)
	if folderID == "" {
		return fmt.Errorf("folderID is required")
	}
	if len(paths) == 0 {
		return nil
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		rb := recordBucket(tx, folderID)
		if rb == nil {
			return nil
		}
		for _, p := range paths {
			if err := rb.Delete([]byte(filepath.ToSlash(p))); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) CountRecords(folderID string) (int, error) {
	if s == nil || s.db == nil {
		return 0, store.ErrNotOpen
	}
	var n int
	err := s.db.View(func(tx *bbolt.Tx) error {
		rb := recordBucket(tx, strings.TrimSpace(folderID))
		if rb == nil {
			return nil
		}
		n = rb.Stats().KeyN
		return nil
	})
	return n, err
}

func (s *Store) ensureBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{bucketFolders, bucketRecords} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
}

func recordBucket(tx *bbolt.Tx, folderID string) *bbolt.Bucket {
	rb := tx.Bucket([]byte(bucketRecords))
	if rb == nil {
		return nil
	}
	return rb.Bucket([]byte(folderID))
}

func toRecord(path string, m recordMeta) store.Record {
	return store.Record{
		Path:   path,
		Size:   m.Size,
		MTime:  m.MTime,
		Width:  m.Width,
		Height: m.Height,
		Format: m.Format,
		Hash:   m.Hash,
	}
}
