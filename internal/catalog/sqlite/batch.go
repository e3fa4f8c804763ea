package sqlite

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"imgview/internal/catalog/store"
)

// UpsertRecords writes recs in one immediate transaction.
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

	return s.immediate(func(ctx context.Context, exec execer) error {
		stmt, err := exec.PrepareContext(ctx,
			`INSERT INTO records (folder_id, path, size, mtime, width, height, format, hash)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(folder_id, path) DO UPDATE SET
			   size=excluded.size,
			   mtime=excluded.mtime,
			   width=excluded.width,
			   height=excluded.height,
			   format=excluded.format,
			   hash=excluded.hash`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, r := range recs {
			path := filepath.ToSlash(r.Path)
			if strings.TrimSpace(path) == "" {
				return fmt.Errorf("path is required")
			}
			if _, err := stmt.ExecContext(ctx, folderID, path, r.Size, r.MTime, r.Width, r.Height, r.Format, r.Hash); err != nil {
				return err
			}
		}
		return nil
	})
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
	return s.immediate(func(ctx context.Context, exec execer) error {
		for _, p := range paths {
			if _, err := exec.ExecContext(ctx, `DELETE FROM records WHERE folder_id = ? AND path = ?`, folderID, filepath.ToSlash(p)); err != nil {
				return err
			}
		}
		return nil
	})
}
