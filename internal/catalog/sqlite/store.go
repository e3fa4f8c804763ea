package sqlite

import (
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"imgview/internal/catalog/store"
)

//go:embed schema.sql
var schemaSQL string

type Store struct {
	db *sql.DB
}

func Open(dbPath string) (*Store, error) {
	if strings.TrimSpace(dbPath) == "" {
		return nil, fmt.Errorf("dbPath is required")
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	s := &Store{db: db}
	if err := s.init(); err != nil {
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

func (s *Store) Backend() string { return "sqlite" }

func (s *Store) EnsureFolder(id string, root string) error {
	if s == nil || s.db == nil {
		return store.ErrNotOpen
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("folderID is required")
	}
	_, err := s.db.Exec(
		`INSERT INTO folders (id, root, created_at, version)
		 VALUES (?, ?, ?, 1)
		 ON CONFLICT(id) DO UPDATE SET
		   root = CASE WHEN excluded.root = '' THEN folders.root ELSE excluded.root END`,
		id,
		strings.TrimSpace(root),
		time.Now().Unix(),
	)
	return err
}

func (s *Store) GetFolder(id string) (store.Folder, error) {
	if s == nil || s.db == nil {
		return store.Folder{}, store.ErrNotOpen
	}
	f := store.Folder{ID: strings.TrimSpace(id)}
	err := s.db.QueryRow(
		`SELECT root, created_at, version FROM folders WHERE id = ?`,
		f.ID,
	).Scan(&f.Root, &f.CreatedAt, &f.Version)
	if err == sql.ErrNoRows {
		return store.Folder{}, store.ErrFolderNotFound
	}
	if err != nil {
		return store.Folder{}, err
	}
	return f, nil
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
	res, err := s.db.Exec(`UPDATE folders SET version = version + 1 WHERE id = ?`, strings.TrimSpace(id))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrFolderNotFound
	}
	return nil
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

	r := store.Record{Path: path}
	err := s.db.QueryRow(
		`SELECT size, mtime, width, height, format, hash
		 FROM records
		 WHERE folder_id = ? AND path = ?`,
		folderID,
		path,
	).Scan(&r.Size, &r.MTime, &r.Width, &r.Height, &r.Format, &r.Hash)
	if err == sql.ErrNoRows {
		return store.Record{}, false, nil
	}
	if err != nil {
		return store.Record{}, false, err
	}
	return r, true, nil
}

func (s *Store) ListRecords(folderID string) (map[string]store.Record, error) {
	if s == nil || s.db == nil {
		return nil, store.ErrNotOpen
	}
	rows, err := s.db.Query(
		`SELECT path, size, mtime, width, height, format, hash FROM records WHERE folder_id = ?`,
		strings.TrimSpace(folderID),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]store.Record{}
	for rows.Next() {
		var r store.Record
		if err := rows.Scan(&r.Path, &r.Size, &r.MTime, &r.Width, &r.Height, &r.Format, &r.Hash); err != nil {
			return nil, err
		}
		out[r.Path] = r
	}
	return out, rows.Err()
}

func (s *Store) CountRecords(folderID string) (int, error) {
	if s == nil || s.db == nil {
		return 0, store.ErrNotOpen
	}
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(1) FROM records WHERE folder_id = ?`, strings.TrimSpace(folderID)).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *Store) init() error {
	if _, err := s.db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return err
	}
	if _, err := s.db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		return err
	}
	_, _ = s.db.Exec("PRAGMA journal_mode = WAL")

	return execStatements(s.db, schemaSQL)
}

func execStatements(db *sql.DB, sqlText string) error {
	if db == nil {
		return fmt.Errorf("db is nil")
	}
	sqlText = strings.ReplaceAll(sqlText, "\r\n", "\n")

	var cleaned strings.Builder
	for _, line := range strings.Split(sqlText, "\n") {
		trim := strings.TrimSpace(line)
		if trim == "" || strings.HasPrefix(trim, "--") {
			continue
		}
		cleaned.WriteString(line)
		cleaned.WriteString("\n")
	}

	for _, raw := range strings.Split(cleaned.String(), ";") {
		stmt := strings.TrimSpace(raw)
		if stmt == "" {
			continue
		}
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt, err)
		}
	}
	return nil
}
