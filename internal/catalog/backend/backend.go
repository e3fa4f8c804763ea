package backend

import (
	"fmt"
	"path/filepath"
	"strings"

	"imgview/internal/catalog/bolt"
	"imgview/internal/catalog/sqlite"
	"imgview/internal/catalog/store"
)

func NormalizeName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return "sqlite"
	}
	switch name {
	case "sqlite", "sqlite3":
		return "sqlite"
	case "bolt", "bbolt":
		return "bolt"
	default:
		return name
	}
}

// DefaultPath is where a folder's catalog lives when no path is given.
func DefaultPath(root string, backend string) string {
	switch NormalizeName(backend) {
	case "bolt":
		return filepath.Join(root, ".iv", "catalog.bolt")
	default:
		return filepath.Join(root, ".iv", "catalog.db")
	}
}

func NormalizePath(backend string, path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	clean := filepath.Clean(path)
	if NormalizeName(backend) != "bolt" {
		return clean
	}
	ext := strings.ToLower(filepath.Ext(clean))
	switch ext {
	case "":
		return clean + ".bolt"
	case ".db":
		return strings.TrimSuffix(clean, filepath.Ext(clean)) + ".bolt"
	}
	return clean
}

func Open(backend string, path string) (store.Store, error) {
	switch NormalizeName(backend) {
	case "sqlite":
		return sqlite.Open(path)
	case "bolt":
		return bolt.Open(path)
	default:
		return nil, fmt.Errorf("unknown catalog backend: %s", backend)
	}
}
