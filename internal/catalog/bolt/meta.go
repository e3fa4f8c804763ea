package bolt

import (
	"encoding/json"
	"time"
)

const (
	bucketFolders = "folders"
	bucketRecords = "records"
)

type folderMeta struct {
	ID        string `json:"id"`
	Root      string `json:"root"`
	CreatedAt int64  `json:"created_at"`
	Version   int64  `json:"version"`
}

type recordMeta struct {
	Size   int64  `json:"size"`
	MTime  int64  `json:"mtime"`
	Width  int    `json:"w,omitempty"`
	Height int    `json:"h,omitempty"`
	Format string `json:"fmt,omitempty"`
	Hash   string `json:"hash,omitempty"`
}

func encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

func decode(data []byte, target any) error {
	return json.Unmarshal(data, target)
}

func nowUnix() int64 {
	return time.Now().Unix()
}
