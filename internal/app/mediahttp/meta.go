package mediahttp

import (
	"encoding/json"
	"os"
	"time"
)

// fileMeta хранится рядом с данными и описывает файл целиком.
type fileMeta struct {
	MediaID    int64     `json:"media_id"`
	Size       int64     `json:"size"`
	AccessHash int64     `json:"access_hash"`
	Sha256     string    `json:"sha256"`
	MimeType   string    `json:"mime_type,omitempty"`
	FileName   string    `json:"file_name,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// writeMeta перезаписывает метаданные файла на диске.
func writeMeta(path string, fm fileMeta) error {
	b, err := json.MarshalIndent(fm, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, b, 0o644)
}

func readMeta(path string) (*fileMeta, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var fm fileMeta
	if err := json.Unmarshal(b, &fm); err != nil {
		return nil, err
	}

	return &fm, nil
}
