package models

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"io"
)

// HashLen задаёт длину integrity-хеша, который встраивается в ссылку на скачивание.
const HashLen = 6

const locationTokenVersion byte = 1

// Location описывает, где и с какими правами читать файл на удалённом endpoint'е.
type Location struct {
	DC            int    `json:"dc_id"`
	MediaID       int64  `json:"media_id"`
	AccessHash    int64  `json:"access_hash"`
	FileReference []byte `json:"file_reference,omitempty"`
}

// ChunkSource содержит endpoint и ссылку на файл, достаточные для чанкового чтения.
type ChunkSource struct {
	DC       int
	Location Location
}

// FileDescriptor содержит разрешённые метаданные файла. После создания не меняется.
type FileDescriptor struct {
	ContentID string
	UniqueID  string
	Size      int64
	MimeType  string
	FileName  string
	Source    ChunkSource
}

// ShortHash возвращает первые HashLen символов уникального идентификатора.
func (d FileDescriptor) ShortHash() string {
	return ShortHash(d.UniqueID)
}

// ShortHash обрезает идентификатор до длины URL-хеша.
func ShortHash(uniqueID string) string {
	if len(uniqueID) <= HashLen {
		return uniqueID
	}
	return uniqueID[:HashLen]
}

// EncodeLocation упаковывает Location в непрозрачный токен, пригодный для хранения в каталоге.
func EncodeLocation(loc Location) string {
	var buf bytes.Buffer
	buf.WriteByte(locationTokenVersion)
	_ = binary.Write(&buf, binary.BigEndian, int32(loc.DC))
	_ = binary.Write(&buf, binary.BigEndian, loc.MediaID)
	_ = binary.Write(&buf, binary.BigEndian, loc.AccessHash)
	_ = binary.Write(&buf, binary.BigEndian, uint16(len(loc.FileReference)))
	buf.Write(loc.FileReference)

	return base64.RawURLEncoding.EncodeToString(buf.Bytes())
}

// DecodeLocation разбирает токен, созданный EncodeLocation.
func DecodeLocation(token string) (Location, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Location{}, fmt.Errorf("decode location token: %w", err)
	}

	r := bytes.NewReader(raw)
	version, err := r.ReadByte()
	if err != nil {
		return Location{}, fmt.Errorf("decode location token: %w", err)
	}
	if version != locationTokenVersion {
		return Location{}, fmt.Errorf("decode location token: unsupported version %d", version)
	}

	var (
		dc     int32
		refLen uint16
		loc    Location
	)
	for _, field := range []any{&dc, &loc.MediaID, &loc.AccessHash, &refLen} {
		if err = binary.Read(r, binary.BigEndian, field); err != nil {
			return Location{}, fmt.Errorf("decode location token: %w", err)
		}
	}
	loc.DC = int(dc)

	if refLen > 0 {
		loc.FileReference = make([]byte, refLen)
		if _, err = io.ReadFull(r, loc.FileReference); err != nil {
			return Location{}, fmt.Errorf("decode location token: %w", err)
		}
	}
	if r.Len() != 0 {
		return Location{}, fmt.Errorf("decode location token: %d trailing bytes", r.Len())
	}

	return loc, nil
}
