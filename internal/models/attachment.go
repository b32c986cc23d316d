package models

import (
	"fmt"
	"time"
)

// AttachmentKind задаёт тип вложения, он определяется один раз при индексации.
type AttachmentKind string

const (
	AttachmentDocument  AttachmentKind = "document"
	AttachmentVideo     AttachmentKind = "video"
	AttachmentAudio     AttachmentKind = "audio"
	AttachmentPhoto     AttachmentKind = "photo"
	AttachmentAnimation AttachmentKind = "animation"
	AttachmentVoice     AttachmentKind = "voice"
	AttachmentVideoNote AttachmentKind = "video_note"
	AttachmentSticker   AttachmentKind = "sticker"
)

var kindExtensions = map[AttachmentKind]string{
	AttachmentPhoto:     "jpg",
	AttachmentAudio:     "mp3",
	AttachmentVoice:     "ogg",
	AttachmentVideo:     "mp4",
	AttachmentAnimation: "mp4",
	AttachmentVideoNote: "mp4",
	AttachmentSticker:   "webp",
}

// Valid сообщает, известен ли тип вложения.
func (k AttachmentKind) Valid() bool {
	switch k {
	case AttachmentDocument, AttachmentVideo, AttachmentAudio, AttachmentPhoto,
		AttachmentAnimation, AttachmentVoice, AttachmentVideoNote, AttachmentSticker:
		return true
	}
	return false
}

// Attachment описывает входящее медиа-вложение в виде размеченного варианта.
type Attachment struct {
	Kind          AttachmentKind `json:"kind" validate:"required"`
	FileName      string         `json:"file_name,omitempty"`
	MimeType      string         `json:"mime_type,omitempty"`
	Size          int64          `json:"file_size" validate:"gte=0"`
	UniqueID      string         `json:"file_unique_id" validate:"required,min=6"`
	LocationToken string         `json:"file_id" validate:"required"`
	Height        int            `json:"height,omitempty"`
}

// Name возвращает имя файла, а если его нет, синтезирует "<kind>-<дата>.<ext>".
func (a Attachment) Name(now time.Time) string {
	if a.FileName != "" {
		return a.FileName
	}

	kind := string(a.Kind)
	if kind == "" {
		kind = "file"
	}
	name := fmt.Sprintf("%s-%s", kind, now.Format("2006-01-02_15-04-05"))
	if ext, ok := kindExtensions[a.Kind]; ok {
		name += "." + ext
	}
	return name
}

// Quality возвращает качество по высоте кадра для видео, иначе "other".
func (a Attachment) Quality() string {
	if a.Kind == AttachmentVideo && a.Height > 0 {
		return fmt.Sprintf("%dp", a.Height)
	}
	return "other"
}

// Variant переводит вложение в запись варианта файла каталога.
func (a Attachment) Variant(now time.Time) FileVariant {
	return FileVariant{
		Hash:          ShortHash(a.UniqueID),
		UniqueID:      a.UniqueID,
		FileName:      a.Name(now),
		FileSize:      a.Size,
		MimeType:      a.MimeType,
		Quality:       a.Quality(),
		LocationToken: a.LocationToken,
	}
}
