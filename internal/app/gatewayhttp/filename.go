package gatewayhttp

import (
	"mime"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/sir_venger/mediagate/internal/models"
)

const defaultMimeType = "application/octet-stream"

// contentType возвращает сохранённый mime или угадывает его по расширению имени.
func contentType(desc models.FileDescriptor) string {
	if desc.MimeType != "" {
		return desc.MimeType
	}
	if ext := filepath.Ext(desc.FileName); ext != "" {
		if t := mime.TypeByExtension(ext); t != "" {
			return t
		}
	}
	return defaultMimeType
}

// downloadName возвращает имя для Content-Disposition. Без имени генерируется
// "<4 hex>.<ext>", где ext берётся из mime: реестр mimetype, затем подтип, затем "unknown".
func downloadName(desc models.FileDescriptor) string {
	if desc.FileName != "" {
		return desc.FileName
	}
	return randomStem() + "." + extensionFor(desc.MimeType)
}

func extensionFor(mimeType string) string {
	if mimeType == "" {
		return "unknown"
	}
	if m := mimetype.Lookup(mimeType); m != nil && m.Extension() != "" {
		return strings.TrimPrefix(m.Extension(), ".")
	}
	if _, sub, ok := strings.Cut(mimeType, "/"); ok && sub != "" {
		return sub
	}
	return "unknown"
}

func randomStem() string {
	id := uuid.New()
	return strings.ReplaceAll(id.String(), "-", "")[:4]
}

// contentDisposition экранирует кавычки в имени.
func contentDisposition(name string) string {
	name = strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(name)
	return `attachment; filename="` + name + `"`
}
