// Package mediaproto описывает протокол чанкового чтения с удалённых media-endpoint'ов
// (аналог дата-центров): авторизационный handshake, чтение чанков и типы сессий.
package mediaproto

import (
	"context"

	"github.com/sir_venger/mediagate/internal/models"
)

// Пути и заголовки HTTP-протокола media-узла.
const (
	PathAuthKey     = "/auth/key"
	PathAuthExport  = "/auth/export"
	PathAuthImport  = "/auth/import"
	PathHealth      = "/health"
	FilesPathFormat = "%s/files/%d"

	HeaderAuthKey       = "X-Auth-Key"
	HeaderAccessHash    = "X-Access-Hash"
	HeaderFileReference = "X-File-Reference"
	HeaderError         = "X-Error"
	HeaderChecksum      = "X-Checksum-Sha256"
	HeaderFileName      = "X-File-Name"
	HeaderPartSize      = "X-Size"

	QueryOffset = "offset"
	QueryLimit  = "limit"
)

// Коды ошибок в заголовке X-Error.
const (
	ErrorAuthBytesInvalid    = "AUTH_BYTES_INVALID"
	ErrorAuthKeyUnregistered = "AUTH_KEY_UNREGISTERED"
	ErrorAccessHashInvalid   = "ACCESS_HASH_INVALID"
	ErrorFloodWait           = "FLOOD_WAIT"
)

type EndpointKind string

const (
	KindNode EndpointKind = "node"
	KindS3   EndpointKind = "s3"
)

// Endpoint описывает адрес и параметры одного источника чанков.
type Endpoint struct {
	ID             int          `yaml:"id" json:"id" validate:"gt=0"`
	Kind           EndpointKind `yaml:"kind" json:"kind" validate:"oneof=node s3"`
	Address        string       `yaml:"address" json:"address,omitempty" validate:"required_if=Kind node"`
	ReadsPerSecond float64      `yaml:"reads_per_second" json:"reads_per_second,omitempty" validate:"gte=0"`

	Region          string `yaml:"region" json:"region,omitempty" validate:"required_if=Kind s3"`
	Bucket          string `yaml:"bucket" json:"bucket,omitempty" validate:"required_if=Kind s3"`
	Prefix          string `yaml:"prefix" json:"prefix,omitempty"`
	S3Endpoint      string `yaml:"s3_endpoint" json:"s3_endpoint,omitempty"`
	AccessKeyID     string `yaml:"access_key_id" json:"-"`
	SecretAccessKey string `yaml:"secret_access_key" json:"-"`
}

// NeedsHandshake сообщает, требует ли удалённый endpoint export/import авторизации.
func (e Endpoint) NeedsHandshake() bool {
	return e.Kind == "" || e.Kind == KindNode
}

// AuthKey хранит ключ авторизации сессии на конкретном endpoint'е.
type AuthKey string

// ExportedAuth хранит авторизацию, экспортированную основным соединением для другого endpoint'а.
type ExportedAuth struct {
	ID    int64  `json:"id"`
	Bytes []byte `json:"bytes"`
}

// Session описывает авторизованный долгоживущий хендл к одному endpoint'у.
// Методы безопасны для конкурентного вызова.
type Session interface {
	// ReadChunk читает до limit байт с offset; пустой результат без ошибки означает конец файла.
	ReadChunk(ctx context.Context, loc models.Location, offset, limit int64) ([]byte, error)
	ExportAuthorization(ctx context.Context, dc int) (ExportedAuth, error)
	ImportAuthorization(ctx context.Context, auth ExportedAuth) error
	Alive() bool
	Close() error
}

// Dialer открывает сессии к endpoint'ам.
type Dialer interface {
	CreateAuthKey(ctx context.Context, ep Endpoint) (AuthKey, error)
	Dial(ctx context.Context, ep Endpoint, key AuthKey) (Session, error)
}
