package mediaclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync/atomic"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/sir_venger/mediagate/internal/models"
	"github.com/sir_venger/mediagate/pkg/mediaproto"
)

// ObjectGetter описывает часть S3 API, нужную для чанкового чтения.
type ObjectGetter interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Dialer открывает «сессии» к S3-бакетам. Handshake не нужен: доступ по статическим
// или окружённым AWS-учёткам.
type S3Dialer struct {
	newClient func(ctx context.Context, ep mediaproto.Endpoint) (ObjectGetter, error)
}

func NewS3Dialer() *S3Dialer {
	return &S3Dialer{newClient: newS3Client}
}

// NewS3DialerWith использует готовый клиент для всех endpoint'ов.
func NewS3DialerWith(api ObjectGetter) *S3Dialer {
	return &S3Dialer{newClient: func(context.Context, mediaproto.Endpoint) (ObjectGetter, error) {
		return api, nil
	}}
}

func (d *S3Dialer) CreateAuthKey(context.Context, mediaproto.Endpoint) (mediaproto.AuthKey, error) {
	return "", nil
}

func (d *S3Dialer) Dial(ctx context.Context, ep mediaproto.Endpoint, _ mediaproto.AuthKey) (mediaproto.Session, error) {
	api, err := d.newClient(ctx, ep)
	if err != nil {
		return nil, fmt.Errorf("s3 client for dc %d: %w", ep.ID, err)
	}
	return &s3Session{api: api, ep: ep}, nil
}

func newS3Client(ctx context.Context, ep mediaproto.Endpoint) (ObjectGetter, error) {
	var optFns []func(*awsconfig.LoadOptions) error
	if ep.Region != "" {
		optFns = append(optFns, awsconfig.WithRegion(ep.Region))
	}
	if ep.AccessKeyID != "" && ep.SecretAccessKey != "" {
		optFns = append(optFns, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(ep.AccessKeyID, ep.SecretAccessKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, err
	}

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if ep.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(ep.S3Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

type s3Session struct {
	api    ObjectGetter
	ep     mediaproto.Endpoint
	closed atomic.Bool
}

func (s *s3Session) objectKey(loc models.Location) string {
	return s.ep.Prefix + strconv.FormatInt(loc.MediaID, 10)
}

// ReadChunk читает диапазон объекта; InvalidRange означает конец файла.
func (s *s3Session) ReadChunk(ctx context.Context, loc models.Location, offset, limit int64) ([]byte, error) {
	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.ep.Bucket),
		Key:    aws.String(s.objectKey(loc)),
		Range:  aws.String(fmt.Sprintf("bytes=%d-%d", offset, offset+limit-1)),
	})
	if err != nil {
		return nil, s.mapError(ctx, loc, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(io.LimitReader(out.Body, limit))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: dc %d: read body: %v", models.ErrTransientTransport, s.ep.ID, err)
	}
	return data, nil
}

func (s *s3Session) mapError(ctx context.Context, loc models.Location, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	var nsk *s3types.NoSuchKey
	if errors.As(err, &nsk) {
		return fmt.Errorf("dc %d object %s: %w", s.ep.ID, s.objectKey(loc), models.ErrFileNotFound)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "InvalidRange":
			return nil
		case "NoSuchKey", "NotFound":
			return fmt.Errorf("dc %d object %s: %w", s.ep.ID, s.objectKey(loc), models.ErrFileNotFound)
		case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
			s.closed.Store(true)
			return fmt.Errorf("dc %d: %w: %s", s.ep.ID, models.ErrUnauthorized, apiErr.ErrorCode())
		case "SlowDown":
			return fmt.Errorf("dc %d: %w", s.ep.ID, models.ErrFloodWait)
		}
	}

	return fmt.Errorf("%w: dc %d: %v", models.ErrTransientTransport, s.ep.ID, err)
}

func (s *s3Session) ExportAuthorization(context.Context, int) (mediaproto.ExportedAuth, error) {
	return mediaproto.ExportedAuth{}, fmt.Errorf("s3 dc %d: %w", s.ep.ID, errors.ErrUnsupported)
}

func (s *s3Session) ImportAuthorization(context.Context, mediaproto.ExportedAuth) error {
	return fmt.Errorf("s3 dc %d: %w", s.ep.ID, errors.ErrUnsupported)
}

func (s *s3Session) Alive() bool {
	return !s.closed.Load()
}

func (s *s3Session) Close() error {
	s.closed.Store(true)
	return nil
}
