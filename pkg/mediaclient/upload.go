package mediaclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/sir_venger/mediagate/pkg/mediaproto"
)

// PutFileRequest описывает файл для загрузки на media-узел.
type PutFileRequest struct {
	MediaID    int64
	AccessHash int64
	Reader     io.Reader
	Size       int64
	Sha256     string
	FileName   string
	MimeType   string
}

// Uploader кладёт файлы на media-узлы; progress (если задан) получает индикатор выполнения.
type Uploader struct {
	c        *http.Client
	progress io.Writer
}

func NewUploader(c *http.Client, progress io.Writer) *Uploader {
	if c == nil {
		c = &http.Client{}
	}
	return &Uploader{c: c, progress: progress}
}

// PutFile загружает файл целиком на узел baseURL с ключом key.
func (u *Uploader) PutFile(ctx context.Context, baseURL string, key mediaproto.AuthKey, req PutFileRequest) error {
	target := fmt.Sprintf(mediaproto.FilesPathFormat, baseURL, req.MediaID)

	var bar *progressBar
	body := req.Reader
	if u.progress != nil {
		bar = newProgressBar(u.progress, fmt.Sprintf("Uploading %s", req.FileName), req.Size)
		body = io.TeeReader(req.Reader, bar)
		bar.render(true, "")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPut, target, body)
	if err != nil {
		bar.Fail(err)
		return err
	}
	httpReq.ContentLength = req.Size
	httpReq.Header.Set(mediaproto.HeaderAuthKey, string(key))
	httpReq.Header.Set(mediaproto.HeaderAccessHash, strconv.FormatInt(req.AccessHash, 10))
	if req.Sha256 != "" {
		httpReq.Header.Set(mediaproto.HeaderChecksum, req.Sha256)
	}
	if req.FileName != "" {
		httpReq.Header.Set(mediaproto.HeaderFileName, req.FileName)
	}
	if req.MimeType != "" {
		httpReq.Header.Set("Content-Type", req.MimeType)
	}

	resp, err := u.c.Do(httpReq)
	if err != nil {
		bar.Fail(err)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		err = fmt.Errorf("media PUT failed: %s", resp.Status)
		bar.Fail(err)
		return err
	}

	bar.Finish()
	return nil
}
