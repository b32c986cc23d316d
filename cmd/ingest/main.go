package main

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/sir_venger/mediagate/internal/models"
	"github.com/sir_venger/mediagate/pkg/mediaclient"
	"github.com/sir_venger/mediagate/pkg/mediaproto"
)

type options struct {
	file    string
	node    string
	key     string
	dc      int
	gateway string
	kind    string
	height  int
}

// main загружает локальный файл на media-узел и регистрирует его в шлюзе.
func main() {
	var o options
	flag.StringVar(&o.file, "file", "", "локальный файл")
	flag.StringVar(&o.node, "node", "http://localhost:9001", "адрес media-узла")
	flag.StringVar(&o.key, "key", os.Getenv("PRIMARY_AUTH_KEY"), "авторизованный ключ узла")
	flag.IntVar(&o.dc, "dc", 1, "id endpoint'а узла")
	flag.StringVar(&o.gateway, "gateway", "http://localhost:8080", "адрес шлюза")
	flag.StringVar(&o.kind, "kind", string(models.AttachmentDocument), "тип вложения")
	flag.IntVar(&o.height, "height", 0, "высота кадра для видео")
	flag.Parse()

	if o.file == "" {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	url, err := ingest(ctx, o)
	if err != nil {
		log.Fatal().Err(err).Str("file", o.file).Msg("ingest")
	}
	fmt.Println(url)
}

func ingest(ctx context.Context, o options) (string, error) {
	f, err := os.Open(o.file)
	if err != nil {
		return "", err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", err
	}

	h := sha256.New()
	if _, err = io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", o.file, err)
	}
	sum := hex.EncodeToString(h.Sum(nil))

	mime, err := mimetype.DetectFile(o.file)
	if err != nil {
		return "", fmt.Errorf("detect mime: %w", err)
	}
	if _, err = f.Seek(0, io.SeekStart); err != nil {
		return "", err
	}

	loc := models.Location{DC: o.dc, MediaID: rand.Int64N(1 << 62), AccessHash: rand.Int64()}
	name := filepath.Base(o.file)

	err = mediaclient.NewUploader(nil, os.Stdout).PutFile(ctx, strings.TrimRight(o.node, "/"), mediaproto.AuthKey(o.key), mediaclient.PutFileRequest{
		MediaID:    loc.MediaID,
		AccessHash: loc.AccessHash,
		Reader:     f,
		Size:       info.Size(),
		Sha256:     sum,
		FileName:   name,
		MimeType:   mime.String(),
	})
	if err != nil {
		return "", err
	}

	return register(ctx, strings.TrimRight(o.gateway, "/"), models.Attachment{
		Kind:          models.AttachmentKind(o.kind),
		FileName:      name,
		MimeType:      mime.String(),
		Size:          info.Size(),
		UniqueID:      strings.ReplaceAll(uuid.NewString(), "-", ""),
		LocationToken: models.EncodeLocation(loc),
		Height:        o.height,
	})
}

// register отправляет вложение в POST /admin/files и возвращает ссылку на скачивание.
func register(ctx context.Context, gateway string, att models.Attachment) (string, error) {
	body, err := json.Marshal(att)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, gateway+"/admin/files", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("register file: %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}

	var out struct {
		URL string `json:"url"`
	}
	if err = json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.URL, nil
}
