// Package httperrors содержит единую точку отображения доменных ошибок в HTTP-ответы.
package httperrors

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/sir_venger/mediagate/internal/models"
)

// Машинные коды в телах 4xx-ответов.
const (
	CodeFileNotFound   = "file_not_found"
	CodeInvalidHash    = "invalid_hash"
	CodeMalformedRange = "malformed_range"
	CodeInvalidInput   = "invalid_input"
	CodeInternal       = "internal_error"
)

// RangeNotSatisfiableBody задаёт тело ответа 416.
const RangeNotSatisfiableBody = "416: Range not satisfiable"

// Status возвращает код ответа и машинный код для err.
func Status(err error) (int, string) {
	switch {
	case errors.Is(err, models.ErrInvalidHash):
		return http.StatusForbidden, CodeInvalidHash
	case errors.Is(err, models.ErrFileNotFound):
		return http.StatusNotFound, CodeFileNotFound
	case errors.Is(err, models.ErrMalformedRange):
		return http.StatusBadRequest, CodeMalformedRange
	case errors.Is(err, models.ErrInvalidInput):
		return http.StatusBadRequest, CodeInvalidInput
	case errors.Is(err, models.ErrRangeNotSatisfiable):
		return http.StatusRequestedRangeNotSatisfiable, ""
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}

// Write отвечает на ошибку. Отключившемуся клиенту ничего не пишется.
// Подробности 5xx уходят только в лог запроса.
func Write(w http.ResponseWriter, r *http.Request, err error) {
	log := zerolog.Ctx(r.Context())

	if errors.Is(err, models.ErrClientDisconnected) || errors.Is(err, context.Canceled) {
		log.Debug().Err(err).Msg("client went away")
		return
	}

	status, code := Status(err)
	switch {
	case status == http.StatusRequestedRangeNotSatisfiable:
		http.Error(w, RangeNotSatisfiableBody, status)
	case status >= http.StatusInternalServerError:
		log.Error().Err(err).Msg("request failed")
		http.Error(w, code, status)
	case code == CodeInvalidInput:
		http.Error(w, err.Error(), status)
	default:
		log.Debug().Err(err).Int("status", status).Msg("request rejected")
		http.Error(w, code, status)
	}
}
