package models

import "errors"

var (
	ErrFileNotFound        = errors.New("file not found")
	ErrInvalidHash         = errors.New("invalid hash")
	ErrMalformedRange      = errors.New("malformed range")
	ErrRangeNotSatisfiable = errors.New("range not satisfiable")
	ErrInvalidInput        = errors.New("invalid input")

	// ErrAuthorization: удалённый endpoint не принял авторизацию после всех попыток.
	ErrAuthorization    = errors.New("endpoint authorization failed")
	ErrAuthBytesInvalid = errors.New("auth bytes invalid")
	ErrUnauthorized     = errors.New("session unauthorized")
	ErrUnknownEndpoint  = errors.New("unknown endpoint")

	ErrTransientTransport = errors.New("transient transport error")
	ErrFloodWait          = errors.New("flood wait")
	ErrClientDisconnected = errors.New("client disconnected")
)
