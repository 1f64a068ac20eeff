// internal/websocket/errors.go
package websocket

import "errors"

var (
	ErrClientClosed    = errors.New("websocket client closed")
	ErrMissingClientID = errors.New("missing client id")
)
