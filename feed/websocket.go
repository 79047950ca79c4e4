// feed/websocket.go
// Copyright(c) 2025 harborline contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/harborline/harborline/log"

	"github.com/gorilla/websocket"
)

// WebSocketStream reads position frames from a websocket: text messages
// are JSON and binary messages are msgpack.
type WebSocketStream struct {
	conn *websocket.Conn
	lg   *log.Logger

	mu     sync.Mutex
	closed bool
}

// DialWebSocket returns a Dialer for the websocket feed at url.
func DialWebSocket(url string, header http.Header, lg *log.Logger) Dialer {
	return func(ctx context.Context) (Stream, error) {
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", url, err)
		}
		return &WebSocketStream{conn: conn, lg: lg}, nil
	}
}

func (s *WebSocketStream) Next(ctx context.Context) ([]PositionReport, error) {
	// Unblock the read if ctx is canceled while we're waiting.
	stop := context.AfterFunc(ctx, func() { s.Close() })
	defer stop()

	for {
		ty, r, err := s.conn.NextReader()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()

			var cerr *websocket.CloseError
			if closed || errors.As(err, &cerr) {
				return nil, ErrClosed
			}
			return nil, err
		}

		b, err := io.ReadAll(r)
		if err != nil {
			return nil, err
		}

		enc := EncodingJSON
		if ty == websocket.BinaryMessage {
			enc = EncodingMsgpack
		}
		reports, err := DecodeFrame(enc, b)
		if err != nil {
			s.lg.Warn("bad websocket frame", slog.Any("error", err), slog.Int("length", len(b)))
			continue
		}
		return reports, nil
	}
}

func (s *WebSocketStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.conn.Close()
}
