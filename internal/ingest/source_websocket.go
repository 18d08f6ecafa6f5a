package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"gapscan/pkg/exception"

	"github.com/gorilla/websocket"
	"github.com/yanun0323/logs"
)

const defaultHandshakeTimeout = 10 * time.Second

// WebSocketConfig controls the websocket source.
type WebSocketConfig struct {
	URL    string
	Header http.Header
	// Subscribe is sent once right after the connection is established.
	Subscribe        []byte
	HandshakeTimeout time.Duration
}

// WebSocketSource reads one payload per websocket message.
type WebSocketSource struct {
	cfg    WebSocketConfig
	dialer *websocket.Dialer
	conn   *websocket.Conn
}

// NewWebSocketSource creates a websocket source. It dials on the first Next.
func NewWebSocketSource(cfg WebSocketConfig) *WebSocketSource {
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = defaultHandshakeTimeout
	}
	return &WebSocketSource{
		cfg: cfg,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
	}
}

// Next blocks until a message arrives or ctx is done.
func (s *WebSocketSource) Next(ctx context.Context) ([]byte, error) {
	if s.conn == nil {
		if err := s.dial(ctx); err != nil {
			return nil, err
		}
	}

	conn := s.conn
	stop := context.AfterFunc(ctx, func() {
		_ = conn.Close()
	})
	defer stop()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil, io.EOF
			}
			return nil, fmt.Errorf("read %s: %w", s.cfg.URL, err)
		}
		if msgType != websocket.TextMessage && msgType != websocket.BinaryMessage {
			continue
		}
		return data, nil
	}
}

// Close closes the connection.
func (s *WebSocketSource) Close() error {
	if s.conn == nil {
		return nil
	}
	conn := s.conn
	s.conn = nil
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return conn.Close()
}

func (s *WebSocketSource) dial(ctx context.Context) error {
	conn, _, err := s.dialer.DialContext(ctx, s.cfg.URL, s.cfg.Header)
	if err != nil {
		return fmt.Errorf("%w: dial %s: %w", exception.ErrSourceUnavailable, s.cfg.URL, err)
	}
	if len(s.cfg.Subscribe) > 0 {
		if err := conn.WriteMessage(websocket.TextMessage, s.cfg.Subscribe); err != nil {
			_ = conn.Close()
			return fmt.Errorf("%w: subscribe %s: %w", exception.ErrSourceUnavailable, s.cfg.URL, err)
		}
	}
	s.conn = conn
	logs.Infof("websocket source connected: %s", s.cfg.URL)
	return nil
}
