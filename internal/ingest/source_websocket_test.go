package ingest

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"gapscan/internal/market"
	"gapscan/pkg/exception"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFeedServer(t *testing.T, messages []string, subscribed chan<- string) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		if subscribed != nil {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			subscribed <- string(data)
		}
		for _, m := range messages {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(m)); err != nil {
				return
			}
		}
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
		time.Sleep(50 * time.Millisecond)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestWebSocketSourceReadsMessages(t *testing.T) {
	subscribed := make(chan string, 1)
	srv := newFeedServer(t, []string{`{"symbol":"ABC","price":5}`, `{"symbol":"ABC","volume":10}`}, subscribed)

	src := NewWebSocketSource(WebSocketConfig{URL: wsURL(srv), Subscribe: []byte(`{"op":"subscribe"}`)})
	defer src.Close()

	first, err := src.Next(t.Context())
	require.NoError(t, err)
	assert.JSONEq(t, `{"symbol":"ABC","price":5}`, string(first))
	assert.Equal(t, `{"op":"subscribe"}`, <-subscribed)

	second, err := src.Next(t.Context())
	require.NoError(t, err)
	assert.JSONEq(t, `{"symbol":"ABC","volume":10}`, string(second))

	_, err = src.Next(t.Context())
	assert.ErrorIs(t, err, io.EOF)
}

func TestWebSocketSourceDialFailure(t *testing.T) {
	src := NewWebSocketSource(WebSocketConfig{URL: "ws://127.0.0.1:1/feed", HandshakeTimeout: time.Second})
	_, err := src.Next(t.Context())
	assert.ErrorIs(t, err, exception.ErrSourceUnavailable)
}

func TestIngestorOverWebSocket(t *testing.T) {
	srv := newFeedServer(t, []string{
		`{"symbol":"ABC","price":5,"prevClose":4.5}`,
		`{"symbol":"ABC","volume":500000}` + "\n" + `{"symbol":"DEF","price":3}`,
	}, nil)

	store := market.NewStore()
	in := New(store, NewWebSocketSource(WebSocketConfig{URL: wsURL(srv)}), Config{})
	require.NoError(t, in.Run(t.Context()))

	abc, ok := store.Get("ABC")
	require.True(t, ok)
	assert.Equal(t, 5.0, abc.Price)
	assert.Equal(t, 4.5, abc.PrevClose)
	assert.Equal(t, 500000.0, abc.Volume)
	assert.Equal(t, 2, store.Len())
}
