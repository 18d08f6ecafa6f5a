package ops

import (
	"fmt"
	"net/http"

	"gapscan/internal/ingest"
	"gapscan/pkg/exception"
)

// Source builds the update record source the feed section selects.
func (f FeedConfig) Source() (ingest.Source, error) {
	switch f.Kind {
	case FeedFile:
		return ingest.NewFileSource(ingest.FileConfig{
			Path:          f.File.Path,
			Follow:        f.File.Follow,
			DisableNotify: f.File.DisableNotify,
		}), nil
	case FeedWebSocket:
		header := http.Header{}
		for k, v := range f.WebSocket.Headers {
			header.Set(k, v)
		}
		var subscribe []byte
		if f.WebSocket.Subscribe != "" {
			subscribe = []byte(f.WebSocket.Subscribe)
		}
		return ingest.NewWebSocketSource(ingest.WebSocketConfig{
			URL:              f.WebSocket.URL,
			Header:           header,
			Subscribe:        subscribe,
			HandshakeTimeout: f.WebSocket.HandshakeTimeout,
		}), nil
	case FeedKafka:
		src, err := ingest.NewKafkaSource(f.KafkaConfig())
		if err != nil {
			return nil, err
		}
		return src, nil
	default:
		return nil, fmt.Errorf("%w: %q", exception.ErrConfigUnknownFeed, f.Kind)
	}
}
