package ingest

import (
	"context"
	"testing"
	"time"

	"gapscan/internal/market"
	"gapscan/pkg/exception"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// nothing listens on port 1, so dialing it is refused right away
const refusedBroker = "127.0.0.1:1"

func TestKafkaConfigValidate(t *testing.T) {
	valid := KafkaConfig{Brokers: []string{"a:9092"}, Topic: "updates", GroupID: "gapscan"}
	require.NoError(t, valid.Validate())

	testCases := []struct {
		desc   string
		mutate func(*KafkaConfig)
	}{
		{desc: "no brokers", mutate: func(c *KafkaConfig) { c.Brokers = nil }},
		{desc: "no topic", mutate: func(c *KafkaConfig) { c.Topic = "" }},
		{desc: "negative min bytes", mutate: func(c *KafkaConfig) { c.MinBytes = -1 }},
		{desc: "min above max", mutate: func(c *KafkaConfig) { c.MinBytes, c.MaxBytes = 10, 5 }},
		{desc: "negative dial timeout", mutate: func(c *KafkaConfig) { c.DialTimeout = -time.Second }},
	}
	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			cfg := valid
			tc.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), exception.ErrInvalidArgument)

			_, err := NewKafkaSource(cfg)
			assert.ErrorIs(t, err, exception.ErrInvalidArgument)
		})
	}
}

func TestKafkaSourceUnreachableBroker(t *testing.T) {
	for _, group := range []string{"", "gapscan"} {
		t.Run("group="+group, func(t *testing.T) {
			src, err := NewKafkaSource(KafkaConfig{
				Brokers:     []string{refusedBroker},
				Topic:       "updates",
				GroupID:     group,
				DialTimeout: 2 * time.Second,
			})
			require.NoError(t, err)
			defer src.Close()

			_, err = src.Next(t.Context())
			assert.ErrorIs(t, err, exception.ErrSourceUnavailable)
			assert.Nil(t, src.reader, "no reader is started without a broker")
		})
	}
}

func TestKafkaSourceCancelledBeforeConnect(t *testing.T) {
	src, err := NewKafkaSource(KafkaConfig{Brokers: []string{refusedBroker}, Topic: "updates"})
	require.NoError(t, err)
	defer src.Close()

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	_, err = src.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, exception.ErrSourceUnavailable)
}

func TestKafkaSourceClosed(t *testing.T) {
	src, err := NewKafkaSource(KafkaConfig{Brokers: []string{refusedBroker}, Topic: "updates"})
	require.NoError(t, err)
	require.NoError(t, src.Close())
	require.NoError(t, src.Close())

	_, err = src.Next(t.Context())
	assert.ErrorIs(t, err, exception.ErrSourceClosed)
}

func TestIngestorStopsOnUnreachableKafka(t *testing.T) {
	src, err := NewKafkaSource(KafkaConfig{
		Brokers:     []string{refusedBroker},
		Topic:       "updates",
		GroupID:     "gapscan",
		DialTimeout: 2 * time.Second,
	})
	require.NoError(t, err)

	h := New(market.NewStore(), src, Config{}).Start(t.Context())
	select {
	case <-h.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("ingestor kept running without a kafka broker")
	}
	assert.ErrorIs(t, h.Err(), exception.ErrSourceUnavailable)
}
