package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"gapscan/pkg/exception"

	"github.com/segmentio/kafka-go"
	"github.com/yanun0323/logs"
)

const defaultKafkaDialTimeout = 10 * time.Second

// KafkaConfig controls the kafka source.
type KafkaConfig struct {
	Brokers  []string
	Topic    string
	GroupID  string
	MinBytes int
	MaxBytes int
	// DialTimeout bounds the broker check made before the first read.
	DialTimeout time.Duration
}

// Validate checks if the config is usable.
func (c KafkaConfig) Validate() error {
	if len(c.Brokers) == 0 {
		return fmt.Errorf("%w: kafka brokers are empty", exception.ErrInvalidArgument)
	}
	if c.Topic == "" {
		return fmt.Errorf("%w: kafka topic is empty", exception.ErrInvalidArgument)
	}
	if c.MinBytes < 0 || c.MaxBytes < 0 || (c.MaxBytes > 0 && c.MinBytes > c.MaxBytes) {
		return fmt.Errorf("%w: kafka min/max bytes", exception.ErrInvalidArgument)
	}
	if c.DialTimeout < 0 {
		return fmt.Errorf("%w: kafka dial timeout %s", exception.ErrInvalidArgument, c.DialTimeout)
	}
	return nil
}

// KafkaSource reads one payload per kafka message value.
// The reader is created on the first Next, once a broker has answered for the topic.
type KafkaSource struct {
	cfg    KafkaConfig
	reader *kafka.Reader
	closed bool
}

// NewKafkaSource creates a kafka source for the topic.
func NewKafkaSource(cfg KafkaConfig) (*KafkaSource, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.MaxBytes == 0 {
		cfg.MinBytes = 1
		cfg.MaxBytes = 10e6
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = defaultKafkaDialTimeout
	}
	return &KafkaSource{cfg: cfg}, nil
}

// Next blocks until a message arrives or ctx is done.
func (s *KafkaSource) Next(ctx context.Context) ([]byte, error) {
	if s.closed {
		return nil, exception.ErrSourceClosed
	}
	if s.reader == nil {
		if err := s.connect(ctx); err != nil {
			return nil, err
		}
	}

	msg, err := s.reader.ReadMessage(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("read kafka topic %s: %w", s.cfg.Topic, err)
	}
	return msg.Value, nil
}

// Close closes the reader.
func (s *KafkaSource) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.reader == nil {
		return nil
	}
	return s.reader.Close()
}

// connect checks that a broker serves the topic, then starts the reader.
// The reader retries unreachable brokers on its own, so an unavailable
// cluster is only detectable here.
func (s *KafkaSource) connect(ctx context.Context) error {
	checkCtx, cancel := context.WithTimeout(ctx, s.cfg.DialTimeout)
	defer cancel()

	var errs []error
	for _, broker := range s.cfg.Brokers {
		err := readPartitions(checkCtx, broker, s.cfg.Topic)
		if err == nil {
			errs = nil
			break
		}
		errs = append(errs, err)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: kafka topic %s: %w", exception.ErrSourceUnavailable, s.cfg.Topic, errors.Join(errs...))
	}

	s.reader = kafka.NewReader(kafka.ReaderConfig{
		Brokers:  s.cfg.Brokers,
		Topic:    s.cfg.Topic,
		GroupID:  s.cfg.GroupID,
		MinBytes: s.cfg.MinBytes,
		MaxBytes: s.cfg.MaxBytes,
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			logs.Errorf("kafka reader %s, "+msg, append([]interface{}{s.cfg.Topic}, args...)...)
		}),
	})
	logs.Infof("kafka source connected, topic: %s, group: %q", s.cfg.Topic, s.cfg.GroupID)
	return nil
}

func readPartitions(ctx context.Context, broker, topic string) error {
	conn, err := kafka.DialContext(ctx, "tcp", broker)
	if err != nil {
		return fmt.Errorf("dial %s: %w", broker, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	if _, err := conn.ReadPartitions(topic); err != nil {
		return fmt.Errorf("read partitions %s: %w", broker, err)
	}
	return nil
}
