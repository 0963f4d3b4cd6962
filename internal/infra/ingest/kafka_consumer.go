// Package ingest feeds meter readings published on Kafka into the meter service.
package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/yanqian/redisolar/internal/domain/meter"
)

// Config captures the consumer tunables.
type Config struct {
	Brokers     []string
	Topic       string
	GroupID     string
	PollTimeout time.Duration
}

// Submitter accepts decoded readings.
type Submitter interface {
	Submit(ctx context.Context, readings []meter.MeterReading) error
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads meter reading messages and submits them. Messages are
// committed once handled, including ones that failed to decode or submit, so
// a bad payload never blocks the partition.
type Consumer struct {
	cfg       Config
	reader    messageReader
	submitter Submitter
	logger    *slog.Logger
}

// NewConsumer builds a group reader on the configured topic.
func NewConsumer(cfg Config, submitter Submitter, logger *slog.Logger) (*Consumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("at least one broker is required")
	}
	if strings.TrimSpace(cfg.Topic) == "" {
		return nil, errors.New("topic must not be empty")
	}
	if strings.TrimSpace(cfg.GroupID) == "" {
		return nil, errors.New("consumer group must not be empty")
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		GroupID:     cfg.GroupID,
		Topic:       cfg.Topic,
		StartOffset: kafka.LastOffset,
		MinBytes:    1,
		MaxBytes:    10e6,
	})
	return newConsumer(cfg, reader, submitter, logger), nil
}

func newConsumer(cfg Config, reader messageReader, submitter Submitter, logger *slog.Logger) *Consumer {
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = time.Second
	}
	return &Consumer{
		cfg:       cfg,
		reader:    reader,
		submitter: submitter,
		logger:    logger.With("component", "ingest.consumer"),
	}
}

// Close shuts down the underlying reader.
func (c *Consumer) Close() error {
	if c == nil || c.reader == nil {
		return nil
	}
	return c.reader.Close()
}

// Run consumes until the context is cancelled or the reader is closed.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info("meter consumer started", "topic", c.cfg.Topic, "group", c.cfg.GroupID, "brokers", strings.Join(c.cfg.Brokers, ","))
	defer c.logger.Info("meter consumer stopped")

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		fetchCtx, cancel := context.WithTimeout(ctx, c.cfg.PollTimeout)
		msg, err := c.reader.FetchMessage(fetchCtx)
		cancel()
		if err != nil {
			switch {
			case errors.Is(err, context.DeadlineExceeded):
				continue
			case errors.Is(err, context.Canceled):
				if ctx.Err() != nil {
					return ctx.Err()
				}
				continue
			case errors.Is(err, io.EOF), errors.Is(err, io.ErrClosedPipe), errors.Is(err, kafka.ErrGroupClosed):
				return nil
			}
			c.logger.Error("fetch meter message failed", "error", err)
			continue
		}

		c.handle(ctx, msg)

		commitCtx, commitCancel := context.WithTimeout(ctx, c.cfg.PollTimeout)
		if err := c.reader.CommitMessages(commitCtx, msg); err != nil && ctx.Err() == nil {
			c.logger.Error("commit meter message failed", "offset", msg.Offset, "error", err)
		}
		commitCancel()
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message) {
	readings, err := DecodeReadings(msg.Value)
	if err != nil {
		c.logger.Warn("skipping undecodable meter message", "offset", msg.Offset, "partition", msg.Partition, "error", err)
		return
	}
	if err := c.submitter.Submit(ctx, readings); err != nil {
		c.logger.Error("submit meter readings failed", "offset", msg.Offset, "count", len(readings), "error", err)
		return
	}
	c.logger.Debug("meter readings ingested", "offset", msg.Offset, "count", len(readings))
}

// DecodeReadings accepts a single reading object, an array of readings or
// the {"readings": [...]} envelope used by the HTTP API.
func DecodeReadings(raw []byte) ([]meter.MeterReading, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, errors.New("empty payload")
	}
	if trimmed[0] == '[' {
		var readings []meter.MeterReading
		if err := json.Unmarshal(trimmed, &readings); err != nil {
			return nil, fmt.Errorf("decode reading array: %w", err)
		}
		return readings, nil
	}

	var envelope struct {
		Readings json.RawMessage `json:"readings"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, fmt.Errorf("decode meter payload: %w", err)
	}
	if len(envelope.Readings) > 0 {
		var readings []meter.MeterReading
		if err := json.Unmarshal(envelope.Readings, &readings); err != nil {
			return nil, fmt.Errorf("decode readings envelope: %w", err)
		}
		return readings, nil
	}

	var reading meter.MeterReading
	if err := json.Unmarshal(trimmed, &reading); err != nil {
		return nil, fmt.Errorf("decode reading: %w", err)
	}
	return []meter.MeterReading{reading}, nil
}
