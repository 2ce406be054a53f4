// Package queue implements the Queue Ingress: a Kafka-backed
// request/response pair sharing the same pool and static screener as the
// synchronous ingress, framed with direction-specific authenticated
// encryption.
package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"github.com/akshayaggarwal99/runner/internal/crypto"
	"github.com/akshayaggarwal99/runner/internal/executor"
	"github.com/akshayaggarwal99/runner/internal/pool"
	"github.com/akshayaggarwal99/runner/internal/screener"
)

// Request is the wire shape of an inbound queue message, after decryption.
type Request struct {
	RequestID string `json:"request_id"`
	Code      string `json:"code"`
	UserID    string `json:"user_id"`
	Timeout   int    `json:"timeout"`
}

// Response is the wire shape of an outbound queue message, before
// encryption: exactly one of (stdout, stderr, return_code) on success or
// (error, status_code) on failure, mirroring
// original_source/runner/src/kafka_consumer.py's _execute_code return
// shapes. MarshalJSON picks the branch so a success response always
// carries stdout/stderr/return_code (even when empty/zero) and never an
// extraneous status_code, and an error response never carries the
// execution fields.
type Response struct {
	RequestID  string
	Stdout     string
	Stderr     string
	ReturnCode int
	Error      string
	StatusCode int
}

func (r Response) MarshalJSON() ([]byte, error) {
	if r.Error != "" {
		return json.Marshal(struct {
			RequestID  string `json:"request_id"`
			Error      string `json:"error"`
			StatusCode int    `json:"status_code"`
		}{r.RequestID, r.Error, r.StatusCode})
	}
	return json.Marshal(struct {
		RequestID  string `json:"request_id"`
		Stdout     string `json:"stdout"`
		Stderr     string `json:"stderr"`
		ReturnCode int    `json:"return_code"`
	}{r.RequestID, r.Stdout, r.Stderr, r.ReturnCode})
}

// Config configures the Consumer.
type Config struct {
	BootstrapServers string
	RequestTopic     string
	ResponseTopic    string
	ConsumerGroup    string
	RequestKey       crypto.Key
	ResponseKey      crypto.Key
	StaticCheck      bool
	DefaultTimeout   time.Duration
	MaxTimeout       time.Duration
}

// Consumer reads encrypted execution requests, runs the screener and pool
// exactly as the HTTP ingress does, and publishes an encrypted response
// keyed on the request's correlation id.
type Consumer struct {
	cfg    Config
	pool   *pool.Pool
	reader *kafka.Reader
	writer *kafka.Writer
}

// NewConsumer dials the configured bootstrap servers. It does not block on
// connectivity — kafka-go connects lazily on first read/write — so a
// misconfigured broker surfaces on the first message, not at construction.
func NewConsumer(cfg Config, p *pool.Pool) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: []string{cfg.BootstrapServers},
		Topic:   cfg.RequestTopic,
		GroupID: cfg.ConsumerGroup,
	})
	writer := &kafka.Writer{
		Addr:     kafka.TCP(cfg.BootstrapServers),
		Topic:    cfg.ResponseTopic,
		Balancer: &kafka.Hash{},
	}
	return &Consumer{cfg: cfg, pool: p, reader: reader, writer: writer}
}

// Run consumes requests until ctx is canceled. Offsets commit automatically
// (kafka-go's default reader behavior); at-least-once delivery is assumed,
// so duplicate requests may re-execute.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Error().Err(err).Msg("queue: read failed")
			continue
		}
		c.handle(ctx, msg.Value)
	}
}

// Close stops the reader and writer. Safe to call once after Run returns.
func (c *Consumer) Close() error {
	if err := c.reader.Close(); err != nil {
		return err
	}
	return c.writer.Close()
}

func (c *Consumer) handle(ctx context.Context, sealed []byte) {
	plaintext, err := crypto.Open(c.cfg.RequestKey, sealed)
	if err != nil {
		log.Warn().Err(err).Msg("queue: dropping message that failed to decrypt (no correlation id to answer to)")
		return
	}

	var req Request
	if err := json.Unmarshal(plaintext, &req); err != nil {
		log.Warn().Err(err).Msg("queue: dropping message with unparseable payload")
		return
	}

	if c.cfg.StaticCheck {
		if violations := screener.Check(req.Code); len(violations) > 0 {
			c.publish(ctx, Response{
				RequestID:  req.RequestID,
				Error:      "forbidden constructs found",
				StatusCode: 403,
			})
			return
		}
	}

	deadline := c.cfg.DefaultTimeout
	if req.Timeout > 0 {
		deadline = time.Duration(req.Timeout) * time.Second
	}
	if c.cfg.MaxTimeout > 0 && deadline > c.cfg.MaxTimeout {
		deadline = c.cfg.MaxTimeout
	}

	result := c.pool.Execute(ctx, req.Code, deadline, req.UserID)
	c.publish(ctx, toResponse(req.RequestID, result))
}

func toResponse(requestID string, result executor.Result) Response {
	switch result.Outcome {
	case executor.OutcomeSuccess:
		return Response{RequestID: requestID, Stdout: result.Stdout, Stderr: result.Stderr, ReturnCode: result.ReturnCode}
	case executor.OutcomeTimeout:
		return Response{RequestID: requestID, Error: "execution timed out", StatusCode: 408}
	case executor.OutcomeNoCapacity:
		return Response{RequestID: requestID, Error: "no available workers", StatusCode: 503}
	default:
		return Response{RequestID: requestID, Error: result.Message, StatusCode: 500}
	}
}

func (c *Consumer) publish(ctx context.Context, resp Response) {
	plaintext, err := json.Marshal(resp)
	if err != nil {
		log.Error().Err(err).Msg("queue: failed to encode response")
		return
	}

	sealed, err := crypto.Seal(c.cfg.ResponseKey, plaintext)
	if err != nil {
		log.Error().Err(err).Msg("queue: failed to seal response")
		return
	}

	err = c.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(resp.RequestID),
		Value: sealed,
	})
	if err != nil {
		log.Error().Err(err).Str("request_id", resp.RequestID).Msg("queue: failed to publish response")
	}
}
