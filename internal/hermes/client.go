package hermes

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

const (
	// SubjectConversationBatch carries batches of support conversations to report on.
	SubjectConversationBatch = "support.conversations.batch"
	// SubjectReportReady carries the full report for a processed batch.
	SubjectReportReady = "sift.report.ready"
	// SubjectReportFailed is emitted when a batch could not be turned into a report.
	SubjectReportFailed = "sift.report.failed"

	// QueueGroup spreads batches across sift replicas.
	QueueGroup = "sift"
)

// BatchEvent is the payload of SubjectConversationBatch. Conversations are
// carried inline, or fetched from SourceURL when absent.
type BatchEvent struct {
	BatchID       string          `json:"batch_id"`
	Sentiment     string          `json:"sentiment,omitempty"`
	Conversations json.RawMessage `json:"conversations,omitempty"`
	SourceURL     string          `json:"source_url,omitempty"`
}

// ReportFailedEvent is the payload of SubjectReportFailed.
type ReportFailedEvent struct {
	BatchID  string    `json:"batch_id"`
	Error    string    `json:"error"`
	FailedAt time.Time `json:"failed_at"`
}

// Publisher is the subset of Client used by the processor.
type Publisher interface {
	Publish(subject string, data any) error
}

type Client struct {
	conn   *nats.Conn
	subs   []*nats.Subscription
	logger *slog.Logger
}

func NewClient(ctx context.Context, url, token string, logger *slog.Logger) (*Client, error) {
	opts := []nats.Option{
		nats.Name("sift"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(60),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("nats reconnected")
		}),
	}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	return &Client{conn: nc, logger: logger}, nil
}

func (c *Client) Publish(subject string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return c.conn.Publish(subject, payload)
}

// Subscribe registers handler on subject. A non-empty queue joins a queue
// group so each message is delivered to one member only.
func (c *Client) Subscribe(subject, queue string, handler func(subject string, data []byte)) error {
	cb := func(msg *nats.Msg) {
		handler(msg.Subject, msg.Data)
	}
	var (
		sub *nats.Subscription
		err error
	)
	if queue != "" {
		sub, err = c.conn.QueueSubscribe(subject, queue, cb)
	} else {
		sub, err = c.conn.Subscribe(subject, cb)
	}
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", subject, err)
	}
	c.subs = append(c.subs, sub)
	c.logger.Info("subscribed", "subject", subject, "queue", queue)
	return nil
}

// Connected reports whether the underlying connection is up.
func (c *Client) Connected() bool {
	return c.conn != nil && c.conn.IsConnected()
}

func (c *Client) Close() {
	for _, sub := range c.subs {
		_ = sub.Unsubscribe()
	}
	c.conn.Close()
}
