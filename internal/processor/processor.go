package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/MikeSquared-Agency/sift/internal/conversation"
	"github.com/MikeSquared-Agency/sift/internal/hermes"
	"github.com/MikeSquared-Agency/sift/internal/metrics"
	"github.com/MikeSquared-Agency/sift/internal/report"
)

const (
	batchTimeout   = 5 * time.Minute
	maxSourceBytes = 64 << 20
)

// ReportWriter persists finished reports.
type ReportWriter interface {
	WriteReport(ctx context.Context, r *report.Report) error
}

// Notifier announces finished reports to people.
type Notifier interface {
	PostReport(ctx context.Context, r *report.Report) (string, error)
}

// Processor turns conversation batches from NATS into published reports.
type Processor struct {
	builder  *report.Builder
	store    ReportWriter
	hermes   hermes.Publisher
	notifier Notifier
	client   *http.Client
	logger   *slog.Logger
}

// New builds a Processor. store and notifier may be nil.
func New(b *report.Builder, store ReportWriter, h hermes.Publisher, n Notifier, logger *slog.Logger) *Processor {
	return &Processor{
		builder:  b,
		store:    store,
		hermes:   h,
		notifier: n,
		client:   &http.Client{Timeout: time.Minute},
		logger:   logger,
	}
}

// HandleConversationBatch is the NATS handler for support.conversations.batch.
func (p *Processor) HandleConversationBatch(subject string, data []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), batchTimeout)
	defer cancel()

	var evt hermes.BatchEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		p.logger.Error("failed to parse batch event", "subject", subject, "error", err)
		p.fail("", fmt.Errorf("parse batch event: %w", err))
		return
	}

	r, err := p.Process(ctx, evt)
	if err != nil {
		p.logger.Error("batch failed", "batch_id", evt.BatchID, "error", err)
		p.fail(evt.BatchID, err)
		return
	}

	if err := p.hermes.Publish(hermes.SubjectReportReady, r); err != nil {
		p.logger.Error("failed to publish report", "run_id", r.RunID, "batch_id", evt.BatchID, "error", err)
	}

	// Post the digest to Slack (optional).
	if p.notifier != nil {
		if _, err := p.notifier.PostReport(ctx, r); err != nil {
			p.logger.Error("slack post failed", "run_id", r.RunID, "error", err)
		}
	}
}

// Process decodes, reports on and persists one batch.
func (p *Processor) Process(ctx context.Context, evt hermes.BatchEvent) (*report.Report, error) {
	raw, err := p.fetchConversations(ctx, evt)
	if err != nil {
		return nil, err
	}

	convs, skipped, err := conversation.DecodeList(raw)
	if err != nil {
		return nil, fmt.Errorf("decode batch: %w", err)
	}
	if skipped > 0 {
		metrics.ConversationsSkipped.Add(float64(skipped))
		p.logger.Warn("skipped malformed batch elements", "batch_id", evt.BatchID, "count", skipped)
	}

	p.logger.Info("processing batch", "batch_id", evt.BatchID, "count", len(convs))

	r, err := p.builder.Build(ctx, convs, report.Options{BatchID: evt.BatchID, Sentiment: evt.Sentiment})
	if err != nil {
		return nil, err
	}

	if p.store != nil {
		if err := p.store.WriteReport(ctx, r); err != nil {
			return nil, fmt.Errorf("persist report %s: %w", r.RunID, err)
		}
	}
	return r, nil
}

func (p *Processor) fail(batchID string, err error) {
	evt := hermes.ReportFailedEvent{BatchID: batchID, Error: err.Error(), FailedAt: time.Now().UTC()}
	if perr := p.hermes.Publish(hermes.SubjectReportFailed, evt); perr != nil {
		p.logger.Error("failed to publish failure", "batch_id", batchID, "error", perr)
	}
}

func (p *Processor) fetchConversations(ctx context.Context, evt hermes.BatchEvent) ([]byte, error) {
	// Prefer conversations embedded in the event payload.
	if len(evt.Conversations) > 0 && string(evt.Conversations) != "null" {
		return evt.Conversations, nil
	}

	if evt.SourceURL == "" {
		return nil, errors.New("batch has no conversations and no source_url")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, evt.SourceURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build source request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("source request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("source returned %d for batch %s", resp.StatusCode, evt.BatchID)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSourceBytes))
	if err != nil {
		return nil, fmt.Errorf("read source response: %w", err)
	}
	return body, nil
}
