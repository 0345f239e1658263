package processor

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/MikeSquared-Agency/sift/internal/examples"
	"github.com/MikeSquared-Agency/sift/internal/hermes"
	"github.com/MikeSquared-Agency/sift/internal/report"
	"github.com/MikeSquared-Agency/sift/internal/taxonomy"
)

type published struct {
	subject string
	data    any
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []published
}

func (f *fakePublisher) Publish(subject string, data any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, published{subject, data})
	return nil
}

type fakeWriter struct {
	err     error
	written []*report.Report
}

func (f *fakeWriter) WriteReport(_ context.Context, r *report.Report) error {
	if f.err != nil {
		return f.err
	}
	f.written = append(f.written, r)
	return nil
}

type fakeNotifier struct {
	posted []*report.Report
}

func (f *fakeNotifier) PostReport(_ context.Context, r *report.Report) (string, error) {
	f.posted = append(f.posted, r)
	return "1.0", nil
}

func newTestProcessor(t *testing.T, w ReportWriter) (*Processor, *fakePublisher) {
	t.Helper()
	reg, err := taxonomy.New("test", []taxonomy.Category{
		{Name: "Billing", Keywords: []string{"refund", "invoice"}, Threshold: 0.25},
	}, nil, nil)
	if err != nil {
		t.Fatalf("taxonomy: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	b := report.NewBuilder(reg, examples.New(nil, nil, examples.Options{}, logger), logger)
	pub := &fakePublisher{}
	return New(b, w, pub, nil, logger), pub
}

const batchJSON = `[
	{"id": 1, "body": "I need a refund for the invoice you sent me last week", "tags": ["billing"]},
	{"id": "2", "body": "Just checking in to say the new dashboard looks lovely"},
	42
]`

func TestHandleConversationBatch_Inline(t *testing.T) {
	w := &fakeWriter{}
	p, pub := newTestProcessor(t, w)

	evt, _ := json.Marshal(map[string]any{
		"batch_id":      "b1",
		"sentiment":     "frustrated",
		"conversations": json.RawMessage(batchJSON),
	})
	p.HandleConversationBatch(hermes.SubjectConversationBatch, evt)

	if len(pub.msgs) != 1 || pub.msgs[0].subject != hermes.SubjectReportReady {
		t.Fatalf("expected one report.ready message, got %+v", pub.msgs)
	}
	r, ok := pub.msgs[0].data.(*report.Report)
	if !ok {
		t.Fatalf("expected *report.Report payload, got %T", pub.msgs[0].data)
	}
	if r.BatchID != "b1" || r.Sentiment != "frustrated" {
		t.Errorf("unexpected report metadata: %s %s", r.BatchID, r.Sentiment)
	}
	if r.Summary.Total != 2 {
		t.Errorf("expected 2 decoded conversations, got %d", r.Summary.Total)
	}
	if len(w.written) != 1 || w.written[0] != r {
		t.Errorf("expected the published report to be persisted")
	}
}

func TestHandleConversationBatch_Notifies(t *testing.T) {
	p, pub := newTestProcessor(t, nil)
	n := &fakeNotifier{}
	p.notifier = n

	evt, _ := json.Marshal(map[string]any{"batch_id": "b8", "conversations": json.RawMessage(batchJSON)})
	p.HandleConversationBatch(hermes.SubjectConversationBatch, evt)

	if len(n.posted) != 1 || n.posted[0] != pub.msgs[0].data {
		t.Errorf("expected the published report to be posted once, got %d", len(n.posted))
	}
}

func TestHandleConversationBatch_SourceURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/batches/b2" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"conversations": ` + batchJSON + `}`))
	}))
	defer srv.Close()

	p, pub := newTestProcessor(t, nil)

	evt, _ := json.Marshal(hermes.BatchEvent{BatchID: "b2", SourceURL: srv.URL + "/batches/b2"})
	p.HandleConversationBatch(hermes.SubjectConversationBatch, evt)

	if len(pub.msgs) != 1 || pub.msgs[0].subject != hermes.SubjectReportReady {
		t.Fatalf("expected one report.ready message, got %+v", pub.msgs)
	}
	if r := pub.msgs[0].data.(*report.Report); r.Summary.Total != 2 {
		t.Errorf("expected 2 conversations from source, got %d", r.Summary.Total)
	}
}

func TestHandleConversationBatch_Failures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	tests := []struct {
		name    string
		payload string
		batchID string
	}{
		{"bad event", `not json`, ""},
		{"no source", `{"batch_id": "b3"}`, "b3"},
		{"source error", `{"batch_id": "b4", "source_url": "` + srv.URL + `"}`, "b4"},
		{"not a list", `{"batch_id": "b5", "conversations": "oops"}`, "b5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, pub := newTestProcessor(t, nil)
			p.HandleConversationBatch(hermes.SubjectConversationBatch, []byte(tt.payload))

			if len(pub.msgs) != 1 || pub.msgs[0].subject != hermes.SubjectReportFailed {
				t.Fatalf("expected one report.failed message, got %+v", pub.msgs)
			}
			evt := pub.msgs[0].data.(hermes.ReportFailedEvent)
			if evt.BatchID != tt.batchID {
				t.Errorf("expected batch id %q, got %q", tt.batchID, evt.BatchID)
			}
			if evt.Error == "" || evt.FailedAt.IsZero() {
				t.Errorf("expected error and timestamp, got %+v", evt)
			}
		})
	}
}

func TestHandleConversationBatch_PersistFailure(t *testing.T) {
	p, pub := newTestProcessor(t, &fakeWriter{err: errors.New("connection refused")})

	evt, _ := json.Marshal(map[string]any{"batch_id": "b6", "conversations": json.RawMessage(batchJSON)})
	p.HandleConversationBatch(hermes.SubjectConversationBatch, evt)

	if len(pub.msgs) != 1 || pub.msgs[0].subject != hermes.SubjectReportFailed {
		t.Fatalf("expected report.failed on persistence error, got %+v", pub.msgs)
	}
}

func TestProcess_EmptyBatch(t *testing.T) {
	p, _ := newTestProcessor(t, nil)

	r, err := p.Process(context.Background(), hermes.BatchEvent{BatchID: "b7", Conversations: json.RawMessage(`[]`)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Summary.Total != 0 {
		t.Errorf("expected empty report, got total %d", r.Summary.Total)
	}
}
