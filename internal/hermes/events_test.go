package hermes

import (
	"encoding/json"
	"testing"
	"time"
)

func TestBatchEventParsing(t *testing.T) {
	raw := `{
		"batch_id": "weekly-2024-10",
		"sentiment": "frustrated customers",
		"conversations": [{"id": 1, "body": "hi"}, {"id": "2"}]
	}`

	var evt BatchEvent
	if err := json.Unmarshal([]byte(raw), &evt); err != nil {
		t.Fatalf("failed to parse BatchEvent: %v", err)
	}

	if evt.BatchID != "weekly-2024-10" {
		t.Errorf("expected batch_id 'weekly-2024-10', got '%s'", evt.BatchID)
	}
	if evt.Sentiment != "frustrated customers" {
		t.Errorf("expected sentiment, got '%s'", evt.Sentiment)
	}
	if len(evt.Conversations) == 0 {
		t.Error("expected raw conversations to be kept")
	}
	if evt.SourceURL != "" {
		t.Errorf("expected empty source_url, got '%s'", evt.SourceURL)
	}
}

func TestBatchEventBySourceURL(t *testing.T) {
	raw := `{"batch_id": "b1", "source_url": "http://exporter:8080/batches/b1"}`

	var evt BatchEvent
	if err := json.Unmarshal([]byte(raw), &evt); err != nil {
		t.Fatalf("failed to parse BatchEvent: %v", err)
	}
	if evt.SourceURL != "http://exporter:8080/batches/b1" {
		t.Errorf("expected source_url, got '%s'", evt.SourceURL)
	}
	if evt.Conversations != nil {
		t.Errorf("expected no inline conversations, got %s", evt.Conversations)
	}
}

func TestReportFailedEventRoundTrip(t *testing.T) {
	evt := ReportFailedEvent{
		BatchID:  "b-rt",
		Error:    "decode batch: not a JSON array",
		FailedAt: time.Date(2024, 10, 1, 12, 0, 0, 0, time.UTC),
	}

	data, err := json.Marshal(evt)
	if err != nil {
		t.Fatalf("failed to marshal: %v", err)
	}

	var decoded ReportFailedEvent
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	if decoded != evt {
		t.Errorf("round trip mismatch: got %+v, want %+v", decoded, evt)
	}
}

func TestSubjectConstants(t *testing.T) {
	if SubjectConversationBatch != "support.conversations.batch" {
		t.Errorf("unexpected batch subject %q", SubjectConversationBatch)
	}
	if SubjectReportReady != "sift.report.ready" {
		t.Errorf("unexpected ready subject %q", SubjectReportReady)
	}
	if SubjectReportFailed != "sift.report.failed" {
		t.Errorf("unexpected failed subject %q", SubjectReportFailed)
	}
}
