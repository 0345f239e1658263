package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/MikeSquared-Agency/sift/internal/report"
)

const (
	defaultPostMessageURL = "https://slack.com/api/chat.postMessage"

	// digestCategories caps the volume lines in the header message.
	digestCategories = 8
)

type Poster struct {
	token   string
	channel string
	client  *http.Client
	logger  *slog.Logger
	apiURL  string
}

func NewPoster(token, channel string, logger *slog.Logger) *Poster {
	return &Poster{
		token:   token,
		channel: channel,
		client:  &http.Client{Timeout: 10 * time.Second},
		apiURL:  defaultPostMessageURL,
		logger:  logger,
	}
}

// PostReport posts the volume digest and then the examples as a thread
// reply. Returns the header message timestamp.
func (p *Poster) PostReport(ctx context.Context, r *report.Report) (string, error) {
	text := formatDigest(r)

	ts, err := p.post(ctx, map[string]any{
		"channel": p.channel,
		"text":    text,
		"blocks": []map[string]any{
			{
				"type": "section",
				"text": map[string]any{
					"type": "mrkdwn",
					"text": text,
				},
			},
			{
				"type": "context",
				"elements": []map[string]any{
					{
						"type": "mrkdwn",
						"text": fmt.Sprintf("run `%s` | taxonomy %s", r.RunID, r.TaxonomyVersion),
					},
				},
			},
		},
	})
	if err != nil {
		return "", err
	}
	p.logger.Info("posted report to slack", "ts", ts, "run_id", r.RunID)

	if len(r.Examples.Examples) > 0 {
		if err := p.PostThread(ctx, ts, formatExamples(r)); err != nil {
			p.logger.Warn("failed to post examples thread", "run_id", r.RunID, "error", err)
		}
	}
	return ts, nil
}

// PostThread posts a threaded reply to a message.
func (p *Poster) PostThread(ctx context.Context, threadTS, text string) error {
	_, err := p.post(ctx, map[string]any{
		"channel":   p.channel,
		"thread_ts": threadTS,
		"text":      text,
	})
	return err
}

func (p *Poster) post(ctx context.Context, payload map[string]any) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+p.token)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("slack post: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var slackResp struct {
		OK    bool   `json:"ok"`
		TS    string `json:"ts"`
		Error string `json:"error,omitempty"`
	}
	if err := json.Unmarshal(respBody, &slackResp); err != nil {
		return "", fmt.Errorf("parse slack response: %w", err)
	}
	if !slackResp.OK {
		return "", fmt.Errorf("slack error: %s", slackResp.Error)
	}
	return slackResp.TS, nil
}

func formatDigest(r *report.Report) string {
	var sb strings.Builder

	title := "Support report"
	if r.BatchID != "" {
		title += " " + r.BatchID
	}
	fmt.Fprintf(&sb, "*%s*: %d conversations\n\n", title, r.Summary.Total)

	if len(r.Summary.Categories) == 0 {
		sb.WriteString("_No conversations in this batch._")
		return sb.String()
	}

	for i, c := range r.Summary.Categories {
		if i == digestCategories {
			fmt.Fprintf(&sb, "_…and %d more categories_\n", len(r.Summary.Categories)-digestCategories)
			break
		}
		fmt.Fprintf(&sb, "• *%s*: %d (%.1f%%)", c.Name, c.Volume, c.Percentage)
		if len(c.Subcategories) > 0 {
			top := c.Subcategories[0]
			fmt.Fprintf(&sb, ", mostly %s (%d)", top.Name, top.Volume)
		}
		sb.WriteString("\n")
	}

	if len(r.Troubleshooting) > 0 {
		parts := make([]string, len(r.Troubleshooting))
		for i, t := range r.Troubleshooting {
			parts[i] = fmt.Sprintf("%s %d", t.Pattern, t.Count)
		}
		fmt.Fprintf(&sb, "\n*Troubleshooting:* %s\n", strings.Join(parts, ", "))
	}
	for _, l := range r.Limitations {
		fmt.Fprintf(&sb, "\n:warning: %s", l)
	}
	return sb.String()
}

func formatExamples(r *report.Report) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "*Representative examples (%d)*\n", len(r.Examples.Examples))
	for i, ex := range r.Examples.Examples {
		fmt.Fprintf(&sb, "%d. [%s] <%s|%s>", i+1, ex.Category, ex.Link, ex.Preview)
		if ex.Translation != "" {
			fmt.Fprintf(&sb, "\n   _%s: %s_", ex.Language, ex.Translation)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
