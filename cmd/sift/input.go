package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/MikeSquared-Agency/sift/internal/conversation"
	"github.com/MikeSquared-Agency/sift/internal/metrics"
)

// readConversations loads a conversation list from path, or stdin for "-".
func readConversations(path string, stdin io.Reader, logger *slog.Logger) ([]conversation.Conversation, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}

	convs, skipped, err := conversation.DecodeList(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if skipped > 0 {
		metrics.ConversationsSkipped.Add(float64(skipped))
		logger.Warn("skipped malformed conversations", "count", skipped)
	}
	return convs, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
