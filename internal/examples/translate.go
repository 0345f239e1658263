package examples

import (
	"context"
	"strings"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/MikeSquared-Agency/sift/internal/metrics"
)

// translate fills in Translation for non-baseline examples in place. Each
// example is independent: a failure leaves that translation empty and moves
// on. With concurrency 1 calls run in document order.
func (s *Selector) translate(ctx context.Context, exs []Example) {
	if s.tr == nil || len(exs) == 0 {
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.TranslateConcurrency)
	for i := range exs {
		ex := &exs[i]
		if !s.needsTranslation(*ex) {
			continue
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			t, err := s.tr.Translate(gctx, ex.Preview, ex.Language)
			if err != nil {
				s.logger.Warn("translation failed, leaving example untranslated",
					"conversation_id", ex.ConversationID,
					"language", ex.Language,
					"error", err,
				)
				metrics.Translations.WithLabelValues("failed").Inc()
				return nil
			}
			if !t.NeedsTranslation || strings.TrimSpace(t.Text) == "" {
				metrics.Translations.WithLabelValues("unchanged").Inc()
				return nil
			}
			ex.Translation = strings.TrimSpace(t.Text)
			if t.DetectedLanguage != "" {
				ex.Language = t.DetectedLanguage
			}
			metrics.Translations.WithLabelValues("translated").Inc()
			return nil
		})
	}
	_ = g.Wait()
}

func (s *Selector) needsTranslation(ex Example) bool {
	if ex.Language == "" || strings.EqualFold(ex.Language, s.opts.BaselineLanguage) {
		return false
	}
	return utf8.RuneCountInString(ex.Preview) > s.opts.MinTranslateRunes
}
