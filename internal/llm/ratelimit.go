package llm

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// Limiter throttles calls to a provider with a token bucket shared by every
// capability wrapped with it.
type Limiter struct {
	limiter *rate.Limiter
}

// NewLimiter allows perSecond requests with the given burst. perSecond <= 0
// disables throttling.
func NewLimiter(perSecond float64, burst int) *Limiter {
	if perSecond <= 0 {
		return &Limiter{limiter: rate.NewLimiter(rate.Inf, 0)}
	}
	if burst < 1 {
		burst = 1
	}
	return &Limiter{limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

// Wait blocks until a request may be made or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil {
		return nil
	}
	if err := l.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	return nil
}

// Generator wraps g so each call waits for the limiter first.
func (l *Limiter) Generator(g Generator) Generator {
	return GeneratorFunc(func(ctx context.Context, prompt string) (string, error) {
		if err := l.Wait(ctx); err != nil {
			return "", err
		}
		return g.Generate(ctx, prompt)
	})
}

// Translator wraps t so each call waits for the limiter first.
func (l *Limiter) Translator(t Translator) Translator {
	return TranslatorFunc(func(ctx context.Context, text, sourceLang string) (Translation, error) {
		if err := l.Wait(ctx); err != nil {
			return Translation{}, err
		}
		return t.Translate(ctx, text, sourceLang)
	})
}
