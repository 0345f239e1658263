// Package llm defines the language-model capabilities the rest of sift
// consumes. Every caller must keep working when the capability is absent or
// failing; concrete providers live in their own packages.
package llm

import (
	"context"
	"errors"
)

// ErrUnavailable is returned by stubs that stand in for a missing provider.
var ErrUnavailable = errors.New("language model unavailable")

// Generator produces a free-text completion for a single prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Translation is the result of translating one piece of text.
type Translation struct {
	Text             string `json:"translation"`
	NeedsTranslation bool   `json:"needs_translation"`
	DetectedLanguage string `json:"detected_language"`
}

// Translator renders text in the report's baseline language.
type Translator interface {
	Translate(ctx context.Context, text, sourceLang string) (Translation, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, prompt string) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// TranslatorFunc adapts a function to Translator.
type TranslatorFunc func(ctx context.Context, text, sourceLang string) (Translation, error)

func (f TranslatorFunc) Translate(ctx context.Context, text, sourceLang string) (Translation, error) {
	return f(ctx, text, sourceLang)
}

// Static always returns the same reply. It is the deterministic stand-in used
// by tests and by `--no-llm` style runs that still want a fixed ranking.
type Static struct {
	Reply string
}

func (s Static) Generate(ctx context.Context, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return s.Reply, nil
}

// Failing always returns Err, or ErrUnavailable when Err is nil.
type Failing struct {
	Err error
}

func (f Failing) Generate(context.Context, string) (string, error) {
	return "", f.err()
}

func (f Failing) Translate(context.Context, string, string) (Translation, error) {
	return Translation{}, f.err()
}

func (f Failing) err() error {
	if f.Err != nil {
		return f.Err
	}
	return ErrUnavailable
}
