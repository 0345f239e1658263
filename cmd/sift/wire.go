package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/MikeSquared-Agency/sift/internal/anthropic"
	"github.com/MikeSquared-Agency/sift/internal/config"
	"github.com/MikeSquared-Agency/sift/internal/examples"
	"github.com/MikeSquared-Agency/sift/internal/llm"
	"github.com/MikeSquared-Agency/sift/internal/openai"
	"github.com/MikeSquared-Agency/sift/internal/report"
	"github.com/MikeSquared-Agency/sift/internal/taxonomy"
)

// components is everything a command needs besides transport and storage.
type components struct {
	registry *taxonomy.Registry
	provider string
	selector *examples.Selector
	builder  *report.Builder
}

func buildComponents(cfg config.Config, noLLM bool, logger *slog.Logger) (*components, error) {
	reg, err := loadTaxonomy(cfg.TaxonomyPath)
	if err != nil {
		return nil, err
	}
	logger.Info("taxonomy loaded", "version", reg.Version(), "categories", len(reg.Categories()))

	provider := strings.ToLower(cfg.LLMProvider)
	if noLLM {
		provider = "none"
	}
	gen, err := newGenerator(cfg, provider, logger)
	if err != nil {
		return nil, err
	}
	var tr llm.Translator
	if provider != "none" && cfg.OpenAIAPIKey != "" {
		tr = openai.NewClient(openai.Config{
			APIKey:         cfg.OpenAIAPIKey,
			Model:          cfg.OpenAIModel,
			BaseURL:        cfg.OpenAIBaseURL,
			TargetLanguage: cfg.BaselineLanguage,
		})
		logger.Info("translator ready", "model", cfg.OpenAIModel)
	}

	limiter := llm.NewLimiter(cfg.LLMRateLimit, 1)
	if gen != nil {
		gen = limiter.Generator(gen)
	}
	if tr != nil {
		tr = limiter.Translator(tr)
	}

	sel := examples.New(gen, tr, examples.Options{
		WorkspaceID:          cfg.WorkspaceID,
		InboxURL:             cfg.InboxURL,
		BaselineLanguage:     cfg.BaselineLanguage,
		TranslateConcurrency: cfg.TranslateConcurrency,
	}, logger)
	if cfg.WorkspaceID == "" {
		logger.Warn("WORKSPACE_ID not set, example links will use a placeholder workspace")
	}

	if gen == nil {
		provider = "none"
	}
	return &components{
		registry: reg,
		provider: provider,
		selector: sel,
		builder:  report.NewBuilder(reg, sel, logger),
	}, nil
}

func loadTaxonomy(path string) (*taxonomy.Registry, error) {
	if path == "" {
		return taxonomy.Default()
	}
	return taxonomy.Load(path)
}

// newGenerator returns nil when no model should be used; the selector then
// ranks by rules only.
func newGenerator(cfg config.Config, provider string, logger *slog.Logger) (llm.Generator, error) {
	switch provider {
	case "none", "":
		return nil, nil
	case "anthropic":
		if cfg.AnthropicAPIKey == "" {
			logger.Warn("ANTHROPIC_API_KEY not set, example re-ranking disabled")
			return nil, nil
		}
		logger.Info("anthropic client ready", "model", cfg.AnthropicModel)
		return anthropic.NewClient(cfg.AnthropicAPIKey, cfg.AnthropicModel), nil
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			logger.Warn("OPENAI_API_KEY not set, example re-ranking disabled")
			return nil, nil
		}
		logger.Info("openai client ready", "model", cfg.OpenAIModel)
		return openai.NewClient(openai.Config{
			APIKey:  cfg.OpenAIAPIKey,
			Model:   cfg.OpenAIModel,
			BaseURL: cfg.OpenAIBaseURL,
		}), nil
	default:
		return nil, fmt.Errorf("unknown LLM_PROVIDER %q (want anthropic, openai or none)", provider)
	}
}
