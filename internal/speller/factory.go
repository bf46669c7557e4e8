package speller

import (
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// ProviderType represents a spellchecking backend
type ProviderType string

const (
	// YandexProvider batches texts through Yandex.Speller checkTexts
	YandexProvider ProviderType = "yandex"

	// LanguageToolProvider checks texts one by one against a LanguageTool server
	LanguageToolProvider ProviderType = "languagetool"
)

// Factory creates spellchecking services based on configuration
type Factory struct {
	logger *zap.Logger
}

// NewFactory creates a new service factory
func NewFactory(logger *zap.Logger) *Factory {
	return &Factory{
		logger: logger,
	}
}

// CreateService creates a Service for config.Provider
func (f *Factory) CreateService(config *Config) (Service, error) {
	if err := ValidateConfig(config); err != nil {
		return nil, err
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	hc := &http.Client{Timeout: timeout}

	switch ProviderType(config.Provider) {
	case YandexProvider:
		service, err := NewYandexService(config, hc, f.logger)
		if err != nil {
			return nil, err
		}
		f.logger.Info("Created Yandex.Speller service", zap.String("base_url", service.baseURL), zap.String("lang", config.Lang))
		return service, nil
	case LanguageToolProvider:
		service, err := NewLanguageToolService(config, hc, f.logger)
		if err != nil {
			return nil, err
		}
		f.logger.Info("Created LanguageTool service", zap.String("base_url", service.baseURL), zap.String("lang", service.lang))
		return service, nil
	default:
		return nil, fmt.Errorf("%w: unknown provider: %s", ErrConfig, config.Provider)
	}
}

// ValidateConfig validates the correction client configuration
func ValidateConfig(config *Config) error {
	switch ProviderType(config.Provider) {
	case YandexProvider, LanguageToolProvider:
	default:
		return fmt.Errorf("%w: invalid provider: %s (must be one of: yandex, languagetool)", ErrConfig, config.Provider)
	}

	if config.BatchSize < 1 {
		return fmt.Errorf("%w: batch_size must be positive", ErrConfig)
	}

	if config.RequestsPerSecond < 0 {
		return fmt.Errorf("%w: requests_per_second must not be negative", ErrConfig)
	}

	return nil
}
