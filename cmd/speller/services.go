package main

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/raaihank/speller/internal/audit"
	"github.com/raaihank/speller/internal/cache"
	"github.com/raaihank/speller/internal/config"
	"github.com/raaihank/speller/internal/etl"
	"github.com/raaihank/speller/internal/logger"
	"github.com/raaihank/speller/internal/speller"
)

// services holds all initialized services
type services struct {
	client *speller.Client
	cache  *cache.SuggestionCache
	store  *audit.Store
}

func (s *services) cleanup() {
	if s.client != nil {
		s.client.Close()
	}
	if s.cache != nil {
		s.cache.Close()
	}
	if s.store != nil {
		s.store.Close()
	}
}

// recorder returns the audit store as a run recorder, or nil when auditing is off
func (s *services) recorder() etl.RunRecorder {
	if s.store == nil {
		return nil
	}
	return s.store
}

// initializeServices creates the speller client and its optional cache and audit store.
// An unreachable cache or audit database is logged and skipped.
func initializeServices(cfg *config.Config, log *logger.Logger) (*services, error) {
	svc := &services{}

	service, err := speller.NewFactory(log.WithComponent("speller").Logger).CreateService(&cfg.Speller)
	if err != nil {
		return nil, fmt.Errorf("failed to create speller service: %w", err)
	}

	var suggestionCache speller.Cache
	if cfg.Cache.Enabled {
		c, err := cache.NewSuggestionCache(&cfg.Cache, log.WithComponent("cache").Logger)
		if err != nil {
			log.Warn("Suggestion cache unavailable, continuing without it", zap.Error(err))
		} else {
			svc.cache = c
			suggestionCache = c
		}
	}

	if cfg.Audit.Enabled {
		store, err := audit.NewStore(&cfg.Audit, log.WithComponent("audit").Logger)
		if err != nil {
			log.Warn("Audit store unavailable, runs will not be recorded", zap.Error(err))
		} else {
			svc.store = store
		}
	}

	svc.client = speller.NewClient(service, suggestionCache, &cfg.Speller, log.WithComponent("speller").Logger)
	return svc, nil
}
