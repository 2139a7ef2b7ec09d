package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/CyberwizD/sensor-notifier/pkg/batch"
	"github.com/CyberwizD/sensor-notifier/pkg/metrics"
)

// RecipientRemover deletes a token from the recipient registry. Removing an
// absent token must succeed.
type RecipientRemover interface {
	RemoveRecipient(ctx context.Context, token string) error
}

// TokenSuppressor marks a token so stale snapshots skip it.
type TokenSuppressor interface {
	SuppressToken(ctx context.Context, token string, ttl time.Duration) error
}

// RegistryPruner applies a dispatch cycle's prune-list to the registry.
type RegistryPruner struct {
	store       RecipientRemover
	suppressor  TokenSuppressor
	suppressTTL time.Duration
	concurrency int
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

// NewRegistryPruner builds a pruner. suppressor may be nil.
func NewRegistryPruner(store RecipientRemover, suppressor TokenSuppressor, suppressTTL time.Duration, concurrency int, metrics *metrics.Metrics, logger *slog.Logger) *RegistryPruner {
	if concurrency <= 0 {
		concurrency = 8
	}
	return &RegistryPruner{
		store:       store,
		suppressor:  suppressor,
		suppressTTL: suppressTTL,
		concurrency: concurrency,
		metrics:     metrics,
		logger:      logger,
	}
}

// Prune removes every token once. Failures are logged per token and never
// escalated.
func (p *RegistryPruner) Prune(ctx context.Context, tokens []string) {
	unique := dedupe(tokens)
	if len(unique) == 0 {
		return
	}

	results := batch.Values(ctx, unique, p.concurrency, func(ctx context.Context, token string) (struct{}, error) {
		if p.suppressor != nil {
			if err := p.suppressor.SuppressToken(ctx, token, p.suppressTTL); err != nil {
				p.logger.Warn("failed to suppress token", slog.String("token", token), slog.Any("error", err))
			}
		}
		return struct{}{}, p.store.RemoveRecipient(ctx, token)
	})

	removed := 0
	for _, res := range results {
		if res.Failed() {
			p.logger.Error("failed to remove recipient token", slog.String("token", res.Item), slog.Any("error", res.Err))
			continue
		}
		removed++
	}
	p.metrics.AddPruned(removed)
	p.logger.Info("pruned recipient tokens", slog.Int("requested", len(unique)), slog.Int("removed", removed))
}

func dedupe(tokens []string) []string {
	seen := make(map[string]struct{}, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
