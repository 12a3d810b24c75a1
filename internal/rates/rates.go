// Package rates resolves stored reference rates for cross-currency
// evaluations. The scorer itself never fetches rates; callers resolve a
// rate here (or supply one inline) before evaluation.
package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cashout-watch/kestrel/internal/domain"
)

// cacheTTL bounds how long a resolved rate stays in cache. Rates are
// operator-entered observations, not a live feed, so a short TTL only
// shields the repository from hot pairs.
const cacheTTL = time.Minute

// Service resolves the latest stored rate for a currency pair.
type Service struct {
	repo  domain.Repository
	cache domain.Cache
}

// NewService creates a new rate resolution service.
func NewService(repo domain.Repository, cache domain.Cache) *Service {
	return &Service{
		repo:  repo,
		cache: cache,
	}
}

// Latest returns the most recent stored rate for base/quote, checking the
// cache before the repository.
func (s *Service) Latest(ctx context.Context, tenantID, base, quote string) (*domain.ReferenceRate, error) {
	base = normalize(base)
	quote = normalize(quote)
	if tenantID == "" || base == "" || quote == "" {
		return nil, fmt.Errorf("tenantID, base and quote are required")
	}

	key := "rate:" + base + ":" + quote

	if s.cache != nil {
		if data, err := s.cache.Get(ctx, tenantID, key); err == nil && data != nil {
			var rate domain.ReferenceRate
			if err := json.Unmarshal(data, &rate); err == nil {
				return &rate, nil
			}
		}
	}

	if s.repo == nil {
		return nil, fmt.Errorf("no data source available")
	}

	rate, err := s.repo.GetLatestRate(ctx, tenantID, base, quote)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if data, err := json.Marshal(rate); err == nil {
			_ = s.cache.Set(ctx, tenantID, key, data, cacheTTL)
		}
	}

	return rate, nil
}

// Record stores a new rate observation and invalidates the cached pair.
func (s *Service) Record(ctx context.Context, tenantID string, rate *domain.ReferenceRate) error {
	if s.repo == nil {
		return fmt.Errorf("no data source available")
	}

	rate.Base = normalize(rate.Base)
	rate.Quote = normalize(rate.Quote)
	if rate.Base == "" || rate.Quote == "" {
		return fmt.Errorf("base and quote are required")
	}
	if !rate.Rate.IsPositive() {
		return fmt.Errorf("rate must be positive")
	}
	if rate.AsOf.IsZero() {
		rate.AsOf = time.Now().UTC()
	}

	if err := s.repo.SaveReferenceRate(ctx, tenantID, rate); err != nil {
		return err
	}

	if s.cache != nil {
		_ = s.cache.Delete(ctx, tenantID, "rate:"+rate.Base+":"+rate.Quote)
	}

	return nil
}

// Resolve fills a measurement's missing reference rate from the store
// when the currencies differ. A missing stored rate is not an error: the
// measurement is returned unchanged and the FX dimension will classify
// as unknown.
func (s *Service) Resolve(ctx context.Context, tenantID string, m *domain.Measurement) {
	if m.ReferenceRate != nil {
		return
	}

	base := normalize(m.AppliedCurrency)
	quote := normalize(m.ReceivedCurrency)
	if base == "" || quote == "" || base == quote {
		return
	}

	rate, err := s.Latest(ctx, tenantID, base, quote)
	if err != nil {
		return
	}

	v := rate.Rate
	m.ReferenceRate = &v
}

func normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
