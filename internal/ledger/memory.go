package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/profitlens/profitlens/internal/money"
)

type marketingKey struct {
	shop     string
	platform string
	day      time.Time
}

type integrationKey struct {
	shop     string
	platform string
}

// MemoryStore is the in-memory Store used by tests and single-node dev runs.
type MemoryStore struct {
	mu           sync.RWMutex
	marketing    map[marketingKey]*MarketingCost
	fixed        map[string]map[string]FixedCost
	manual       map[string]map[string]ManualCost
	integrations map[integrationKey]Integration
	settings     map[string]Settings
	targets      map[string]MetricTargets
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		marketing:    make(map[marketingKey]*MarketingCost),
		fixed:        make(map[string]map[string]FixedCost),
		manual:       make(map[string]map[string]ManualCost),
		integrations: make(map[integrationKey]Integration),
		settings:     make(map[string]Settings),
		targets:      make(map[string]MetricTargets),
	}
}

func (s *MemoryStore) UpsertDailyCost(ctx context.Context, shop, platform string, date time.Time, amount float64, description string) error {
	k := marketingKey{shop: shop, platform: platform, day: money.Day(date)}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.marketing[k]
	if !ok {
		rec = &MarketingCost{ID: uuid.NewString(), Shop: shop, Platform: platform, Date: k.day}
		s.marketing[k] = rec
	}
	rec.Amount = amount
	rec.Description = description
	rec.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) SumMarketingCosts(ctx context.Context, shop string, start, end time.Time) (float64, error) {
	from, to := money.Day(start), money.Day(end)
	s.mu.RLock()
	defer s.mu.RUnlock()
	var total float64
	for k, rec := range s.marketing {
		if k.shop != shop {
			continue
		}
		if !k.day.Before(from) && !k.day.After(to) {
			total += rec.Amount
		}
	}
	return total, nil
}

func (s *MemoryStore) SumFixedCosts(ctx context.Context, shop string, start, end time.Time) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var total float64
	for _, fc := range s.fixed[shop] {
		total += fixedContribution(fc, start, end)
	}
	return total, nil
}

// fixedContribution applies the recurring/one-off policy: recurring costs
// overlapping the range are prorated against their billing basis, one-off
// costs count in full only when their start date lies inside the range.
func fixedContribution(fc FixedCost, start, end time.Time) float64 {
	from, to := money.Day(start), money.Day(end)
	fcStart := money.Day(fc.StartDate)
	if fcStart.After(to) {
		return 0
	}
	if fc.EndDate != nil && money.Day(*fc.EndDate).Before(from) {
		return 0
	}
	if fc.Recurring {
		return money.Prorate(fc.Amount, money.DaysBetween(from, to), money.DefaultProrationBasisDays)
	}
	if !fcStart.Before(from) && !fcStart.After(to) {
		return fc.Amount
	}
	return 0
}

func (s *MemoryStore) SumManualCosts(ctx context.Context, shop string, start, end time.Time) (ManualCostTotals, error) {
	from, to := money.Day(start), money.Day(end)
	s.mu.RLock()
	defer s.mu.RUnlock()
	var totals ManualCostTotals
	for _, mc := range s.manual[shop] {
		day := money.Day(mc.Date)
		if day.Before(from) || day.After(to) {
			continue
		}
		bucketManual(&totals, mc)
	}
	return totals, nil
}

func bucketManual(totals *ManualCostTotals, mc ManualCost) {
	switch mc.Category {
	case CategoryShipping:
		totals.Shipping += mc.Amount
	case CategoryCOGS:
		totals.COGS += mc.Amount
	default:
		totals.Other += mc.Amount
	}
}

func (s *MemoryStore) CreateFixedCost(ctx context.Context, fc FixedCost) (FixedCost, error) {
	if fc.ID == "" {
		fc.ID = uuid.NewString()
	}
	fc.StartDate = money.Day(fc.StartDate)
	if fc.EndDate != nil {
		d := money.Day(*fc.EndDate)
		fc.EndDate = &d
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fixed[fc.Shop] == nil {
		s.fixed[fc.Shop] = make(map[string]FixedCost)
	}
	s.fixed[fc.Shop][fc.ID] = fc
	return fc, nil
}

func (s *MemoryStore) ListFixedCosts(ctx context.Context, shop string) ([]FixedCost, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]FixedCost, 0, len(s.fixed[shop]))
	for _, fc := range s.fixed[shop] {
		out = append(out, fc)
	}
	return out, nil
}

func (s *MemoryStore) DeleteFixedCost(ctx context.Context, shop, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.fixed[shop][id]; !ok {
		return ErrNotFound
	}
	delete(s.fixed[shop], id)
	return nil
}

func (s *MemoryStore) CreateManualCost(ctx context.Context, mc ManualCost) (ManualCost, error) {
	if mc.ID == "" {
		mc.ID = uuid.NewString()
	}
	mc.Date = money.Day(mc.Date)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.manual[mc.Shop] == nil {
		s.manual[mc.Shop] = make(map[string]ManualCost)
	}
	s.manual[mc.Shop][mc.ID] = mc
	return mc, nil
}

func (s *MemoryStore) ListManualCosts(ctx context.Context, shop string, start, end time.Time) ([]ManualCost, error) {
	from, to := money.Day(start), money.Day(end)
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []ManualCost
	for _, mc := range s.manual[shop] {
		day := money.Day(mc.Date)
		if !day.Before(from) && !day.After(to) {
			out = append(out, mc)
		}
	}
	return out, nil
}

func (s *MemoryStore) DeleteManualCost(ctx context.Context, shop, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.manual[shop][id]; !ok {
		return ErrNotFound
	}
	delete(s.manual[shop], id)
	return nil
}

func (s *MemoryStore) GetIntegration(ctx context.Context, shop, platform string) (Integration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	in, ok := s.integrations[integrationKey{shop, platform}]
	if !ok {
		return Integration{}, ErrNotFound
	}
	return in, nil
}

func (s *MemoryStore) UpsertIntegration(ctx context.Context, in Integration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.integrations[integrationKey{in.Shop, in.Platform}] = in
	return nil
}

func (s *MemoryStore) ListActiveIntegrations(ctx context.Context) ([]Integration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Integration
	for _, in := range s.integrations {
		if in.IsActive {
			out = append(out, in)
		}
	}
	return out, nil
}

func (s *MemoryStore) SaveCredentials(ctx context.Context, shop, platform string, credentials []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := integrationKey{shop, platform}
	in, ok := s.integrations[k]
	if !ok {
		return ErrNotFound
	}
	in.Credentials = append([]byte(nil), credentials...)
	s.integrations[k] = in
	return nil
}

func (s *MemoryStore) UpdateLastSync(ctx context.Context, shop, platform string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := integrationKey{shop, platform}
	in, ok := s.integrations[k]
	if !ok {
		return ErrNotFound
	}
	in.LastSync = at
	s.integrations[k] = in
	return nil
}

func (s *MemoryStore) GetSettings(ctx context.Context, shop string) (Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if set, ok := s.settings[shop]; ok {
		return set, nil
	}
	return DefaultSettings(shop), nil
}

func (s *MemoryStore) SaveSettings(ctx context.Context, set Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[set.Shop] = set
	return nil
}

func (s *MemoryStore) GetTargets(ctx context.Context, shop string) (MetricTargets, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if t, ok := s.targets[shop]; ok {
		return t, nil
	}
	return MetricTargets{Shop: shop}, nil
}

func (s *MemoryStore) SaveTargets(ctx context.Context, t MetricTargets) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.targets[t.Shop] = t
	return nil
}
