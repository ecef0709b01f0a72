package service

import (
	"context"
	"time"

	"github.com/sessionlab/billing/internal/cache"
	"github.com/sessionlab/billing/internal/domain/entitlement"
	ierr "github.com/sessionlab/billing/internal/errors"
	"github.com/sessionlab/billing/internal/logger"
	"github.com/sessionlab/billing/internal/types"
)

// LimitResult is the outcome of a limit check.
type LimitResult struct {
	Allowed   bool  `json:"allowed"`
	Limit     int64 `json:"limit"`
	Usage     int64 `json:"usage"`
	Unlimited bool  `json:"unlimited"`
}

// EnforcementService answers entitlement questions on the request path.
// Lookups go through a short-lived cache so hot paths do not hit the store
// on every call; the cache is invalidated whenever entitlements are synced.
//
// Store failures follow the configured posture: fail-open grants access and
// logs, fail-closed denies with an error. The posture is fixed at
// construction from configuration, never decided per call site.
type EnforcementService interface {
	// CheckAccess reports whether the boolean entitlement is granted.
	// Missing or expired keys are not granted.
	CheckAccess(ctx context.Context, orgID string, key types.EntitlementKey) (bool, error)

	// GetValue returns the raw entitlement value, or "" when absent.
	GetValue(ctx context.Context, orgID string, key types.EntitlementKey) (string, error)

	// CheckLimit evaluates usage against a limit entitlement. A missing key
	// is a zero limit.
	CheckLimit(ctx context.Context, orgID string, key types.EntitlementKey, usage int64) (*LimitResult, error)

	// RequireEntitlement is CheckAccess with a denial error suitable for
	// the HTTP surface.
	RequireEntitlement(ctx context.Context, orgID string, key types.EntitlementKey) error

	// RequireWithinLimit is CheckLimit with a denial error suitable for
	// the HTTP surface.
	RequireWithinLimit(ctx context.Context, orgID string, key types.EntitlementKey, usage int64) error
}

type enforcementService struct {
	repo     entitlement.Repository
	cache    cache.Cache
	log      *logger.Logger
	failOpen bool
	now      func() time.Time
}

func NewEnforcementService(params ServiceParams) EnforcementService {
	return &enforcementService{
		repo:     params.EntitlementRepo,
		cache:    params.Cache,
		log:      params.Logger,
		failOpen: params.Config.Entitlements.FailOpen,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *enforcementService) CheckAccess(ctx context.Context, orgID string, key types.EntitlementKey) (bool, error) {
	set, err := s.loadSet(ctx, orgID)
	if err != nil {
		return s.failure(key, err)
	}
	ent, ok := set[key]
	if !ok {
		return false, nil
	}
	return ent.BoolValue(), nil
}

func (s *enforcementService) GetValue(ctx context.Context, orgID string, key types.EntitlementKey) (string, error) {
	set, err := s.loadSet(ctx, orgID)
	if err != nil {
		if s.failOpen {
			s.logFailOpen(key, err)
			return "", nil
		}
		return "", s.storeError(err)
	}
	ent, ok := set[key]
	if !ok {
		return "", nil
	}
	return ent.Value, nil
}

func (s *enforcementService) CheckLimit(ctx context.Context, orgID string, key types.EntitlementKey, usage int64) (*LimitResult, error) {
	set, err := s.loadSet(ctx, orgID)
	if err != nil {
		if s.failOpen {
			s.logFailOpen(key, err)
			return &LimitResult{Allowed: true, Unlimited: true, Usage: usage}, nil
		}
		return nil, s.storeError(err)
	}

	ent, ok := set[key]
	if !ok {
		return &LimitResult{Allowed: false, Limit: 0, Usage: usage}, nil
	}
	limit, err := ent.LimitValue()
	if err != nil {
		return nil, err
	}
	if limit >= types.UnlimitedSentinel {
		return &LimitResult{Allowed: true, Limit: limit, Usage: usage, Unlimited: true}, nil
	}
	return &LimitResult{
		Allowed: usage < limit,
		Limit:   limit,
		Usage:   usage,
	}, nil
}

func (s *enforcementService) RequireEntitlement(ctx context.Context, orgID string, key types.EntitlementKey) error {
	granted, err := s.CheckAccess(ctx, orgID, key)
	if err != nil {
		return err
	}
	if !granted {
		return ierr.NewError("feature not included in current plan").
			WithHint("Upgrade your plan to use this feature").
			WithReportableDetails(map[string]any{
				"feature": key,
			}).
			Mark(ierr.ErrEntitlementDenied)
	}
	return nil
}

func (s *enforcementService) RequireWithinLimit(ctx context.Context, orgID string, key types.EntitlementKey, usage int64) error {
	result, err := s.CheckLimit(ctx, orgID, key, usage)
	if err != nil {
		return err
	}
	if !result.Allowed {
		return ierr.NewError("plan limit reached").
			WithHint("Upgrade your plan to raise this limit").
			WithReportableDetails(map[string]any{
				"feature": key,
				"limit":   result.Limit,
				"usage":   result.Usage,
			}).
			Mark(ierr.ErrEntitlementDenied)
	}
	return nil
}

// loadSet returns the organization's live entitlements keyed by entitlement
// key, serving from cache when possible. Expired rows are filtered here so
// every check sees the same view.
func (s *enforcementService) loadSet(ctx context.Context, orgID string) (map[types.EntitlementKey]*entitlement.Entitlement, error) {
	cacheKey := cache.GenerateKey(cache.PrefixEntitlement, orgID)
	if s.cache != nil {
		if value, found := s.cache.Get(ctx, cacheKey); found {
			if set, ok := value.(map[types.EntitlementKey]*entitlement.Entitlement); ok {
				return set, nil
			}
		}
	}

	rows, err := s.repo.ListByOrgID(ctx, orgID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	set := make(map[types.EntitlementKey]*entitlement.Entitlement, len(rows))
	for _, ent := range rows {
		if ent.IsExpired(now) {
			continue
		}
		set[ent.Key] = ent
	}

	if s.cache != nil {
		s.cache.Set(ctx, cacheKey, set, cache.DefaultExpiration)
	}
	return set, nil
}

func (s *enforcementService) failure(key types.EntitlementKey, err error) (bool, error) {
	if s.failOpen {
		s.logFailOpen(key, err)
		return true, nil
	}
	return false, s.storeError(err)
}

func (s *enforcementService) logFailOpen(key types.EntitlementKey, err error) {
	s.log.Errorw("entitlement store unavailable, failing open",
		"key", key,
		"error", err,
	)
}

func (s *enforcementService) storeError(err error) error {
	return ierr.WithError(err).
		WithHint("Unable to verify plan entitlements").
		Mark(ierr.ErrDatabase)
}
