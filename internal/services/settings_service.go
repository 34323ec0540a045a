package services

import (
	"context"

	"github.com/patrickmn/go-cache"
	"github.com/pushit/marketplace/internal/models"
	"go.uber.org/zap"
)

type SettingsStore interface {
	ListSettings(ctx context.Context) ([]models.PlatformSettings, error)
	GetSettings(ctx context.Context, platform string) (*models.PlatformSettings, error)
	UpsertSettings(ctx context.Context, s *models.PlatformSettings) error
}

type PlatformSettingsService struct {
	store SettingsStore
	cache *cache.Cache
	audit AuditLogger
	log   *zap.Logger
}

func NewPlatformSettingsService(store SettingsStore, audit AuditLogger, log *zap.Logger) *PlatformSettingsService {
	return &PlatformSettingsService{
		store: store,
		cache: cache.New(cacheTTL, 2*cacheTTL),
		audit: audit,
		log:   log,
	}
}

// Get returns the settings for a platform, or defaults when none are stored.
func (s *PlatformSettingsService) Get(ctx context.Context, platform string) (*models.PlatformSettings, error) {
	if v, ok := s.cache.Get(platform); ok {
		return v.(*models.PlatformSettings), nil
	}
	ps, err := s.store.GetSettings(ctx, platform)
	if err != nil {
		return nil, err
	}
	if ps == nil {
		ps = &models.PlatformSettings{
			Platform:         platform,
			MinimumFollowers: models.DefaultMinimumFollowers,
			IsActive:         true,
		}
	}
	s.cache.SetDefault(platform, ps)
	return ps, nil
}

func (s *PlatformSettingsService) List(ctx context.Context) ([]models.PlatformSettings, error) {
	return s.store.ListSettings(ctx)
}

func (s *PlatformSettingsService) Upsert(ctx context.Context, ps *models.PlatformSettings, actor Actor) error {
	if !models.IsValidPlatform(ps.Platform) {
		return models.NewValidationError("unknown platform")
	}
	if ps.MinimumFollowers < 0 {
		return models.NewValidationError("minimum_followers must not be negative")
	}
	if err := s.store.UpsertSettings(ctx, ps); err != nil {
		return err
	}
	s.cache.Delete(ps.Platform)

	audit(ctx, s.audit, s.log, models.AuditLog{
		ActorUserID: actorPtr(actor),
		ActorType:   actor.auditType(),
		Action:      "platform_settings_updated",
		EntityType:  "platform_settings",
		Meta:        map[string]any{"platform": ps.Platform, "minimum_followers": ps.MinimumFollowers, "is_active": ps.IsActive},
	})
	return nil
}
