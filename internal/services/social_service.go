package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pushit/marketplace/internal/metrics"
	"github.com/pushit/marketplace/internal/models"
	"github.com/pushit/marketplace/internal/repositories"
	"github.com/pushit/marketplace/internal/social"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type ConnectionStore interface {
	CreateManual(ctx context.Context, c *models.PlatformConnection) error
	UpsertOAuth(ctx context.Context, c *models.PlatformConnection) error
	GetConnection(ctx context.Context, id uuid.UUID) (*models.PlatformConnection, error)
	ListByInfluencer(ctx context.Context, influencerID uuid.UUID) ([]models.PlatformConnection, error)
	ListStale(ctx context.Context, cutoff time.Time, limit int) ([]models.PlatformConnection, error)
	UpdateVerification(ctx context.Context, id uuid.UUID, u repositories.VerificationUpdate) error
	UpdateTokens(ctx context.Context, id uuid.UUID, access string, refresh *string, expires *time.Time) error
	ListReviewCandidates(ctx context.Context, minFollowers, limit int) ([]models.PlatformConnection, error)
	SetFlags(ctx context.Context, id uuid.UUID, flags []string) error
}

type InfluencerStatusStore interface {
	GetInfluencer(ctx context.Context, userID uuid.UUID) (*models.Influencer, error)
	SetVerificationStatus(ctx context.Context, role string, userID uuid.UUID, status string, reason *string) error
}

type OAuthStates interface {
	Issue(ctx context.Context, login social.PendingLogin) (string, error)
	Consume(ctx context.Context, state string) (*social.PendingLogin, error)
}

type ProviderLookup interface {
	Get(platform string) (social.Provider, bool)
}

type FollowerScraper interface {
	FetchFollowers(ctx context.Context, platform, handle string) (int, error)
}

// publicCounter is implemented by providers that can count followers
// without the account's token.
type publicCounter interface {
	PublicFollowers(ctx context.Context, handle string) (int, error)
}

type VerificationPolicy struct {
	DiscrepancyMin   int
	DiscrepancyPct   decimal.Decimal
	ReverifyInterval time.Duration
	Concurrency      int
	// Claimed audiences from this size up need a platform count.
	HighFollowers int
}

type SocialService struct {
	store     ConnectionStore
	profiles  InfluencerStatusStore
	settings  SettingsProvider
	providers ProviderLookup
	states    OAuthStates
	scraper   FollowerScraper
	notify    Notifier
	audit     AuditLogger
	metrics   *metrics.Metrics
	policy    VerificationPolicy
	log       *zap.Logger
}

func NewSocialService(
	store ConnectionStore,
	profiles InfluencerStatusStore,
	settings SettingsProvider,
	providers ProviderLookup,
	states OAuthStates,
	scraper FollowerScraper,
	notifier Notifier,
	audit AuditLogger,
	m *metrics.Metrics,
	policy VerificationPolicy,
	log *zap.Logger,
) *SocialService {
	if policy.Concurrency <= 0 {
		policy.Concurrency = 4
	}
	return &SocialService{
		store:     store,
		profiles:  profiles,
		settings:  settings,
		providers: providers,
		states:    states,
		scraper:   scraper,
		notify:    notifier,
		audit:     audit,
		metrics:   m,
		policy:    policy,
		log:       log,
	}
}

// Connect starts an OAuth login and returns the platform's consent URL.
func (s *SocialService) Connect(ctx context.Context, actor Actor, platform string) (string, error) {
	if actor.Role != models.RoleInfluencer {
		return "", models.ErrForbidden
	}
	p, ok := s.providers.Get(platform)
	if !ok {
		return "", models.NewValidationError(fmt.Sprintf("platform %q is not available", platform))
	}
	state, err := s.states.Issue(ctx, social.PendingLogin{InfluencerID: actor.UserID, Platform: platform})
	if err != nil {
		return "", err
	}
	return p.AuthCodeURL(state), nil
}

// Callback finishes an OAuth login. The connection it stores is verified
// with the follower count the platform reported.
func (s *SocialService) Callback(ctx context.Context, platform, code, state string) (*models.PlatformConnection, error) {
	login, err := s.states.Consume(ctx, state)
	if errors.Is(err, social.ErrStateInvalid) {
		return nil, models.NewValidationError(err.Error())
	}
	if err != nil {
		return nil, err
	}
	if login.Platform != platform {
		return nil, models.NewValidationError("state was issued for another platform")
	}
	if code == "" {
		return nil, models.NewValidationError("authorization was not granted")
	}
	p, ok := s.providers.Get(platform)
	if !ok {
		return nil, models.NewValidationError(fmt.Sprintf("platform %q is not available", platform))
	}

	tok, err := p.Exchange(ctx, code)
	if err != nil {
		s.log.Warn("oauth exchange failed", zap.String("platform", platform), zap.Error(err))
		return nil, fmt.Errorf("exchange code: %w", models.ErrGatewayUnavailable)
	}
	prof, err := p.FetchProfile(ctx, tok.AccessToken)
	if errors.Is(err, social.ErrNoAccount) {
		return nil, models.NewValidationError(err.Error())
	}
	if err != nil {
		s.log.Warn("fetch profile failed", zap.String("platform", platform), zap.Error(err))
		return nil, fmt.Errorf("fetch profile: %w", models.ErrGatewayUnavailable)
	}

	c := &models.PlatformConnection{
		InfluencerID:   login.InfluencerID,
		Platform:       platform,
		Handle:         prof.Handle,
		FollowersCount: prof.Followers,
		AccessToken:    &tok.AccessToken,
		RefreshToken:   tok.RefreshTokenPtr(),
		TokenExpiresAt: tok.ExpiresAt(),
		PlatformUserID: &prof.PlatformUserID,
	}
	if err := s.store.UpsertOAuth(ctx, c); err != nil {
		return nil, err
	}
	s.metrics.Reverification(platform, models.ConnectionStatusVerified)

	notify(ctx, s.notify, s.log, login.InfluencerID, models.NotifyPlatformVerified,
		"Platform verified",
		fmt.Sprintf("Your %s account @%s is verified with %d followers.", platform, prof.Handle, prof.Followers),
		"/profile")
	audit(ctx, s.audit, s.log, models.AuditLog{
		ActorUserID: &login.InfluencerID,
		ActorType:   models.ActorUser,
		Action:      "platform_connected",
		EntityType:  "platform_connection",
		EntityID:    &c.ID,
		Meta:        map[string]any{"platform": platform, "followers": prof.Followers},
	})
	if _, err := s.EvaluateApproval(ctx, login.InfluencerID); err != nil {
		s.log.Warn("approval evaluation failed", zap.String("influencer_id", login.InfluencerID.String()), zap.Error(err))
	}
	return c, nil
}

// AddManual records a self-declared account. It stays pending until a
// re-verification or an admin confirms it.
func (s *SocialService) AddManual(ctx context.Context, actor Actor, platform, handle string, followers int) (*models.PlatformConnection, error) {
	if actor.Role != models.RoleInfluencer {
		return nil, models.ErrForbidden
	}
	if !models.IsValidPlatform(platform) {
		return nil, models.NewValidationError(fmt.Sprintf("unknown platform %q", platform))
	}
	handle = strings.TrimPrefix(strings.TrimSpace(handle), "@")
	if handle == "" {
		return nil, models.NewValidationError("handle is required")
	}
	if followers < 0 {
		return nil, models.NewValidationError("followers_count must not be negative")
	}
	c := &models.PlatformConnection{
		InfluencerID:   actor.UserID,
		Platform:       platform,
		Handle:         handle,
		FollowersCount: followers,
	}
	if err := s.store.CreateManual(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *SocialService) ListConnections(ctx context.Context, influencerID uuid.UUID) ([]models.PlatformConnection, error) {
	return s.store.ListByInfluencer(ctx, influencerID)
}

// ReverifyConnection re-checks one connection on behalf of its owner or
// an admin.
func (s *SocialService) ReverifyConnection(ctx context.Context, actor Actor, id uuid.UUID) (*models.FollowerCheck, error) {
	c, err := s.store.GetConnection(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.InfluencerID != actor.UserID && !actor.IsAdmin() {
		return nil, models.ErrNotFound
	}
	return s.Reverify(ctx, c)
}

// Reverify fetches the current follower count and compares it to the
// claimed one. When no source can produce a count the connection is left
// pending and flagged for manual review.
func (s *SocialService) Reverify(ctx context.Context, c *models.PlatformConnection) (*models.FollowerCheck, error) {
	previous := c.VerificationStatus
	actual, method, flags, err := s.fetchCount(ctx, c)
	if err != nil {
		s.log.Info("follower count unavailable",
			zap.String("connection_id", c.ID.String()),
			zap.String("platform", c.Platform),
			zap.Error(err))
		flags = append(flags, models.FlagManualReview)
		update := repositories.VerificationUpdate{
			Status: models.ConnectionStatusPending,
			Flags:  flags,
			Method: c.VerificationMethod,
		}
		if err := s.store.UpdateVerification(ctx, c.ID, update); err != nil {
			return nil, err
		}
		s.metrics.Reverification(c.Platform, "unavailable")
		return &models.FollowerCheck{Claimed: c.FollowersCount, Status: models.ConnectionStatusPending, Flag: models.FlagManualReview}, nil
	}

	check := models.CheckFollowerDiscrepancy(c.FollowersCount, actual, s.policy.DiscrepancyMin, s.policy.DiscrepancyPct)
	if check.Flag != "" {
		flags = append(flags, check.Flag)
	}
	update := repositories.VerificationUpdate{
		Status:            check.Status,
		VerifiedFollowers: &actual,
		Flags:             flags,
		Method:            method,
	}
	if err := s.store.UpdateVerification(ctx, c.ID, update); err != nil {
		return nil, err
	}
	s.metrics.Reverification(c.Platform, check.Status)

	if check.Status != previous {
		if check.Status == models.ConnectionStatusVerified {
			notify(ctx, s.notify, s.log, c.InfluencerID, models.NotifyPlatformVerified,
				"Platform verified",
				fmt.Sprintf("Your %s account @%s is verified with %d followers.", c.Platform, c.Handle, actual),
				"/profile")
		} else {
			notify(ctx, s.notify, s.log, c.InfluencerID, models.NotifyPlatformFailed,
				"Platform verification failed",
				fmt.Sprintf("We counted %d followers on @%s, you declared %d.", actual, c.Handle, c.FollowersCount),
				"/profile")
		}
	}
	if check.Status == models.ConnectionStatusVerified {
		if _, err := s.EvaluateApproval(ctx, c.InfluencerID); err != nil {
			s.log.Warn("approval evaluation failed", zap.String("influencer_id", c.InfluencerID.String()), zap.Error(err))
		}
	}
	return &check, nil
}

// fetchCount tries the account's token, then the platform's public API,
// then the public page.
func (s *SocialService) fetchCount(ctx context.Context, c *models.PlatformConnection) (int, string, []string, error) {
	var flags []string
	p, hasProvider := s.providers.Get(c.Platform)

	if hasProvider && c.HasOAuthToken() {
		access, err := s.freshToken(ctx, p, c)
		if err != nil {
			s.log.Info("token unusable", zap.String("connection_id", c.ID.String()), zap.Error(err))
			flags = append(flags, models.FlagTokenExpired)
		} else {
			prof, err := p.FetchProfile(ctx, access)
			if err == nil {
				return prof.Followers, models.VerificationMethodAPI, flags, nil
			}
			s.log.Info("profile fetch failed", zap.String("connection_id", c.ID.String()), zap.Error(err))
		}
	}

	if pc, ok := p.(publicCounter); hasProvider && ok {
		n, err := pc.PublicFollowers(ctx, c.Handle)
		if err == nil && n > 0 {
			return n, models.VerificationMethodAPI, flags, nil
		}
	}

	if s.scraper != nil {
		n, err := s.scraper.FetchFollowers(ctx, c.Platform, c.Handle)
		if err == nil {
			return n, models.VerificationMethodAuto, flags, nil
		}
		return 0, "", flags, err
	}
	return 0, "", flags, social.ErrCountUnavailable
}

// freshToken returns a usable access token, refreshing an expired one.
func (s *SocialService) freshToken(ctx context.Context, p social.Provider, c *models.PlatformConnection) (string, error) {
	if c.TokenExpiresAt == nil || time.Now().Before(*c.TokenExpiresAt) {
		return *c.AccessToken, nil
	}
	refresh := ""
	if c.RefreshToken != nil {
		refresh = *c.RefreshToken
	}
	tok, err := p.Refresh(ctx, refresh)
	if err != nil {
		return "", err
	}
	if err := s.store.UpdateTokens(ctx, c.ID, tok.AccessToken, tok.RefreshTokenPtr(), tok.ExpiresAt()); err != nil {
		return "", err
	}
	return tok.AccessToken, nil
}

// ReverifyStale re-checks connections not verified within the configured
// interval and returns how many were processed.
func (s *SocialService) ReverifyStale(ctx context.Context, limit int) (int, error) {
	stale, err := s.store.ListStale(ctx, time.Now().Add(-s.policy.ReverifyInterval), limit)
	if err != nil {
		return 0, err
	}

	var done atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.policy.Concurrency)
	for i := range stale {
		c := &stale[i]
		g.Go(func() error {
			if _, err := s.Reverify(gctx, c); err != nil {
				s.log.Warn("reverify failed", zap.String("connection_id", c.ID.String()), zap.Error(err))
				return nil
			}
			done.Add(1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return int(done.Load()), err
	}
	return int(done.Load()), ctx.Err()
}

// EvaluateApproval approves a pending influencer that has a niche, a
// primary platform and at least one verified connection meeting that
// platform's follower minimum. It reports whether the influencer is
// approved afterwards.
func (s *SocialService) EvaluateApproval(ctx context.Context, influencerID uuid.UUID) (bool, error) {
	inf, err := s.profiles.GetInfluencer(ctx, influencerID)
	if err != nil {
		return false, err
	}
	switch inf.VerificationStatus {
	case models.InfluencerStatusApproved:
		return true, nil
	case models.InfluencerStatusPending, models.InfluencerStatusRequestInfo:
	default:
		return false, nil
	}
	if inf.Niche == nil || *inf.Niche == "" || inf.PrimaryPlatform == nil || *inf.PrimaryPlatform == "" {
		return false, nil
	}

	conns, err := s.store.ListByInfluencer(ctx, influencerID)
	if err != nil {
		return false, err
	}
	qualified := false
	for i := range conns {
		c := &conns[i]
		if !c.IsVerified() {
			continue
		}
		ps, err := s.settings.Get(ctx, c.Platform)
		if err != nil {
			return false, err
		}
		if ps.IsActive && c.EffectiveFollowers() >= ps.MinimumFollowers {
			qualified = true
			break
		}
	}
	if !qualified {
		return false, nil
	}

	if err := s.profiles.SetVerificationStatus(ctx, models.RoleInfluencer, influencerID, models.InfluencerStatusApproved, nil); err != nil {
		return false, err
	}
	notify(ctx, s.notify, s.log, influencerID, models.NotifyAccountStatus,
		"Account approved",
		"Your account is approved. Matching campaigns now show in your feed.",
		"/feed")
	audit(ctx, s.audit, s.log, models.AuditLog{
		ActorType:  models.ActorSystem,
		Action:     "influencer_auto_approved",
		EntityType: "influencer",
		EntityID:   &influencerID,
	})
	s.log.Info("influencer auto-approved", zap.String("influencer_id", influencerID.String()))
	return true, nil
}

// FlagSuspicious marks verified connections that need a manual look and
// returns how many were flagged. Status is left alone so an admin decides.
func (s *SocialService) FlagSuspicious(ctx context.Context, limit int) (int, error) {
	candidates, err := s.store.ListReviewCandidates(ctx, s.policy.HighFollowers, limit)
	if err != nil {
		return 0, err
	}

	flagged := 0
	for i := range candidates {
		if ctx.Err() != nil {
			return flagged, ctx.Err()
		}
		c := &candidates[i]
		reasons := c.SuspicionReasons(s.policy.HighFollowers, s.policy.DiscrepancyMin, s.policy.DiscrepancyPct)
		if len(reasons) == 0 {
			continue
		}
		flags := append([]string{models.FlagSuspicious}, c.VerificationFlags...)
		for _, r := range reasons {
			if !c.HasFlag(r) {
				flags = append(flags, r)
			}
		}
		if err := s.store.SetFlags(ctx, c.ID, flags); err != nil {
			return flagged, err
		}
		flagged++
		audit(ctx, s.audit, s.log, models.AuditLog{
			ActorType:  models.ActorSystem,
			Action:     "connection_flagged",
			EntityType: "platform_connection",
			EntityID:   &c.ID,
			Meta: map[string]any{
				"influencer_id": c.InfluencerID.String(),
				"platform":      c.Platform,
				"followers":     c.FollowersCount,
				"reasons":       reasons,
			},
		})
		s.log.Warn("suspicious connection flagged",
			zap.String("connection_id", c.ID.String()),
			zap.String("platform", c.Platform),
			zap.String("handle", c.Handle),
			zap.Int("followers", c.FollowersCount),
			zap.Strings("reasons", reasons))
	}
	return flagged, nil
}
