package social

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/pushit/marketplace/internal/config"
	"github.com/pushit/marketplace/internal/models"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

var (
	ErrRefreshUnsupported = errors.New("provider does not issue refresh tokens")
	ErrNoAccount          = errors.New("no eligible account on this login")
	ErrCountUnavailable   = errors.New("follower count unavailable")
)

// Token is an OAuth credential as stored on a platform connection.
type Token struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
}

func (t *Token) ExpiresAt() *time.Time {
	if t.Expiry.IsZero() {
		return nil
	}
	e := t.Expiry
	return &e
}

func (t *Token) RefreshTokenPtr() *string {
	if t.RefreshToken == "" {
		return nil
	}
	r := t.RefreshToken
	return &r
}

// Provider is one social platform's OAuth login plus its profile API.
type Provider interface {
	Platform() string
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*Token, error)
	Refresh(ctx context.Context, refreshToken string) (*Token, error)
	FetchProfile(ctx context.Context, accessToken string) (*models.SocialProfile, error)
}

type Registry struct {
	providers map[string]Provider
}

func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		r.providers[p.Platform()] = p
	}
	return r
}

func (r *Registry) Get(platform string) (Provider, bool) {
	p, ok := r.providers[platform]
	return p, ok
}

// Platforms lists the platforms with a configured provider.
func (r *Registry) Platforms() []string {
	out := make([]string, 0, len(r.providers))
	for p := range r.providers {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// RedirectURL is where a platform sends the browser back after consent.
func RedirectURL(baseURL, platform string) string {
	return fmt.Sprintf("%s/api/v1/social/%s/callback", baseURL, platform)
}

// DefaultProviders builds every provider whose credentials are configured.
func DefaultProviders(cfg *config.Config, log *zap.Logger) []Provider {
	httpClient := &http.Client{Timeout: cfg.SocialFetchTimeout}
	var out []Provider
	if cfg.FacebookAppID != "" && cfg.FacebookAppSecret != "" {
		out = append(out,
			NewFacebookProvider(cfg.FacebookAppID, cfg.FacebookAppSecret, RedirectURL(cfg.OAuthRedirectBaseURL, models.PlatformFacebook), httpClient),
			NewInstagramProvider(cfg.FacebookAppID, cfg.FacebookAppSecret, RedirectURL(cfg.OAuthRedirectBaseURL, models.PlatformInstagram), httpClient),
		)
	}
	if cfg.GoogleClientID != "" && cfg.GoogleClientSecret != "" {
		out = append(out, NewYouTubeProvider(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.YouTubeAPIKey,
			RedirectURL(cfg.OAuthRedirectBaseURL, models.PlatformYouTube), httpClient))
	}
	if cfg.TikTokClientKey != "" && cfg.TikTokClientSecret != "" {
		out = append(out, NewTikTokProvider(cfg.TikTokClientKey, cfg.TikTokClientSecret,
			RedirectURL(cfg.OAuthRedirectBaseURL, models.PlatformTikTok), httpClient))
	}
	for _, p := range out {
		log.Info("social provider enabled", zap.String("platform", p.Platform()))
	}
	return out
}

// oauthBase covers the providers that speak standard OAuth2.
type oauthBase struct {
	conf       *oauth2.Config
	httpClient *http.Client
}

func (b *oauthBase) AuthCodeURL(state string) string {
	return b.conf.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

func (b *oauthBase) Exchange(ctx context.Context, code string) (*Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, b.httpClient)
	t, err := b.conf.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}
	return fromOAuth2(t), nil
}

func (b *oauthBase) Refresh(ctx context.Context, refreshToken string) (*Token, error) {
	if refreshToken == "" {
		return nil, ErrRefreshUnsupported
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, b.httpClient)
	t, err := b.conf.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return nil, fmt.Errorf("refresh token: %w", err)
	}
	return fromOAuth2(t), nil
}

func fromOAuth2(t *oauth2.Token) *Token {
	return &Token{AccessToken: t.AccessToken, RefreshToken: t.RefreshToken, Expiry: t.Expiry}
}

// getJSON issues an authenticated GET and decodes the JSON body.
func getJSON(ctx context.Context, client *http.Client, url, bearer string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("platform api unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("platform api returned %d: %s", resp.StatusCode, string(body))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
