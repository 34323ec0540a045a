package social

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pushit/marketplace/internal/models"
)

const (
	tiktokAuthURL = "https://www.tiktok.com/v2/auth/authorize/"
	tiktokAPIURL  = "https://open.tiktokapis.com"
)

// TikTokProvider implements Login Kit v2, which names the client id
// client_key and so cannot go through oauth2.Config.
type TikTokProvider struct {
	clientKey    string
	clientSecret string
	redirectURL  string
	authURL      string
	apiURL       string
	httpClient   *http.Client
}

func NewTikTokProvider(clientKey, clientSecret, redirectURL string, httpClient *http.Client) *TikTokProvider {
	return &TikTokProvider{
		clientKey:    clientKey,
		clientSecret: clientSecret,
		redirectURL:  redirectURL,
		authURL:      tiktokAuthURL,
		apiURL:       tiktokAPIURL,
		httpClient:   httpClient,
	}
}

func (p *TikTokProvider) Platform() string { return models.PlatformTikTok }

func (p *TikTokProvider) AuthCodeURL(state string) string {
	q := url.Values{
		"client_key":    {p.clientKey},
		"response_type": {"code"},
		"scope":         {"user.info.basic,user.info.profile,user.info.stats"},
		"redirect_uri":  {p.redirectURL},
		"state":         {state},
	}
	return p.authURL + "?" + q.Encode()
}

type tiktokToken struct {
	AccessToken      string `json:"access_token"`
	RefreshToken     string `json:"refresh_token"`
	ExpiresIn        int    `json:"expires_in"`
	OpenID           string `json:"open_id"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func (p *TikTokProvider) Exchange(ctx context.Context, code string) (*Token, error) {
	return p.token(ctx, url.Values{
		"grant_type":   {"authorization_code"},
		"code":         {code},
		"redirect_uri": {p.redirectURL},
	})
}

func (p *TikTokProvider) Refresh(ctx context.Context, refreshToken string) (*Token, error) {
	if refreshToken == "" {
		return nil, ErrRefreshUnsupported
	}
	return p.token(ctx, url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	})
}

func (p *TikTokProvider) token(ctx context.Context, form url.Values) (*Token, error) {
	form.Set("client_key", p.clientKey)
	form.Set("client_secret", p.clientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL+"/v2/oauth/token/", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tiktok token endpoint unavailable: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var t tiktokToken
	if err := json.Unmarshal(body, &t); err != nil {
		return nil, fmt.Errorf("tiktok token response: %w", err)
	}
	if t.Error != "" || t.AccessToken == "" {
		return nil, fmt.Errorf("tiktok token error %q: %s", t.Error, t.ErrorDescription)
	}

	tok := &Token{AccessToken: t.AccessToken, RefreshToken: t.RefreshToken}
	if t.ExpiresIn > 0 {
		tok.Expiry = time.Now().Add(time.Duration(t.ExpiresIn) * time.Second)
	}
	return tok, nil
}

type tiktokUserInfo struct {
	Data struct {
		User struct {
			OpenID        string `json:"open_id"`
			Username      string `json:"username"`
			DisplayName   string `json:"display_name"`
			FollowerCount *int   `json:"follower_count"`
		} `json:"user"`
	} `json:"data"`
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (p *TikTokProvider) FetchProfile(ctx context.Context, accessToken string) (*models.SocialProfile, error) {
	u := p.apiURL + "/v2/user/info/?" + url.Values{"fields": {"open_id,username,display_name,follower_count"}}.Encode()

	var info tiktokUserInfo
	if err := getJSON(ctx, p.httpClient, u, accessToken, &info); err != nil {
		return nil, err
	}
	if info.Error.Code != "" && info.Error.Code != "ok" {
		return nil, fmt.Errorf("tiktok user info %s: %s", info.Error.Code, info.Error.Message)
	}
	user := info.Data.User
	if user.FollowerCount == nil {
		return nil, ErrCountUnavailable
	}
	handle := user.Username
	if handle == "" {
		handle = user.DisplayName
	}
	return &models.SocialProfile{PlatformUserID: user.OpenID, Handle: handle, Followers: *user.FollowerCount}, nil
}
