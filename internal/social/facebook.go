package social

import (
	"context"
	"net/http"
	"net/url"

	"github.com/pushit/marketplace/internal/models"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/facebook"
)

const graphBaseURL = "https://graph.facebook.com/v18.0"

// GraphProvider logs in through Facebook and reads either the first
// managed page or the Instagram business account linked to it.
type GraphProvider struct {
	oauthBase
	platform string
	graphURL string
}

func NewFacebookProvider(appID, appSecret, redirectURL string, httpClient *http.Client) *GraphProvider {
	return newGraphProvider(models.PlatformFacebook, appID, appSecret, redirectURL,
		[]string{"pages_show_list", "pages_read_engagement"}, httpClient)
}

func NewInstagramProvider(appID, appSecret, redirectURL string, httpClient *http.Client) *GraphProvider {
	return newGraphProvider(models.PlatformInstagram, appID, appSecret, redirectURL,
		[]string{"instagram_basic", "pages_show_list", "business_management"}, httpClient)
}

func newGraphProvider(platform, appID, appSecret, redirectURL string, scopes []string, httpClient *http.Client) *GraphProvider {
	return &GraphProvider{
		oauthBase: oauthBase{
			conf: &oauth2.Config{
				ClientID:     appID,
				ClientSecret: appSecret,
				RedirectURL:  redirectURL,
				Scopes:       scopes,
				Endpoint:     facebook.Endpoint,
			},
			httpClient: httpClient,
		},
		platform: platform,
		graphURL: graphBaseURL,
	}
}

func (p *GraphProvider) Platform() string { return p.platform }

// Facebook access tokens are long lived and come without a refresh token.
func (p *GraphProvider) Refresh(ctx context.Context, refreshToken string) (*Token, error) {
	return nil, ErrRefreshUnsupported
}

type graphPages struct {
	Data []struct {
		ID             string `json:"id"`
		Name           string `json:"name"`
		Username       string `json:"username"`
		FollowersCount int    `json:"followers_count"`
		FanCount       int    `json:"fan_count"`
		Instagram      *struct {
			ID             string `json:"id"`
			Username       string `json:"username"`
			FollowersCount int    `json:"followers_count"`
		} `json:"instagram_business_account"`
	} `json:"data"`
}

func (p *GraphProvider) FetchProfile(ctx context.Context, accessToken string) (*models.SocialProfile, error) {
	fields := "id,name,username,followers_count,fan_count"
	if p.platform == models.PlatformInstagram {
		fields = "id,name,instagram_business_account{id,username,followers_count}"
	}
	u := p.graphURL + "/me/accounts?" + url.Values{"fields": {fields}}.Encode()

	var pages graphPages
	if err := getJSON(ctx, p.httpClient, u, accessToken, &pages); err != nil {
		return nil, err
	}

	for _, page := range pages.Data {
		if p.platform == models.PlatformInstagram {
			if page.Instagram == nil {
				continue
			}
			return &models.SocialProfile{
				PlatformUserID: page.Instagram.ID,
				Handle:         page.Instagram.Username,
				Followers:      page.Instagram.FollowersCount,
			}, nil
		}

		handle := page.Username
		if handle == "" {
			handle = page.Name
		}
		followers := page.FollowersCount
		if followers == 0 {
			followers = page.FanCount
		}
		return &models.SocialProfile{PlatformUserID: page.ID, Handle: handle, Followers: followers}, nil
	}
	return nil, ErrNoAccount
}
