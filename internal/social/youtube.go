package social

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/pushit/marketplace/internal/models"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const youtubeBaseURL = "https://www.googleapis.com/youtube/v3"

type YouTubeProvider struct {
	oauthBase
	apiKey  string
	baseURL string
}

func NewYouTubeProvider(clientID, clientSecret, apiKey, redirectURL string, httpClient *http.Client) *YouTubeProvider {
	return &YouTubeProvider{
		oauthBase: oauthBase{
			conf: &oauth2.Config{
				ClientID:     clientID,
				ClientSecret: clientSecret,
				RedirectURL:  redirectURL,
				Scopes:       []string{"https://www.googleapis.com/auth/youtube.readonly"},
				Endpoint:     google.Endpoint,
			},
			httpClient: httpClient,
		},
		apiKey:  apiKey,
		baseURL: youtubeBaseURL,
	}
}

func (p *YouTubeProvider) Platform() string { return models.PlatformYouTube }

type youtubeChannels struct {
	Items []struct {
		ID      string `json:"id"`
		Snippet struct {
			Title     string `json:"title"`
			CustomURL string `json:"customUrl"`
		} `json:"snippet"`
		Statistics struct {
			SubscriberCount       string `json:"subscriberCount"`
			HiddenSubscriberCount bool   `json:"hiddenSubscriberCount"`
		} `json:"statistics"`
	} `json:"items"`
}

func (p *YouTubeProvider) FetchProfile(ctx context.Context, accessToken string) (*models.SocialProfile, error) {
	u := p.baseURL + "/channels?" + url.Values{"part": {"snippet,statistics"}, "mine": {"true"}}.Encode()
	return p.fetchChannel(ctx, u, accessToken)
}

// PublicFollowers looks a channel up by handle with the API key, for
// connections without a usable token.
func (p *YouTubeProvider) PublicFollowers(ctx context.Context, handle string) (int, error) {
	if p.apiKey == "" {
		return 0, ErrCountUnavailable
	}
	if !strings.HasPrefix(handle, "@") {
		handle = "@" + handle
	}
	u := p.baseURL + "/channels?" + url.Values{
		"part":      {"snippet,statistics"},
		"forHandle": {handle},
		"key":       {p.apiKey},
	}.Encode()
	prof, err := p.fetchChannel(ctx, u, "")
	if err != nil {
		return 0, err
	}
	return prof.Followers, nil
}

func (p *YouTubeProvider) fetchChannel(ctx context.Context, u, accessToken string) (*models.SocialProfile, error) {
	var chans youtubeChannels
	if err := getJSON(ctx, p.httpClient, u, accessToken, &chans); err != nil {
		return nil, err
	}
	if len(chans.Items) == 0 {
		return nil, ErrNoAccount
	}
	ch := chans.Items[0]
	if ch.Statistics.HiddenSubscriberCount {
		return nil, ErrCountUnavailable
	}
	subs, err := strconv.Atoi(ch.Statistics.SubscriberCount)
	if err != nil {
		return nil, ErrCountUnavailable
	}
	handle := strings.TrimPrefix(ch.Snippet.CustomURL, "@")
	if handle == "" {
		handle = ch.Snippet.Title
	}
	return &models.SocialProfile{PlatformUserID: ch.ID, Handle: handle, Followers: subs}, nil
}
