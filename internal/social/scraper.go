package social

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/pushit/marketplace/internal/models"
	"go.uber.org/zap"
)

// Scraper reads follower counts off public profile pages. It is the
// fallback for connections without a working API token.
type Scraper struct {
	httpClient *http.Client
	log        *zap.Logger
	maxRetries int
	profileURL func(platform, handle string) string
}

func NewScraper(timeout time.Duration, maxRetries int, log *zap.Logger) *Scraper {
	return &Scraper{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log:        log,
		maxRetries: maxRetries,
		profileURL: publicProfileURL,
	}
}

func publicProfileURL(platform, handle string) string {
	handle = strings.TrimPrefix(strings.TrimSpace(handle), "@")
	switch platform {
	case models.PlatformInstagram:
		return "https://www.instagram.com/" + handle + "/"
	case models.PlatformTikTok:
		return "https://www.tiktok.com/@" + handle
	case models.PlatformYouTube:
		return "https://www.youtube.com/@" + handle + "/about"
	case models.PlatformFacebook:
		return "https://www.facebook.com/" + handle
	}
	return ""
}

// FetchFollowers returns the follower count shown on the public page.
func (s *Scraper) FetchFollowers(ctx context.Context, platform, handle string) (int, error) {
	pageURL := s.profileURL(platform, handle)
	if pageURL == "" {
		return 0, fmt.Errorf("unsupported platform %q", platform)
	}

	doc, err := s.fetch(ctx, pageURL)
	if err != nil {
		return 0, err
	}
	n := parseFollowers(doc, platform)
	if n <= 0 {
		return 0, ErrCountUnavailable
	}
	return n, nil
}

func (s *Scraper) fetch(ctx context.Context, pageURL string) (*goquery.Document, error) {
	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
		req.Header.Set("Accept-Language", "en-US,en;q=0.9")

		resp, err := s.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		if resp.StatusCode != http.StatusOK {
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			lastErr = fmt.Errorf("HTTP %d for %s", resp.StatusCode, pageURL)
			if resp.StatusCode == http.StatusNotFound {
				break
			}
			continue
		}

		doc, err := goquery.NewDocumentFromReader(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}
		return doc, nil
	}
	s.log.Debug("profile page fetch failed", zap.String("url", pageURL), zap.Error(lastErr))
	return nil, lastErr
}

var followerPhraseRE = regexp.MustCompile(`(?i)([\d][\d,.]*\s?[KkMm]?)\s+(followers|subscribers)`)

// parseFollowers tries the platform's dedicated element first and then the
// share metadata, which most platforms fill with "N Followers".
func parseFollowers(doc *goquery.Document, platform string) int {
	if platform == models.PlatformTikTok {
		if n := parseCount(doc.Find(`strong[data-e2e="followers-count"]`).First().Text()); n > 0 {
			return n
		}
	}

	for _, sel := range []string{`meta[property="og:description"]`, `meta[name="description"]`} {
		content, ok := doc.Find(sel).First().Attr("content")
		if !ok {
			continue
		}
		if m := followerPhraseRE.FindStringSubmatch(content); m != nil {
			if n := parseCount(m[1]); n > 0 {
				return n
			}
		}
	}

	if m := followerPhraseRE.FindStringSubmatch(doc.Find("body").Text()); m != nil {
		return parseCount(m[1])
	}
	return 0
}

var countRE = regexp.MustCompile(`[\d,.]+[KkMm]?`)

func parseCount(text string) int {
	text = strings.ReplaceAll(text, " ", "")
	text = strings.ReplaceAll(text, ",", "")

	match := countRE.FindString(text)
	if match == "" {
		return 0
	}

	multiplier := 1.0
	switch match[len(match)-1] {
	case 'K', 'k':
		multiplier = 1e3
		match = match[:len(match)-1]
	case 'M', 'm':
		multiplier = 1e6
		match = match[:len(match)-1]
	}

	f, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0
	}
	return int(f*multiplier + 0.5)
}
