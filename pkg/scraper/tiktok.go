package scraper

import (
	"context"
	"html"
	"regexp"
	"strconv"
	"strings"

	errs "followwatch/pkg/errors"
	"followwatch/pkg/logger"
	"followwatch/pkg/models"
	"followwatch/pkg/session"
)

// TikTokOrigin is the public TikTok origin
const TikTokOrigin = "https://www.tiktok.com"

var (
	tiktokFollowerCount  = regexp.MustCompile(`"followerCount":\s*(\d+)`)
	tiktokFollowingCount = regexp.MustCompile(`"followingCount":\s*(\d+)`)
	tiktokPrivate        = regexp.MustCompile(`"privateAccount":\s*true`)
	tiktokStatusCode     = regexp.MustCompile(`"statusCode":\s*(\d+)`)

	// rendered markup used when the hydration JSON is missing
	tiktokFollowersMarkup = regexp.MustCompile(`data-e2e="followers-count"[^>]*>([^<]+)<`)
	tiktokFollowingMarkup = regexp.MustCompile(`data-e2e="following-count"[^>]*>([^<]+)<`)
)

// tiktokUserNotFound is the statusCode TikTok embeds for unknown users
const tiktokUserNotFound = 10202

// TikTok scrapes the counts embedded in a profile page. It never returns
// follower identifiers.
type TikTok struct {
	httpBase
}

// NewTikTok creates the TikTok scraper
func NewTikTok(opts Options, sessions *session.Manager, log logger.Logger) *TikTok {
	return &TikTok{httpBase: newHTTPBase(models.PlatformTikTok, TikTokOrigin, "sessionid", opts, sessions, log)}
}

// Platform implements Scraper
func (s *TikTok) Platform() models.Platform { return models.PlatformTikTok }

// Fetch implements Scraper
func (s *TikTok) Fetch(ctx context.Context, account models.ScraperAccount, locator string) (*Result, error) {
	username, err := UsernameFromURL(models.PlatformTikTok, locator)
	if err != nil {
		return nil, errs.ScrapeFailed(errs.ReasonNotFound, "invalid profile locator", err)
	}

	fc, err := s.clientFor(account)
	if err != nil {
		return nil, err
	}

	body, err := s.get(ctx, fc, s.site.JoinPath("@"+username).String(), map[string]string{
		"Accept": "text/html,application/xhtml+xml",
	})
	if err != nil {
		return nil, err
	}

	result, err := parseTikTokProfile(string(body))
	if err != nil {
		return nil, err
	}
	result.Username = username
	result.SessionHandle = s.saveSession(fc)
	return result, nil
}

// parseTikTokProfile extracts counts from the page's hydration JSON, falling
// back to the rendered count elements
func parseTikTokProfile(page string) (*Result, error) {
	if m := tiktokStatusCode.FindStringSubmatch(page); m != nil {
		if code, _ := strconv.Atoi(m[1]); code == tiktokUserNotFound {
			return nil, errs.ScrapeFailed(errs.ReasonNotFound, "profile not found", nil)
		}
	}
	if tiktokPrivate.MatchString(page) {
		return nil, errs.ScrapeFailed(errs.ReasonPrivate, "profile is private", nil)
	}

	followers, okFollowers := jsonCount(tiktokFollowerCount, page)
	following, okFollowing := jsonCount(tiktokFollowingCount, page)
	if !okFollowers || !okFollowing {
		var err error
		if followers, err = markupCount(tiktokFollowersMarkup, page); err != nil {
			return nil, err
		}
		if following, err = markupCount(tiktokFollowingMarkup, page); err != nil {
			return nil, err
		}
	}

	return &Result{FollowerCount: followers, FollowingCount: following}, nil
}

func jsonCount(re *regexp.Regexp, page string) (int, bool) {
	m := re.FindStringSubmatch(page)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	return n, err == nil
}

func markupCount(re *regexp.Regexp, page string) (int, error) {
	m := re.FindStringSubmatch(page)
	if m == nil {
		return 0, errs.ScrapeFailed(errs.ReasonNotFound, "no profile data on page", nil)
	}
	n, err := ParseCount(html.UnescapeString(strings.TrimSpace(m[1])))
	if err != nil {
		return 0, errs.ScrapeFailed(errs.ReasonParseFailed, "unreadable count", err)
	}
	return n, nil
}
