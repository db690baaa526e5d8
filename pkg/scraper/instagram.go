package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	errs "followwatch/pkg/errors"
	"followwatch/pkg/logger"
	"followwatch/pkg/models"
	"followwatch/pkg/session"
)

const (
	// InstagramOrigin is the public Instagram origin
	InstagramOrigin = "https://www.instagram.com"

	instagramProfileEndpoint = "/api/v1/users/web_profile_info/"
	instagramAppID           = "936619743392459"
	instagramPageSize        = 50
)

// instagramProfileResponse is the web_profile_info payload
type instagramProfileResponse struct {
	RequiresToLogin bool   `json:"requires_to_login"`
	Status          string `json:"status"`
	Data            struct {
		User *instagramUser `json:"user"`
	} `json:"data"`
}

type instagramUser struct {
	ID               string `json:"id"`
	Username         string `json:"username"`
	IsPrivate        bool   `json:"is_private"`
	FollowedByViewer bool   `json:"followed_by_viewer"`
	EdgeFollowedBy   struct {
		Count int `json:"count"`
	} `json:"edge_followed_by"`
	EdgeFollow struct {
		Count int `json:"count"`
	} `json:"edge_follow"`
}

// instagramFriendshipsResponse is one page of a follower or following list
type instagramFriendshipsResponse struct {
	Users []struct {
		Username string `json:"username"`
	} `json:"users"`
	NextMaxID string `json:"next_max_id"`
	Status    string `json:"status"`
}

// Instagram scrapes profiles through the web profile JSON endpoint
type Instagram struct {
	httpBase
}

// NewInstagram creates the Instagram scraper
func NewInstagram(opts Options, sessions *session.Manager, log logger.Logger) *Instagram {
	return &Instagram{httpBase: newHTTPBase(models.PlatformInstagram, InstagramOrigin, "sessionid", opts, sessions, log)}
}

// Platform implements Scraper
func (s *Instagram) Platform() models.Platform { return models.PlatformInstagram }

func (s *Instagram) headers(referer string) map[string]string {
	return map[string]string{
		"Accept":           "*/*",
		"X-IG-App-ID":      instagramAppID,
		"X-Requested-With": "XMLHttpRequest",
		"Referer":          referer,
	}
}

// Fetch implements Scraper
func (s *Instagram) Fetch(ctx context.Context, account models.ScraperAccount, locator string) (*Result, error) {
	username, err := UsernameFromURL(models.PlatformInstagram, locator)
	if err != nil {
		return nil, errs.ScrapeFailed(errs.ReasonNotFound, "invalid profile locator", err)
	}

	fc, err := s.clientFor(account)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("username", username)
	endpoint := s.site.JoinPath(instagramProfileEndpoint).String() + "?" + params.Encode()
	referer := s.site.JoinPath(username).String() + "/"

	body, err := s.get(ctx, fc, endpoint, s.headers(referer))
	if err != nil {
		return nil, err
	}

	var resp instagramProfileResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, errs.ScrapeFailed(errs.ReasonParseFailed, "failed to parse profile JSON", err)
	}
	if resp.RequiresToLogin {
		return nil, errs.ScrapeFailedWithCode(errs.ReasonLoginFailed, http.StatusUnauthorized, "Instagram requires authentication to view this profile")
	}
	user := resp.Data.User
	if user == nil {
		return nil, errs.ScrapeFailed(errs.ReasonNotFound, "profile "+username+" not found", nil)
	}
	if user.IsPrivate && !user.FollowedByViewer {
		return nil, errs.ScrapeFailed(errs.ReasonPrivate, "profile "+username+" is private", nil)
	}

	result := &Result{
		Username:       user.Username,
		FollowerCount:  user.EdgeFollowedBy.Count,
		FollowingCount: user.EdgeFollow.Count,
	}
	if result.Username == "" {
		result.Username = username
	}

	if s.opts.FetchLists && user.ID != "" {
		result.Followers = s.fetchList(ctx, fc, user.ID, "followers", result.FollowerCount, referer)
		result.Following = s.fetchList(ctx, fc, user.ID, "following", result.FollowingCount, referer)
	}

	result.SessionHandle = s.saveSession(fc)
	return result, nil
}

// fetchList pages through a friendship list. It returns nil when the list
// is too large or could not be read completely.
func (s *Instagram) fetchList(ctx context.Context, fc *fetchClient, userID, kind string, expected int, referer string) []string {
	if s.opts.MaxListSize > 0 && expected > s.opts.MaxListSize {
		s.log.DebugWithFields("skipping list above size limit", map[string]interface{}{
			"list":  kind,
			"count": expected,
		})
		return nil
	}

	ids := []string{}
	maxID := ""
	for {
		params := url.Values{}
		params.Set("count", fmt.Sprint(instagramPageSize))
		if maxID != "" {
			params.Set("max_id", maxID)
		}
		endpoint := s.site.JoinPath("api", "v1", "friendships", userID, kind).String() + "/?" + params.Encode()

		body, err := s.get(ctx, fc, endpoint, s.headers(referer))
		if err != nil {
			s.log.WithError(err).WarnWithFields("list fetch failed", map[string]interface{}{"list": kind})
			return nil
		}
		var page instagramFriendshipsResponse
		if err := json.Unmarshal(body, &page); err != nil {
			s.log.WithError(err).WarnWithFields("list page unreadable", map[string]interface{}{"list": kind})
			return nil
		}
		for _, u := range page.Users {
			ids = append(ids, u.Username)
		}
		if page.NextMaxID == "" || len(page.Users) == 0 {
			return ids
		}
		if s.opts.MaxListSize > 0 && len(ids) > s.opts.MaxListSize {
			return nil
		}
		maxID = page.NextMaxID
	}
}
