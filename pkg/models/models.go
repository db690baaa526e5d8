package models

import (
	"fmt"
	"strings"
	"time"
)

// Platform tags the social network a target or account belongs to
type Platform string

const (
	PlatformInstagram Platform = "instagram"
	PlatformTikTok    Platform = "tiktok"
)

// ParsePlatform normalizes a platform tag
func ParsePlatform(s string) (Platform, error) {
	p := Platform(strings.ToLower(strings.TrimSpace(s)))
	switch p {
	case PlatformInstagram, PlatformTikTok:
		return p, nil
	default:
		return "", fmt.Errorf("unknown platform: %q", s)
	}
}

func (p Platform) String() string {
	return string(p)
}

// Title returns the display name of the platform
func (p Platform) Title() string {
	switch p {
	case PlatformInstagram:
		return "Instagram"
	case PlatformTikTok:
		return "TikTok"
	default:
		if p == "" {
			return ""
		}
		return strings.ToUpper(string(p[:1])) + string(p[1:])
	}
}

// TrackedTarget is a profile a user wants periodically checked
type TrackedTarget struct {
	ID            int64      `json:"id"`
	OwnerID       string     `json:"owner_id"`
	Platform      Platform   `json:"platform"`
	ProfileURL    string     `json:"profile_url"`
	Username      string     `json:"username,omitempty"`
	Active        bool       `json:"active"`
	LastCheckedAt *time.Time `json:"last_checked_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// DisplayName prefers the cached username over the raw URL
func (t TrackedTarget) DisplayName() string {
	if t.Username != "" {
		return "@" + t.Username
	}
	return t.ProfileURL
}

// ScraperAccount is a credentialed identity used to perform scrapes
type ScraperAccount struct {
	ID            int64      `json:"id"`
	Platform      Platform   `json:"platform"`
	Username      string     `json:"username"`
	Credentials   string     `json:"-"`
	Proxy         string     `json:"proxy,omitempty"`
	Active        bool       `json:"active"`
	LastUsedAt    *time.Time `json:"last_used_at,omitempty"`
	SessionHandle string     `json:"session_handle,omitempty"`
}

// Snapshot is one immutable observation of a target. A nil Followers or
// Following slice means the scraper could not provide that set.
type Snapshot struct {
	ID             int64     `json:"id"`
	TargetID       int64     `json:"target_id"`
	Timestamp      time.Time `json:"timestamp"`
	FollowerCount  int       `json:"follower_count"`
	FollowingCount int       `json:"following_count"`
	Followers      []string  `json:"followers,omitempty"`
	Following      []string  `json:"following,omitempty"`
}

// HasFollowerSet reports whether follower identifiers were captured
func (s Snapshot) HasFollowerSet() bool {
	return s.Followers != nil
}

// HasFollowingSet reports whether following identifiers were captured
func (s Snapshot) HasFollowingSet() bool {
	return s.Following != nil
}
