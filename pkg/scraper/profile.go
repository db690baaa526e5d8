package scraper

import (
	"fmt"
	"regexp"
	"strings"

	"followwatch/pkg/models"
)

var profilePatterns = map[models.Platform]*regexp.Regexp{
	models.PlatformTikTok:    regexp.MustCompile(`^https?://(www\.)?tiktok\.com/@([a-zA-Z0-9_.-]+)/?$`),
	models.PlatformInstagram: regexp.MustCompile(`^https?://(www\.)?instagram\.com/([a-zA-Z0-9_.-]+)/?$`),
}

// UsernameFromURL validates a profile URL for platform and returns the username
func UsernameFromURL(platform models.Platform, profileURL string) (string, error) {
	re, ok := profilePatterns[platform]
	if !ok {
		return "", fmt.Errorf("unsupported platform %q", platform)
	}
	m := re.FindStringSubmatch(strings.TrimSpace(profileURL))
	if m == nil {
		return "", fmt.Errorf("not a %s profile URL: %q", platform.Title(), profileURL)
	}
	return m[2], nil
}

// DetectPlatform finds the platform whose profile URL format matches
func DetectPlatform(profileURL string) (models.Platform, string, error) {
	for _, p := range []models.Platform{models.PlatformInstagram, models.PlatformTikTok} {
		if username, err := UsernameFromURL(p, profileURL); err == nil {
			return p, username, nil
		}
	}
	return "", "", fmt.Errorf("unrecognised profile URL: %q", profileURL)
}
