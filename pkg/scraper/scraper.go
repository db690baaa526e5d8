package scraper

import (
	"context"
	"net/http"
	"time"

	"followwatch/pkg/config"
	"followwatch/pkg/models"
)

// Scraper fetches one observation of a profile
type Scraper interface {
	Platform() models.Platform
	Fetch(ctx context.Context, account models.ScraperAccount, locator string) (*Result, error)
}

// Result is what a scraper observed. Followers and Following are nil when
// the identifiers could not be collected.
type Result struct {
	Username       string
	FollowerCount  int
	FollowingCount int
	Followers      []string
	Following      []string
	// SessionHandle is set when the account's session was written back
	SessionHandle string
}

// Options holds settings shared by the HTTP scrapers
type Options struct {
	UserAgent         string
	RequestsPerMinute int
	BurstSize         int
	MaxRetries        int
	RetryDelay        time.Duration
	FetchLists        bool
	MaxListSize       int

	// BaseURL overrides the platform origin, used by tests
	BaseURL string
	// Transport is the base round tripper; nil uses a clone of http.DefaultTransport
	Transport http.RoundTripper
}

// OptionsFromConfig maps the scraper section of the configuration
func OptionsFromConfig(cfg config.ScraperConfig) Options {
	return Options{
		UserAgent:         cfg.UserAgent,
		RequestsPerMinute: cfg.RequestsPerMinute,
		BurstSize:         cfg.BurstSize,
		MaxRetries:        cfg.MaxRetries,
		RetryDelay:        cfg.RetryDelay,
		FetchLists:        cfg.FetchLists,
		MaxListSize:       cfg.MaxListSize,
	}
}

// Registry maps platform tags to scrapers
type Registry struct {
	scrapers map[models.Platform]Scraper
}

// NewRegistry registers the given scrapers by their platform
func NewRegistry(scrapers ...Scraper) *Registry {
	r := &Registry{scrapers: make(map[models.Platform]Scraper, len(scrapers))}
	for _, s := range scrapers {
		r.Register(s)
	}
	return r
}

// Register adds or replaces the scraper for s.Platform()
func (r *Registry) Register(s Scraper) {
	r.scrapers[s.Platform()] = s
}

// Get returns the scraper for platform
func (r *Registry) Get(platform models.Platform) (Scraper, bool) {
	s, ok := r.scrapers[platform]
	return s, ok
}

// Platforms lists the registered platforms
func (r *Registry) Platforms() []models.Platform {
	out := make([]models.Platform, 0, len(r.scrapers))
	for p := range r.scrapers {
		out = append(out, p)
	}
	return out
}
