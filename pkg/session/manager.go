package session

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"
)

// File is the on-disk form of one account session
type File struct {
	Site    string    `json:"site"`
	SavedAt time.Time `json:"saved_at"`
	Cookies []Cookie  `json:"cookies"`
}

// Cookie is the persisted part of an http.Cookie
type Cookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9_.-]+`)

// Manager keeps per-account cookie files in one directory
type Manager struct {
	dir string
	mu  sync.Mutex
	now func() time.Time
}

// NewManager creates a session manager rooted at dir
func NewManager(dir string) (*Manager, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}
	return &Manager{dir: dir, now: time.Now}, nil
}

// HandleFor derives the session handle of an account
func HandleFor(platform, username string) string {
	name := strings.ToLower(platform + "_" + username)
	return unsafeChars.ReplaceAllString(name, "_") + ".json"
}

func (m *Manager) path(handle string) (string, error) {
	if handle == "" || filepath.Base(handle) != handle {
		return "", fmt.Errorf("invalid session handle %q", handle)
	}
	return filepath.Join(m.dir, handle), nil
}

// Exists reports whether a session file for handle is present
func (m *Manager) Exists(handle string) bool {
	p, err := m.path(handle)
	if err != nil {
		return false
	}
	_, err = os.Stat(p)
	return err == nil
}

// Load reads the session file for handle. A missing file is not an error:
// it returns nil.
func (m *Manager) Load(handle string) (*File, error) {
	p, err := m.path(handle)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := os.ReadFile(p)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse session file %s: %w", handle, err)
	}
	return &f, nil
}

// Save writes the cookies for site under handle. The write goes to a
// temporary file first and is renamed into place.
func (m *Manager) Save(handle string, site *url.URL, cookies []*http.Cookie) error {
	p, err := m.path(handle)
	if err != nil {
		return err
	}

	f := File{Site: site.String(), SavedAt: m.now().UTC()}
	for _, c := range cookies {
		f.Cookies = append(f.Cookies, Cookie{Name: c.Name, Value: c.Value})
	}

	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	tempFile := p + ".tmp"
	if err := os.WriteFile(tempFile, data, 0600); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to write temporary session file: %w", err)
	}
	if err := os.Rename(tempFile, p); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to rename temporary session file: %w", err)
	}
	return nil
}

// Remove deletes the session file for handle
func (m *Manager) Remove(handle string) error {
	p, err := m.path(handle)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove session file: %w", err)
	}
	return nil
}

// Jar builds a cookie jar for site seeded from the stored session, if any
func (m *Manager) Jar(handle string, site *url.URL) (http.CookieJar, bool, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, false, err
	}

	f, err := m.Load(handle)
	if err != nil || f == nil || len(f.Cookies) == 0 {
		return jar, false, err
	}

	cookies := make([]*http.Cookie, 0, len(f.Cookies))
	for _, c := range f.Cookies {
		cookies = append(cookies, &http.Cookie{Name: c.Name, Value: c.Value, Path: "/"})
	}
	jar.SetCookies(site, cookies)
	return jar, true, nil
}

// Dir returns the session directory
func (m *Manager) Dir() string {
	return m.dir
}
