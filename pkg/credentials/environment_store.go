package credentials

import (
	"os"
	"regexp"
	"strings"
)

var envUnsafe = regexp.MustCompile(`[^A-Z0-9]+`)

// EnvironmentStore reads secrets from FOLLOWWATCH_<PLATFORM>_<USERNAME>_SECRET.
// It is read-only.
type EnvironmentStore struct {
	lookup func(string) (string, bool)
}

// NewEnvironmentStore creates a store over the process environment
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{lookup: os.LookupEnv}
}

// EnvVar returns the variable name consulted for an account
func EnvVar(platform, username string) string {
	name := strings.ToUpper(platform + "_" + username)
	return "FOLLOWWATCH_" + envUnsafe.ReplaceAllString(name, "_") + "_SECRET"
}

// Put implements Store
func (e *EnvironmentStore) Put(platform, username, secret string) error {
	return ErrReadOnly
}

// Get implements Store
func (e *EnvironmentStore) Get(platform, username string) (string, error) {
	if v, ok := e.lookup(EnvVar(platform, username)); ok && v != "" {
		return v, nil
	}
	return "", ErrNotFound
}

// Delete implements Store
func (e *EnvironmentStore) Delete(platform, username string) error {
	return ErrReadOnly
}
