// Package credentials stores the secrets of scraper accounts outside the
// database. The system keychain is preferred; environment variables are a
// read-only fallback for headless hosts.
package credentials
