// Package session persists the cookies of scraper accounts between scrapes.
//
// Each account has a session handle, a file name inside the session
// directory. A scraper seeds its cookie jar from that file before a request
// and writes the jar back after a successful one.
package session
