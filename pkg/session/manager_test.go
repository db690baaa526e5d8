package session

import (
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleFor(t *testing.T) {
	assert.Equal(t, "instagram_watcher.one.json", HandleFor("instagram", "Watcher.One"))
	assert.Equal(t, "tiktok_a_b.json", HandleFor("tiktok", "a/b"))
}

func TestSaveLoadRoundTrip(t *testing.T) {
	m, err := NewManager(filepath.Join(t.TempDir(), "cookies"))
	require.NoError(t, err)

	site, _ := url.Parse("https://www.instagram.com/")
	handle := HandleFor("instagram", "watcher")

	require.NoError(t, m.Save(handle, site, []*http.Cookie{
		{Name: "sessionid", Value: "abc"},
		{Name: "csrftoken", Value: "tok"},
	}))
	assert.True(t, m.Exists(handle))

	info, err := os.Stat(filepath.Join(m.Dir(), handle))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	f, err := m.Load(handle)
	require.NoError(t, err)
	require.NotNil(t, f)
	assert.Equal(t, site.String(), f.Site)
	assert.Len(t, f.Cookies, 2)

	_, err = os.Stat(filepath.Join(m.Dir(), handle+".tmp"))
	assert.True(t, os.IsNotExist(err))
}

func TestLoadMissing(t *testing.T) {
	m, err := NewManager(t.TempDir())
	require.NoError(t, err)

	f, err := m.Load("absent.json")
	assert.NoError(t, err)
	assert.Nil(t, f)
}

func TestRejectsPathTraversal(t *testing.T) {
	m, err := NewManager(t.TempDir())
	require.NoError(t, err)

	_, err = m.Load("../etc/passwd")
	assert.Error(t, err)
	assert.Error(t, m.Save("", &url.URL{}, nil))
}

func TestJarSeededFromFile(t *testing.T) {
	m, err := NewManager(t.TempDir())
	require.NoError(t, err)
	site, _ := url.Parse("https://www.tiktok.com/")

	jar, seeded, err := m.Jar("tiktok_x.json", site)
	require.NoError(t, err)
	assert.False(t, seeded)
	assert.Empty(t, jar.Cookies(site))

	require.NoError(t, m.Save("tiktok_x.json", site, []*http.Cookie{{Name: "sid_tt", Value: "v"}}))

	jar, seeded, err = m.Jar("tiktok_x.json", site)
	require.NoError(t, err)
	assert.True(t, seeded)
	require.Len(t, jar.Cookies(site), 1)
	assert.Equal(t, "sid_tt", jar.Cookies(site)[0].Name)

	require.NoError(t, m.Remove("tiktok_x.json"))
	assert.False(t, m.Exists("tiktok_x.json"))
}
