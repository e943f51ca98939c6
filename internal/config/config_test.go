package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDownstreams(t *testing.T) {
	raw := []byte(`{"servers":[
		{"url":"https://node.example.com/"},
		{"url":"http://java.example.com", "apiKey":"sekret"}
	]}`)

	cfg, err := ParseDownstreams(raw, "test")
	require.NoError(t, err)
	require.Len(t, cfg.Servers, 2)

	// trailing slashes are stripped so URL concatenation stays clean
	assert.Equal(t, "https://node.example.com", cfg.Servers[0].URL)
	assert.Equal(t, "sekret", cfg.Servers[1].APIKey)
}

func TestParseDownstreams_EmptyServersIsValid(t *testing.T) {
	cfg, err := ParseDownstreams([]byte(`{"servers":[]}`), "test")
	require.NoError(t, err)
	assert.Empty(t, cfg.Servers)
}

func TestParseDownstreams_MissingServersKey(t *testing.T) {
	_, err := ParseDownstreams([]byte(`{}`), "test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "servers")
}

func TestParseDownstreams_InvalidJSON(t *testing.T) {
	_, err := ParseDownstreams([]byte(`{"servers":`), "test")
	assert.Error(t, err)
}

func TestParseDownstreams_RejectsBadURLs(t *testing.T) {
	cases := []string{
		`{"servers":[{"url":"ftp://files.example.com"}]}`,
		`{"servers":[{"url":"not a url"}]}`,
		`{"servers":[{"url":""}]}`,
	}
	for _, raw := range cases {
		_, err := ParseDownstreams([]byte(raw), "test")
		assert.Error(t, err, raw)
	}
}

func TestNormalisePrefix(t *testing.T) {
	assert.Equal(t, "", normalisePrefix(""))
	assert.Equal(t, "", normalisePrefix("/"))
	assert.Equal(t, "/api/xr", normalisePrefix("api/xr/"))
	assert.Equal(t, "/api/xr", normalisePrefix("/api/xr"))
}

func TestSplitList(t *testing.T) {
	assert.Nil(t, splitList(""))
	assert.Equal(t, []string{"a", "b"}, splitList("a, b,"))
}

func TestWellKnownGroups(t *testing.T) {
	assert.Equal(t, DefaultWellKnownGroups, wellKnownGroups(""))
	assert.Equal(t, []string{"customregistries"}, wellKnownGroups("customregistries"))
}

func TestMsDuration(t *testing.T) {
	assert.Equal(t, time.Minute, msDuration(60000))
}
