package xtream

import (
	"encoding/json"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iptv-core/work/types"
)

func TestNormalizeAddress(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"schemeless gets http", "example.com:8080", "http://example.com:8080", false},
		{"bare host", "example.com", "http://example.com", false},
		{"http preserved", "http://example.com", "http://example.com", false},
		{"https preserved", "https://panel.example", "https://panel.example", false},
		{"case-insensitive scheme", "HTTP://example.com", "http://example.com", false},
		{"surrounding whitespace", "  example.com  ", "http://example.com", false},
		{"empty", "", "", true},
		{"no host", "http://", "", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			u, err := NormalizeAddress(tc.in)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, u.String())
		})
	}
}

func TestNormalizeServerSynthesizesMissingBlock(t *testing.T) {
	input, err := url.Parse("http://panel.example:8080")
	require.NoError(t, err)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	srv := normalizeServer(nil, input, now)
	assert.Equal(t, "http://panel.example:8080", srv.BaseURL)
	assert.Equal(t, "8080", srv.Port)
	assert.Equal(t, "443", srv.HTTPSPort)
	assert.Equal(t, "http", srv.Protocol)
	assert.Equal(t, "0", srv.RTMPPort)
	assert.Equal(t, "UTC", srv.Timezone)
	assert.Equal(t, now.Unix(), srv.TimestampNow)
}

func TestNormalizeServerDefaultsPortFromScheme(t *testing.T) {
	input, err := url.Parse("https://panel.example")
	require.NoError(t, err)

	srv := normalizeServer(&rawServerInfo{}, input, time.Now())
	assert.Equal(t, "443", srv.Port)
	assert.Equal(t, "https", srv.Protocol)
	assert.Equal(t, "443", srv.HTTPSPort)
}

func TestNormalizeServerAbsolutifiesBareHost(t *testing.T) {
	input, err := url.Parse("http://panel.example")
	require.NoError(t, err)

	srv := normalizeServer(&rawServerInfo{URL: "cdn.panel.example"}, input, time.Now())
	assert.Equal(t, "http://cdn.panel.example", srv.BaseURL)
}

func TestNormalizeUserBackfillsIdentity(t *testing.T) {
	u := normalizeUser(&rawUserInfo{Auth: 1, Status: "Active"}, "alice", "s3cret")
	assert.Equal(t, "alice", u.Username)
	assert.Equal(t, "s3cret", u.Password)
	assert.Equal(t, 1, u.Auth)
}

func TestBaseURL(t *testing.T) {
	tests := []struct {
		name        string
		server      types.ServerDescriptor
		preferHTTPS bool
		want        string
	}{
		{
			name:   "plain http with explicit port",
			server: types.ServerDescriptor{BaseURL: "http://panel.example", Port: "8080", HTTPSPort: "443"},
			want:   "http://panel.example:8080",
		},
		{
			name:   "scheme default port omitted",
			server: types.ServerDescriptor{BaseURL: "http://panel.example", Port: "80", HTTPSPort: "443"},
			want:   "http://panel.example",
		},
		{
			name:        "https upgrade selects https port",
			server:      types.ServerDescriptor{BaseURL: "http://panel.example", Port: "8080", HTTPSPort: "8443"},
			preferHTTPS: true,
			want:        "https://panel.example:8443",
		},
		{
			name:        "https upgrade with default https port",
			server:      types.ServerDescriptor{BaseURL: "http://panel.example", Port: "8080", HTTPSPort: "443"},
			preferHTTPS: true,
			want:        "https://panel.example",
		},
		{
			name:   "zero port means none",
			server: types.ServerDescriptor{BaseURL: "http://panel.example:8080", Port: "0"},
			want:   "http://panel.example:8080",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := BaseURL(tc.server, tc.preferHTTPS)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestFlexTypes(t *testing.T) {
	var raw rawUserInfo
	payload := []byte(`{"auth": true, "exp_date": 1735689600, "max_connections": "2"}`)
	require.NoError(t, json.Unmarshal(payload, &raw))
	assert.Equal(t, 1, int(raw.Auth))
	assert.Equal(t, "1735689600", string(raw.ExpDate))
	assert.Equal(t, "2", string(raw.MaxConnections))

	var srv rawServerInfo
	payload = []byte(`{"port": 8080, "https_port": "8443"}`)
	require.NoError(t, json.Unmarshal(payload, &srv))
	assert.Equal(t, "8080", string(srv.Port))
	assert.Equal(t, "8443", string(srv.HTTPSPort))
}
