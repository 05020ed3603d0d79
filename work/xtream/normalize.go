package xtream

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"iptv-core/work/types"
)

// flexString tolerates the Xtream ecosystem's loose typing: panels ship ports
// and category ids as JSON strings or numbers depending on server version.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexString(n.String())
		return nil
	}
	*f = ""
	return nil
}

// flexInt accepts a number, a numeric string, or a bool (some panels report
// auth as true/false rather than 1/0).
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		if v, err := n.Int64(); err == nil {
			*f = flexInt(v)
			return nil
		}
	}
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		if b {
			*f = 1
		} else {
			*f = 0
		}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil && s == "1" {
		*f = 1
		return nil
	}
	*f = 0
	return nil
}

// rawUserInfo is the wire shape of player_api.php's user_info block.
type rawUserInfo struct {
	Username       string     `json:"username"`
	Password       string     `json:"password"`
	Auth           flexInt    `json:"auth"`
	Status         string     `json:"status"`
	ExpDate        flexString `json:"exp_date"`
	IsTrial        flexString `json:"is_trial"`
	ActiveConns    flexString `json:"active_cons"`
	MaxConnections flexString `json:"max_connections"`
}

// rawServerInfo is the wire shape of player_api.php's server_info block.
// Every field is optional; absent blocks are synthesized from the input
// address.
type rawServerInfo struct {
	URL          string     `json:"url"`
	Port         flexString `json:"port"`
	HTTPSPort    flexString `json:"https_port"`
	Protocol     string     `json:"server_protocol"`
	RTMPPort     flexString `json:"rtmp_port"`
	Timezone     string     `json:"timezone"`
	TimestampNow flexInt    `json:"timestamp_now"`
	TimeNow      string     `json:"time_now"`
}

type rawAuthResponse struct {
	UserInfo   *rawUserInfo   `json:"user_info"`
	ServerInfo *rawServerInfo `json:"server_info"`
}

// NormalizeAddress parses a server address that may omit its scheme,
// assuming plain http when none is present. The returned URL is the basis
// for every subsequent API call against the panel.
func NormalizeAddress(addr string) (*url.URL, error) {
	trimmed := strings.TrimSpace(addr)
	if trimmed == "" {
		return nil, fmt.Errorf("empty server address")
	}
	if !strings.HasPrefix(strings.ToLower(trimmed), "http://") && !strings.HasPrefix(strings.ToLower(trimmed), "https://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("invalid server address: %w", err)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("invalid server address %q: no host", addr)
	}
	return u, nil
}

// schemePort returns the default port for a scheme.
func schemePort(scheme string) string {
	if scheme == "https" {
		return "443"
	}
	return "80"
}

// normalizeProtocol maps the panel's free-form server_protocol value onto
// http/https, falling back to the supplied default.
func normalizeProtocol(value, fallback string) string {
	lower := strings.ToLower(strings.TrimSpace(value))
	switch {
	case strings.HasPrefix(lower, "https"):
		return "https"
	case strings.HasPrefix(lower, "http"):
		return "http"
	default:
		return fallback
	}
}

// normalizeServer canonicalizes a (possibly absent or partial) server_info
// block against the parsed input address. The result always carries an
// explicit scheme on BaseURL and scheme-derived port defaults.
func normalizeServer(raw *rawServerInfo, input *url.URL, now time.Time) types.ServerDescriptor {
	inputProtocol := "http"
	if input.Scheme == "https" {
		inputProtocol = "https"
	}

	if raw == nil {
		raw = &rawServerInfo{}
	}

	protocol := normalizeProtocol(raw.Protocol, inputProtocol)

	base := protocol + "://" + input.Host
	if rawURL := strings.TrimSpace(raw.URL); rawURL != "" {
		if strings.HasPrefix(strings.ToLower(rawURL), "http://") || strings.HasPrefix(strings.ToLower(rawURL), "https://") {
			base = rawURL
		} else {
			base = protocol + "://" + strings.TrimLeft(rawURL, "/")
		}
	}

	port := string(raw.Port)
	if port == "" {
		port = input.Port()
	}
	if port == "" {
		port = schemePort(protocol)
	}

	httpsPort := string(raw.HTTPSPort)
	if httpsPort == "" {
		if protocol == "https" {
			httpsPort = port
		} else {
			httpsPort = "443"
		}
	}

	rtmpPort := string(raw.RTMPPort)
	if rtmpPort == "" {
		rtmpPort = "0"
	}

	timezone := raw.Timezone
	if timezone == "" {
		timezone = "UTC"
	}

	timestampNow := int64(raw.TimestampNow)
	if timestampNow == 0 {
		timestampNow = now.Unix()
	}

	timeNow := raw.TimeNow
	if timeNow == "" {
		timeNow = now.UTC().Format(time.RFC3339)
	}

	return types.ServerDescriptor{
		BaseURL:      base,
		Port:         port,
		HTTPSPort:    httpsPort,
		Protocol:     protocol,
		RTMPPort:     rtmpPort,
		Timezone:     timezone,
		TimestampNow: timestampNow,
		TimeNow:      timeNow,
	}
}

// normalizeUser canonicalizes the user_info block, backfilling the username
// and password we authenticated with when the panel omits them.
func normalizeUser(raw *rawUserInfo, username, password string) types.UserDescriptor {
	u := types.UserDescriptor{
		Username:       raw.Username,
		Password:       password,
		Auth:           int(raw.Auth),
		Status:         raw.Status,
		ExpDate:        string(raw.ExpDate),
		IsTrial:        string(raw.IsTrial),
		ActiveConns:    string(raw.ActiveConns),
		MaxConnections: string(raw.MaxConnections),
	}
	if u.Username == "" {
		u.Username = username
	}
	return u
}

// BaseURL reconstructs the panel's effective base URL from a canonical
// server descriptor. When preferHTTPS is set (the hosting context is https
// and mixed content would be blocked), the scheme upgrades to https and the
// descriptor's https_port is selected instead of the plain port. A port of
// "0" means "no explicit port" and is omitted.
func BaseURL(server types.ServerDescriptor, preferHTTPS bool) (string, error) {
	u, err := NormalizeAddress(server.BaseURL)
	if err != nil {
		return "", err
	}

	scheme := u.Scheme
	if preferHTTPS {
		scheme = "https"
	}

	port := server.Port
	if scheme == "https" {
		port = server.HTTPSPort
	}

	host := u.Host
	if port != "" && port != "0" {
		host = u.Hostname()
		if port != schemePort(scheme) {
			host = host + ":" + port
		}
	}

	return scheme + "://" + host, nil
}
