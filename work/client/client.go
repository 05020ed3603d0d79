package client

import (
	"net/http"
	"time"
)

// HeaderSettingClient wraps http.Client so every upstream request carries the
// source's User-Agent, Origin and Referer headers. IPTV panels routinely
// reject requests without a player-looking User-Agent.
type HeaderSettingClient struct {
	Client *http.Client
}

// NewHeaderSettingClient builds a client with a transport tuned for repeated
// small API calls and playlist downloads. There is no client-level timeout;
// callers bound each request with a context deadline instead.
func NewHeaderSettingClient() *HeaderSettingClient {
	return &HeaderSettingClient{
		Client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:          100,
				MaxIdleConnsPerHost:   10,
				IdleConnTimeout:       90 * time.Second,
				TLSHandshakeTimeout:   10 * time.Second,
				ExpectContinueTimeout: 1 * time.Second,
				ResponseHeaderTimeout: 30 * time.Second,
			},
		},
	}
}

// Do executes the request with default headers only.
func (hsc *HeaderSettingClient) Do(req *http.Request) (*http.Response, error) {
	return hsc.DoWithHeaders(req, "", "", "")
}

// DoWithHeaders executes the request with the given source headers applied.
// Blank values leave the corresponding header unset.
func (hsc *HeaderSettingClient) DoWithHeaders(req *http.Request, userAgent, origin, referrer string) (*http.Response, error) {
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Connection", "keep-alive")

	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	if referrer != "" {
		req.Header.Set("Referer", referrer)
	}

	return hsc.Client.Do(req)
}
