package xtream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"iptv-core/work/client"
	"iptv-core/work/config"
	"iptv-core/work/logger"
	"iptv-core/work/types"
	"iptv-core/work/utils"

	"go.uber.org/ratelimit"
)

// ErrAuthFailed reports rejected or malformed Xtream credentials. It is the
// one ingestion failure surfaced distinctly to callers, so UIs can show a
// credential-specific message instead of the silent-empty treatment ordinary
// network and parse failures get.
var ErrAuthFailed = errors.New("xtream authentication failed")

// Client talks to one Xtream-Codes panel and normalizes its inconsistent
// responses into the canonical playlist model. All calls are idempotent GETs
// against player_api.php, paced by a per-source rate limiter.
type Client struct {
	http    *client.HeaderSettingClient
	cfg     *config.Config
	source  *config.SourceConfig
	limiter ratelimit.Limiter
	base    *url.URL
}

// New builds a client for the given source. The source address may omit its
// scheme; plain http is assumed.
func New(cfg *config.Config, source *config.SourceConfig, httpClient *client.HeaderSettingClient) (*Client, error) {
	base, err := NormalizeAddress(source.URL)
	if err != nil {
		return nil, err
	}
	return &Client{
		http:    httpClient,
		cfg:     cfg,
		source:  source,
		limiter: ratelimit.New(source.RateLimit),
		base:    base,
	}, nil
}

// apiURL builds a player_api.php request URL with credentials, an optional
// action and extra parameters.
func (c *Client) apiURL(action string, params map[string]string) string {
	u := *c.base
	u.Path = "/player_api.php"
	q := url.Values{}
	q.Set("username", c.source.Username)
	q.Set("password", c.source.Password)
	if action != "" {
		q.Set("action", action)
	}
	for k, v := range params {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	u.Fragment = ""
	return u.String()
}

// Authenticate performs the credential check against the panel and, on
// success, returns the canonical playlist shell: normalized user and server
// descriptors with empty catalog collections. A 2xx response without
// user_info.auth == 1, or one whose account block does not decode, is a
// definite rejection and normalizes to ErrAuthFailed; no partial playlist is
// ever returned.
func (c *Client) Authenticate(ctx context.Context) (*types.Playlist, error) {
	body, err := c.get(ctx, c.apiURL("", nil))
	if err != nil {
		// Transport failures stay plain errors so the cache coordinator can
		// run its fallback chain; only a definite rejection is ErrAuthFailed.
		logger.Debug("{xtream - Authenticate} request failed for %s: %v", utils.LogURL(c.cfg, c.source.URL), err)
		return nil, err
	}

	var resp rawAuthResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: malformed account response", ErrAuthFailed)
	}
	if resp.UserInfo == nil || int(resp.UserInfo.Auth) != 1 {
		return nil, ErrAuthFailed
	}

	now := time.Now()
	return &types.Playlist{
		SourceKind: types.SourceKindXtream,
		User:       normalizeUser(resp.UserInfo, c.source.Username, c.source.Password),
		Server:     normalizeServer(resp.ServerInfo, c.base, now),
	}, nil
}

// Catalog actions accepted by player_api.php.
const (
	actionLiveCategories   = "get_live_categories"
	actionVODCategories    = "get_vod_categories"
	actionSeriesCategories = "get_series_categories"
	actionLiveStreams      = "get_live_streams"
	actionVODStreams       = "get_vod_streams"
	actionSeries           = "get_series"
	actionSeriesInfo       = "get_series_info"
)

// xcCategory is one entry of a category list response.
type xcCategory struct {
	CategoryID   flexString `json:"category_id"`
	CategoryName string     `json:"category_name"`
	ParentID     flexInt    `json:"parent_id"`
}

// xcStream is one entry of a live or VOD stream list response.
type xcStream struct {
	StreamID           int        `json:"stream_id"`
	Name               string     `json:"name"`
	StreamIcon         string     `json:"stream_icon"`
	CategoryID         flexString `json:"category_id"`
	EpgChannelID       string     `json:"epg_channel_id"`
	ContainerExtension string     `json:"container_extension"`
}

// xcSeries is one entry of a get_series response. Series carry series_id as
// their canonical identifier, remapped into the common stream id downstream.
type xcSeries struct {
	SeriesID   int        `json:"series_id"`
	Name       string     `json:"name"`
	Cover      string     `json:"cover"`
	CategoryID flexString `json:"category_id"`
}

// Categories fetches one category listing. streamType selects the action.
func (c *Client) Categories(ctx context.Context, streamType types.StreamType) ([]types.Category, error) {
	action := actionLiveCategories
	switch streamType {
	case types.StreamTypeMovie:
		action = actionVODCategories
	case types.StreamTypeSeries:
		action = actionSeriesCategories
	}

	raw, err := fetchList[xcCategory](ctx, c, action, nil)
	if err != nil {
		return nil, err
	}

	cats := make([]types.Category, 0, len(raw))
	for _, rc := range raw {
		cats = append(cats, types.Category{
			ID:       string(rc.CategoryID),
			Name:     rc.CategoryName,
			ParentID: 0,
		})
	}
	return cats, nil
}

// Streams fetches one stream listing, tagged with the requested type since
// the upstream API does not reliably include it. categoryID filters
// server-side when non-empty. IDs are assigned by the caller; here streams
// keep their upstream identity in SourceID.
func (c *Client) Streams(ctx context.Context, streamType types.StreamType, categoryID string) ([]types.Stream, error) {
	var params map[string]string
	if categoryID != "" {
		params = map[string]string{"category_id": categoryID}
	}

	switch streamType {
	case types.StreamTypeSeries:
		raw, err := fetchList[xcSeries](ctx, c, actionSeries, params)
		if err != nil {
			return nil, err
		}
		out := make([]types.Stream, 0, len(raw))
		for _, rs := range raw {
			out = append(out, types.Stream{
				Name:       rs.Name,
				LogoURL:    rs.Cover,
				Type:       types.StreamTypeSeries,
				CategoryID: string(rs.CategoryID),
				SourceID:   rs.SeriesID,
			})
		}
		return out, nil

	default:
		action := actionLiveStreams
		if streamType == types.StreamTypeMovie {
			action = actionVODStreams
		}
		raw, err := fetchList[xcStream](ctx, c, action, params)
		if err != nil {
			return nil, err
		}
		out := make([]types.Stream, 0, len(raw))
		for _, rs := range raw {
			out = append(out, types.Stream{
				Name:       rs.Name,
				LogoURL:    rs.StreamIcon,
				Type:       streamType,
				CategoryID: string(rs.CategoryID),
				EpgID:      rs.EpgChannelID,
				SourceID:   rs.StreamID,
				Extension:  rs.ContainerExtension,
			})
		}
		return out, nil
	}
}

// FetchCatalog authenticates and assembles the complete canonical playlist:
// categories and streams for live, VOD and series, with playback URLs
// constructed from the normalized server descriptor and sequential ids
// assigned across the combined listing. Catalog calls that fail individually
// degrade to empty sections; only authentication failure aborts.
func (c *Client) FetchCatalog(ctx context.Context) (*types.Playlist, error) {
	pl, err := c.Authenticate(ctx)
	if err != nil {
		return nil, err
	}

	base, err := BaseURL(pl.Server, c.cfg.PreferHTTPS)
	if err != nil {
		base = c.base.Scheme + "://" + c.base.Host
	}

	order := []types.StreamType{types.StreamTypeLive, types.StreamTypeMovie, types.StreamTypeSeries}
	nextID := 1
	for _, st := range order {
		cats, err := c.Categories(ctx, st)
		if err != nil {
			logger.Warn("{xtream - FetchCatalog} %s categories failed for %s: %v", st, c.source.Name, err)
		}
		pl.Categories = append(pl.Categories, cats...)

		streams, err := c.Streams(ctx, st, "")
		if err != nil {
			logger.Warn("{xtream - FetchCatalog} %s streams failed for %s: %v", st, c.source.Name, err)
			continue
		}
		for i := range streams {
			s := &streams[i]
			s.ID = nextID
			nextID++
			if st != types.StreamTypeSeries {
				s.PlaybackURL = StreamURL(base, c.source.Username, c.source.Password, *s)
			}
			s.Fingerprint = types.StreamFingerprint(s.PlaybackURL, s.Type, s.SourceID)
		}
		pl.Streams = append(pl.Streams, streams...)
	}

	logger.Debug("{xtream - FetchCatalog} %s: %d streams, %d categories",
		c.source.Name, len(pl.Streams), len(pl.Categories))
	return pl, nil
}

// get executes one API request, bounded by the caller's context and paced by
// the source rate limiter.
func (c *Client) get(ctx context.Context, requestURL string) ([]byte, error) {
	c.limiter.Take()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.http.DoWithHeaders(req, c.source.UserAgent, c.source.ReqOrigin, c.source.ReqReferrer)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, nil
}

// fetchList retrieves and decodes one list-shaped API response. Panels
// respond with a bare JSON array whose element shape varies by action; the
// generic parameter keeps decoding type-safe per call site.
func fetchList[T any](ctx context.Context, c *Client, action string, params map[string]string) ([]T, error) {
	body, err := c.get(ctx, c.apiURL(action, params))
	if err != nil {
		return nil, err
	}

	var data []T
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("failed to parse %s response: %w", action, err)
	}
	return data, nil
}
