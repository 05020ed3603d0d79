package xtream

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
)

// Season is one season summary from a get_series_info response.
type Season struct {
	AirDate      string `json:"air_date"`
	EpisodeCount int    `json:"episode_count"`
	ID           int    `json:"id"`
	Name         string `json:"name"`
	Overview     string `json:"overview"`
	SeasonNumber int    `json:"season_number"`
	Cover        string `json:"cover"`
}

// Episode is one playable episode. The panel ships its playable id in the
// "id" field; it is remapped into StreamID so episodes flow through the same
// URL-building logic as top-level streams.
type Episode struct {
	ID                 flexString `json:"id"`
	StreamID           int        `json:"stream_id"`
	EpisodeNum         flexInt    `json:"episode_num"`
	Title              string     `json:"title"`
	ContainerExtension string     `json:"container_extension"`
	Season             flexInt    `json:"season"`
	Added              flexString `json:"added"`
	DirectSource       string     `json:"direct_source"`
}

// SeriesDetail is the normalized get_series_info payload: series metadata,
// season summaries and episodes grouped by season number.
type SeriesDetail struct {
	Info     SeriesMeta           `json:"info"`
	Seasons  []Season             `json:"seasons"`
	Episodes map[string][]Episode `json:"episodes"`
}

// SeriesMeta is the descriptive block of a series.
type SeriesMeta struct {
	Name        string     `json:"name"`
	Cover       string     `json:"cover"`
	Plot        string     `json:"plot"`
	Cast        string     `json:"cast"`
	Director    string     `json:"director"`
	Genre       string     `json:"genre"`
	ReleaseDate string     `json:"releaseDate"`
	Rating5     flexString `json:"rating_5based"`
}

// SeriesInfo fetches and normalizes one series' detail, remapping each
// episode's upstream id into StreamID for playback URL construction.
func (c *Client) SeriesInfo(ctx context.Context, seriesID int) (*SeriesDetail, error) {
	params := map[string]string{"series_id": strconv.Itoa(seriesID)}
	body, err := c.get(ctx, c.apiURL(actionSeriesInfo, params))
	if err != nil {
		return nil, err
	}

	var detail SeriesDetail
	if err := json.Unmarshal(body, &detail); err != nil {
		return nil, fmt.Errorf("failed to parse %s response: %w", actionSeriesInfo, err)
	}

	for season, eps := range detail.Episodes {
		for i := range eps {
			if id, err := strconv.Atoi(string(eps[i].ID)); err == nil {
				eps[i].StreamID = id
			}
		}
		detail.Episodes[season] = eps
	}

	return &detail, nil
}
