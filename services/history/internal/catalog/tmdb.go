package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultTMDBBaseURL = "https://api.themoviedb.org/3"

// TMDBClient fetches movie and TV details from The Movie Database.
type TMDBClient struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// NewTMDB creates a client with sane timeouts. An empty baseURL selects the
// public API.
func NewTMDB(baseURL, apiKey string) *TMDBClient {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultTMDBBaseURL
	}
	return &TMDBClient{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		APIKey:     apiKey,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// detailsResponse covers both endpoints: movies carry title/runtime, TV
// carries name/episode_run_time.
type detailsResponse struct {
	Title          string `json:"title"`
	Name           string `json:"name"`
	PosterPath     string `json:"poster_path"`
	Runtime        int    `json:"runtime"`
	EpisodeRunTime []int  `json:"episode_run_time"`
}

func (c *TMDBClient) Snapshot(ctx context.Context, mediaID, mediaType string) (Snapshot, error) {
	endpoint := "/movie/" + url.PathEscape(mediaID)
	if mediaType == "tv" {
		endpoint = "/tv/" + url.PathEscape(mediaID)
	}

	u, err := url.Parse(c.BaseURL + endpoint)
	if err != nil {
		return Snapshot{}, err
	}
	q := u.Query()
	q.Set("api_key", c.APIKey)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Snapshot{}, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "stream-platform-history/1.0")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return Snapshot{}, err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Snapshot{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return Snapshot{}, fmt.Errorf("tmdb: status %d body=%q", resp.StatusCode, string(b[:min(len(b), 200)]))
	}

	var d detailsResponse
	if err := json.Unmarshal(b, &d); err != nil {
		return Snapshot{}, fmt.Errorf("tmdb: decode error: %w body=%q", err, string(b[:min(len(b), 200)]))
	}

	title := d.Title
	if title == "" {
		title = d.Name
	}
	runtime := d.Runtime
	if runtime == 0 && len(d.EpisodeRunTime) > 0 {
		runtime = d.EpisodeRunTime[0]
	}
	return Snapshot{Title: title, PosterPath: d.PosterPath, RuntimeMinutes: runtime}, nil
}
