// Package avwx fetches and decodes METAR reports from the aviationweather.gov data API.
package avwx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultBaseURL is the root of the aviationweather.gov data API.
	DefaultBaseURL = "https://aviationweather.gov/api/data"
	// DefaultTimeout bounds a single HTTP request.
	DefaultTimeout = 10 * time.Second
	// DefaultMaxRetries is the number of extra attempts after a failed request.
	DefaultMaxRetries = 2
	// DefaultHoursBeforeNow determines how much history is requested per station.
	DefaultHoursBeforeNow = 3
	// DefaultRetryBackoff is the delay before the first retry, doubled for every further one.
	DefaultRetryBackoff = 500 * time.Millisecond

	userAgent = "metarwatch"
)

var (
	ErrNonOkResponse     = errors.New("non-OK response")
	ErrEmptyResponseBody = errors.New("empty response body")
	ErrNonJSONContent    = errors.New("non-JSON content type")
	ErrStationNotFound   = errors.New("station not found")
	ErrNoStations        = errors.New("no stations requested")
	ErrMalformedRecord   = errors.New("malformed record")
)

// Config holds the settings of a Client.
type Config struct {
	BaseURL        string
	Timeout        time.Duration
	MaxRetries     int
	HoursBeforeNow int
	RetryBackoff   time.Duration
}

// DefaultConfig returns the configuration used when nothing else is set.
func DefaultConfig() Config {
	return Config{
		BaseURL:        DefaultBaseURL,
		Timeout:        DefaultTimeout,
		MaxRetries:     DefaultMaxRetries,
		HoursBeforeNow: DefaultHoursBeforeNow,
		RetryBackoff:   DefaultRetryBackoff,
	}
}

// Client requests METAR data from the aviation weather service.
type Client struct {
	config     Config
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a Client. Zero values in config fall back to the defaults.
func NewClient(config Config, logger *slog.Logger) *Client {
	defaults := DefaultConfig()
	if config.BaseURL == "" {
		config.BaseURL = defaults.BaseURL
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	if config.HoursBeforeNow <= 0 {
		config.HoursBeforeNow = defaults.HoursBeforeNow
	}
	if config.RetryBackoff <= 0 {
		config.RetryBackoff = defaults.RetryBackoff
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		logger:     logger.With("component", "avwx"),
	}
}

// FetchMetars requests the recent reports of all given stations in a single call. The result maps
// station ids to their reports, most recent first. Stations the service has no data for are
// missing from the map.
func (c *Client) FetchMetars(ctx context.Context, stationIDs ...string) (map[string][]Metar, error) {
	if len(stationIDs) == 0 {
		return nil, fmt.Errorf("fetchMetars: %w", ErrNoStations)
	}

	ids := make([]string, 0, len(stationIDs))
	for _, id := range stationIDs {
		normalized, err := NormalizeStationID(id)
		if err != nil {
			return nil, fmt.Errorf("fetchMetars: %w", err)
		}
		ids = append(ids, normalized)
	}

	body, err := c.requestWithRetry(ctx, c.metarURL(ids))
	if err != nil {
		return nil, fmt.Errorf("fetchMetars: %w", err)
	}

	metars, err := DecodeMetars(body)
	switch {
	case errors.Is(err, ErrMalformedRecord):
		// The well-formed reports are still usable, the others count as missing.
		c.logger.Warn("skipped malformed reports", "decoded", len(metars), "error", err)
	case err != nil:
		return nil, fmt.Errorf("fetchMetars: %w", err)
	}

	return GroupByStation(metars), nil
}

// FetchStation requests the recent reports of a single station, most recent first.
func (c *Client) FetchStation(ctx context.Context, stationID string) ([]Metar, error) {
	byStation, err := c.FetchMetars(ctx, stationID)
	if err != nil {
		return nil, err
	}

	normalized, _ := NormalizeStationID(stationID)
	metars, ok := byStation[normalized]
	if !ok || len(metars) == 0 {
		return nil, fmt.Errorf("fetchStation: %w: %s", ErrStationNotFound, normalized)
	}
	return metars, nil
}

// DecodeMetars decodes the JSON array returned by the METAR endpoint. An empty body decodes
// to no reports. Records which cannot be converted are skipped: the remaining reports are
// returned together with an error wrapping ErrMalformedRecord for every skipped record.
func DecodeMetars(body []byte) ([]Metar, error) {
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil, nil
	}

	var records []apiMetar
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("decodeMetars: failed to unmarshal JSON: %w", err)
	}

	metars := make([]Metar, 0, len(records))
	var skipped []error
	for i := range records {
		metar, err := records[i].toMetar()
		if err != nil {
			skipped = append(skipped, fmt.Errorf("decodeMetars: %w: %w", ErrMalformedRecord, err))
			continue
		}
		metars = append(metars, metar)
	}
	return metars, errors.Join(skipped...)
}

// GroupByStation sorts reports into per-station lists, most recent first.
func GroupByStation(metars []Metar) map[string][]Metar {
	byStation := make(map[string][]Metar)
	for _, metar := range metars {
		byStation[metar.StationID] = append(byStation[metar.StationID], metar)
	}

	for _, stationMetars := range byStation {
		sort.SliceStable(stationMetars, func(i, j int) bool {
			return stationMetars[i].ObservationTime.After(stationMetars[j].ObservationTime)
		})
	}
	return byStation
}

func (c *Client) metarURL(ids []string) string {
	query := url.Values{}
	query.Set("ids", strings.Join(ids, ","))
	query.Set("format", "json")
	query.Set("hours", strconv.Itoa(c.config.HoursBeforeNow))

	return strings.TrimSuffix(c.config.BaseURL, "/") + "/metar?" + query.Encode()
}

// requestWithRetry repeats sendRequest with exponential backoff for errors that may go away.
func (c *Client) requestWithRetry(ctx context.Context, targetURL string) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := c.config.RetryBackoff * time.Duration(1<<uint(attempt-1))
			c.logger.Info("retrying METAR request",
				slog.Int("attempt", attempt),
				slog.Duration("backoff", backoff))

			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("requestWithRetry: %w", ctx.Err())
			case <-time.After(backoff):
			}
		}

		body, err := c.sendRequest(ctx, targetURL)
		if err == nil {
			return body, nil
		}

		lastErr = err
		if !isRetryable(err) || ctx.Err() != nil {
			break
		}

		c.logger.Warn("METAR request failed, may retry",
			slog.Any("error", err),
			slog.Int("attempt", attempt+1),
			slog.Int("max_attempts", c.config.MaxRetries+1))
	}

	return nil, lastErr
}

// statusError carries the HTTP status of a non-OK response.
type statusError struct {
	code   int
	status string
}

func (e *statusError) Error() string { return fmt.Sprintf("%s %s", ErrNonOkResponse, e.status) }

func (e *statusError) Unwrap() error { return ErrNonOkResponse }

func isRetryable(err error) bool {
	var statusErr *statusError
	if errors.As(err, &statusErr) {
		return statusErr.code >= http.StatusInternalServerError || statusErr.code == http.StatusTooManyRequests
	}
	// content errors are not going to change by asking again
	return !errors.Is(err, ErrNonJSONContent) && !errors.Is(err, ErrEmptyResponseBody)
}

// sendRequest sends an HTTP GET request and returns the response body. A 204 response yields
// an empty body.
func (c *Client) sendRequest(ctx context.Context, targetURL string) (body []byte, err error) {
	req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if reqErr != nil {
		return nil, fmt.Errorf("sendRequest: invalid request error: %s: %w", targetURL, reqErr)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, respErr := c.httpClient.Do(req)
	if respErr != nil {
		return nil, fmt.Errorf("sendRequest: failed to send GET request: %s: %w", targetURL, respErr)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("sendRequest: error while closing response body: %w", closeErr)
		}
	}()

	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("sendRequest: %w", &statusError{code: resp.StatusCode, status: resp.Status})
	}

	body, bodyErr := io.ReadAll(resp.Body)
	if bodyErr != nil {
		return nil, fmt.Errorf("sendRequest: failed to read response body: %w", bodyErr)
	}

	if len(body) == 0 {
		return nil, fmt.Errorf("sendRequest: %w", ErrEmptyResponseBody)
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(contentType, "application/json") {
		return nil, fmt.Errorf("sendRequest: %w, %s", ErrNonJSONContent, contentType)
	}

	return body, nil
}
