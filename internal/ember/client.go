// Package ember wraps the Ember electricity generation API. It is the
// ingestion boundary: records are validated and defaulted here once, so the
// aggregation core never sees missing fields.
package ember

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/jarthorn/energy-stats/internal/config"
	"github.com/jarthorn/energy-stats/internal/model"
)

// Client fetches monthly generation data for a single country. All
// interpretation of the data beyond defaulting is left to the caller.
type Client struct {
	baseURL    string
	apiKey     string
	startDate  string
	maxRetries int
	client     *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
}

// record is the raw API row shape. Numeric fields are pointers so missing
// values can be zero-filled instead of failing the whole country.
type record struct {
	Entity            string   `json:"entity"`
	EntityCode        string   `json:"entity_code"`
	IsAggregateEntity bool     `json:"is_aggregate_entity"`
	Date              string   `json:"date"`
	Series            string   `json:"series"`
	IsAggregateSeries bool     `json:"is_aggregate_series"`
	GenerationTWh     *float64 `json:"generation_twh"`
	SharePct          *float64 `json:"share_of_generation_pct"`
}

type response struct {
	Data []record `json:"data"`
}

// NewClient creates a Client. A missing API key is a configuration error.
func NewClient(cfg config.EmberConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, eris.New("ember: api key is not set (set ember.api_key or ENERGYSTATS_EMBER_API_KEY)")
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "ember-api",
		MaxRequests: 1,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			zap.L().Warn("ember circuit breaker state change",
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		startDate:  cfg.StartDate,
		maxRetries: cfg.MaxRetries,
		client:     &http.Client{Timeout: time.Duration(cfg.TimeoutSecs) * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RatePerSec), 1),
		breaker:    breaker,
	}, nil
}

// StartDate returns the configured default start month (YYYY-MM).
func (c *Client) StartDate() string {
	return c.startDate
}

// FetchCountry fetches all monthly generation rows for one country from
// startDate (YYYY-MM) onward and returns them as staged observations.
// An empty slice means the API has no data for the country.
func (c *Client) FetchCountry(ctx context.Context, code, startDate string) ([]model.Observation, error) {
	if startDate == "" {
		startDate = c.startDate
	}

	q := url.Values{}
	q.Set("entity_code", code)
	q.Set("is_aggregate_series", "false")
	q.Set("is_aggregate_entity", "false")
	q.Set("start_date", startDate)
	q.Set("api_key", c.apiKey)
	u := c.baseURL + "/v1/electricity-generation/monthly?" + q.Encode()

	body, err := c.get(ctx, u)
	if err != nil {
		return nil, eris.Wrapf(err, "ember: fetch %s", code)
	}

	var resp response
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, eris.Wrapf(err, "ember: decode response for %s", code)
	}

	obs := make([]model.Observation, 0, len(resp.Data))
	for _, r := range resp.Data {
		month, err := model.ParseMonth(r.Date)
		if err != nil {
			// One malformed record must not abort the country.
			zap.L().Warn("skipping record with bad date",
				zap.String("country", code),
				zap.String("date", r.Date),
			)
			continue
		}
		obs = append(obs, model.Observation{
			CountryCode:       code,
			CountryName:       r.Entity,
			Month:             month,
			FuelType:          r.Series,
			IsAggregateEntity: r.IsAggregateEntity,
			IsAggregateSeries: r.IsAggregateSeries,
			GenerationTWh:     floatOrZero(r.GenerationTWh),
			SharePct:          floatOrZero(r.SharePct),
		})
	}
	return obs, nil
}

// get performs a rate-limited GET through the circuit breaker, retrying
// transient failures with linear backoff.
func (c *Client) get(ctx context.Context, u string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * time.Second):
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		result, err := c.breaker.Execute(func() (any, error) {
			return c.doGet(ctx, u)
		})
		if err == nil {
			return result.([]byte), nil
		}
		lastErr = err

		if eris.Is(err, gobreaker.ErrOpenState) || ctx.Err() != nil {
			break
		}
	}
	return nil, lastErr
}

func (c *Client) doGet(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, eris.Wrap(err, "build request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "read body")
	}
	return body, nil
}

func floatOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
