package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const defaultERAPIBase = "https://open.er-api.com/v6"

// ERAPIOptions parameterise the open.er-api.com client.
type ERAPIOptions struct {
	BaseURL   string
	Quote     string
	Timeout   time.Duration
	UserAgent string
}

// ERAPI fetches latest rates from open.er-api.com, one base currency per call.
type ERAPI struct {
	opts    ERAPIOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewERAPI constructs the provider.
func NewERAPI(opts ERAPIOptions, logger zerolog.Logger) *ERAPI {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultERAPIBase
	}
	if opts.Quote == "" {
		opts.Quote = "JPY"
	}

	return &ERAPI{
		opts:    opts,
		logger:  logger.With().Str("component", "erapi_provider").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// FetchRate returns rates[quote] for the base currency.
func (p *ERAPI) FetchRate(ctx context.Context, currency string) (float64, error) {
	if currency == "" {
		return 0, &Fault{Currency: currency, Reason: ReasonPayload, Err: errors.New("currency required")}
	}

	endpoint := p.baseURL + "/latest/" + url.PathEscape(currency)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, &Fault{Currency: currency, Reason: ReasonTransport, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(p.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	} else {
		req.Header.Set("User-Agent", "worldclock/1.0")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, &Fault{Currency: currency, Reason: ReasonTransport, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return 0, &Fault{Currency: currency, Reason: ReasonStatus, Status: resp.StatusCode}
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, &Fault{Currency: currency, Reason: ReasonTransport, Err: err}
	}

	var body latestResponse
	if err := json.Unmarshal(payload, &body); err != nil {
		return 0, &Fault{Currency: currency, Reason: ReasonPayload, Err: err}
	}

	rate, ok := body.Rates[p.opts.Quote]
	if !ok || rate == nil {
		return 0, &Fault{Currency: currency, Reason: ReasonPayload, Err: fmt.Errorf("rates.%s missing", p.opts.Quote)}
	}
	if *rate <= 0 {
		return 0, &Fault{Currency: currency, Reason: ReasonPayload, Err: fmt.Errorf("rates.%s not positive: %v", p.opts.Quote, *rate)}
	}

	p.logger.Debug().Str("currency", currency).Float64("rate", *rate).Msg("rate fetched")
	return *rate, nil
}

type latestResponse struct {
	Result   string              `json:"result"`
	BaseCode string              `json:"base_code"`
	Rates    map[string]*float64 `json:"rates"`
}

var _ RateProvider = (*ERAPI)(nil)
