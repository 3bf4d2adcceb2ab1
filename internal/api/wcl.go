package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"

	"pebble/internal/cache"
	"pebble/internal/config"
	"pebble/internal/constants"
)

// WCLClient talks to the Warcraft Logs v2 GraphQL API with client
// credentials. Report bundles are cached when a cache is configured.
type WCLClient struct {
	clientID     string
	clientSecret string
	baseURL      string
	tokenURL     string
	client       *fasthttp.Client
	cache        cache.Cache
	logger       zerolog.Logger

	tokenMu  sync.Mutex
	token    string
	tokenExp time.Time

	rateLimitMu sync.RWMutex
	rateLimit   RateLimitInfo

	maxTries       uint
	initialBackoff time.Duration
	maxBackoff     time.Duration
	now            func() time.Time
}

type RateLimitInfo struct {
	Limit     int `json:"limit"`
	Remaining int `json:"remaining"`

	// seconds until reset
	Reset int `json:"reset"`

	UpdatedAt time.Time `json:"updated_at"`
}

// StatusError is a non-200 answer from the API.
type StatusError struct {
	Code       int
	RetryAfter int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API error: %d", e.Code)
}

// Retryable reports whether the request may succeed if repeated.
func (e *StatusError) Retryable() bool {
	switch e.Code {
	case fasthttp.StatusTooManyRequests,
		fasthttp.StatusInternalServerError,
		fasthttp.StatusBadGateway,
		fasthttp.StatusServiceUnavailable,
		fasthttp.StatusGatewayTimeout:
		return true
	}
	return false
}

var ErrMissingCredentials = errors.New("WCL client id and secret are required")

func NewWCLClient(cfg *config.Config, c cache.Cache, logger zerolog.Logger) *WCLClient {
	if c == nil {
		c = cache.Nop{}
	}
	return &WCLClient{
		clientID:     cfg.WCLClientID,
		clientSecret: cfg.WCLClientSecret,
		baseURL:      cfg.WCLBaseURL,
		tokenURL:     cfg.WCLTokenURL,
		client: &fasthttp.Client{
			MaxConnsPerHost:     cfg.FetchWorkers * 2,
			ReadTimeout:         constants.ExternalAPITimeout,
			WriteTimeout:        constants.ExternalAPITimeout,
			MaxIdleConnDuration: 1 * time.Minute,
		},
		cache:          c,
		logger:         logger.With().Str("component", "wcl").Logger(),
		maxTries:       constants.APIMaxRetries,
		initialBackoff: constants.APIInitialBackoff,
		maxBackoff:     constants.APIMaxBackoff,
		now:            time.Now,
	}
}

func (c *WCLClient) GetRateLimitInfo() RateLimitInfo {
	c.rateLimitMu.RLock()
	defer c.rateLimitMu.RUnlock()
	return c.rateLimit
}

func (c *WCLClient) updateRateLimit(resp *fasthttp.Response) {
	c.rateLimitMu.Lock()
	defer c.rateLimitMu.Unlock()

	if limit := string(resp.Header.Peek("X-RateLimit-Limit")); limit != "" {
		if val, err := strconv.Atoi(limit); err == nil {
			c.rateLimit.Limit = val
		}
	}
	if remaining := string(resp.Header.Peek("X-RateLimit-Remaining")); remaining != "" {
		if val, err := strconv.Atoi(remaining); err == nil {
			c.rateLimit.Remaining = val
		}
	}
	if reset := string(resp.Header.Peek("X-RateLimit-Reset")); reset != "" {
		if val, err := strconv.Atoi(reset); err == nil {
			c.rateLimit.Reset = val
		}
	}
	c.rateLimit.UpdatedAt = c.now()
}

const reportBundleQuery = `
query ReportBundle($code: String!, $translate: Boolean = true) {
  reportData {
    report(code: $code) {
      code
      title
      startTime
      endTime
      owner { name }
      zone { name }
      fights { id encounterID name difficulty startTime endTime friendlyPlayers kill }
      masterData(translate: $translate) { actors(type: "Player") { id name server subType type } }
    }
  }
}`

// FetchReport returns report meta, fights and player actors in one call.
func (c *WCLClient) FetchReport(ctx context.Context, code string) (*ReportBundle, error) {
	log := c.logger.With().Str("report", code).Logger()

	raw, ok, err := c.cache.Get(ctx, code)
	if err != nil {
		log.Warn().Err(err).Msg("cache read failed")
	}
	if ok {
		var bundle ReportBundle
		if err := json.Unmarshal(raw, &bundle); err == nil {
			log.Debug().Msg("cache hit")
			return &bundle, nil
		}
		log.Warn().Msg("discarding undecodable cache entry")
	}

	resp, err := doRequest[reportBundleResponse](ctx, c, reportBundleQuery, map[string]any{"code": code, "translate": true})
	if err != nil {
		return nil, err
	}
	bundle := resp.Data.ReportData.Report
	if bundle == nil {
		return nil, fmt.Errorf("report %s: %w", code, ErrReportNotFound)
	}

	if raw, err := json.Marshal(bundle); err == nil {
		ttl := c.cacheTTL(bundle.StartTime)
		if err := c.cache.Set(ctx, code, raw, ttl); err != nil {
			log.Warn().Err(err).Msg("failed to cache report")
		} else {
			log.Debug().Dur("ttl", ttl).Msg("report cached")
		}
	}
	return bundle, nil
}

// cacheTTL keeps reports that may still be growing for a few minutes only.
func (c *WCLClient) cacheTTL(startMS int64) time.Duration {
	if startMS > 0 && c.now().Sub(time.UnixMilli(startMS)) < constants.FreshReportAge {
		return constants.FreshReportCacheTTL
	}
	return constants.FinalReportCacheTTL
}

func (c *WCLClient) ensureToken(ctx context.Context) (string, error) {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()

	if c.token != "" && c.now().Before(c.tokenExp.Add(-time.Minute)) {
		return c.token, nil
	}
	if c.clientID == "" || c.clientSecret == "" {
		return "", backoff.Permanent(ErrMissingCredentials)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.tokenURL)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(c.clientID+":"+c.clientSecret)))
	req.SetBodyString("grant_type=client_credentials")

	if err := c.do(ctx, req, resp); err != nil {
		return "", err
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		return "", statusError(resp)
	}

	var tok tokenResponse
	if err := json.Unmarshal(resp.Body(), &tok); err != nil {
		return "", backoff.Permanent(fmt.Errorf("decode token: %w", err))
	}
	if tok.AccessToken == "" {
		return "", backoff.Permanent(errors.New("token response missing access_token"))
	}
	expiresIn := max(tok.ExpiresIn, 60)
	c.token = tok.AccessToken
	c.tokenExp = c.now().Add(time.Duration(expiresIn) * time.Second)
	c.logger.Info().Int("expires_in", expiresIn).Msg("obtained access token")
	return c.token, nil
}

func (c *WCLClient) do(ctx context.Context, req *fasthttp.Request, resp *fasthttp.Response) error {
	deadline, ok := ctx.Deadline()
	if ok {
		return c.client.DoDeadline(req, resp, deadline)
	}
	return c.client.DoTimeout(req, resp, constants.ExternalAPITimeout)
}

func statusError(resp *fasthttp.Response) error {
	se := &StatusError{Code: resp.StatusCode()}
	if ra := string(resp.Header.Peek("Retry-After")); ra != "" {
		if secs, err := strconv.Atoi(ra); err == nil {
			se.RetryAfter = secs
		}
	}
	if se.RetryAfter > 0 {
		return backoff.RetryAfter(se.RetryAfter)
	}
	if !se.Retryable() {
		return backoff.Permanent(se)
	}
	return se
}

// doRequest posts one GraphQL query, retrying transport failures, 429 and
// 5xx answers with capped exponential backoff.
func doRequest[T any](ctx context.Context, c *WCLClient, query string, variables map[string]any) (*T, error) {
	payload, err := json.Marshal(graphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return nil, err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.initialBackoff
	b.MaxInterval = c.maxBackoff

	return backoff.Retry(ctx, func() (*T, error) {
		token, err := c.ensureToken(ctx)
		if err != nil {
			return nil, err
		}

		req := fasthttp.AcquireRequest()
		resp := fasthttp.AcquireResponse()
		defer fasthttp.ReleaseRequest(req)
		defer fasthttp.ReleaseResponse(resp)

		req.SetRequestURI(c.baseURL)
		req.Header.SetMethod(fasthttp.MethodPost)
		req.Header.SetContentType("application/json")
		req.Header.Set("Authorization", "Bearer "+token)
		req.SetBody(payload)

		start := c.now()
		if err := c.do(ctx, req, resp); err != nil {
			return nil, err
		}
		c.updateRateLimit(resp)

		if resp.StatusCode() == fasthttp.StatusUnauthorized {
			c.dropToken()
			return nil, &StatusError{Code: resp.StatusCode()}
		}
		if resp.StatusCode() != fasthttp.StatusOK {
			return nil, statusError(resp)
		}

		var env graphQLEnvelope[T]
		if err := json.Unmarshal(resp.Body(), &env); err != nil {
			return nil, backoff.Permanent(fmt.Errorf("decode response: %w", err))
		}
		if len(env.Errors) > 0 {
			return nil, backoff.Permanent(env.Errors)
		}
		c.logger.Debug().Dur("elapsed", c.now().Sub(start)).Msg("request succeeded")
		return &env.Body, nil
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(c.maxTries),
		backoff.WithNotify(func(err error, next time.Duration) {
			c.logger.Warn().Err(err).Dur("retry_in", next).Msg("request failed, retrying")
		}),
	)
}

func (c *WCLClient) dropToken() {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()
	c.token = ""
}
