package yahoo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultBaseURL  = "https://query1.finance.yahoo.com"
	fallbackBaseURL = "https://query2.finance.yahoo.com"

	// Sin límite documentado; 2 req/s evita los 429 en la práctica.
	defaultRatePerSec  = 2
	defaultConcurrency = 4

	maxRetries    = 3
	baseRetryWait = 500 * time.Millisecond

	userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15"
)

// Config controla el cliente de la API de charts.
type Config struct {
	BaseURLs          []string // se prueban en orden; vacío = query1 y query2
	Range             string   // ventana, "1y" por defecto
	Interval          string   // granularidad, "1d" por defecto
	RequestsPerSecond float64
	Concurrency       int // fetches simultáneos
	Timeout           time.Duration
}

// DefaultConfig devuelve la configuración de producción.
func DefaultConfig() Config {
	return Config{
		BaseURLs:          []string{defaultBaseURL, fallbackBaseURL},
		Range:             "1y",
		Interval:          "1d",
		RequestsPerSecond: defaultRatePerSec,
		Concurrency:       defaultConcurrency,
		Timeout:           15 * time.Second,
	}
}

// Client es el HTTP client de Yahoo Finance con rate limiting y retries.
type Client struct {
	http    *http.Client
	cfg     Config
	limiter *rate.Limiter
}

// NewClient crea un Client. Los campos vacíos de cfg toman los valores por defecto.
func NewClient(cfg Config) *Client {
	def := DefaultConfig()
	if len(cfg.BaseURLs) == 0 {
		cfg.BaseURLs = def.BaseURLs
	}
	if cfg.Range == "" {
		cfg.Range = def.Range
	}
	if cfg.Interval == "" {
		cfg.Interval = def.Interval
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = def.RequestsPerSecond
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	return &Client{
		http:    &http.Client{Timeout: cfg.Timeout},
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Concurrency),
	}
}

// ErrRateLimited indica que Yahoo siguió respondiendo 429 tras agotar los reintentos.
var ErrRateLimited = errors.New("yahoo: rate limited")

// get hace un GET del chart con rate limiting y reintentos.
func (c *Client) get(ctx context.Context, url string, out any) error {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			if err := pause(ctx, backoff(attempt-1, lastErr)); err != nil {
				return err
			}
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		resp, err := c.do(ctx, url)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = fmt.Errorf("request: %w", err)
			continue
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			resp.Body.Close()
			slog.Warn("chart request throttled", "attempt", attempt+1, "retry_after", resp.Header.Get("Retry-After"))
			lastErr = &throttled{retryAfter: retryAfter(resp.Header.Get("Retry-After"))}
			continue
		case resp.StatusCode >= 500:
			resp.Body.Close()
			lastErr = fmt.Errorf("server error %d", resp.StatusCode)
			continue
		case resp.StatusCode >= 400:
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			resp.Body.Close()
			return fmt.Errorf("client error %d: %s", resp.StatusCode, string(body))
		}

		err = json.NewDecoder(resp.Body).Decode(out)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("decode chart: %w", err)
		}
		return nil
	}
	return fmt.Errorf("%d attempts: %w", maxRetries+1, lastErr)
}

func (c *Client) do(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	return c.http.Do(req)
}

// throttled es la respuesta 429 del último intento.
type throttled struct {
	retryAfter time.Duration // -1 si Yahoo no mandó Retry-After
}

func (e *throttled) Error() string { return "status 429" }

func (e *throttled) Unwrap() error { return ErrRateLimited }

// retryAfter interpreta Retry-After en segundos; -1 si falta o no es válido.
func retryAfter(h string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(h))
	if err != nil || secs < 0 {
		return -1
	}
	return time.Duration(secs) * time.Second
}

// backoff es la espera antes del siguiente intento. Un 429 con Retry-After manda.
func backoff(attempt int, lastErr error) time.Duration {
	var t *throttled
	if errors.As(lastErr, &t) && t.retryAfter >= 0 {
		return t.retryAfter
	}
	return time.Duration(math.Pow(2, float64(attempt))) * baseRetryWait
}

func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
