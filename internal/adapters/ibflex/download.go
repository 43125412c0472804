package ibflex

// download.go: cliente del Flex Web Service (v3).
//
//   1. SendRequest?t=TOKEN&q=QUERY&v=3 → <ReferenceCode>
//   2. GetStatement?q=REF&t=TOKEN&v=3  → extracto XML
// Mientras IB genera el extracto, GetStatement responde ErrorCode 1019 y hay que reintentar.

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultFlexBaseURL = "https://gdcdyn.interactivebrokers.com/Universal/servlet"

	flexVersion      = "3"
	codeInProgress   = "1019"
	defaultPollWait  = 5 * time.Second
	defaultMaxPolls  = 12
	maxResponseBytes = 64 << 20
)

// ErrStatementNotReady se devuelve si el extracto sigue generándose tras todos los intentos.
var ErrStatementNotReady = errors.New("ibflex: statement generation still in progress")

// flexStatus es la respuesta de control del servicio (FlexStatementResponse).
type flexStatus struct {
	XMLName       xml.Name
	Status        string `xml:"Status"`
	ReferenceCode string `xml:"ReferenceCode"`
	ErrorCode     string `xml:"ErrorCode"`
	ErrorMessage  string `xml:"ErrorMessage"`
}

// FlexClient descarga extractos Flex con rate limiting (IB permite 1 req/s por token).
type FlexClient struct {
	http     *http.Client
	baseURL  string
	limiter  *rate.Limiter
	pollWait time.Duration
	maxPolls int
}

// NewFlexClient crea un FlexClient. baseURL vacío usa el endpoint de producción.
func NewFlexClient(baseURL string) *FlexClient {
	if baseURL == "" {
		baseURL = DefaultFlexBaseURL
	}
	return &FlexClient{
		http:     &http.Client{Timeout: 60 * time.Second},
		baseURL:  strings.TrimRight(baseURL, "/"),
		limiter:  rate.NewLimiter(rate.Every(time.Second), 1),
		pollWait: defaultPollWait,
		maxPolls: defaultMaxPolls,
	}
}

// WithPolling cambia la espera entre intentos de GetStatement (para tests).
func (c *FlexClient) WithPolling(wait time.Duration, maxPolls int) *FlexClient {
	c.pollWait = wait
	c.maxPolls = maxPolls
	return c
}

// Download pide el extracto de la query y devuelve el XML tal cual.
func (c *FlexClient) Download(ctx context.Context, token, queryID string) ([]byte, error) {
	if token == "" || queryID == "" {
		return nil, fmt.Errorf("ibflex.Download: token and query id are required")
	}

	ref, err := c.sendRequest(ctx, token, queryID)
	if err != nil {
		return nil, fmt.Errorf("ibflex.Download: %w", err)
	}
	slog.Info("flex statement requested", "query_id", queryID, "reference", ref)

	for attempt := 1; attempt <= c.maxPolls; attempt++ {
		body, err := c.fetch(ctx, c.endpoint("GetStatement", url.Values{
			"q": {ref},
			"t": {token},
			"v": {flexVersion},
		}))
		if err != nil {
			return nil, fmt.Errorf("ibflex.Download: get statement: %w", err)
		}

		st, isStatus := parseStatus(body)
		if !isStatus {
			slog.Info("flex statement downloaded", "reference", ref, "bytes", len(body))
			return body, nil
		}
		if st.ErrorCode != codeInProgress {
			return nil, fmt.Errorf("ibflex.Download: get statement: %s", st.describe())
		}

		slog.Debug("flex statement not ready", "attempt", attempt, "wait", c.pollWait)
		select {
		case <-time.After(c.pollWait):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, ErrStatementNotReady
}

func (c *FlexClient) sendRequest(ctx context.Context, token, queryID string) (string, error) {
	body, err := c.fetch(ctx, c.endpoint("SendRequest", url.Values{
		"t": {token},
		"q": {queryID},
		"v": {flexVersion},
	}))
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	st, ok := parseStatus(body)
	if !ok {
		return "", fmt.Errorf("send request: unexpected response")
	}
	if !strings.EqualFold(st.Status, "Success") || st.ReferenceCode == "" {
		return "", fmt.Errorf("send request: %s", st.describe())
	}
	return st.ReferenceCode, nil
}

func (c *FlexClient) endpoint(op string, q url.Values) string {
	return fmt.Sprintf("%s/FlexStatementService.%s?%s", c.baseURL, op, q.Encode())
}

func (c *FlexClient) fetch(ctx context.Context, u string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode, truncate(string(body), 256))
	}
	return body, nil
}

// parseStatus devuelve la respuesta de control si body es un FlexStatementResponse.
func parseStatus(body []byte) (flexStatus, bool) {
	var st flexStatus
	if err := xml.NewDecoder(bytes.NewReader(body)).Decode(&st); err != nil {
		return flexStatus{}, false
	}
	return st, st.XMLName.Local == "FlexStatementResponse"
}

func (s flexStatus) describe() string {
	if s.ErrorCode == "" && s.ErrorMessage == "" {
		return fmt.Sprintf("status %q", s.Status)
	}
	return fmt.Sprintf("status %q, error %s: %s", s.Status, s.ErrorCode, s.ErrorMessage)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
