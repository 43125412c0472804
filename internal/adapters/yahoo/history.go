package yahoo

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/alejandrodnm/portfolio-analysis/internal/domain"
	"golang.org/x/sync/errgroup"
)

// FetchHistories implementa ports.PriceProvider.
// Los activos cuyo fetch falla se registran y se omiten del resultado.
// Solo devuelve error si el contexto se cancela.
func (c *Client) FetchHistories(ctx context.Context, assets []domain.AssetID) (map[domain.AssetID]domain.PriceHistory, error) {
	start := time.Now()
	out := make(map[domain.AssetID]domain.PriceHistory, len(assets))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Concurrency)

	for _, id := range assets {
		g.Go(func() error {
			h, err := c.FetchHistory(gctx, id)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				slog.Warn("price history fetch failed", "asset", id, "err", err)
				return nil
			}
			mu.Lock()
			out[id] = h
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("yahoo.FetchHistories: %w", err)
	}

	slog.Info("price histories fetched",
		"requested", len(assets),
		"fetched", len(out),
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return out, nil
}

// FetchHistory descarga el histórico de un activo, probando cada base URL en orden.
func (c *Client) FetchHistory(ctx context.Context, id domain.AssetID) (domain.PriceHistory, error) {
	var lastErr error
	for _, base := range c.cfg.BaseURLs {
		var resp chartResponse
		if err := c.get(ctx, c.chartURL(base, id), &resp); err != nil {
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			slog.Debug("chart request failed", "asset", id, "base", base, "err", err)
			continue
		}
		return toHistory(id, resp)
	}
	return domain.PriceHistory{}, fmt.Errorf("yahoo.FetchHistory %s: %w", id, lastErr)
}

func (c *Client) chartURL(base string, id domain.AssetID) string {
	q := url.Values{}
	q.Set("range", c.cfg.Range)
	q.Set("interval", c.cfg.Interval)
	return fmt.Sprintf("%s/v8/finance/chart/%s?%s",
		strings.TrimRight(base, "/"), url.PathEscape(Symbol(id)), q.Encode())
}

// Symbol traduce un ticker del broker al formato de Yahoo ("BRK B" → "BRK-B").
func Symbol(id domain.AssetID) string {
	s := strings.TrimSpace(string(id))
	s = strings.ReplaceAll(s, " ", "-")
	return strings.ReplaceAll(s, ".", "-")
}

// toHistory convierte la respuesta en una serie diaria ordenada y sin fechas repetidas.
// Los cierres nulos se conservan como observaciones ausentes (NaN).
func toHistory(id domain.AssetID, resp chartResponse) (domain.PriceHistory, error) {
	if e := resp.Chart.Error; e != nil {
		return domain.PriceHistory{}, fmt.Errorf("chart error %s: %s", e.Code, e.Description)
	}
	if len(resp.Chart.Result) == 0 {
		return domain.PriceHistory{}, fmt.Errorf("empty chart result")
	}

	r := resp.Chart.Result[0]
	closes := r.closes()

	byDay := make(map[string]domain.PricePoint, len(r.Timestamp))
	for i, ts := range r.Timestamp {
		local := time.Unix(ts+r.Meta.GMTOffset, 0).UTC()
		p := domain.PricePoint{
			Date:  time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC),
			Close: math.NaN(),
		}
		if i < len(closes) && closes[i] != nil {
			p.Close = *closes[i]
		}
		// Yahoo a veces repite la última vela con el precio intradía: gana la última.
		byDay[p.Day()] = p
	}

	h := domain.PriceHistory{Asset: id, Points: make([]domain.PricePoint, 0, len(byDay))}
	for _, p := range byDay {
		h.Points = append(h.Points, p)
	}
	sort.Slice(h.Points, func(i, j int) bool { return h.Points[i].Date.Before(h.Points[j].Date) })
	return h, nil
}
