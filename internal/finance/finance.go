// Package finance scrapes stock quotes from a finance quote page.
package finance

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"

	"fileqa/internal/metrics"
)

const (
	DefaultBaseURL = "https://finance.yahoo.com"
	userAgent      = "Mozilla/5.0"
)

var (
	ErrQuoteNotFound = errors.New("quote not found")
	ErrInvalidSymbol = errors.New("invalid stock symbol")
)

var symbolPattern = regexp.MustCompile(`^[A-Z0-9.^=-]{1,15}$`)

// Quote is the market data shown on a quote page
type Quote struct {
	Symbol        string `json:"symbol"`
	Price         string `json:"price"`
	Change        string `json:"change"`
	ChangePercent string `json:"change_percent"`
}

func (q *Quote) String() string {
	return fmt.Sprintf("Stock: %s\nPrice: %s\nChange: %s (%s)", q.Symbol, q.Price, q.Change, q.ChangePercent)
}

// Scraper fetches quote pages
type Scraper struct {
	BaseURL string
	client  *resty.Client
	logger  *slog.Logger
}

// NewScraper creates a Scraper for baseURL (DefaultBaseURL when empty)
func NewScraper(baseURL string, logger *slog.Logger) *Scraper {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	client := resty.New().
		SetTimeout(30*time.Second).
		SetHeader("User-Agent", userAgent)
	return &Scraper{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		client:  client,
		logger:  logger,
	}
}

// NormalizeSymbol trims and upper-cases a ticker symbol and validates its characters
func NormalizeSymbol(symbol string) (string, error) {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if !symbolPattern.MatchString(s) {
		return "", fmt.Errorf("%w: %q", ErrInvalidSymbol, symbol)
	}
	return s, nil
}

// Quote fetches the current price and change for symbol
func (s *Scraper) Quote(ctx context.Context, symbol string) (*Quote, error) {
	sym, err := NormalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/quote/%s", s.BaseURL, sym)
	resp, err := s.client.R().SetContext(ctx).Get(url)
	if err != nil {
		metrics.Scrapes.WithLabelValues("error").Inc()
		s.logger.Error("Quote page fetch failed", "error", err, "symbol", sym, "url", url)
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	if resp.StatusCode() != http.StatusOK {
		metrics.Scrapes.WithLabelValues("error").Inc()
		s.logger.Error("Quote page returned non-OK status", "status_code", resp.StatusCode(), "symbol", sym)
		return nil, fmt.Errorf("%w: HTTP %d for %s", ErrQuoteNotFound, resp.StatusCode(), sym)
	}

	q, err := parseQuote(sym, resp.Body())
	if err != nil {
		metrics.Scrapes.WithLabelValues("not_found").Inc()
		s.logger.Warn("Quote fields missing from page", "error", err, "symbol", sym)
		return nil, err
	}

	metrics.Scrapes.WithLabelValues("ok").Inc()
	s.logger.Info("Scraped quote", "symbol", sym, "price", q.Price)
	return q, nil
}

// Describe returns the quote text for symbol, or a message saying it could not be retrieved
func (s *Scraper) Describe(ctx context.Context, symbol string) string {
	q, err := s.Quote(ctx, symbol)
	if err != nil {
		return fmt.Sprintf("Could not retrieve data for %s.", strings.TrimSpace(symbol))
	}
	return q.String()
}

func parseQuote(symbol string, body []byte) (*Quote, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse quote page: %w", err)
	}

	field := func(name string) string {
		// Quote pages also carry streamers for other tickers; prefer the requested one
		sel := doc.Find(fmt.Sprintf(`fin-streamer[data-symbol=%q][data-field=%q]`, symbol, name)).First()
		if sel.Length() == 0 {
			sel = doc.Find(fmt.Sprintf(`fin-streamer[data-field=%q]`, name)).First()
		}
		return strings.TrimSpace(sel.Text())
	}

	q := &Quote{
		Symbol:        symbol,
		Price:         field("regularMarketPrice"),
		Change:        field("regularMarketChange"),
		ChangePercent: field("regularMarketChangePercent"),
	}
	if q.Price == "" || q.Change == "" || q.ChangePercent == "" {
		return nil, fmt.Errorf("%w: %s", ErrQuoteNotFound, symbol)
	}
	return q, nil
}
