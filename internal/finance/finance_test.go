package finance

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const quotePage = `<html><body>
<div class="ticker-bar">
  <fin-streamer data-symbol="^GSPC" data-field="regularMarketPrice">5,000.00</fin-streamer>
</div>
<section>
  <fin-streamer data-symbol="AAPL" data-field="regularMarketPrice"> 189.84 </fin-streamer>
  <fin-streamer data-symbol="AAPL" data-field="regularMarketChange">+1.25</fin-streamer>
  <fin-streamer data-symbol="AAPL" data-field="regularMarketChangePercent">(+0.66%)</fin-streamer>
</section>
</body></html>`

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Mozilla/5.0", r.Header.Get("User-Agent"))
		switch r.URL.Path {
		case "/quote/AAPL":
			_, _ = w.Write([]byte(quotePage))
		case "/quote/BARE":
			_, _ = w.Write([]byte(`<fin-streamer data-field="regularMarketPrice">10</fin-streamer>
<fin-streamer data-field="regularMarketChange">-1</fin-streamer>
<fin-streamer data-field="regularMarketChangePercent">-9.09%</fin-streamer>`))
		case "/quote/EMPTY":
			_, _ = w.Write([]byte(`<html><body>Symbol lookup</body></html>`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestQuote(t *testing.T) {
	srv := newTestServer(t)
	s := NewScraper(srv.URL+"/", nil)

	q, err := s.Quote(context.Background(), " aapl ")
	require.NoError(t, err)
	assert.Equal(t, &Quote{Symbol: "AAPL", Price: "189.84", Change: "+1.25", ChangePercent: "(+0.66%)"}, q)
	assert.Equal(t, "Stock: AAPL\nPrice: 189.84\nChange: +1.25 ((+0.66%))", q.String())

	q, err = s.Quote(context.Background(), "BARE")
	require.NoError(t, err)
	assert.Equal(t, "Stock: BARE\nPrice: 10\nChange: -1 (-9.09%)", q.String())
}

func TestQuoteNotFound(t *testing.T) {
	srv := newTestServer(t)
	s := NewScraper(srv.URL, nil)

	tests := []struct {
		name   string
		symbol string
		want   error
	}{
		{"missing fields", "EMPTY", ErrQuoteNotFound},
		{"http 404", "NOPE", ErrQuoteNotFound},
		{"empty symbol", "  ", ErrInvalidSymbol},
		{"bad characters", "AA PL", ErrInvalidSymbol},
		{"path traversal", "../admin", ErrInvalidSymbol},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Quote(context.Background(), tt.symbol)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestDescribe(t *testing.T) {
	srv := newTestServer(t)
	s := NewScraper(srv.URL, nil)

	assert.Equal(t, "Stock: AAPL\nPrice: 189.84\nChange: +1.25 ((+0.66%))", s.Describe(context.Background(), "AAPL"))
	assert.Equal(t, "Could not retrieve data for EMPTY.", s.Describe(context.Background(), "EMPTY"))
}

func TestNormalizeSymbol(t *testing.T) {
	for in, want := range map[string]string{"msft": "MSFT", "brk.b": "BRK.B", "^gspc": "^GSPC", "eurusd=x": "EURUSD=X"} {
		got, err := NormalizeSymbol(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}
