package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"fileqa/internal/config"
	"fileqa/internal/llm"
	"fileqa/internal/qa"
	"fileqa/internal/table"
)

const companiesCSV = `name,market_cap,closing_price
Acme,100,10.5
Globex,300,20
Initech,200,15
`

const article = "Go is an open source programming language that makes it simple to build secure, scalable systems."

// testConfig returns a config with an Anthropic key and the SQLite engine
func testConfig() *config.Config {
	return &config.Config{
		Provider:        config.ProviderAnthropic,
		Model:           config.DefaultModel(config.ProviderAnthropic),
		AnthropicAPIKey: "test-key",
		Engine:          config.EngineSQLite,
		MaxSQLRetries:   2,
		Port:            3000,
		LogDir:          ".",
		MaxUploadMB:     1,
		MaxDatasets:     2,
	}
}

// SetupTestAsker returns an Asker whose model calls go to c and whose agent returns agentReply
func SetupTestAsker(t *testing.T, cfg *config.Config, c llm.Completer, agentReply string) *Asker {
	t.Helper()
	a := NewAsker(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	a.NewCompleter = func(provider, apiKey, model string) (llm.Completer, error) {
		return c, nil
	}
	a.RunAgent = func(ctx context.Context, tbl *table.Table, svc *qa.Service, creds Credentials, question string) (string, error) {
		return agentReply, nil
	}
	return a
}

// SetupTestRouter builds the full router around asker
func SetupTestRouter(t *testing.T, asker *Asker) (http.Handler, *DatasetStore) {
	t.Helper()
	datasets := NewDatasetStore(asker.Config.MaxDatasets)
	t.Cleanup(datasets.Close)

	handler, err := NewRouter(ServerConfig{Config: asker.Config, Asker: asker, Datasets: datasets})
	if err != nil {
		t.Fatalf("NewRouter failed: %v", err)
	}
	return handler, datasets
}

// multipartRequest builds a multipart POST. An empty filename leaves out the file part.
func multipartRequest(t *testing.T, target, filename, content string, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if filename != "" {
		part, err := w.CreateFormFile("file", filename)
		if err != nil {
			t.Fatalf("CreateFormFile failed: %v", err)
		}
		if _, err := io.WriteString(part, content); err != nil {
			t.Fatalf("writing file part failed: %v", err)
		}
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatalf("WriteField failed: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("closing multipart writer failed: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func serve(handler http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}
