package main

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"fileqa/internal/llm/llmtest"
)

const topCompanySQL = "```sql\nSELECT name FROM data_table ORDER BY market_cap DESC LIMIT 1\n```"

func TestQAPageRenders(t *testing.T) {
	handler, _ := SetupTestRouter(t, SetupTestAsker(t, testConfig(), llmtest.New("unused"), ""))

	rec := serve(handler, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}

	body := rec.Body.String()
	for _, want := range []string{"File Q&amp;A", `name="api_key"`, `accept=".txt,.md,.csv"`, "Anthropic key configured on the server."} {
		if !strings.Contains(body, want) {
			t.Errorf("Expected page to contain %q", want)
		}
	}
}

func TestAgentPageRenders(t *testing.T) {
	handler, _ := SetupTestRouter(t, SetupTestAsker(t, testConfig(), llmtest.New("unused"), ""))

	rec := serve(handler, httptest.NewRequest(http.MethodGet, "/agent", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `hx-post="/agent/ask"`) {
		t.Error("Expected agent form to post to /agent/ask")
	}
}

func TestAskTextFile(t *testing.T) {
	fake := llmtest.New("Go is a **programming language**.")
	handler, _ := SetupTestRouter(t, SetupTestAsker(t, testConfig(), fake, ""))

	req := multipartRequest(t, "/ask", "article.txt", article, map[string]string{"question": "What is Go?"})
	rec := serve(handler, req)

	body := rec.Body.String()
	if !strings.Contains(body, "<strong>programming language</strong>") {
		t.Errorf("Expected rendered markdown answer, got %s", body)
	}

	requests := fake.Requests()
	if len(requests) != 1 {
		t.Fatalf("Expected 1 model request, got %d", len(requests))
	}
	if !strings.HasPrefix(requests[0].Prompt, "Here's an article:\n"+article) {
		t.Errorf("Unexpected prompt: %q", requests[0].Prompt)
	}
}

func TestAskCSVFile(t *testing.T) {
	handler, _ := SetupTestRouter(t, SetupTestAsker(t, testConfig(), llmtest.New(topCompanySQL), ""))

	req := multipartRequest(t, "/ask", "companies.csv", companiesCSV, map[string]string{"question": "Which company is the largest?"})
	body := serve(handler, req).Body.String()

	for _, want := range []string{
		"SELECT name FROM data_table ORDER BY market_cap DESC LIMIT 1;",
		"<td>Globex</td>",
		"Result has 1 rows and 1 columns.",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("Expected answer to contain %q, got %s", want, body)
		}
	}
}

func TestAskCSVQueryFails(t *testing.T) {
	handler, _ := SetupTestRouter(t, SetupTestAsker(t, testConfig(), llmtest.New("SELECT revenue FROM data_table"), ""))

	req := multipartRequest(t, "/ask", "companies.csv", companiesCSV, map[string]string{"question": "What is the revenue?"})
	body := serve(handler, req).Body.String()

	if !strings.Contains(body, "Error executing SQL query:") {
		t.Errorf("Expected SQL error, got %s", body)
	}
	if !strings.Contains(body, "No results to display.") {
		t.Error("Expected empty-results message")
	}
}

func TestAskMissingKey(t *testing.T) {
	cfg := testConfig()
	cfg.AnthropicAPIKey = ""
	fake := llmtest.New("unused")
	handler, _ := SetupTestRouter(t, SetupTestAsker(t, cfg, fake, ""))

	req := multipartRequest(t, "/ask", "article.txt", article, map[string]string{"question": "What is Go?"})
	body := serve(handler, req).Body.String()

	if !strings.Contains(body, "Please provide your Anthropic API key to proceed.") {
		t.Errorf("Expected missing key message, got %s", body)
	}
	if len(fake.Requests()) != 0 {
		t.Error("Expected no model calls without a key")
	}
}

func TestAskKeyFromForm(t *testing.T) {
	cfg := testConfig()
	cfg.AnthropicAPIKey = ""
	handler, _ := SetupTestRouter(t, SetupTestAsker(t, cfg, llmtest.New("An answer."), ""))

	req := multipartRequest(t, "/ask", "notes.md", article, map[string]string{
		"question": "What is Go?",
		"provider": "openai",
		"api_key":  "sk-from-form",
	})
	body := serve(handler, req).Body.String()

	if !strings.Contains(body, "An answer.") {
		t.Errorf("Expected answer with key from the form, got %s", body)
	}
}

func TestAskWithoutFileOrQuestion(t *testing.T) {
	handler, _ := SetupTestRouter(t, SetupTestAsker(t, testConfig(), llmtest.New("unused"), ""))

	testCases := []struct {
		name     string
		filename string
		fields   map[string]string
	}{
		{"no file", "", map[string]string{"question": "What is Go?"}},
		{"no question", "article.txt", map[string]string{}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := multipartRequest(t, "/ask", tc.filename, article, tc.fields)
			body := serve(handler, req).Body.String()
			if !strings.Contains(body, startMessage) {
				t.Errorf("Expected start message, got %s", body)
			}
		})
	}
}

func TestAskUnsupportedFile(t *testing.T) {
	handler, _ := SetupTestRouter(t, SetupTestAsker(t, testConfig(), llmtest.New("unused"), ""))

	req := multipartRequest(t, "/ask", "report.pdf", "%PDF", map[string]string{"question": "What is this?"})
	body := serve(handler, req).Body.String()

	if !strings.Contains(body, "unsupported") {
		t.Errorf("Expected unsupported file error, got %s", body)
	}
}

func TestAskModelFailureShowsPrompt(t *testing.T) {
	handler, _ := SetupTestRouter(t, SetupTestAsker(t, testConfig(), llmtest.Failing(errors.New("rate limited")), ""))

	req := multipartRequest(t, "/ask", "article.txt", article, map[string]string{"question": "What is Go?"})
	body := serve(handler, req).Body.String()

	if !strings.Contains(body, "Error during API call: rate limited") {
		t.Errorf("Expected API error, got %s", body)
	}
	if !strings.Contains(body, "Prompt sent:") {
		t.Error("Expected the prompt to be shown")
	}
}

func TestAgentAsk(t *testing.T) {
	handler, _ := SetupTestRouter(t, SetupTestAsker(t, testConfig(), llmtest.New("unused"), "**Globex** is the largest company."))

	req := multipartRequest(t, "/agent/ask", "companies.csv", companiesCSV, map[string]string{"question": "Which company is the largest?"})
	body := serve(handler, req).Body.String()

	if !strings.Contains(body, "<strong>Globex</strong>") {
		t.Errorf("Expected agent answer, got %s", body)
	}
}

func TestAgentAskRejectsText(t *testing.T) {
	handler, _ := SetupTestRouter(t, SetupTestAsker(t, testConfig(), llmtest.New("unused"), "unused"))

	req := multipartRequest(t, "/agent/ask", "article.txt", article, map[string]string{"question": "What is Go?"})
	body := serve(handler, req).Body.String()

	if !strings.Contains(body, errNotTabular.Error()) {
		t.Errorf("Expected CSV-only error, got %s", body)
	}
}

func TestRenderHTMLDropsRawHTML(t *testing.T) {
	html := string(renderHTML("<script>alert(1)</script>\n\n**bold**"))

	if strings.Contains(html, "<script>") {
		t.Errorf("Expected raw HTML to be dropped, got %s", html)
	}
	if !strings.Contains(html, "<strong>bold</strong>") {
		t.Errorf("Expected markdown to render, got %s", html)
	}
}
