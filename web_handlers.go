package main

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"fileqa/internal/config"
	"fileqa/internal/document"
	"fileqa/internal/llm"
)

//go:embed templates
var templateFS embed.FS

var (
	errMissingFile     = errors.New("no file uploaded")
	errMissingQuestion = errors.New("no question asked")
)

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

const (
	qaPlaceholder    = "Can you give me a short summary?"
	agentPlaceholder = "e.g., Show me the top 5 companies by market cap"
	startMessage     = "Upload a file and ask a question to get started."
)

// WebHandler handles HTMX HTML requests
type WebHandler struct {
	Asker     *Asker
	templates *template.Template
}

// NewWebHandler creates a new WebHandler with parsed templates
func NewWebHandler(asker *Asker) (*WebHandler, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html", "templates/partials/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	return &WebHandler{Asker: asker, templates: tmpl}, nil
}

// pageData is shared by both pages
type pageData struct {
	Title       string
	Placeholder string
	Accept      string
	Provider    string
	Providers   []providerOption
	HasKey      map[string]bool
}

type providerOption struct {
	Value string
	Label string
}

// answerView is rendered by the answer partials
type answerView struct {
	Info   string
	Error  string
	Prompt string
	Answer *Answer
	HTML   template.HTML
	Rows   [][]string
}

// QAPage renders the file Q&A page
func (h *WebHandler) QAPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, http.StatusOK, "qa.html", h.page("File Q&A", qaPlaceholder, ".txt,.md,.csv"))
}

// AgentPage renders the agent page
func (h *WebHandler) AgentPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, http.StatusOK, "agent.html", h.page("CSV Agent", agentPlaceholder, ".csv"))
}

// Ask answers a question about the uploaded file and returns the answer partial
func (h *WebHandler) Ask(w http.ResponseWriter, r *http.Request) {
	doc, question, creds, view := h.readForm(w, r)
	if view != nil {
		h.render(w, http.StatusOK, "answer.html", view)
		return
	}

	ans, err := h.Asker.Ask(r.Context(), doc, question, creds)
	if err != nil {
		h.render(w, http.StatusOK, "answer.html", h.failure(err, creds, ans))
		return
	}

	view = &answerView{Answer: ans}
	if ans.Result != nil {
		view.Rows = ans.Result.Strings()
	}
	if ans.Kind == document.KindText.String() {
		view.HTML = renderHTML(ans.Text)
	}
	h.render(w, http.StatusOK, "answer.html", view)
}

// AgentAsk runs the agent over the uploaded CSV and returns the agent partial
func (h *WebHandler) AgentAsk(w http.ResponseWriter, r *http.Request) {
	doc, question, creds, view := h.readForm(w, r)
	if view != nil {
		h.render(w, http.StatusOK, "agent_answer.html", view)
		return
	}
	if doc.Kind != document.KindTable {
		h.render(w, http.StatusOK, "agent_answer.html", &answerView{Error: errNotTabular.Error()})
		return
	}

	text, err := h.Asker.AskAgent(r.Context(), doc, question, creds)
	if err != nil {
		h.render(w, http.StatusOK, "agent_answer.html", h.failure(err, creds, nil))
		return
	}
	h.render(w, http.StatusOK, "agent_answer.html", &answerView{HTML: renderHTML(text)})
}

// readForm returns a view to render instead of an answer when the form is incomplete
func (h *WebHandler) readForm(w http.ResponseWriter, r *http.Request) (*document.Document, string, Credentials, *answerView) {
	doc, err := readUpload(w, r, h.Asker.Config.MaxUploadBytes())
	creds := Credentials{Provider: r.FormValue("provider"), APIKey: r.FormValue("api_key")}
	question := strings.TrimSpace(r.FormValue("question"))

	switch {
	case errors.Is(err, errMissingFile):
		return nil, "", creds, &answerView{Info: startMessage}
	case err != nil:
		return nil, "", creds, &answerView{Error: err.Error()}
	case question == "":
		return nil, "", creds, &answerView{Info: startMessage}
	}

	if _, err := h.Asker.Resolve(creds); err != nil {
		return nil, "", creds, h.failure(err, creds, nil)
	}
	return doc, question, creds, nil
}

func (h *WebHandler) failure(err error, creds Credentials, ans *Answer) *answerView {
	if errors.Is(err, llm.ErrMissingAPIKey) {
		provider := creds.Provider
		if provider == "" {
			provider = h.Asker.Config.Provider
		}
		return &answerView{Info: MissingKeyMessage(provider)}
	}

	view := &answerView{Error: fmt.Sprintf("Error during API call: %v", err)}
	if ans != nil {
		view.Prompt = ans.Prompt
	}
	return view
}

func (h *WebHandler) page(title, placeholder, accept string) pageData {
	cfg := h.Asker.Config
	return pageData{
		Title:       title,
		Placeholder: placeholder,
		Accept:      accept,
		Provider:    cfg.Provider,
		Providers: []providerOption{
			{Value: config.ProviderAnthropic, Label: config.ProviderLabel(config.ProviderAnthropic)},
			{Value: config.ProviderOpenAI, Label: config.ProviderLabel(config.ProviderOpenAI)},
		},
		HasKey: map[string]bool{
			config.ProviderAnthropic: cfg.AnthropicAPIKey != "",
			config.ProviderOpenAI:    cfg.OpenAIAPIKey != "",
		},
	}
}

func (h *WebHandler) render(w http.ResponseWriter, status int, name string, data any) {
	var buf bytes.Buffer
	if err := h.templates.ExecuteTemplate(&buf, name, data); err != nil {
		if logger != nil {
			logger.Error("Template error", "error", err, "template", name)
		}
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// readUpload parses a multipart form and classifies its "file" part
func readUpload(w http.ResponseWriter, r *http.Request, limit int64) (*document.Document, error) {
	// Allow room for the other form fields on top of the file itself
	r.Body = http.MaxBytesReader(w, r.Body, limit+1<<20)
	if err := r.ParseMultipartForm(limit); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, document.ErrTooLarge
		}
		if errors.Is(err, http.ErrNotMultipart) {
			return nil, errMissingFile
		}
		return nil, fmt.Errorf("invalid upload: %w", err)
	}

	f, hdr, err := r.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, errMissingFile
	}
	if err != nil {
		return nil, fmt.Errorf("invalid upload: %w", err)
	}
	defer func() { _ = f.Close() }()

	return document.Read(hdr.Filename, f, limit)
}

// renderHTML converts model markdown to HTML; raw HTML in the input is dropped
func renderHTML(md string) template.HTML {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(md), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(md))
	}
	return template.HTML(buf.String())
}
