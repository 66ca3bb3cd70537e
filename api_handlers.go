package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"fileqa/internal/document"
	"fileqa/internal/finance"
	"fileqa/internal/llm"
	"fileqa/internal/table"
)

// APIHandler handles JSON API requests
type APIHandler struct {
	Asker    *Asker
	Datasets *DatasetStore
}

type datasetRequest struct {
	Question string `json:"question"`
	SQL      string `json:"sql"`
	Provider string `json:"provider"`
	APIKey   string `json:"api_key"`
}

type datasetResponse struct {
	*Dataset
	Columns []table.Column `json:"columns"`
	Rows    int64          `json:"rows"`
}

// Ask handles multipart questions about an uploaded file
func (h *APIHandler) Ask(w http.ResponseWriter, r *http.Request) {
	doc, question, creds, ok := h.readForm(w, r)
	if !ok {
		return
	}

	ans, err := h.Asker.Ask(r.Context(), doc, question, creds)
	if err != nil {
		h.respondAskError(w, err, ans)
		return
	}
	respondJSON(w, http.StatusOK, ans)
}

// Agent runs the agent over an uploaded CSV
func (h *APIHandler) Agent(w http.ResponseWriter, r *http.Request) {
	doc, question, creds, ok := h.readForm(w, r)
	if !ok {
		return
	}
	if doc.Kind != document.KindTable {
		respondError(w, http.StatusBadRequest, errNotTabular.Error())
		return
	}

	text, err := h.Asker.AskAgent(r.Context(), doc, question, creds)
	if err != nil {
		h.respondAskError(w, err, nil)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"question": question,
		"answer":   text,
	})
}

// Quote returns the scraped quote for a ticker symbol
func (h *APIHandler) Quote(w http.ResponseWriter, r *http.Request) {
	q, err := h.Asker.Scraper.Quote(r.Context(), chi.URLParam(r, "symbol"))
	switch {
	case errors.Is(err, finance.ErrInvalidSymbol):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, finance.ErrQuoteNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case err != nil:
		respondError(w, http.StatusBadGateway, err.Error())
	default:
		respondJSON(w, http.StatusOK, map[string]any{
			"quote": q,
			"text":  q.String(),
		})
	}
}

// CreateDataset loads an uploaded CSV and keeps it for later questions
func (h *APIHandler) CreateDataset(w http.ResponseWriter, r *http.Request) {
	doc, err := readUpload(w, r, h.Asker.Config.MaxUploadBytes())
	if err != nil {
		respondError(w, uploadStatus(err), err.Error())
		return
	}

	tbl, err := h.Asker.OpenTable(r.Context(), doc)
	if err != nil {
		status := http.StatusUnprocessableEntity
		if errors.Is(err, errNotTabular) {
			status = http.StatusBadRequest
		}
		respondError(w, status, err.Error())
		return
	}

	ds := h.Datasets.Add(doc.Name, tbl)
	if logger != nil {
		logger.Info("Dataset created", "id", ds.ID, "name", ds.Name)
	}
	h.respondDataset(w, r, http.StatusCreated, ds)
}

// GetDataset returns the schema and row count of a dataset
func (h *APIHandler) GetDataset(w http.ResponseWriter, r *http.Request) {
	ds, ok := h.dataset(w, r)
	if !ok {
		return
	}
	h.respondDataset(w, r, http.StatusOK, ds)
}

// DeleteDataset drops a dataset
func (h *APIHandler) DeleteDataset(w http.ResponseWriter, r *http.Request) {
	if err := h.Datasets.Delete(chi.URLParam(r, "id")); err != nil {
		if errors.Is(err, errDatasetNotFound) {
			respondError(w, http.StatusNotFound, "Dataset not found")
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AskDataset answers a question against a stored dataset
func (h *APIHandler) AskDataset(w http.ResponseWriter, r *http.Request) {
	ds, ok := h.dataset(w, r)
	if !ok {
		return
	}
	req, ok := decodeDatasetRequest(w, r)
	if !ok {
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		respondError(w, http.StatusBadRequest, errMissingQuestion.Error())
		return
	}

	ans, err := h.Asker.AskTable(r.Context(), ds.Table, req.Question, Credentials{Provider: req.Provider, APIKey: req.APIKey})
	if err != nil {
		h.respondAskError(w, err, ans)
		return
	}
	respondJSON(w, http.StatusOK, ans)
}

// QueryDataset runs caller-supplied SQL against a stored dataset
func (h *APIHandler) QueryDataset(w http.ResponseWriter, r *http.Request) {
	ds, ok := h.dataset(w, r)
	if !ok {
		return
	}
	req, ok := decodeDatasetRequest(w, r)
	if !ok {
		return
	}
	if strings.TrimSpace(req.SQL) == "" {
		respondError(w, http.StatusBadRequest, "sql is required")
		return
	}

	rs, err := ds.Table.Query(r.Context(), req.SQL)
	if err != nil {
		respondJSON(w, http.StatusUnprocessableEntity, map[string]string{
			"sql":   req.SQL,
			"error": "Error executing SQL query: " + err.Error(),
		})
		return
	}
	rows, cols := rs.Shape()
	respondJSON(w, http.StatusOK, map[string]any{
		"sql":          req.SQL,
		"columns":      rs.Columns,
		"rows":         rs.Records(),
		"row_count":    rows,
		"column_count": cols,
	})
}

// Health reports liveness
func (h *APIHandler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"datasets": h.Datasets.Len(),
	})
}

func (h *APIHandler) readForm(w http.ResponseWriter, r *http.Request) (*document.Document, string, Credentials, bool) {
	doc, err := readUpload(w, r, h.Asker.Config.MaxUploadBytes())
	if err != nil {
		respondError(w, uploadStatus(err), err.Error())
		return nil, "", Credentials{}, false
	}
	question := strings.TrimSpace(r.FormValue("question"))
	if question == "" {
		respondError(w, http.StatusBadRequest, errMissingQuestion.Error())
		return nil, "", Credentials{}, false
	}
	return doc, question, Credentials{Provider: r.FormValue("provider"), APIKey: r.FormValue("api_key")}, true
}

func (h *APIHandler) dataset(w http.ResponseWriter, r *http.Request) (*Dataset, bool) {
	ds, err := h.Datasets.Get(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusNotFound, "Dataset not found")
		return nil, false
	}
	return ds, true
}

func (h *APIHandler) respondDataset(w http.ResponseWriter, r *http.Request, status int, ds *Dataset) {
	schema, err := ds.Table.Schema(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	count, err := ds.Table.Count(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, status, datasetResponse{Dataset: ds, Columns: schema, Rows: count})
}

func (h *APIHandler) respondAskError(w http.ResponseWriter, err error, ans *Answer) {
	if errors.Is(err, llm.ErrMissingAPIKey) {
		respondError(w, http.StatusUnauthorized, err.Error())
		return
	}
	if errors.Is(err, errNotTabular) || errors.Is(err, errUnknownProvider) {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	body := map[string]string{"error": "Error during API call: " + err.Error()}
	if ans != nil && ans.Prompt != "" {
		body["prompt"] = ans.Prompt
	}
	if logger != nil {
		logger.Error("Question failed", "error", err)
	}
	respondJSON(w, http.StatusBadGateway, body)
}

func decodeDatasetRequest(w http.ResponseWriter, r *http.Request) (datasetRequest, bool) {
	var req datasetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return req, false
	}
	return req, true
}

func uploadStatus(err error) int {
	switch {
	case errors.Is(err, document.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, document.ErrUnsupportedType):
		return http.StatusUnsupportedMediaType
	default:
		return http.StatusBadRequest
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondJSON is a helper function to send JSON responses.
// The body is encoded before the header is written so an encoding failure becomes a 500.
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(data); err != nil {
		if logger != nil {
			logger.Error("JSON encoding error", "error", err, "status", status)
		}
		buf.Reset()
		buf.WriteString(`{"error":"failed to encode response"}` + "\n")
		status = http.StatusInternalServerError
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(buf.Bytes()); err != nil && logger != nil {
		logger.Error("Failed to write response", "error", err)
	}
}
