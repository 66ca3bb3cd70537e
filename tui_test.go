package main

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"fileqa/internal/llm/llmtest"
)

func setupTestModel(t *testing.T) model {
	t.Helper()
	asker := SetupTestAsker(t, testConfig(), llmtest.New("Go is a language."), "")
	m := initialModel(asker, mustDocument(t, "article.txt", article), nil)
	m.width = 80
	m.height = 24
	return m
}

// TestInitialModel tests the initial model creation
func TestInitialModel(t *testing.T) {
	m := setupTestModel(t)

	if m.currentView != inputView {
		t.Errorf("Expected initial view to be inputView, got %v", m.currentView)
	}
	if !m.input.Focused() {
		t.Error("Expected question input to be focused initially")
	}
	if m.answer != nil || m.err != nil {
		t.Error("Expected no answer or error initially")
	}
}

func TestEnterStartsQuestion(t *testing.T) {
	m := setupTestModel(t)

	newModel, cmd := m.handleInputViewKeys(tea.KeyMsg{Type: tea.KeyEnter})
	m = newModel.(model)
	if m.currentView != inputView || cmd != nil {
		t.Error("Expected an empty question to be ignored")
	}

	m.input.SetValue("What is Go?")
	newModel, cmd = m.handleInputViewKeys(tea.KeyMsg{Type: tea.KeyEnter})
	m = newModel.(model)

	if m.currentView != loadingView {
		t.Errorf("Expected loadingView, got %v", m.currentView)
	}
	if m.question != "What is Go?" {
		t.Errorf("Expected question to be stored, got %q", m.question)
	}
	if cmd == nil {
		t.Error("Expected a command to ask the question")
	}
}

func TestAskQuestionCommand(t *testing.T) {
	m := setupTestModel(t)

	msg := askQuestion(m.asker, m.doc, nil, "What is Go?")()
	am, ok := msg.(answerMsg)
	if !ok {
		t.Fatalf("Expected answerMsg, got %T", msg)
	}
	if am.err != nil {
		t.Fatalf("Expected no error, got %v", am.err)
	}
	if am.answer.Text != "Go is a language." {
		t.Errorf("Unexpected answer %q", am.answer.Text)
	}
}

func TestAskQuestionCommandTable(t *testing.T) {
	asker := SetupTestAsker(t, testConfig(), llmtest.New(topCompanySQL), "")
	tbl := openTestTable(t)
	defer func() { _ = tbl.Close() }()

	msg := askQuestion(asker, mustDocument(t, "companies.csv", companiesCSV), tbl, "Largest?")()
	am := msg.(answerMsg)
	if am.err != nil {
		t.Fatalf("Expected no error, got %v", am.err)
	}
	if am.answer.RowCount != 1 || am.answer.Rows[0]["name"] != "Globex" {
		t.Errorf("Unexpected rows %v", am.answer.Rows)
	}
	if !tbl.Loaded() {
		t.Error("Expected the shared table to stay open")
	}
}

func TestAnswerMessageHandling(t *testing.T) {
	m := setupTestModel(t)
	newModel, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	m = newModel.(model)
	m.currentView = loadingView
	m.question = "What is Go?"

	newModel, _ = m.Update(answerMsg{answer: &Answer{Kind: "text", Text: "Go is a language."}})
	m = newModel.(model)

	if m.currentView != resultView {
		t.Errorf("Expected resultView, got %v", m.currentView)
	}
	if !strings.Contains(m.viewport.View(), "language") {
		t.Error("Expected the answer in the viewport")
	}
}

func TestAnswerMessageError(t *testing.T) {
	m := setupTestModel(t)
	m.question = "What is Go?"

	newModel, _ := m.Update(answerMsg{
		answer: &Answer{Kind: "text", Prompt: "Here's an article:"},
		err:    errors.New("overloaded"),
	})
	m = newModel.(model)

	content := m.errorMarkdown()
	if !strings.Contains(content, "Error during API call:** overloaded") {
		t.Errorf("Expected API error, got %q", content)
	}
	if !strings.Contains(content, "Prompt sent:") {
		t.Error("Expected the prompt to be shown")
	}
}

func TestResultViewBackToInput(t *testing.T) {
	m := setupTestModel(t)
	m.currentView = resultView
	m.input.SetValue("old question")
	m.status = "✓ Copied to clipboard"

	newModel, _ := m.handleResultViewKeys(tea.KeyMsg{Type: tea.KeyEsc})
	m = newModel.(model)

	if m.currentView != inputView {
		t.Errorf("Expected inputView, got %v", m.currentView)
	}
	if m.input.Value() != "" || m.status != "" {
		t.Error("Expected input and status to be cleared")
	}
}

func TestCopyText(t *testing.T) {
	m := setupTestModel(t)

	m.answer = &Answer{Kind: "table", SQL: "SELECT 1;", Text: ""}
	if m.copyText() != "SELECT 1;" {
		t.Errorf("Expected SQL to be copied, got %q", m.copyText())
	}

	m.answer = &Answer{Kind: "text", Text: "Plain answer"}
	if m.copyText() != "Plain answer" {
		t.Errorf("Expected answer to be copied, got %q", m.copyText())
	}
}

func TestLoadingViewIgnoresKeys(t *testing.T) {
	m := setupTestModel(t)
	m.currentView = loadingView

	newModel, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = newModel.(model)
	if m.currentView != loadingView || cmd != nil {
		t.Error("Expected keys other than Ctrl+C to be ignored while loading")
	}
}

func TestViews(t *testing.T) {
	m := setupTestModel(t)

	if view := m.View(); !strings.Contains(view, "article.txt") {
		t.Errorf("Expected input view to name the file, got %q", view)
	}

	m.currentView = loadingView
	m.question = "What is Go?"
	if view := m.View(); !strings.Contains(view, "Asking Anthropic") {
		t.Errorf("Expected loading view, got %q", view)
	}

	m.currentView = resultView
	if view := m.View(); view != "Loading..." {
		t.Errorf("Expected placeholder before the first resize, got %q", view)
	}
}
