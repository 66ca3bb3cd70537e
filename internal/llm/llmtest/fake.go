// Package llmtest provides a scripted llm.Completer for tests.
package llmtest

import (
	"context"
	"errors"
	"strings"
	"sync"

	"fileqa/internal/llm"
)

// Fake replies from a script. Responses are consumed in order; once exhausted the last
// response is repeated. Match rules take precedence when a prompt contains their key.
type Fake struct {
	mu        sync.Mutex
	responses []string
	match     map[string]string
	err       error
	requests  []llm.Request
}

// New returns a Fake answering with responses in order
func New(responses ...string) *Fake {
	return &Fake{responses: responses, match: map[string]string{}}
}

// Failing returns a Fake whose every call fails with err
func Failing(err error) *Fake {
	return &Fake{err: err, match: map[string]string{}}
}

// When makes the Fake answer reply to any prompt containing substr
func (f *Fake) When(substr, reply string) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.match[substr] = reply
	return f
}

func (f *Fake) Name() string {
	return "fake"
}

func (f *Fake) Complete(ctx context.Context, req llm.Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.requests = append(f.requests, req)
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if f.err != nil {
		return "", f.err
	}
	for substr, reply := range f.match {
		if strings.Contains(req.Prompt, substr) {
			return reply, nil
		}
	}
	if len(f.responses) == 0 {
		return "", errors.New("fake completer has no scripted response")
	}
	reply := f.responses[0]
	if len(f.responses) > 1 {
		f.responses = f.responses[1:]
	}
	return reply, nil
}

// Requests returns every request received so far
func (f *Fake) Requests() []llm.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]llm.Request, len(f.requests))
	copy(out, f.requests)
	return out
}
