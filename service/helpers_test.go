package service

import (
	"context"
	"sync"
	"time"
)

var fixedNow = time.Date(2026, time.October, 16, 9, 0, 0, 0, time.UTC)

// fakeGenerator records prompts and answers from a queue of canned responses.
// When block is set, each call waits for a value on release or for ctx.
type fakeGenerator struct {
	mu        sync.Mutex
	responses []fakeResponse
	prompts   []string
	systems   []string
	started   chan struct{}
	release   chan struct{}
}

type fakeResponse struct {
	content string
	err     error
}

func newFakeGenerator(responses ...fakeResponse) *fakeGenerator {
	return &fakeGenerator{responses: responses}
}

func (f *fakeGenerator) blocking() *fakeGenerator {
	f.started = make(chan struct{}, 8)
	f.release = make(chan struct{})
	return f
}

func (f *fakeGenerator) Generate(ctx context.Context, systemPrompt, prompt string) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.systems = append(f.systems, systemPrompt)
	var resp fakeResponse
	if len(f.responses) > 0 {
		resp = f.responses[0]
		f.responses = f.responses[1:]
	}
	started, release := f.started, f.release
	f.mu.Unlock()

	if started != nil {
		started <- struct{}{}
		select {
		case <-release:
		case <-ctx.Done():
			// The provider may still answer after cancellation.
		}
	}
	return resp.content, resp.err
}

func (f *fakeGenerator) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

func (f *fakeGenerator) lastPrompt() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.prompts) == 0 {
		return ""
	}
	return f.prompts[len(f.prompts)-1]
}
