package core

import (
	"context"
	"errors"
	"iter"
	"sync"
	"time"
)

type fakeSource struct {
	messages []*InboundMessage
	err      error
}

func (s *fakeSource) Messages(ctx context.Context, since time.Time) iter.Seq2[*InboundMessage, error] {
	return func(yield func(*InboundMessage, error) bool) {
		for _, m := range s.messages {
			if !yield(m, nil) {
				return
			}
		}
		if s.err != nil {
			yield(nil, s.err)
		}
	}
}

type fakeWorkspace struct {
	mu        sync.Mutex
	comments  map[int64][]Comment
	added     map[int64][]string
	listErr   error
	addErr    error
	listCalls int
}

func newFakeWorkspace() *fakeWorkspace {
	return &fakeWorkspace{
		comments: make(map[int64][]Comment),
		added:    make(map[int64][]string),
	}
}

func (w *fakeWorkspace) ListComments(ctx context.Context, itemID int64) ([]Comment, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.listCalls++
	if w.listErr != nil {
		return nil, w.listErr
	}
	return w.comments[itemID], nil
}

func (w *fakeWorkspace) AddComment(ctx context.Context, itemID int64, text string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.addErr != nil {
		return w.addErr
	}
	w.added[itemID] = append(w.added[itemID], text)
	return nil
}

func (w *fakeWorkspace) totalAdded() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := 0
	for _, c := range w.added {
		n += len(c)
	}
	return n
}

type fakeMailer struct {
	sent []*OutboundMail
	err  error
}

func (m *fakeMailer) Send(ctx context.Context, mail *OutboundMail) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, mail)
	return nil
}

// fakeLLM returns responses in order, repeating the last one
type fakeLLM struct {
	responses []string
	errs      []error
	calls     int
	prompts   []string
}

func (l *fakeLLM) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	i := l.calls
	l.calls++
	l.prompts = append(l.prompts, userPrompt)
	if i < len(l.errs) && l.errs[i] != nil {
		return "", l.errs[i]
	}
	if len(l.responses) == 0 {
		return "", errors.New("no response configured")
	}
	if i >= len(l.responses) {
		i = len(l.responses) - 1
	}
	return l.responses[i], nil
}

func (l *fakeLLM) ModelName() string { return "fake-model" }

type fakeLedger struct {
	entries map[int64]*LedgerEntry
	getErr  error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{entries: make(map[int64]*LedgerEntry)}
}

func (l *fakeLedger) Get(ctx context.Context, itemID int64) (*LedgerEntry, error) {
	if l.getErr != nil {
		return nil, l.getErr
	}
	e, ok := l.entries[itemID]
	if !ok {
		return nil, ErrNotFound
	}
	return e, nil
}

func (l *fakeLedger) Record(ctx context.Context, entry *LedgerEntry) error {
	l.entries[entry.ItemID] = entry
	return nil
}

func (l *fakeLedger) Cleanup(ctx context.Context) error { return nil }

type noWait struct{}

func (noWait) Wait(ctx context.Context) error { return ctx.Err() }

type screenNone struct{}

func (screenNone) Screen(string) string { return "" }

const (
	answerableJSON = `{"classification":"ANSWERABLE","confidence":0.92,"reason":"camp pricing","reply_html":"<p>Hi Jane, camps are $250/week.</p>"}`
	needsHumanJSON = `{"classification":"NEEDS_HUMAN","confidence":0.8,"reason":"refund request","reply_html":null}`
	skipJSON       = `{"classification":"SKIP","confidence":0.99,"reason":"newsletter","reply_html":null}`
)
