package gateway

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/irc.v4"

	"github.com/ircgate/ircgate/internal/remote"
)

// fakeClient is an in-memory remote.Client for tests.
type fakeClient struct {
	me       remote.Entity
	dialogs  []remote.Entity
	chans    []remote.Entity
	contacts []remote.Entity

	chanMembers map[string][]remote.Entity
	chatMembers map[string][]remote.Entity
	illegal     map[string]bool // ids whose membership is not enumerable

	events chan remote.Event

	mu     sync.Mutex
	sent   []sentMessage
	closed bool
}

type sentMessage struct {
	Target string
	Text   string
}

func newFakeClient(me remote.Entity) *fakeClient {
	return &fakeClient{
		me:          me,
		chanMembers: make(map[string][]remote.Entity),
		chatMembers: make(map[string][]remote.Entity),
		illegal:     make(map[string]bool),
		events:      make(chan remote.Event, 16),
	}
}

func (f *fakeClient) Whoami(context.Context) (remote.Entity, error) { return f.me, nil }

func (f *fakeClient) DialogList(context.Context) ([]remote.Entity, error) { return f.dialogs, nil }

func (f *fakeClient) ChannelList(context.Context) ([]remote.Entity, error) { return f.chans, nil }

func (f *fakeClient) ContactList(context.Context) ([]remote.Entity, error) { return f.contacts, nil }

func (f *fakeClient) ChannelMembers(_ context.Context, id string) ([]remote.Entity, error) {
	if f.illegal[id] {
		return nil, remote.ErrIllegalResponse
	}
	return f.chanMembers[id], nil
}

func (f *fakeClient) ChatMembers(_ context.Context, id string) ([]remote.Entity, error) {
	if f.illegal[id] {
		return nil, remote.ErrIllegalResponse
	}
	return f.chatMembers[id], nil
}

func (f *fakeClient) SendMessage(_ context.Context, target, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{Target: target, Text: text})
	return nil
}

func (f *fakeClient) Events() <-chan remote.Event { return f.events }

func (f *fakeClient) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.events)
	}
	return nil
}

func (f *fakeClient) sentMessages() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]sentMessage, len(f.sent))
	copy(out, f.sent)
	return out
}

func (f *fakeClient) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// fakeSender collects outbound IRC messages.
type fakeSender struct {
	mu   sync.Mutex
	msgs []*irc.Message
}

func (f *fakeSender) SendMessage(msg *irc.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, msg)
}

func (f *fakeSender) messages() []*irc.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*irc.Message, len(f.msgs))
	copy(out, f.msgs)
	return out
}

// waitFor polls cond until it returns true or the deadline passes.
func waitFor(t *testing.T, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func newTestSession(t *testing.T, client *fakeClient, out Sender) *Session {
	t.Helper()
	s, err := NewSession(context.Background(), client, out, SessionConfig{
		Account:        "alice",
		ServerName:     "gateway.local",
		ControlChannel: "#control",
	})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	return s
}
