package gateway

import (
	"context"
	"testing"
	"time"

	"github.com/ircgate/ircgate/internal/remote"
)

func newSessionForAccount(t *testing.T, account string) (*fakeClient, *Session) {
	t.Helper()
	client := newFakeClient(remote.Entity{Kind: remote.KindUser, Username: account})
	s, err := NewSession(context.Background(), client, &fakeSender{}, SessionConfig{
		Account:        account,
		ServerName:     "gateway.local",
		ControlChannel: "#control",
	})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	return client, s
}

func TestRegistryAddRemove(t *testing.T) {
	reg := NewRegistry()
	_, s := newSessionForAccount(t, "alice")

	reg.Add(s)
	if reg.Len() != 1 {
		t.Fatalf("len = %d, want 1", reg.Len())
	}
	if got, ok := reg.Get(s.ID()); !ok || got != s {
		t.Fatal("Get did not return the session")
	}
	if got, ok := reg.GetByAccount("alice"); !ok || got != s {
		t.Fatal("GetByAccount did not return the session")
	}

	reg.Remove(s.ID())
	if reg.Len() != 0 {
		t.Fatalf("len = %d after remove, want 0", reg.Len())
	}
}

func TestRegistryEvictsDuplicateAccount(t *testing.T) {
	reg := NewRegistry()
	oldClient, oldSess := newSessionForAccount(t, "alice")
	_, newSess := newSessionForAccount(t, "alice")

	reg.Add(oldSess)
	reg.Add(newSess)

	if reg.Len() != 1 {
		t.Fatalf("len = %d, want 1 (duplicate account evicted)", reg.Len())
	}
	if got, _ := reg.GetByAccount("alice"); got != newSess {
		t.Fatal("expected the newer session to survive")
	}
	if !oldClient.isClosed() {
		t.Fatal("evicted session's remote client must be closed")
	}
}

func TestRegistryAggregateChannels(t *testing.T) {
	reg := NewRegistry()

	aliceClient, alice := newSessionForAccount(t, "alice")
	aliceClient.chans = []remote.Entity{{ID: "1", Kind: remote.KindChannel, DisplayName: "news"}}
	bobClient, bob := newSessionForAccount(t, "bob")
	bobClient.chans = []remote.Entity{
		{ID: "2", Kind: remote.KindChannel, DisplayName: "news"},
		{ID: "3", Kind: remote.KindChannel, DisplayName: "sports"},
	}

	reg.Add(alice)
	reg.Add(bob)

	channels := reg.Channels(context.Background())
	if len(channels) != 2 {
		t.Fatalf("channels = %v, want 2 deduplicated entries", channels)
	}
}

func TestGatewayStartsOneRelayPerSession(t *testing.T) {
	reg := NewRegistry()
	logger := testLogger()
	g := New(reg, &logger, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go g.Run(ctx)

	client, s := newSessionForAccount(t, "alice")
	reg.Add(s)

	waitFor(t, func() bool { return g.relayCount() == 1 }, "relay start")

	// The relay must actually consume the feed.
	client.events <- remote.Event{
		Kind:     remote.EventMessage,
		Sender:   remote.Entity{Kind: remote.KindUser, Username: "bob"},
		Receiver: remote.Entity{Kind: remote.KindChat, Title: "room"},
		Text:     "hi",
	}
	waitFor(t, func() bool { return len(client.events) == 0 }, "event consumed")

	// Still exactly one relay after further scans.
	time.Sleep(50 * time.Millisecond)
	if n := g.relayCount(); n != 1 {
		t.Fatalf("relay count = %d, want 1", n)
	}
}

func TestGatewayCancelsRelayOnSessionRemoval(t *testing.T) {
	reg := NewRegistry()
	logger := testLogger()
	g := New(reg, &logger, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go g.Run(ctx)

	_, s := newSessionForAccount(t, "alice")
	reg.Add(s)
	waitFor(t, func() bool { return g.relayCount() == 1 }, "relay start")

	reg.Remove(s.ID())
	waitFor(t, func() bool { return g.relayCount() == 0 }, "relay stop")
}
