package remote

import (
	"context"
	"errors"
)

// EntityKind tags the three shapes an entity on the remote network can take.
type EntityKind string

const (
	KindUser    EntityKind = "user"
	KindChat    EntityKind = "chat"
	KindChannel EntityKind = "channel"
)

// Entity is an immutable snapshot of a remote user, group chat or broadcast
// channel. Optional fields are empty strings; no local copy is authoritative.
type Entity struct {
	ID          string     `json:"id"`
	Kind        EntityKind `json:"kind"`
	DisplayName string     `json:"display_name,omitempty"`
	FirstName   string     `json:"first_name,omitempty"`
	LastName    string     `json:"last_name,omitempty"`
	Username    string     `json:"username,omitempty"`
	Title       string     `json:"title,omitempty"`
}

// Zero reports whether the entity carries no identifying information at all.
func (e Entity) Zero() bool {
	return e.ID == "" && e.DisplayName == "" && e.FirstName == "" &&
		e.LastName == "" && e.Username == "" && e.Title == ""
}

// Event kinds pushed by the remote service. Anything that is not a message
// is ignored by the relay.
const (
	EventMessage = "message"
)

// Event is a single inbound notification from the remote feed.
type Event struct {
	Kind     string `json:"event"`
	Own      bool   `json:"own"`
	Sender   Entity `json:"sender"`
	Receiver Entity `json:"receiver"`
	Text     string `json:"text,omitempty"`
	Media    string `json:"media,omitempty"`
}

var (
	// ErrIllegalResponse is returned when the remote service cannot
	// enumerate something, e.g. the member list of a broadcast channel
	// with a hidden subscriber list.
	ErrIllegalResponse = errors.New("illegal remote response")
	// ErrClosed is returned by calls on a closed client.
	ErrClosed = errors.New("remote client closed")
)

// Client is one authenticated connection to the remote network. All calls
// block until the remote service answers or ctx is done.
type Client interface {
	// Whoami returns the entity of the account itself.
	Whoami(ctx context.Context) (Entity, error)
	// DialogList returns the account's open dialogs: users and group chats.
	DialogList(ctx context.Context) ([]Entity, error)
	// ChannelList returns the broadcast channels the account has joined.
	ChannelList(ctx context.Context) ([]Entity, error)
	// ContactList returns the account's contacts.
	ContactList(ctx context.Context) ([]Entity, error)
	// ChannelMembers returns the members of a broadcast channel.
	ChannelMembers(ctx context.Context, id string) ([]Entity, error)
	// ChatMembers returns the members of a group chat.
	ChatMembers(ctx context.Context, id string) ([]Entity, error)
	// SendMessage delivers text to a user, chat or channel addressed by
	// id, username or printable name.
	SendMessage(ctx context.Context, target, text string) error
	// Events is the account's inbound feed. Events arrive one at a time
	// in arrival order. The channel is closed when the connection dies.
	Events() <-chan Event
	// Close tears the connection down and closes the event feed.
	Close() error
}

// Connector opens remote clients, one per account.
type Connector interface {
	Connect(ctx context.Context, account string) (Client, error)
}
