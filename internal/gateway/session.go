package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gopkg.in/irc.v4"

	"github.com/ircgate/ircgate/internal/history"
	"github.com/ircgate/ircgate/internal/ircname"
	"github.com/ircgate/ircgate/internal/remote"
)

// Sender queues outbound IRC lines for one connection. Implementations must
// be safe to call from any goroutine and must drop messages after the
// connection is closed.
type Sender interface {
	SendMessage(msg *irc.Message)
}

// SessionConfig carries the per-connection parameters a session needs.
type SessionConfig struct {
	// Account is the nick the IRC client authenticated as.
	Account string
	// ServerName is used as the prefix of numeric replies.
	ServerName string
	// ControlChannel is the administrative channel name, with leading '#'.
	ControlChannel string
	Logger         *zerolog.Logger
	// History is optional; nil disables message logging.
	History *history.Store
}

// Session binds one IRC connection to one authenticated remote identity.
// Command handlers run on the connection goroutine; ReceiveMessage may be
// called from the relay goroutine.
type Session struct {
	id             string
	account        string
	nick           string
	serverName     string
	controlChannel string
	client         remote.Client
	out            Sender
	log            zerolog.Logger
	hist           *history.Store

	// Lazy caches, valid for the life of the session. Staleness is a
	// deliberate trade-off; Refresh drops them on demand. The mutex is
	// only contended when the admin API triggers a refresh.
	cacheMu    sync.Mutex
	chats      []remote.Entity
	chans      []remote.Entity
	contacts   []remote.Entity
	chatsOK    bool
	chansOK    bool
	contactsOK bool
}

// NewSession derives the session nick from the remote account's own identity
// and wires the session to its connection.
func NewSession(ctx context.Context, client remote.Client, out Sender, cfg SessionConfig) (*Session, error) {
	me, err := client.Whoami(ctx)
	if err != nil {
		return nil, fmt.Errorf("whoami: %w", err)
	}

	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = cfg.Logger.With().Str("account", cfg.Account).Logger()
	}

	return &Session{
		id:             uuid.New().String(),
		account:        cfg.Account,
		nick:           ircname.FromEntity(me),
		serverName:     cfg.ServerName,
		controlChannel: cfg.ControlChannel,
		client:         client,
		out:            out,
		log:            logger,
		hist:           cfg.History,
	}, nil
}

// ID returns the session's unique identifier.
func (s *Session) ID() string { return s.id }

// Account returns the nick the IRC client authenticated as.
func (s *Session) Account() string { return s.account }

// Nick returns the IRC nick derived from the remote identity.
func (s *Session) Nick() string { return s.nick }

// Client returns the session's remote connection.
func (s *Session) Client() remote.Client { return s.client }

// Close tears down the remote connection, which also ends the event feed.
func (s *Session) Close() error {
	return s.client.Close()
}

// Refresh drops the dialog, channel and contact caches so the next command
// fetches fresh lists.
func (s *Session) Refresh() {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.chats, s.chans, s.contacts = nil, nil, nil
	s.chatsOK, s.chansOK, s.contactsOK = false, false, false
}

// Channels returns the union of the account's group chats and broadcast
// channels as IRC channel names.
func (s *Session) Channels(ctx context.Context) ([]string, error) {
	chats, err := s.chatList(ctx)
	if err != nil {
		return nil, err
	}
	chans, err := s.channelList(ctx)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(chats)+len(chans))
	for _, e := range chats {
		names = append(names, ircname.FromEntity(e))
	}
	for _, e := range chans {
		names = append(names, ircname.FromEntity(e))
	}
	return names, nil
}

// HandleList answers LIST. Listing filters are not supported; parameters
// are ignored.
func (s *Session) HandleList(ctx context.Context) {
	s.reply(irc.RPL_LISTSTART, s.nick, "Channel", "Users Name")

	channels, err := s.Channels(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("list channels")
	}
	for _, ch := range channels {
		s.reply(irc.RPL_LIST, s.nick, ch, "0", "bridged channel")
	}

	s.reply(irc.RPL_LISTEND, s.nick, "End of /LIST")
}

// HandleNames answers NAMES for a comma-separated list of channels. The
// control channel lists the account's contacts; other channels list chat or
// channel members. Channels whose membership the remote service refuses to
// enumerate come back empty instead of failing.
func (s *Session) HandleNames(ctx context.Context, channelSpec string) {
	for _, channel := range strings.Split(channelSpec, ",") {
		if channel == "" {
			continue
		}
		nicks := s.memberNames(ctx, channel)
		s.reply(irc.RPL_NAMREPLY, s.nick, "=", channel, strings.Join(nicks, " "))
		s.reply(irc.RPL_ENDOFNAMES, s.nick, channel, "End of /NAMES list")
	}
}

func (s *Session) memberNames(ctx context.Context, channel string) []string {
	if channel == s.controlChannel {
		contacts, err := s.contactList(ctx)
		if err != nil {
			s.log.Error().Err(err).Msg("list contacts")
			return nil
		}
		nicks := make([]string, 0, len(contacts))
		for _, c := range contacts {
			nicks = append(nicks, ircname.FromEntity(c))
		}
		return nicks
	}

	members, err := s.channelMembers(ctx, channel)
	switch {
	case errors.Is(err, remote.ErrIllegalResponse):
		// Hidden membership, e.g. a broadcast channel subscriber list.
		return nil
	case err != nil:
		s.log.Warn().Err(err).Str("channel", channel).Msg("fetch members")
		return nil
	}

	nicks := make([]string, 0, len(members))
	for _, m := range members {
		nicks = append(nicks, ircname.FromEntity(m))
	}
	return nicks
}

// channelMembers resolves a '#name' against the known broadcast channels
// first, then falls back to the group-chat lookup.
func (s *Session) channelMembers(ctx context.Context, channel string) ([]remote.Entity, error) {
	name := strings.TrimPrefix(channel, "#")

	chans, err := s.channelList(ctx)
	if err != nil {
		return nil, err
	}
	for _, e := range chans {
		if ircname.FromEntity(e) == channel {
			return s.client.ChannelMembers(ctx, e.ID)
		}
	}

	chats, err := s.chatList(ctx)
	if err != nil {
		return nil, err
	}
	for _, e := range chats {
		if ircname.FromEntity(e) == channel {
			return s.client.ChatMembers(ctx, e.ID)
		}
	}

	// Unknown locally; let the remote service resolve the bare name.
	return s.client.ChatMembers(ctx, name)
}

// HandleJoin echoes the JOIN back and follows it with a NAMES reply so the
// IRC client populates its member list immediately.
func (s *Session) HandleJoin(ctx context.Context, channelSpec string) {
	for _, channel := range strings.Split(channelSpec, ",") {
		if channel == "" {
			continue
		}
		s.out.SendMessage(&irc.Message{
			Prefix:  &irc.Prefix{Name: s.nick},
			Command: "JOIN",
			Params:  []string{channel},
		})
		s.HandleNames(ctx, channel)
	}
}

// HandlePrivmsg routes an outbound message. Errors never surface to the IRC
// client: a connection must not die because one message could not be parsed
// or delivered.
func (s *Session) HandlePrivmsg(ctx context.Context, target, text string) {
	dest, body, ok := s.route(target, text)
	if !ok {
		s.log.Debug().Str("target", target).Msg("dropping malformed message")
		return
	}

	if err := s.client.SendMessage(ctx, dest, body); err != nil {
		s.log.Error().Err(err).Str("dest", dest).Msg("send message")
		return
	}
	s.record(ctx, history.Entry{
		Account:   s.account,
		Channel:   target,
		Sender:    s.nick,
		Body:      body,
		Direction: history.DirectionOut,
	})
}

// route resolves the remote destination for a PRIVMSG. Control-channel
// messages carry their destination in the body as "<dest>: <text>"; a body
// without ':' is a parse failure and the message is dropped.
func (s *Session) route(target, text string) (dest, body string, ok bool) {
	switch {
	case !strings.HasPrefix(target, "#"):
		return target, strings.TrimSpace(text), true
	case target == s.controlChannel:
		return parseControlCommand(text)
	default:
		return strings.TrimPrefix(target, "#"), strings.TrimSpace(text), true
	}
}

func parseControlCommand(text string) (dest, body string, ok bool) {
	idx := strings.Index(text, ":")
	if idx < 0 {
		return "", "", false
	}
	dest = strings.TrimSpace(text[:idx])
	body = strings.TrimSpace(text[idx+1:])
	if dest == "" {
		return "", "", false
	}
	return dest, body, true
}

// ReceiveMessage surfaces an inbound remote message as if sender spoke in
// channel, one PRIVMSG per line. Safe to call after the connection closed;
// the sender drops the lines.
func (s *Session) ReceiveMessage(ctx context.Context, channel, sender, text string) {
	for _, line := range strings.Split(text, "\n") {
		s.out.SendMessage(&irc.Message{
			Prefix:  &irc.Prefix{Name: sender},
			Command: "PRIVMSG",
			Params:  []string{channel, line},
		})
	}
	s.record(ctx, history.Entry{
		Account:   s.account,
		Channel:   channel,
		Sender:    sender,
		Body:      text,
		Direction: history.DirectionIn,
	})
}

func (s *Session) record(ctx context.Context, e history.Entry) {
	if s.hist == nil {
		return
	}
	if err := s.hist.Record(ctx, e); err != nil {
		s.log.Warn().Err(err).Msg("record history")
	}
}

func (s *Session) reply(command string, params ...string) {
	s.out.SendMessage(&irc.Message{
		Prefix:  &irc.Prefix{Name: s.serverName},
		Command: command,
		Params:  params,
	})
}

// The lazy accessors fetch outside the lock so a hung remote call cannot
// block a concurrent Refresh.

func (s *Session) chatList(ctx context.Context) ([]remote.Entity, error) {
	s.cacheMu.Lock()
	if s.chatsOK {
		defer s.cacheMu.Unlock()
		return s.chats, nil
	}
	s.cacheMu.Unlock()

	dialogs, err := s.client.DialogList(ctx)
	if err != nil {
		return nil, fmt.Errorf("dialog list: %w", err)
	}
	chats := make([]remote.Entity, 0, len(dialogs))
	for _, d := range dialogs {
		if d.Kind == remote.KindChat {
			chats = append(chats, d)
		}
	}

	s.cacheMu.Lock()
	s.chats = chats
	s.chatsOK = true
	s.cacheMu.Unlock()
	return chats, nil
}

func (s *Session) channelList(ctx context.Context) ([]remote.Entity, error) {
	s.cacheMu.Lock()
	if s.chansOK {
		defer s.cacheMu.Unlock()
		return s.chans, nil
	}
	s.cacheMu.Unlock()

	chans, err := s.client.ChannelList(ctx)
	if err != nil {
		return nil, fmt.Errorf("channel list: %w", err)
	}

	s.cacheMu.Lock()
	s.chans = chans
	s.chansOK = true
	s.cacheMu.Unlock()
	return chans, nil
}

func (s *Session) contactList(ctx context.Context) ([]remote.Entity, error) {
	s.cacheMu.Lock()
	if s.contactsOK {
		defer s.cacheMu.Unlock()
		return s.contacts, nil
	}
	s.cacheMu.Unlock()

	contacts, err := s.client.ContactList(ctx)
	if err != nil {
		return nil, fmt.Errorf("contact list: %w", err)
	}

	s.cacheMu.Lock()
	s.contacts = contacts
	s.contactsOK = true
	s.cacheMu.Unlock()
	return contacts, nil
}
