package irc

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/rs/zerolog"
	"gopkg.in/irc.v4"

	"github.com/ircgate/ircgate/internal/auth"
	"github.com/ircgate/ircgate/internal/gateway"
	"github.com/ircgate/ircgate/internal/history"
	"github.com/ircgate/ircgate/internal/remote"
)

// Config holds the IRC listener's settings.
type Config struct {
	Addr           string
	ServerName     string
	ControlChannel string
}

// Server accepts IRC client connections and binds each authenticated one to
// a gateway session.
type Server struct {
	cfg       Config
	creds     *auth.Store
	connector remote.Connector
	registry  *gateway.Registry
	hist      *history.Store
	log       zerolog.Logger

	ln net.Listener
}

// NewServer wires the listener to its collaborators. hist may be nil.
func NewServer(cfg Config, creds *auth.Store, connector remote.Connector, registry *gateway.Registry, hist *history.Store, logger *zerolog.Logger) *Server {
	log := zerolog.Nop()
	if logger != nil {
		log = *logger
	}
	return &Server{
		cfg:       cfg,
		creds:     creds,
		connector: connector,
		registry:  registry,
		hist:      hist,
		log:       log,
	}
}

// Listen binds the listen address. Split from Run so callers learn about a
// bad address before spawning anything.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}
	s.ln = ln
	return nil
}

// Addr returns the bound listener address.
func (s *Server) Addr() net.Addr {
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Run accepts connections until ctx is cancelled. Each connection gets its
// own goroutine; blocking remote calls only ever stall their own
// connection.
func (s *Server) Run(ctx context.Context) error {
	if s.ln == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}

	go func() {
		<-ctx.Done()
		_ = s.ln.Close()
	}()

	s.log.Info().Str("addr", s.ln.Addr().String()).Msg("irc listener started")
	for {
		nc, err := s.ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}
		go s.handleConn(ctx, nc)
	}
}

func (s *Server) handleConn(ctx context.Context, nc net.Conn) {
	log := s.log.With().Str("remote_addr", nc.RemoteAddr().String()).Logger()
	c := newConn(nc, log)
	defer c.Close()

	var (
		nick string
		pass string
		sess *gateway.Session
	)
	defer func() {
		if sess != nil {
			s.registry.Remove(sess.ID())
			_ = sess.Close()
			log.Info().Str("account", sess.Account()).Msg("session closed")
		}
	}()

	for {
		msg, err := c.ReadMessage()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				log.Debug().Err(err).Msg("connection ended")
			}
			return
		}

		switch msg.Command {
		case "PASS":
			if len(msg.Params) > 0 {
				pass = msg.Params[0]
			}
		case "NICK":
			if len(msg.Params) == 0 {
				continue
			}
			nick = msg.Params[0]
			// Some clients pass the password alongside the nick.
			if len(msg.Params) > 1 {
				pass = msg.Params[1]
			}
			if sess == nil {
				sess = s.register(ctx, c, nick, pass, log)
				if sess == nil {
					return
				}
			}
		case "USER":
			// Identity comes from the remote account, not from USER.
		case "PING":
			param := s.cfg.ServerName
			if len(msg.Params) > 0 {
				param = msg.Params[0]
			}
			c.SendMessage(&irc.Message{
				Prefix:  &irc.Prefix{Name: s.cfg.ServerName},
				Command: "PONG",
				Params:  []string{s.cfg.ServerName, param},
			})
		case "QUIT":
			return
		default:
			if sess == nil {
				continue
			}
			s.dispatch(ctx, c, sess, msg)
		}
	}
}

// register authenticates the login and opens the remote session. It returns
// nil after telling the client to go away; the caller closes the
// connection, so no remote session ever opens for a failed login.
func (s *Server) register(ctx context.Context, c *conn, nick, pass string, log zerolog.Logger) *gateway.Session {
	if err := s.creds.Verify(nick, pass); err != nil {
		log.Warn().Err(err).Str("nick", nick).Msg("authentication failed")
		c.SendMessage(&irc.Message{
			Prefix:  &irc.Prefix{Name: s.cfg.ServerName},
			Command: irc.ERR_NOSUCHNICK,
			Params:  []string{nick, "Wrong password"},
		})
		return nil
	}

	client, err := s.connector.Connect(ctx, nick)
	if err != nil {
		log.Error().Err(err).Str("nick", nick).Msg("remote connect failed")
		c.SendMessage(&irc.Message{
			Command: "ERROR",
			Params:  []string{"Cannot reach the remote network"},
		})
		return nil
	}

	sess, err := gateway.NewSession(ctx, client, c, gateway.SessionConfig{
		Account:        nick,
		ServerName:     s.cfg.ServerName,
		ControlChannel: s.cfg.ControlChannel,
		Logger:         &s.log,
		History:        s.hist,
	})
	if err != nil {
		log.Error().Err(err).Str("nick", nick).Msg("session setup failed")
		_ = client.Close()
		c.SendMessage(&irc.Message{
			Command: "ERROR",
			Params:  []string{"Cannot reach the remote network"},
		})
		return nil
	}

	s.registry.Add(sess)
	s.welcome(c, sess)
	log.Info().Str("account", nick).Str("nick", sess.Nick()).Msg("session opened")
	return sess
}

func (s *Server) welcome(c *conn, sess *gateway.Session) {
	serverPrefix := &irc.Prefix{Name: s.cfg.ServerName}
	nick := sess.Nick()

	c.SendMessage(&irc.Message{Prefix: serverPrefix, Command: irc.RPL_WELCOME,
		Params: []string{nick, "Welcome to the gateway, " + nick}})
	c.SendMessage(&irc.Message{Prefix: serverPrefix, Command: irc.RPL_YOURHOST,
		Params: []string{nick, "Your host is " + s.cfg.ServerName}})
	c.SendMessage(&irc.Message{Prefix: serverPrefix, Command: irc.RPL_MYINFO,
		Params: []string{nick, s.cfg.ServerName, "ircgate", "i", "nt"}})
	c.SendMessage(&irc.Message{Prefix: serverPrefix, Command: irc.ERR_NOMOTD,
		Params: []string{nick, "No MOTD"}})
}

func (s *Server) dispatch(ctx context.Context, c *conn, sess *gateway.Session, msg *irc.Message) {
	switch msg.Command {
	case "LIST":
		sess.HandleList(ctx)
	case "NAMES":
		if len(msg.Params) == 0 {
			return
		}
		sess.HandleNames(ctx, msg.Params[0])
	case "JOIN":
		if len(msg.Params) == 0 {
			return
		}
		sess.HandleJoin(ctx, msg.Params[0])
	case "PART":
		if len(msg.Params) > 0 {
			c.SendMessage(&irc.Message{
				Prefix:  &irc.Prefix{Name: sess.Nick()},
				Command: "PART",
				Params:  msg.Params[:1],
			})
		}
	case "PRIVMSG":
		if len(msg.Params) < 2 {
			return
		}
		sess.HandlePrivmsg(ctx, msg.Params[0], msg.Params[1])
	default:
		c.SendMessage(&irc.Message{
			Prefix:  &irc.Prefix{Name: s.cfg.ServerName},
			Command: irc.ERR_UNKNOWNCOMMAND,
			Params:  []string{sess.Nick(), msg.Command, "Unknown command"},
		})
	}
}
