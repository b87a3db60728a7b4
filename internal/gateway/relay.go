package gateway

import (
	"context"
	"errors"

	"github.com/ircgate/ircgate/internal/ircname"
	"github.com/ircgate/ircgate/internal/remote"
)

var errMalformedEvent = errors.New("malformed event")

// relay drains one session's remote event feed and surfaces messages on the
// IRC side. A malformed event is logged and skipped; the loop only exits
// when the feed closes or ctx is cancelled.
func relay(ctx context.Context, s *Session) {
	log := s.log.With().Str("session_id", s.ID()).Logger()
	log.Info().Msg("relay started")
	defer log.Info().Msg("relay stopped")

	events := s.Client().Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Kind != remote.EventMessage {
				continue
			}
			if ev.Own {
				// Never echo the account's own sends.
				continue
			}

			channel, sender, body, err := resolveEvent(ev)
			if errors.Is(err, errMalformedEvent) {
				log.Error().Interface("event", ev).Msg("skipping malformed event")
				continue
			} else if err != nil {
				log.Error().Err(err).Msg("unexpected relay error")
				continue
			}

			s.ReceiveMessage(ctx, channel, sender, body)
		}
	}
}

// resolveEvent maps an inbound event onto (channel, sender, body). A direct
// message between two users surfaces under the sender's name; everything
// else surfaces under '#' + the receiver's title.
func resolveEvent(ev remote.Event) (channel, sender, body string, err error) {
	if ev.Sender.Zero() || ev.Receiver.Zero() {
		return "", "", "", errMalformedEvent
	}

	if ev.Receiver.Kind == remote.KindUser && ev.Sender.Kind == remote.KindUser {
		channel = ircname.FromEntity(ev.Sender)
	} else {
		title := ev.Receiver.Title
		if title == "" {
			title = ev.Receiver.DisplayName
		}
		if title == "" {
			return "", "", "", errMalformedEvent
		}
		channel = "#" + ircname.Normalize(title)
	}

	sender = ircname.FromEntity(ev.Sender)

	switch {
	case ev.Text != "":
		body = ev.Text
	case ev.Media != "":
		body = "[media] " + ev.Media
	default:
		return "", "", "", errMalformedEvent
	}

	return channel, sender, body, nil
}
