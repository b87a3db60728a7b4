// Package gateway contains the translation and relay core: per-connection
// sessions, the live session registry, and the relay loops that drain
// remote event feeds into IRC connections.
package gateway

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const defaultMonitorInterval = 2 * time.Second

// Gateway owns the registry and the relay worker lifecycle: a monitor task
// periodically scans for sessions without a relay consumer and starts one,
// so every remote account has exactly one consumer regardless of
// reconnects.
type Gateway struct {
	reg      *Registry
	log      zerolog.Logger
	interval time.Duration

	mu      sync.Mutex
	running map[string]context.CancelFunc // session id -> relay cancel
	wg      sync.WaitGroup
}

// New creates a gateway around a registry. interval <= 0 selects the
// default monitor period.
func New(reg *Registry, logger *zerolog.Logger, interval time.Duration) *Gateway {
	log := zerolog.Nop()
	if logger != nil {
		log = *logger
	}
	if interval <= 0 {
		interval = defaultMonitorInterval
	}
	return &Gateway{
		reg:      reg,
		log:      log,
		interval: interval,
		running:  make(map[string]context.CancelFunc),
	}
}

// Registry returns the gateway's session registry.
func (g *Gateway) Registry() *Registry {
	return g.reg
}

// Run drives the monitor loop until ctx is cancelled, then stops every
// relay and waits for them to exit.
func (g *Gateway) Run(ctx context.Context) {
	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			g.mu.Lock()
			for _, cancel := range g.running {
				cancel()
			}
			g.mu.Unlock()
			g.wg.Wait()
			return
		case <-ticker.C:
			g.scan(ctx)
		}
	}
}

// scan starts relays for new sessions and cancels relays whose session was
// removed from the registry.
func (g *Gateway) scan(ctx context.Context) {
	live := make(map[string]*Session)
	for _, s := range g.reg.Sessions() {
		live[s.ID()] = s
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	for id, cancel := range g.running {
		if _, ok := live[id]; !ok {
			cancel()
			delete(g.running, id)
		}
	}

	for id, s := range live {
		if _, ok := g.running[id]; ok {
			continue
		}
		relayCtx, cancel := context.WithCancel(ctx)
		g.running[id] = cancel
		g.wg.Add(1)
		go func(s *Session) {
			defer g.wg.Done()
			relay(relayCtx, s)
		}(s)
	}
}

// relayCount reports how many relay consumers are currently running.
func (g *Gateway) relayCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.running)
}
