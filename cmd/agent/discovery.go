package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"collabtext/internal/ident"
)

// discovery advertises this agent over mDNS and connects outbound to
// every other agent it discovers, adapted from the teacher's
// startDiscovery (agent/main.go) — generalized from a fire-once
// fifteen-second browse into a standing advertise+browse loop, and
// from an unused discovery log line into actual outbound peer
// connections guarded by cenkalti/backoff, which the teacher's
// go.mod carried but never called.
type discovery struct {
	self    ident.PeerId
	service string
	port    int
	hub     *hub
	log     *zap.Logger

	seen map[string]bool
}

func newDiscovery(self ident.PeerId, service string, port int, h *hub, log *zap.Logger) *discovery {
	return &discovery{self: self, service: service, port: port, hub: h, log: log, seen: make(map[string]bool)}
}

func (d *discovery) run(ctx context.Context) error {
	host, err := os.Hostname()
	if err != nil {
		host = string(d.self)
	}
	server, err := zeroconf.Register(
		fmt.Sprintf("collabtext-%s-%s", d.self, host),
		d.service,
		"local.",
		d.port,
		[]string{"peer=" + string(d.self)},
		nil,
	)
	if err != nil {
		return fmt.Errorf("discovery: register: %w", err)
	}
	defer server.Shutdown()
	d.log.Info("mDNS service registered", zap.String("service", d.service), zap.Int("port", d.port))

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return fmt.Errorf("discovery: resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry)
	go d.handleEntries(ctx, entries)

	for {
		browseCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		err := resolver.Browse(browseCtx, d.service, "local.", entries)
		cancel()
		if err != nil {
			d.log.Warn("mDNS browse failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(15 * time.Second):
		}
	}
}

func (d *discovery) handleEntries(ctx context.Context, entries <-chan *zeroconf.ServiceEntry) {
	for {
		select {
		case <-ctx.Done():
			return
		case entry, ok := <-entries:
			if !ok {
				return
			}
			d.considerPeer(ctx, entry)
		}
	}
}

func (d *discovery) considerPeer(ctx context.Context, entry *zeroconf.ServiceEntry) {
	if len(entry.AddrIPv4) == 0 {
		return
	}
	addr := fmt.Sprintf("%s:%d", entry.AddrIPv4[0], entry.Port)
	if d.seen[addr] {
		return
	}
	d.seen[addr] = true
	d.log.Info("mDNS discovered peer", zap.String("instance", entry.Instance), zap.String("addr", addr))

	go d.connectWithBackoff(ctx, addr)
}

// connectWithBackoff keeps retrying an outbound connection to a
// discovered peer's websocket endpoint until a dial succeeds or ctx
// is cancelled,
// exercising the retry policy the teacher's go.mod pulled in but
// never wired to anything.
func (d *discovery) connectWithBackoff(ctx context.Context, addr string) {
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 0 // no time limit; only a successful dial or ctx cancellation ends the loop

	op := func() error {
		if ctx.Err() != nil {
			return nil
		}
		if err := d.hub.dialPeer(ctx, addr); err != nil {
			d.log.Warn("peer dial failed, retrying", zap.String("addr", addr), zap.Error(err))
			return err
		}
		return nil
	}

	if err := backoff.Retry(op, backoff.WithContext(b, ctx)); err != nil {
		d.log.Warn("giving up on peer", zap.String("addr", addr), zap.Error(err))
	}
}
