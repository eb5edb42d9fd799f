// Package discovery advertises a gateway instance on the local network and
// tracks sibling instances discovered the same way, using mDNS. It is a
// LAN-only complement to internal/presence's Redis fan-out: useful for a
// single-switch deployment with no message broker running, not for peers
// separated by NAT or subnets mDNS multicast never reaches.
package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
)

// Peer is one sibling gateway instance observed on the LAN.
type Peer struct {
	Instance string
	Addr     string
	Port     int
	SeenAt   time.Time
}

// Directory tracks the sibling instances currently visible on the LAN.
// An entry older than staleAfter is dropped from Peers, since zeroconf never
// tells us when a peer disappears cleanly.
type Directory struct {
	mu         sync.Mutex
	peers      map[string]Peer
	staleAfter time.Duration
}

// NewDirectory returns an empty Directory. staleAfter should be a few
// multiples of the mDNS TTL advertised by Register so a peer that's still
// alive isn't dropped between browse refreshes.
func NewDirectory(staleAfter time.Duration) *Directory {
	return &Directory{peers: make(map[string]Peer), staleAfter: staleAfter}
}

func (d *Directory) observe(p Peer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.peers[p.Instance] = p
}

// Peers returns every instance seen within staleAfter, sorted by Instance.
func (d *Directory) Peers() []Peer {
	d.mu.Lock()
	defer d.mu.Unlock()
	cutoff := time.Now().Add(-d.staleAfter)
	out := make([]Peer, 0, len(d.peers))
	for _, p := range d.peers {
		if p.SeenAt.Before(cutoff) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Instance < out[j].Instance })
	return out
}

// Register advertises this process as serviceName on port over mDNS. The
// returned shutdown func deregisters the service and must be called before
// the process exits.
func Register(serviceName string, port int, log *slog.Logger) (shutdown func(), err error) {
	host, _ := os.Hostname()
	server, err := zeroconf.Register(
		fmt.Sprintf("bluelatex-%s", host),
		serviceName,
		"local.",
		port,
		[]string{"txtv=0"},
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("discovery: register failed: %w", err)
	}
	log.Info("mDNS service registered", "service", serviceName, "port", port)
	return server.Shutdown, nil
}

// Browse resolves serviceName and records every peer it sees into dir,
// blocking until ctx is canceled.
func Browse(ctx context.Context, serviceName string, dir *Directory, log *slog.Logger) error {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return fmt.Errorf("discovery: resolver init failed: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry)
	go func() {
		for entry := range entries {
			if len(entry.AddrIPv4) == 0 {
				continue
			}
			dir.observe(Peer{
				Instance: entry.Instance,
				Addr:     entry.AddrIPv4[0].String(),
				Port:     entry.Port,
				SeenAt:   time.Now(),
			})
			log.Debug("mDNS peer observed", "instance", entry.Instance, "addr", entry.AddrIPv4[0], "port", entry.Port)
		}
	}()

	if err := resolver.Browse(ctx, serviceName, "local.", entries); err != nil {
		return fmt.Errorf("discovery: browse failed: %w", err)
	}
	<-ctx.Done()
	return nil
}
