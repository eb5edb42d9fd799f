// Package presence fans out peer Join/Part events across server processes
// over Redis pub/sub, so a peer connected to one process can be told about a
// peer that joined the same paper on another. It is best-effort: a publish
// failure is logged and swallowed rather than blocking the caller's request,
// since losing a presence notification never corrupts document state.
package presence

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/desperadomar/bluelatex/internal/diffsync"
)

// EventKind tags a presence notification.
type EventKind string

const (
	EventJoin EventKind = "join"
	EventPart EventKind = "part"
)

// Event is one peer's presence change on one paper.
type Event struct {
	Kind  EventKind         `json:"kind"`
	Paper diffsync.PaperID  `json:"paper"`
	Peer  diffsync.PeerID   `json:"peer"`
}

// Tracker publishes and subscribes to presence events for one channel.
type Tracker struct {
	client  *redis.Client
	channel string
	log     *slog.Logger
}

// NewTracker connects to addr and returns a Tracker publishing on channel.
// A nil *Tracker (from a disabled config) is valid: its methods are no-ops.
func NewTracker(addr, channel string, log *slog.Logger) *Tracker {
	if addr == "" {
		return nil
	}
	return &Tracker{
		client:  redis.NewClient(&redis.Options{Addr: addr}),
		channel: channel,
		log:     log,
	}
}

func (t *Tracker) publish(ctx context.Context, kind EventKind, paper diffsync.PaperID, peer diffsync.PeerID) {
	if t == nil {
		return
	}
	payload, err := json.Marshal(Event{Kind: kind, Paper: paper, Peer: peer})
	if err != nil {
		t.log.Warn("presence: marshal failed", "error", err)
		return
	}
	if err := t.client.Publish(ctx, t.channel, payload).Err(); err != nil {
		t.log.Warn("presence: publish failed", "error", err)
	}
}

// Join announces that peer joined paper on this process.
func (t *Tracker) Join(ctx context.Context, paper diffsync.PaperID, peer diffsync.PeerID) {
	t.publish(ctx, EventJoin, paper, peer)
}

// Part announces that peer left paper on this process.
func (t *Tracker) Part(ctx context.Context, paper diffsync.PaperID, peer diffsync.PeerID) {
	t.publish(ctx, EventPart, paper, peer)
}

// Subscribe delivers every Event published on the channel, including ones
// this process itself published, until ctx is canceled.
func (t *Tracker) Subscribe(ctx context.Context) <-chan Event {
	out := make(chan Event)
	if t == nil {
		close(out)
		return out
	}

	sub := t.client.Subscribe(ctx, t.channel)
	go func() {
		defer close(out)
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					t.log.Warn("presence: malformed event", "error", err)
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Close releases the underlying Redis client. Safe to call on a nil Tracker.
func (t *Tracker) Close() error {
	if t == nil {
		return nil
	}
	return t.client.Close()
}
