package diffsync

import (
	"context"
	"time"

	"github.com/desperadomar/bluelatex/internal/metrics"
	"github.com/desperadomar/bluelatex/internal/store"
)

type joinRequest struct {
	peer  PeerID
	reply chan struct{}
}

type partRequest struct {
	peer  PeerID
	reply chan struct{}
}

type sessionRequest struct {
	ctx   context.Context
	req   SyncSessionRequest
	reply chan sessionReply
}

type sessionReply struct {
	resp SyncSessionResponse
	err  error
}

type persistRequest struct {
	ctx   context.Context
	reply chan error
}

type lastModRequest struct {
	reply chan time.Time
}

type stopRequest struct {
	ctx context.Context
}

// inspectRequest lets white-box tests read back a document's converged
// text without going through the wire encoding.
type inspectRequest struct {
	path  Filepath
	reply chan string
}

// PaperAgent is a single-writer task that owns one paper's SyncContext and
// serializes every request against it through one unbuffered channel per
// request kind, following the register/unregister/broadcast hub pattern.
// Every public method races its send and its reply against done, so a
// caller never blocks forever on an agent that has already stopped.
type PaperAgent struct {
	ID   PaperID
	root string

	store store.Store
	now   func() time.Time

	join    chan joinRequest
	part    chan partRequest
	session chan sessionRequest
	persist chan persistRequest
	lastMod chan lastModRequest
	stop    chan stopRequest
	inspect chan inspectRequest
	done    chan struct{}
}

// NewPaperAgent starts the agent's run loop and returns immediately. root is
// the paper's canonical root directory, used to resolve every filename this
// agent ever sees.
func NewPaperAgent(id PaperID, root string, st store.Store) *PaperAgent {
	a := &PaperAgent{
		ID:      id,
		root:    root,
		store:   st,
		now:     time.Now,
		join:    make(chan joinRequest),
		part:    make(chan partRequest),
		session: make(chan sessionRequest),
		persist: make(chan persistRequest),
		lastMod: make(chan lastModRequest),
		stop:    make(chan stopRequest),
		inspect: make(chan inspectRequest),
		done:    make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *PaperAgent) run() {
	defer close(a.done)
	sc := newSyncContext()
	for {
		select {
		case r := <-a.join:
			sc.join(r.peer)
			close(r.reply)
		case r := <-a.part:
			sc.part(r.peer)
			close(r.reply)
		case r := <-a.session:
			resp, err := a.handleSession(r.ctx, sc, r.req)
			r.reply <- sessionReply{resp: resp, err: err}
		case r := <-a.persist:
			r.reply <- a.persistAll(r.ctx, sc)
		case r := <-a.lastMod:
			r.reply <- sc.lastModificationTime
		case r := <-a.stop:
			a.persistAll(r.ctx, sc)
			return
		case r := <-a.inspect:
			doc, ok := sc.documents[r.path]
			if !ok {
				r.reply <- ""
				continue
			}
			r.reply <- doc.Text
		}
	}
}

func (a *PaperAgent) handleSession(ctx context.Context, sc *syncContext, req SyncSessionRequest) (SyncSessionResponse, error) {
	var items []SessionItem
	for _, item := range req.Items {
		switch item.Kind {
		case ItemMessage:
			sc.bus.deliver(req.Peer, item.Message)
		case ItemSyncCommand:
			outbound, err := processCommand(ctx, sc, a.store, a.root, req.Peer, item.Command, a.now)
			if err != nil {
				metrics.RecordSyncSession(false)
				return SyncSessionResponse{}, err
			}
			metrics.RecordSyncCommand(item.Command.Kind.String())
			for _, cmd := range outbound {
				if cmd.Kind == ActionRaw && item.Command.Kind != ActionRaw {
					metrics.RecordResync()
				}
				items = append(items, SessionItem{Kind: ItemSyncCommand, Command: cmd})
			}
		default:
			metrics.RecordSyncSession(false)
			return SyncSessionResponse{}, newUnknownRequest("session item kind")
		}
	}
	for _, m := range sc.bus.drain(req.Peer) {
		items = append(items, SessionItem{Kind: ItemMessage, Message: m})
	}
	metrics.RecordSyncSession(true)
	return SyncSessionResponse{Peer: req.Peer, Paper: a.ID, Items: items}, nil
}

// persistAll saves every live document, returning the first failure.
func (a *PaperAgent) persistAll(ctx context.Context, sc *syncContext) error {
	for path, doc := range sc.documents {
		if err := a.store.Save(ctx, &store.Document{Path: string(path), Text: doc.Text}); err != nil {
			return newStoreFailure("save", err)
		}
	}
	return nil
}

// Join ensures peer has a mailbox on this paper. Idempotent.
func (a *PaperAgent) Join(ctx context.Context, peer PeerID) error {
	reply := make(chan struct{})
	select {
	case a.join <- joinRequest{peer: peer, reply: reply}:
	case <-a.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-reply:
		return nil
	case <-a.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Part removes peer's mailbox and every view it owns. Idempotent.
func (a *PaperAgent) Part(ctx context.Context, peer PeerID) error {
	reply := make(chan struct{})
	select {
	case a.part <- partRequest{peer: peer, reply: reply}:
	case <-a.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-reply:
		return nil
	case <-a.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SyncSession processes req's items in order and returns the response.
func (a *PaperAgent) SyncSession(ctx context.Context, req SyncSessionRequest) (SyncSessionResponse, error) {
	reply := make(chan sessionReply)
	select {
	case a.session <- sessionRequest{ctx: ctx, req: req, reply: reply}:
	case <-a.done:
		return SyncSessionResponse{}, ErrStopped
	case <-ctx.Done():
		return SyncSessionResponse{}, ctx.Err()
	}
	select {
	case r := <-reply:
		return r.resp, r.err
	case <-a.done:
		return SyncSessionResponse{}, ErrStopped
	case <-ctx.Done():
		return SyncSessionResponse{}, ctx.Err()
	}
}

// PersistPaper saves every live document and reports the first failure.
func (a *PaperAgent) PersistPaper(ctx context.Context) error {
	reply := make(chan error)
	select {
	case a.persist <- persistRequest{ctx: ctx, reply: reply}:
	case <-a.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-reply:
		return err
	case <-a.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LastModificationDate returns the most recent time any document on this
// paper changed.
func (a *PaperAgent) LastModificationDate(ctx context.Context) (time.Time, error) {
	reply := make(chan time.Time)
	select {
	case a.lastMod <- lastModRequest{reply: reply}:
	case <-a.done:
		return time.Time{}, ErrStopped
	case <-ctx.Done():
		return time.Time{}, ctx.Err()
	}
	select {
	case t := <-reply:
		return t, nil
	case <-a.done:
		return time.Time{}, ErrStopped
	case <-ctx.Done():
		return time.Time{}, ctx.Err()
	}
}

// inspectText is a white-box test hook: it reads a document's current text
// without mutating any view.
func (a *PaperAgent) inspectText(filename Filepath) (string, bool) {
	reply := make(chan string)
	path := canonicalize(a.root, string(filename))
	select {
	case a.inspect <- inspectRequest{path: path, reply: reply}:
	case <-a.done:
		return "", false
	}
	select {
	case text := <-reply:
		return text, true
	case <-a.done:
		return "", false
	}
}

// Stop persists every document and terminates the agent. It blocks until
// the run loop has fully exited; every request after Stop is accepted fails
// with ErrStopped. Calling Stop more than once is safe.
func (a *PaperAgent) Stop(ctx context.Context) {
	select {
	case a.stop <- stopRequest{ctx: ctx}:
	case <-a.done:
		return
	}
	<-a.done
}
