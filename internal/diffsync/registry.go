package diffsync

import (
	"context"
	"fmt"
	"sync"

	"github.com/desperadomar/bluelatex/internal/metrics"
	"github.com/desperadomar/bluelatex/internal/store"
	"golang.org/x/sync/errgroup"
)

// PaperRegistry owns the set of live PaperAgents, one per paper currently
// being edited. Agents are spawned lazily on the first Join, Part, Dispatch
// or PersistPaper for a paper and torn down only by Shutdown; there is no
// per-paper idle eviction.
type PaperRegistry struct {
	mu     sync.Mutex
	store  store.Store
	agents map[PaperID]*PaperAgent
	closed bool
}

func NewPaperRegistry(st store.Store) *PaperRegistry {
	return &PaperRegistry{
		store:  st,
		agents: make(map[PaperID]*PaperAgent),
	}
}

// agentFor returns the agent for paper, spawning one rooted at
// "/papers/<paper>" if this is the first reference. Returns
// ErrRegistryClosed once Shutdown has run.
func (r *PaperRegistry) agentFor(paper PaperID) (*PaperAgent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrRegistryClosed
	}
	a, ok := r.agents[paper]
	if !ok {
		root := fmt.Sprintf("/papers/%s", paper)
		a = NewPaperAgent(paper, root, r.store)
		r.agents[paper] = a
		metrics.SetActivePapers(len(r.agents))
	}
	return a, nil
}

func (r *PaperRegistry) Join(ctx context.Context, paper PaperID, peer PeerID) error {
	a, err := r.agentFor(paper)
	if err != nil {
		return err
	}
	return a.Join(ctx, peer)
}

func (r *PaperRegistry) Part(ctx context.Context, paper PaperID, peer PeerID) error {
	a, err := r.agentFor(paper)
	if err != nil {
		return err
	}
	return a.Part(ctx, peer)
}

func (r *PaperRegistry) Dispatch(ctx context.Context, req SyncSessionRequest) (SyncSessionResponse, error) {
	a, err := r.agentFor(req.Paper)
	if err != nil {
		return SyncSessionResponse{}, err
	}
	return a.SyncSession(ctx, req)
}

func (r *PaperRegistry) PersistPaper(ctx context.Context, paper PaperID) error {
	a, err := r.agentFor(paper)
	if err != nil {
		return err
	}
	return a.PersistPaper(ctx)
}

// Shutdown stops every live agent concurrently, waiting for each to persist
// and terminate before returning.
func (r *PaperRegistry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	agents := make([]*PaperAgent, 0, len(r.agents))
	for _, a := range r.agents {
		agents = append(agents, a)
	}
	r.agents = make(map[PaperID]*PaperAgent)
	r.mu.Unlock()
	metrics.SetActivePapers(0)

	g, ctx := errgroup.WithContext(ctx)
	for _, a := range agents {
		a := a
		g.Go(func() error {
			a.Stop(ctx)
			return nil
		})
	}
	return g.Wait()
}
