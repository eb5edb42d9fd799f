package diffsync

import "time"

// viewKey identifies a documentView: one peer's shadow of one file.
type viewKey struct {
	peer PeerID
	path Filepath
}

// syncContext is the mutable state a PaperAgent owns for a single paper:
// its documents, the per-peer views over them, and the message bus. It has
// no synchronization of its own; the agent's actor loop is the only thing
// ever allowed to touch it, which is what makes every field plain.
type syncContext struct {
	documents             map[Filepath]*Document
	views                 map[viewKey]*documentView
	bus                   *messageBus
	lastModificationTime  time.Time
}

func newSyncContext() *syncContext {
	return &syncContext{
		documents: make(map[Filepath]*Document),
		views:     make(map[viewKey]*documentView),
		bus:       newMessageBus(),
	}
}

func (c *syncContext) join(peer PeerID) {
	c.bus.join(peer)
}

// part drops everything this peer held: its mailbox and every view keyed by
// it. Documents themselves, being shared, are left alone.
func (c *syncContext) part(peer PeerID) {
	c.bus.part(peer)
	for k := range c.views {
		if k.peer == peer {
			delete(c.views, k)
		}
	}
}

// dropDocument removes a document and every view over it, regardless of
// which peer owns the view. Used by Nullify.
func (c *syncContext) dropDocument(path Filepath) {
	delete(c.documents, path)
	for k := range c.views {
		if k.path == path {
			delete(c.views, k)
		}
	}
}
