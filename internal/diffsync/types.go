// Package diffsync implements the collaborative document synchronization
// engine: per-paper single-writer agents that keep per-peer shadows
// consistent with an authoritative server document via diff/patch exchange,
// following Neil Fraser's differential synchronization algorithm.
package diffsync

import (
	"encoding/json"

	"github.com/desperadomar/bluelatex/internal/dmp"
)

// PeerID, PaperID and Filepath are opaque wire identifiers.
type PeerID string
type PaperID string
type Filepath string

// Document is the authoritative server text for one file actively edited
// within a paper. At most one Document exists per canonical path inside one
// PaperAgent.
type Document struct {
	Path     Filepath
	Filename Filepath
	Text     string
}

// ActionKind tags a SyncCommand's payload variant.
type ActionKind int

const (
	ActionDelta ActionKind = iota
	ActionRaw
	ActionNullify
)

func (k ActionKind) String() string {
	switch k {
	case ActionDelta:
		return "delta"
	case ActionRaw:
		return "raw"
	case ActionNullify:
		return "nullify"
	default:
		return "unknown"
	}
}

// DeltaAction carries a compact diff-match-patch delta.
type DeltaAction struct {
	Revision  uint64
	Edits     []dmp.EditOp
	Overwrite bool
}

// RawAction carries a full-text snapshot, URI-encoded per internal/uricodec.
type RawAction struct {
	Revision  uint64
	Data      string
	Overwrite bool
}

// SyncCommand is one per-file synchronization command, inbound or outbound.
type SyncCommand struct {
	Filename Filepath
	Revision uint64
	Kind     ActionKind
	Delta    DeltaAction
	Raw      RawAction
}

// Message is an opaque peer-to-peer broadcast payload.
type Message struct {
	Payload json.RawMessage
}

// ItemKind tags one element of a SyncSession's items list.
type ItemKind int

const (
	ItemMessage ItemKind = iota
	ItemSyncCommand
)

// SessionItem is either a Message or a SyncCommand.
type SessionItem struct {
	Kind    ItemKind
	Message Message
	Command SyncCommand
}

// SyncSessionRequest is the inbound envelope from one peer.
type SyncSessionRequest struct {
	Peer  PeerID
	Paper PaperID
	Items []SessionItem
}

// SyncSessionResponse is the outbound envelope: outbound SyncCommands in
// processing order, followed by the peer's pending messages, newest-first.
type SyncSessionResponse struct {
	Peer  PeerID
	Paper PaperID
	Items []SessionItem
}
