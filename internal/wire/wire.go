// Package wire implements the JSON envelope described by this module's
// external interface: SyncSession requests and responses carrying Delta,
// Raw, Nullify and Message items. Delta edits travel as the tab-joined
// delta text diff-match-patch clients already speak, not as a structured
// op array, so existing clients round-trip through parseEdits/toDelta
// unmodified.
package wire

import (
	"encoding/json"
	"fmt"

	"github.com/desperadomar/bluelatex/internal/diffsync"
	"github.com/desperadomar/bluelatex/internal/dmp"
)

// SyncSession is the wire envelope for diffsync.SyncSessionRequest and
// diffsync.SyncSessionResponse alike; Peer is omitted on requests that
// carry it out-of-band (e.g. a gateway that binds Peer to the connection).
type SyncSession struct {
	Peer  string `json:"peer,omitempty"`
	Paper string `json:"paper"`
	Items []Item `json:"items"`
}

// Item is a tagged union: exactly one of Message or Command is set,
// selected by Kind.
type Item struct {
	Kind    string   `json:"kind"`
	Message *Message `json:"message,omitempty"`
	Command *Command `json:"command,omitempty"`
}

type Message struct {
	Payload json.RawMessage `json:"payload"`
}

type Command struct {
	Filename string  `json:"filename"`
	Revision uint64  `json:"revision"`
	Action   string  `json:"action"`
	Delta    *Delta  `json:"delta,omitempty"`
	Raw      *Raw    `json:"raw,omitempty"`
}

type Delta struct {
	Revision  uint64 `json:"revision"`
	Edits     string `json:"edits"`
	Overwrite bool   `json:"overwrite"`
}

type Raw struct {
	Revision  uint64 `json:"revision"`
	Data      string `json:"data"`
	Overwrite bool   `json:"overwrite"`
}

const (
	kindMessage = "message"
	kindCommand = "command"

	actionDelta   = "delta"
	actionRaw     = "raw"
	actionNullify = "nullify"
)

// DecodeRequest parses a SyncSession envelope into the domain request
// type, resolving Delta edit text into typed ops via dmp.ParseEdits.
func DecodeRequest(peer diffsync.PeerID, s *SyncSession) (diffsync.SyncSessionRequest, error) {
	req := diffsync.SyncSessionRequest{
		Peer:  peer,
		Paper: diffsync.PaperID(s.Paper),
	}
	for _, it := range s.Items {
		item, err := decodeItem(it)
		if err != nil {
			return diffsync.SyncSessionRequest{}, err
		}
		req.Items = append(req.Items, item)
	}
	return req, nil
}

func decodeItem(it Item) (diffsync.SessionItem, error) {
	switch it.Kind {
	case kindMessage:
		if it.Message == nil {
			return diffsync.SessionItem{}, fmt.Errorf("wire: message item missing payload")
		}
		return diffsync.SessionItem{
			Kind:    diffsync.ItemMessage,
			Message: diffsync.Message{Payload: it.Message.Payload},
		}, nil
	case kindCommand:
		if it.Command == nil {
			return diffsync.SessionItem{}, fmt.Errorf("wire: command item missing command")
		}
		cmd, err := decodeCommand(it.Command)
		if err != nil {
			return diffsync.SessionItem{}, err
		}
		return diffsync.SessionItem{Kind: diffsync.ItemSyncCommand, Command: cmd}, nil
	default:
		return diffsync.SessionItem{}, fmt.Errorf("wire: unknown item kind %q", it.Kind)
	}
}

func decodeCommand(c *Command) (diffsync.SyncCommand, error) {
	cmd := diffsync.SyncCommand{
		Filename: diffsync.Filepath(c.Filename),
		Revision: c.Revision,
	}
	switch c.Action {
	case actionDelta:
		if c.Delta == nil {
			return diffsync.SyncCommand{}, fmt.Errorf("wire: delta action missing delta")
		}
		ops, err := dmp.ParseEdits(c.Delta.Edits)
		if err != nil {
			return diffsync.SyncCommand{}, fmt.Errorf("wire: malformed delta edits: %w", err)
		}
		cmd.Kind = diffsync.ActionDelta
		cmd.Delta = diffsync.DeltaAction{Revision: c.Delta.Revision, Edits: ops, Overwrite: c.Delta.Overwrite}
	case actionRaw:
		if c.Raw == nil {
			return diffsync.SyncCommand{}, fmt.Errorf("wire: raw action missing raw")
		}
		cmd.Kind = diffsync.ActionRaw
		cmd.Raw = diffsync.RawAction{Revision: c.Raw.Revision, Data: c.Raw.Data, Overwrite: c.Raw.Overwrite}
	case actionNullify:
		cmd.Kind = diffsync.ActionNullify
	default:
		return diffsync.SyncCommand{}, fmt.Errorf("wire: unknown action %q", c.Action)
	}
	return cmd, nil
}

// EncodeResponse renders a domain response into its wire envelope.
func EncodeResponse(resp diffsync.SyncSessionResponse) *SyncSession {
	s := &SyncSession{
		Peer:  string(resp.Peer),
		Paper: string(resp.Paper),
	}
	for _, item := range resp.Items {
		s.Items = append(s.Items, encodeItem(item))
	}
	return s
}

func encodeItem(item diffsync.SessionItem) Item {
	switch item.Kind {
	case diffsync.ItemMessage:
		return Item{Kind: kindMessage, Message: &Message{Payload: item.Message.Payload}}
	default:
		return Item{Kind: kindCommand, Command: encodeCommand(item.Command)}
	}
}

func encodeCommand(cmd diffsync.SyncCommand) *Command {
	out := &Command{
		Filename: string(cmd.Filename),
		Revision: cmd.Revision,
	}
	switch cmd.Kind {
	case diffsync.ActionDelta:
		out.Action = actionDelta
		out.Delta = &Delta{
			Revision:  cmd.Delta.Revision,
			Edits:     dmp.DeltaFromEditOps(cmd.Delta.Edits),
			Overwrite: cmd.Delta.Overwrite,
		}
	case diffsync.ActionRaw:
		out.Action = actionRaw
		out.Raw = &Raw{
			Revision:  cmd.Raw.Revision,
			Data:      cmd.Raw.Data,
			Overwrite: cmd.Raw.Overwrite,
		}
	case diffsync.ActionNullify:
		out.Action = actionNullify
	}
	return out
}
