package diffsync

import (
	"context"
	"testing"

	"github.com/desperadomar/bluelatex/internal/dmp"
	"github.com/desperadomar/bluelatex/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAgent(t *testing.T) *PaperAgent {
	t.Helper()
	a := NewPaperAgent("paper1", "/papers/paper1", store.NewMemStore())
	t.Cleanup(func() { a.Stop(context.Background()) })
	return a
}

func rawCommand(filename Filepath, revision uint64, data string, overwrite bool) SyncCommand {
	return SyncCommand{
		Filename: filename,
		Revision: revision,
		Kind:     ActionRaw,
		Raw:      RawAction{Revision: revision, Data: data, Overwrite: overwrite},
	}
}

// deltaCommand builds a Delta SyncCommand. envelopeRev is the outer
// SyncCommand.Revision (acking the server's last-seen serverShadowRevision);
// deltaRev is the Delta action's own revision (the client's own delta
// sequence number, tracked server-side as clientShadowRevision).
func deltaCommand(filename Filepath, envelopeRev, deltaRev uint64, ops []dmp.EditOp, overwrite bool) SyncCommand {
	return SyncCommand{
		Filename: filename,
		Revision: envelopeRev,
		Kind:     ActionDelta,
		Delta:    DeltaAction{Revision: deltaRev, Edits: ops, Overwrite: overwrite},
	}
}

func TestJoinThenFirstRawEdit(t *testing.T) {
	ctx := context.Background()
	a := newTestAgent(t)
	require.NoError(t, a.Join(ctx, "A"))

	resp, err := a.SyncSession(ctx, SyncSessionRequest{
		Peer:  "A",
		Paper: "paper1",
		Items: []SessionItem{{Kind: ItemSyncCommand, Command: rawCommand("f.tex", 0, "hello", true)}},
	})
	require.NoError(t, err)
	require.Len(t, resp.Items, 1)

	item := resp.Items[0]
	assert.Equal(t, ItemSyncCommand, item.Kind)
	assert.Equal(t, uint64(1), item.Command.Revision)
	assert.Equal(t, ActionDelta, item.Command.Kind)
	assert.Equal(t, uint64(0), item.Command.Delta.Revision)
	assert.False(t, item.Command.Delta.Overwrite)
}

func TestHappyPathDeltaInsertsWord(t *testing.T) {
	ctx := context.Background()
	a := newTestAgent(t)
	require.NoError(t, a.Join(ctx, "A"))

	_, err := a.SyncSession(ctx, SyncSessionRequest{
		Peer: "A", Paper: "paper1",
		Items: []SessionItem{{Kind: ItemSyncCommand, Command: rawCommand("f.tex", 0, "hello", true)}},
	})
	require.NoError(t, err)

	ops := []dmp.EditOp{
		{Kind: dmp.EditEqual, Len: 5},
		{Kind: dmp.EditInsert, Text: " world"},
	}
	resp, err := a.SyncSession(ctx, SyncSessionRequest{
		Peer: "A", Paper: "paper1",
		Items: []SessionItem{{Kind: ItemSyncCommand, Command: deltaCommand("f.tex", 1, 0, ops, false)}},
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Items)

	paperText := requireDocumentText(t, a)
	assert.Equal(t, "hello world", paperText)
}

func TestDuplicateDeltaIsDroppedSilently(t *testing.T) {
	ctx := context.Background()
	a := newTestAgent(t)
	require.NoError(t, a.Join(ctx, "A"))

	_, err := a.SyncSession(ctx, SyncSessionRequest{
		Peer: "A", Paper: "paper1",
		Items: []SessionItem{{Kind: ItemSyncCommand, Command: rawCommand("f.tex", 0, "hello", true)}},
	})
	require.NoError(t, err)

	ops := []dmp.EditOp{{Kind: dmp.EditEqual, Len: 5}, {Kind: dmp.EditInsert, Text: " world"}}
	_, err = a.SyncSession(ctx, SyncSessionRequest{
		Peer: "A", Paper: "paper1",
		Items: []SessionItem{{Kind: ItemSyncCommand, Command: deltaCommand("f.tex", 1, 0, ops, false)}},
	})
	require.NoError(t, err)

	// Resend the exact same delta under the same envelope revision it used
	// the first time: the revision gate rewinds via the backup shadow, and
	// the delta itself dedups against clientShadowRevision having already
	// advanced past 0.
	resp2, err := a.SyncSession(ctx, SyncSessionRequest{
		Peer: "A", Paper: "paper1",
		Items: []SessionItem{{Kind: ItemSyncCommand, Command: deltaCommand("f.tex", 1, 0, ops, false)}},
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp2.Items)
	assert.Equal(t, ActionDelta, resp2.Items[0].Command.Kind)

	assert.Equal(t, "hello world", requireDocumentText(t, a))
}

func TestLostResponseRecoveryReplaysFromBackupShadow(t *testing.T) {
	ctx := context.Background()
	a := newTestAgent(t)
	require.NoError(t, a.Join(ctx, "A"))

	_, err := a.SyncSession(ctx, SyncSessionRequest{
		Peer: "A", Paper: "paper1",
		Items: []SessionItem{{Kind: ItemSyncCommand, Command: rawCommand("f.tex", 0, "hello", true)}},
	})
	require.NoError(t, err)

	// First edit: client acks the server's last-seen revision (1, from the
	// Raw flush) and sends its own first delta (revision 0).
	ops := []dmp.EditOp{{Kind: dmp.EditEqual, Len: 5}, {Kind: dmp.EditInsert, Text: " world"}}
	_, err = a.SyncSession(ctx, SyncSessionRequest{
		Peer: "A", Paper: "paper1",
		Items: []SessionItem{{Kind: ItemSyncCommand, Command: deltaCommand("f.tex", 1, 0, ops, false)}},
	})
	require.NoError(t, err)

	// Client never saw the response to the previous request (it would have
	// said the server was now at revision 2) and replays the identical
	// request, still acking revision 1.
	resp, err := a.SyncSession(ctx, SyncSessionRequest{
		Peer: "A", Paper: "paper1",
		Items: []SessionItem{{Kind: ItemSyncCommand, Command: deltaCommand("f.tex", 1, 0, ops, false)}},
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Items)

	assert.Equal(t, "hello world", requireDocumentText(t, a))
}

func TestMalformedDeltaFallsBackToRawOnNextFlush(t *testing.T) {
	ctx := context.Background()
	a := newTestAgent(t)
	require.NoError(t, a.Join(ctx, "A"))

	resp0, err := a.SyncSession(ctx, SyncSessionRequest{
		Peer: "A", Paper: "paper1",
		Items: []SessionItem{{Kind: ItemSyncCommand, Command: rawCommand("f.tex", 0, "hello", true)}},
	})
	require.NoError(t, err)
	envelopeRev := resp0.Items[0].Command.Revision

	// Edits referencing far more of the shadow than exists: FromDelta
	// rejects this as malformed.
	badOps := []dmp.EditOp{{Kind: dmp.EditEqual, Len: 500}}
	resp, err := a.SyncSession(ctx, SyncSessionRequest{
		Peer: "A", Paper: "paper1",
		Items: []SessionItem{{Kind: ItemSyncCommand, Command: deltaCommand("f.tex", envelopeRev, 0, badOps, false)}},
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Items)

	last := resp.Items[len(resp.Items)-1]
	assert.Equal(t, ActionRaw, last.Command.Kind)
	assert.Equal(t, "hello", requireDocumentText(t, a))
}

func TestPeerBroadcastReachesOtherPeersOnce(t *testing.T) {
	ctx := context.Background()
	a := newTestAgent(t)
	require.NoError(t, a.Join(ctx, "A"))
	require.NoError(t, a.Join(ctx, "B"))
	require.NoError(t, a.Join(ctx, "C"))

	msg := Message{Payload: []byte(`{"hello":true}`)}
	_, err := a.SyncSession(ctx, SyncSessionRequest{
		Peer: "A", Paper: "paper1",
		Items: []SessionItem{{Kind: ItemMessage, Message: msg}},
	})
	require.NoError(t, err)

	respB, err := a.SyncSession(ctx, SyncSessionRequest{Peer: "B", Paper: "paper1"})
	require.NoError(t, err)
	require.Len(t, respB.Items, 1)
	assert.Equal(t, ItemMessage, respB.Items[0].Kind)

	respC, err := a.SyncSession(ctx, SyncSessionRequest{Peer: "C", Paper: "paper1"})
	require.NoError(t, err)
	require.Len(t, respC.Items, 1)

	respA, err := a.SyncSession(ctx, SyncSessionRequest{Peer: "A", Paper: "paper1"})
	require.NoError(t, err)
	assert.Empty(t, respA.Items)
}

func TestPeerMessagesDrainNewestFirst(t *testing.T) {
	ctx := context.Background()
	a := newTestAgent(t)
	require.NoError(t, a.Join(ctx, "A"))
	require.NoError(t, a.Join(ctx, "B"))

	first := Message{Payload: []byte(`{"seq":1}`)}
	second := Message{Payload: []byte(`{"seq":2}`)}

	_, err := a.SyncSession(ctx, SyncSessionRequest{
		Peer: "A", Paper: "paper1",
		Items: []SessionItem{{Kind: ItemMessage, Message: first}},
	})
	require.NoError(t, err)

	_, err = a.SyncSession(ctx, SyncSessionRequest{
		Peer: "A", Paper: "paper1",
		Items: []SessionItem{{Kind: ItemMessage, Message: second}},
	})
	require.NoError(t, err)

	respB, err := a.SyncSession(ctx, SyncSessionRequest{Peer: "B", Paper: "paper1"})
	require.NoError(t, err)
	require.Len(t, respB.Items, 2)
	assert.Equal(t, second.Payload, respB.Items[0].Message.Payload)
	assert.Equal(t, first.Payload, respB.Items[1].Message.Payload)
}

func TestPartRemovesOnlyThatPeersViews(t *testing.T) {
	ctx := context.Background()
	a := newTestAgent(t)
	require.NoError(t, a.Join(ctx, "A"))
	require.NoError(t, a.Join(ctx, "B"))

	_, err := a.SyncSession(ctx, SyncSessionRequest{
		Peer: "A", Paper: "paper1",
		Items: []SessionItem{{Kind: ItemSyncCommand, Command: rawCommand("f.tex", 0, "hello", true)}},
	})
	require.NoError(t, err)

	require.NoError(t, a.Part(ctx, "A"))

	// B is unaffected: joining and syncing still works normally.
	resp, err := a.SyncSession(ctx, SyncSessionRequest{
		Peer: "B", Paper: "paper1",
		Items: []SessionItem{{Kind: ItemSyncCommand, Command: rawCommand("f.tex", 0, "hello", true)}},
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Items)
}

func TestStopPersistsAndRejectsFurtherRequests(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemStore()
	a := NewPaperAgent("paper1", "/papers/paper1", st)
	require.NoError(t, a.Join(ctx, "A"))

	_, err := a.SyncSession(ctx, SyncSessionRequest{
		Peer: "A", Paper: "paper1",
		Items: []SessionItem{{Kind: ItemSyncCommand, Command: rawCommand("f.tex", 0, "hello", true)}},
	})
	require.NoError(t, err)

	a.Stop(ctx)

	_, err = a.SyncSession(ctx, SyncSessionRequest{Peer: "A", Paper: "paper1"})
	assert.True(t, IsStopped(err))

	doc, loadErr := st.Load(ctx, "/papers/paper1/f.tex")
	require.NoError(t, loadErr)
	assert.Equal(t, "hello", doc.Text)
}

func requireDocumentText(t *testing.T, a *PaperAgent) string {
	t.Helper()
	text, ok := a.inspectText("f.tex")
	require.True(t, ok)
	return text
}
