package diffsync

import (
	"context"
	"errors"
	"path"
	"time"

	"github.com/desperadomar/bluelatex/internal/dmp"
	"github.com/desperadomar/bluelatex/internal/store"
	"github.com/desperadomar/bluelatex/internal/uricodec"
)

// canonicalize joins filename onto the paper's root directory and cleans
// the result, so that every view and every store key for a given file
// agrees on one string regardless of how the client spelled the path.
func canonicalize(root, filename string) Filepath {
	return Filepath(path.Clean("/" + path.Join(root, filename)))
}

// ensureDocument returns the Document for path, loading it from the store
// on first reference and caching it in sc for the lifetime of the paper.
func ensureDocument(ctx context.Context, sc *syncContext, st store.Store, path Filepath, filename Filepath) (*Document, error) {
	if doc, ok := sc.documents[path]; ok {
		return doc, nil
	}
	loaded, err := st.Load(ctx, string(path))
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, newStoreFailure("load", err)
	}
	doc := &Document{Path: path, Filename: filename}
	if err == nil {
		doc.Text = loaded.Text
	}
	sc.documents[path] = doc
	return doc, nil
}

// diffsNonEmpty reports whether diffs carries any actual edit, as opposed
// to describing the text as unchanged.
func diffsNonEmpty(diffs []dmp.Diff) bool {
	for _, d := range diffs {
		if d.Op != dmp.Equal {
			return true
		}
	}
	return false
}

// applyRevisionGate reconciles the inbound revision against the view's
// server and backup shadow revisions before any action is dispatched,
// restoring from the backup shadow when the client is replaying a request
// for a response that never reached it.
func applyRevisionGate(sc *syncContext, view *documentView, revision uint64, now func() time.Time) {
	switch {
	case revision == view.serverShadowRevision:
		view.deltaOk = true
	case revision == view.backupShadowRevision:
		view.restoreBackupShadow()
		sc.lastModificationTime = now()
	}

	acked := view.edits[:0]
	for _, e := range view.edits {
		if e.Revision > revision {
			acked = append(acked, e)
		}
	}
	view.edits = acked

	if revision != view.serverShadowRevision {
		view.deltaOk = false
	}
}

// processDelta applies an inbound Delta action. Malformed or out-of-order
// deltas are self-healing: they flip deltaOk to false and leave the
// document and shadow untouched, rather than aborting the session.
func processDelta(sc *syncContext, view *documentView, doc *Document, d DeltaAction, now func() time.Time) {
	defer func() { view.overwrite = d.Overwrite }()

	if !view.deltaOk {
		return
	}
	if d.Revision < view.clientShadowRevision {
		return
	}
	if d.Revision > view.clientShadowRevision {
		view.deltaOk = false
		return
	}

	diffs, err := dmp.DiffsFromEditOps(view.shadow, d.Edits)
	if err != nil {
		view.deltaOk = false
		return
	}

	patch := dmp.PatchMake(view.shadow, diffs)
	view.shadow = dmp.Text2(diffs)
	view.backupShadow = view.shadow
	view.backupShadowRevision = view.serverShadowRevision
	view.changed = true

	if d.Overwrite {
		doc.Text = view.shadow
	} else {
		doc.Text, _ = dmp.PatchApply(patch, doc.Text)
	}

	if diffsNonEmpty(diffs) {
		sc.lastModificationTime = now()
	}
	view.clientShadowRevision++
}

// processRaw handles the Raw action.
func processRaw(sc *syncContext, view *documentView, r RawAction, now func() time.Time) {
	decoded, err := uricodec.Decode(r.Data)
	if err != nil {
		view.deltaOk = false
		return
	}
	view.setShadow(decoded, r.Revision, view.serverShadowRevision, r.Overwrite)
	sc.lastModificationTime = now()
}

// processNullify handles the Nullify action. The store delete must succeed
// (or the document must never have been persisted) before any in-memory
// state is dropped, so a store failure never leaves the document
// unrecoverable.
func processNullify(ctx context.Context, sc *syncContext, st store.Store, path Filepath) error {
	if err := st.Delete(ctx, string(path)); err != nil && !errors.Is(err, store.ErrNotFound) {
		return newStoreFailure("delete", err)
	}
	sc.dropDocument(path)
	return nil
}

// flushStack reconciles the shadow against the document's current text,
// appends the resulting action to the view's edit stack, and returns every
// action currently on that stack (unacknowledged entries from prior rounds
// included).
func flushStack(view *documentView, doc *Document, filename Filepath) []SyncCommand {
	if view.deltaOk {
		diffs := dmp.Main(view.shadow, doc.Text)
		diffs = dmp.CleanupEfficiency(diffs)
		edits := dmp.EditOpsFromDiffs(diffs)

		view.edits = append(view.edits, SyncCommand{
			Filename: filename,
			Revision: view.serverShadowRevision,
			Kind:     ActionDelta,
			Delta: DeltaAction{
				Revision:  view.serverShadowRevision,
				Edits:     edits,
				Overwrite: view.overwrite,
			},
		})
		view.serverShadowRevision++
	} else {
		view.clientShadowRevision++
		raw := RawAction{Revision: view.serverShadowRevision}
		if doc.Text == "" {
			raw.Data, raw.Overwrite = "", false
		} else {
			raw.Data, raw.Overwrite = uricodec.Encode(doc.Text), true
		}
		view.edits = append(view.edits, SyncCommand{
			Filename: filename,
			Revision: view.serverShadowRevision,
			Kind:     ActionRaw,
			Raw:      raw,
		})
	}

	view.shadow = doc.Text
	view.changed = true

	out := make([]SyncCommand, len(view.edits))
	copy(out, view.edits)
	return out
}

// rewrapOutbound re-addresses every action on the edit stack under the
// view's current server shadow revision: the stack keeps each action's own
// revision internally (needed to drop it once acknowledged), but every
// response in a batch is sent under one outer envelope revision.
func rewrapOutbound(filename Filepath, currentRevision uint64, entries []SyncCommand) []SyncCommand {
	out := make([]SyncCommand, len(entries))
	for i, e := range entries {
		e.Filename = filename
		e.Revision = currentRevision
		out[i] = e
	}
	return out
}

// processCommand runs one inbound SyncCommand from peer: the revision gate,
// action dispatch, and the resulting flush. A non-nil error is a
// StoreFailure or UnknownRequest and aborts the remainder of the caller's
// batch; protocol-level desync (malformed or out-of-order deltas) is
// handled internally and never surfaces as an error.
func processCommand(ctx context.Context, sc *syncContext, st store.Store, root string, peer PeerID, cmd SyncCommand, now func() time.Time) ([]SyncCommand, error) {
	path := canonicalize(root, string(cmd.Filename))

	doc, err := ensureDocument(ctx, sc, st, path, cmd.Filename)
	if err != nil {
		return nil, err
	}

	key := viewKey{peer: peer, path: path}
	view, ok := sc.views[key]
	if !ok {
		view = newDocumentView(doc)
		sc.views[key] = view
	}

	applyRevisionGate(sc, view, cmd.Revision, now)

	switch cmd.Kind {
	case ActionDelta:
		processDelta(sc, view, doc, cmd.Delta, now)
	case ActionRaw:
		processRaw(sc, view, cmd.Raw, now)
	case ActionNullify:
		if err := processNullify(ctx, sc, st, path); err != nil {
			return nil, err
		}
		return nil, nil
	default:
		return nil, newUnknownRequest("sync command action kind")
	}

	entries := flushStack(view, doc, cmd.Filename)
	return rewrapOutbound(cmd.Filename, view.serverShadowRevision, entries), nil
}
