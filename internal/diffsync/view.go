package diffsync

// documentView holds one peer's differential-sync state for one file: its
// shadow, backup shadow, revision counters, and pending edit stack. It
// holds a non-owning back-reference to the Document it tracks.
type documentView struct {
	document *Document

	shadow                string
	backupShadow          string
	backupShadowRevision  uint64
	serverShadowRevision  uint64
	clientShadowRevision  uint64
	edits                 []SyncCommand
	deltaOk               bool
	overwrite             bool
	changed               bool
}

// newDocumentView creates a view seeded with the document's current text as
// the initial shadow.
func newDocumentView(doc *Document) *documentView {
	return &documentView{
		document: doc,
		shadow:   doc.Text,
		deltaOk:  true,
	}
}

// restoreBackupShadow recovers from a lost server response: the client is
// replaying the revision it had before that response, so the server rewinds
// to the shadow it had then.
func (v *documentView) restoreBackupShadow() {
	v.shadow = v.backupShadow
	v.serverShadowRevision = v.backupShadowRevision
	v.edits = nil
}

// setShadow seats a new agreed-upon shadow, used by Raw resynchronization.
func (v *documentView) setShadow(data string, clientRev, serverRev uint64, overwrite bool) {
	v.shadow = data
	if overwrite {
		v.document.Text = data
	}
	v.clientShadowRevision = clientRev
	v.serverShadowRevision = serverRev
	v.backupShadow = data
	v.backupShadowRevision = serverRev
	v.edits = nil
	v.deltaOk = true
	v.changed = true
}

// update snapshots the current shadow into the backup shadow.
func (v *documentView) update() {
	v.backupShadow = v.shadow
	v.backupShadowRevision = v.serverShadowRevision
	v.changed = true
}
