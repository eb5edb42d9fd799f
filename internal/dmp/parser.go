package dmp

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/desperadomar/bluelatex/internal/uricodec"
)

// EditOpKind tags one element of the wire-level edit representation that
// travels inside a Delta action, separately from the revision it is
// acknowledging.
type EditOpKind int

const (
	EditEqual EditOpKind = iota
	EditDelete
	EditInsert
)

// EditOp is what EditDeltaParser.parseEdits yields: unlike Diff, an
// EditEqual or EditDelete op carries only a length, since neither needs the
// base text to be put on the wire.
type EditOp struct {
	Kind EditOpKind
	Len  int
	Text string
}

// ParseEdits parses delta text into typed edit ops without requiring the
// base text — this is what a client's Delta.edits field actually carries.
func ParseEdits(deltaText string) ([]EditOp, error) {
	if deltaText == "" {
		return nil, nil
	}
	var ops []EditOp
	for _, tok := range strings.Split(deltaText, "\t") {
		if tok == "" {
			return nil, ErrMalformedDelta
		}
		switch tok[0] {
		case '=':
			n, err := strconv.Atoi(tok[1:])
			if err != nil || n < 0 {
				return nil, ErrMalformedDelta
			}
			ops = append(ops, EditOp{Kind: EditEqual, Len: n})
		case '-':
			n, err := strconv.Atoi(tok[1:])
			if err != nil || n < 0 {
				return nil, ErrMalformedDelta
			}
			ops = append(ops, EditOp{Kind: EditDelete, Len: n})
		case '+':
			text, err := uricodec.Decode(tok[1:])
			if err != nil {
				return nil, ErrMalformedDelta
			}
			ops = append(ops, EditOp{Kind: EditInsert, Text: text})
		default:
			return nil, ErrMalformedDelta
		}
	}
	return ops, nil
}

// DeltaFromEditOps is the inverse of ParseEdits; ToDelta(diffs) and
// DeltaFromEditOps(EditOpsFromDiffs(diffs)) produce identical text, which is
// the round-trip property the wire format depends on.
func DeltaFromEditOps(ops []EditOp) string {
	parts := make([]string, 0, len(ops))
	for _, op := range ops {
		switch op.Kind {
		case EditEqual:
			parts = append(parts, "="+strconv.Itoa(op.Len))
		case EditDelete:
			parts = append(parts, "-"+strconv.Itoa(op.Len))
		case EditInsert:
			parts = append(parts, "+"+uricodec.Encode(op.Text))
		}
	}
	return strings.Join(parts, "\t")
}

// EditOpsFromDiffs converts a diff sequence into its wire representation.
func EditOpsFromDiffs(diffs []Diff) []EditOp {
	ops := make([]EditOp, 0, len(diffs))
	for _, d := range diffs {
		switch d.Op {
		case Equal:
			ops = append(ops, EditOp{Kind: EditEqual, Len: utf8.RuneCountInString(d.Text)})
		case Delete:
			ops = append(ops, EditOp{Kind: EditDelete, Len: utf8.RuneCountInString(d.Text)})
		case Insert:
			ops = append(ops, EditOp{Kind: EditInsert, Text: d.Text})
		}
	}
	return ops
}

// DiffsFromEditOps is what the state machine calls when a peer's Delta
// arrives: it turns the wire-level ops back into diffs against the
// server's current shadow for that view.
func DiffsFromEditOps(base string, ops []EditOp) ([]Diff, error) {
	return FromDelta(base, DeltaFromEditOps(ops))
}
