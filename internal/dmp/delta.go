package dmp

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/desperadomar/bluelatex/internal/uricodec"
)

// ToDelta serializes diffs into the compact "=N\t-N\t+text" wire form.
// Insert text is escaped with uricodec so the output is byte-identical to
// what a diff-match-patch client would produce with encodeURI.
func ToDelta(diffs []Diff) string {
	parts := make([]string, 0, len(diffs))
	for _, d := range diffs {
		switch d.Op {
		case Equal:
			parts = append(parts, "="+strconv.Itoa(utf8.RuneCountInString(d.Text)))
		case Delete:
			parts = append(parts, "-"+strconv.Itoa(utf8.RuneCountInString(d.Text)))
		case Insert:
			parts = append(parts, "+"+uricodec.Encode(d.Text))
		}
	}
	return strings.Join(parts, "\t")
}

// FromDelta reconstructs diffs by replaying deltaText against base,
// slicing base's runes for "=" and "-" runs and uri-decoding "+" runs. It
// fails with ErrMalformedDelta if the token stream is malformed or its
// total consumed length does not equal len(base) in runes.
func FromDelta(base string, deltaText string) ([]Diff, error) {
	baseRunes := []rune(base)
	if deltaText == "" {
		if len(baseRunes) != 0 {
			return nil, ErrMalformedDelta
		}
		return nil, nil
	}

	pos := 0
	var diffs []Diff
	for _, tok := range strings.Split(deltaText, "\t") {
		if tok == "" {
			return nil, ErrMalformedDelta
		}
		switch tok[0] {
		case '=':
			n, err := strconv.Atoi(tok[1:])
			if err != nil || n < 0 || pos+n > len(baseRunes) {
				return nil, ErrMalformedDelta
			}
			diffs = append(diffs, Diff{Equal, string(baseRunes[pos : pos+n])})
			pos += n
		case '-':
			n, err := strconv.Atoi(tok[1:])
			if err != nil || n < 0 || pos+n > len(baseRunes) {
				return nil, ErrMalformedDelta
			}
			diffs = append(diffs, Diff{Delete, string(baseRunes[pos : pos+n])})
			pos += n
		case '+':
			text, err := uricodec.Decode(tok[1:])
			if err != nil {
				return nil, ErrMalformedDelta
			}
			diffs = append(diffs, Diff{Insert, text})
		default:
			return nil, ErrMalformedDelta
		}
	}
	if pos != len(baseRunes) {
		return nil, ErrMalformedDelta
	}
	return mergeDiffs(diffs), nil
}
