package dmp

import "unicode/utf8"

// Patch is a single best-effort hunk built from a diff sequence. Real
// diff-match-patch splits large diffs into several context-bounded hunks
// and fuzzy-matches each one independently (the Bitap algorithm); this
// engine only ever patches a single server document against a single
// view's diffs at a time; one hunk covering the whole diff is sufficient
// and keeps the implementation dependency-free.
type Patch struct {
	Diffs []Diff
}

// PatchMake builds a patch from diffs computed against text.
func PatchMake(text string, diffs []Diff) *Patch {
	return &Patch{Diffs: diffs}
}

// PatchApply applies p against text on a best-effort basis: each Equal run
// is matched at its expected offset first, falling back to a forward scan
// if the document has drifted since the patch was built. If any run can't
// be located, the whole hunk is rejected and text is returned unchanged —
// matching the "rejected hunks are discarded" contract.
func PatchApply(p *Patch, text string) (string, []bool) {
	if p == nil || len(p.Diffs) == 0 {
		return text, []bool{p != nil}
	}

	runes := []rune(text)
	pos := 0
	var out []rune

	for _, d := range p.Diffs {
		switch d.Op {
		case Equal:
			want := []rune(d.Text)
			n := len(want)
			skip := 0
			switch {
			case pos+n <= len(runes) && string(runes[pos:pos+n]) == d.Text:
				skip = 0
			default:
				idx := indexRunes(runes[pos:], want)
				if idx < 0 {
					return text, []bool{false}
				}
				skip = idx
			}
			out = append(out, runes[pos:pos+skip]...)
			out = append(out, want...)
			pos += skip + n
		case Delete:
			n := utf8.RuneCountInString(d.Text)
			if pos+n > len(runes) {
				return text, []bool{false}
			}
			pos += n
		case Insert:
			out = append(out, []rune(d.Text)...)
		}
	}
	out = append(out, runes[pos:]...)
	return string(out), []bool{true}
}

func indexRunes(haystack, needle []rune) int {
	if len(needle) == 0 {
		return 0
	}
	for i := 0; i+len(needle) <= len(haystack); i++ {
		match := true
		for j, r := range needle {
			if haystack[i+j] != r {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}
