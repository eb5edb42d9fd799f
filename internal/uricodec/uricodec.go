// Package uricodec implements percent-encoding byte-identical to
// JavaScript's encodeURI/decodeURI, so text produced by this server's
// Raw snapshots and delta insert segments round-trips through existing
// diff-match-patch clients without re-escaping.
package uricodec

import (
	"net/url"
	"strings"
)

// safe holds every byte encodeURI leaves unescaped. Anything outside this
// set, including every byte of a multi-byte UTF-8 sequence, is percent-escaped.
const safe = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789" +
	"-_.!~*'();/?:@&=+$,#"

const hexDigits = "0123456789ABCDEF"

// Encode percent-encodes s exactly as JavaScript's encodeURI(s) would.
func Encode(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if strings.IndexByte(safe, c) >= 0 {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hexDigits[c>>4])
		b.WriteByte(hexDigits[c&0x0F])
	}
	return b.String()
}

// Decode reverses Encode (and any other well-formed percent-encoding of a
// UTF-8 string). Unlike url.QueryUnescape, a literal '+' is never treated as
// a space, matching decodeURI semantics.
func Decode(s string) (string, error) {
	return url.PathUnescape(s)
}
