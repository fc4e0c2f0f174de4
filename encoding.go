// SPDX-License-Identifier: MIT
// Copyright (c) 2024 L. D. T. d.o.o.
// Copyright (c) contributors for their respective contributions. See https://github.com/l-d-t/fiskalhrgo/graphs/contributors

package tizensig

import (
	"encoding/base64"
	"strings"
)

const base64WrapWidth = 76

// wrapBase64 standard-encodes data and inserts a newline after every 76
// characters, matching the wrapping every Base64 body in this profile
// (digests, signature values, certificates) must use.
func wrapBase64(data []byte) string {
	encoded := base64.StdEncoding.EncodeToString(data)
	return wrapString(encoded, base64WrapWidth)
}

func wrapString(s string, width int) string {
	if len(s) <= width {
		return s
	}

	var b strings.Builder
	b.Grow(len(s) + len(s)/width + 1)
	for len(s) > width {
		b.WriteString(s[:width])
		b.WriteByte('\n')
		s = s[width:]
	}
	b.WriteString(s)
	return b.String()
}

// base64DecodeWrapped decodes a Base64 string that may contain the
// newlines this package inserts every 76 columns.
func base64DecodeWrapped(s string) ([]byte, error) {
	s = strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\r', ' ', '\t':
			return -1
		}
		return r
	}, s)
	return base64.StdEncoding.DecodeString(s)
}

// escapeXMLAttr performs plain, pre-parse XML escaping for a string that
// will be embedded inside an attribute value of a template this package
// builds and then parses with etree. It is deliberately distinct from
// escapeAttrValue in canonicalize.go, which escapes an already-parsed
// value for canonical re-serialization.
func escapeXMLAttr(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, "\"", "&quot;")
	return s
}
