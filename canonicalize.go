// SPDX-License-Identifier: Apache-2.0
// This file is adapted from the github.com/russellhaering/goxmldsig project
// (by way of github.com/l-d-t/fiskalhrgo's canonicalization.go).

package tizensig

import (
	"bytes"
	"sort"
	"strings"

	"github.com/beevik/etree"
)

// xmlNamespaceURI is the fixed, pre-declared URI bound to the "xml"
// prefix by the XML specification itself; it never needs an xmlns:xml
// declaration and always sorts as "has a namespace" in the attribute
// axis.
const xmlNamespaceURI = "http://www.w3.org/XML/1998/namespace"

// CanonicalizationOptions parameterizes a single Canonicalize call. The
// zero value canonicalizes correctly for a standalone document, but not
// for a detached subtree (such as <SignedInfo>) that inherits its
// namespace from an enclosing element which isn't part of the
// canonicalized bytes: callers signing a detached SignedInfo must set
// DefaultNamespace to what that enclosing element would have declared.
type CanonicalizationOptions struct {
	// InclusiveNamespacePrefixes forces declaration of these prefixes
	// (InclusiveNamespaces PrefixList) even if not otherwise required.
	InclusiveNamespacePrefixes map[string]struct{}

	// DefaultNamespace is the default namespace in effect from the
	// enclosing (virtual) context of the root element being
	// canonicalized.
	DefaultNamespace string

	// DefaultNamespaceForPrefix is consulted when an element or
	// attribute carries a prefix but etree has no in-scope xmlns
	// declaration to resolve it against.
	DefaultNamespaceForPrefix map[string]string
}

// canonFrame is the per-recursion Canonicalization frame: which
// prefixes (and the default namespace) have already been rendered in
// the output so far, plus the namespace currently ambient for elements
// that don't redeclare one themselves. Every recursive call receives
// its own copy, so a child's declarations never leak back into a
// sibling's rendering.
type canonFrame struct {
	declared       map[string]string // prefix ("" = default) -> URI already emitted
	ambientDefault string            // resolved default ns for an element with no xmlns of its own
}

func (f canonFrame) clone() canonFrame {
	declared := make(map[string]string, len(f.declared))
	for k, v := range f.declared {
		declared[k] = v
	}
	return canonFrame{declared: declared, ambientDefault: f.ambientDefault}
}

// Canonicalize renders el and its subtree as Exclusive XML
// Canonicalization (no comments) bytes: namespace axis sorted by
// prefix with the default namespace emitted first and unsorted,
// attribute axis sorted by (has-namespace, namespaceURI+localName),
// text normalized to LF line endings, both axes escaped per the
// profile's rules.
func Canonicalize(el *etree.Element, opts CanonicalizationOptions) ([]byte, error) {
	if opts.InclusiveNamespacePrefixes == nil {
		opts.InclusiveNamespacePrefixes = map[string]struct{}{}
	}
	if opts.DefaultNamespaceForPrefix == nil {
		opts.DefaultNamespaceForPrefix = map[string]string{}
	}

	var buf bytes.Buffer
	frame := canonFrame{
		declared:       map[string]string{},
		ambientDefault: opts.DefaultNamespace,
	}
	canonicalizeElement(&buf, el, frame, opts)
	return buf.Bytes(), nil
}

func canonicalizeElement(buf *bytes.Buffer, el *etree.Element, frame canonFrame, opts CanonicalizationOptions) {
	ownNS := map[string]string{} // prefix ("" = default) -> URI, from this element's own xmlns* attributes
	var plainAttrs []etree.Attr

	for _, a := range el.Attr {
		switch {
		case a.Space == "" && a.Key == "xmlns":
			ownNS[""] = a.Value
		case a.Space == "xmlns":
			ownNS[a.Key] = a.Value
		default:
			plainAttrs = append(plainAttrs, a)
		}
	}

	// inScope resolves prefix against xmlns:prefix declarations on el and
	// its ancestors, nearest first.
	inScope := func(prefix string) (string, bool) {
		for e := el; e != nil; e = e.Parent() {
			for _, a := range e.Attr {
				if a.Space == "xmlns" && a.Key == prefix {
					return a.Value, true
				}
			}
		}
		return "", false
	}

	type nsDecl struct{ prefix, uri string }
	var sortedDecls []nsDecl
	defaultDeclURI := ""
	emitDefaultDecl := false

	// Rule 1: the element's own namespace.
	if el.Space != "" {
		if _, already := frame.declared[el.Space]; !already {
			uri, ok := inScope(el.Space)
			if !ok {
				uri = opts.DefaultNamespaceForPrefix[el.Space]
			}
			sortedDecls = append(sortedDecls, nsDecl{el.Space, uri})
			frame.declared[el.Space] = uri
		}
	} else {
		resolved := frame.ambientDefault
		if uri, ok := ownNS[""]; ok {
			resolved = uri
		}
		renderedURI, rendered := frame.declared[""]
		if resolved != "" && (!rendered || renderedURI != resolved) {
			emitDefaultDecl = true
			defaultDeclURI = resolved
			frame.declared[""] = resolved
		} else if resolved == "" && rendered && renderedURI != "" {
			if _, ownDeclEmpty := ownNS[""]; ownDeclEmpty {
				emitDefaultDecl = true
				defaultDeclURI = ""
				frame.declared[""] = ""
			}
		}
		frame.ambientDefault = resolved
	}

	// Rule 2a: force-declare any prefix named in the InclusiveNamespaces
	// PrefixList, whether or not anything on this element visibly uses it.
	for prefix := range opts.InclusiveNamespacePrefixes {
		if _, already := frame.declared[prefix]; already {
			continue
		}
		uri, ok := inScope(prefix)
		if !ok {
			uri = opts.DefaultNamespaceForPrefix[prefix]
		}
		sortedDecls = append(sortedDecls, nsDecl{prefix, uri})
		frame.declared[prefix] = uri
	}

	// Rule 2b: attribute-driven inclusions.
	for _, a := range plainAttrs {
		if a.Space != "" && a.Space != "xmlns" && a.Space != "xml" {
			if _, already := frame.declared[a.Space]; !already {
				uri, ok := inScope(a.Space)
				if !ok {
					uri = opts.DefaultNamespaceForPrefix[a.Space]
				}
				sortedDecls = append(sortedDecls, nsDecl{a.Space, uri})
				frame.declared[a.Space] = uri
			}
		}
	}

	sort.Slice(sortedDecls, func(i, j int) bool { return sortedDecls[i].prefix < sortedDecls[j].prefix })

	qname := el.Tag
	if el.Space != "" {
		qname = el.Space + ":" + el.Tag
	}

	buf.WriteString("<")
	buf.WriteString(qname)

	if emitDefaultDecl {
		buf.WriteString(` xmlns="`)
		buf.WriteString(escapeAttrValue(defaultDeclURI))
		buf.WriteString(`"`)
	}

	for _, d := range sortedDecls {
		buf.WriteString(" xmlns:")
		buf.WriteString(d.prefix)
		buf.WriteString(`="`)
		buf.WriteString(escapeAttrValue(d.uri))
		buf.WriteString(`"`)
	}

	sort.SliceStable(plainAttrs, func(i, j int) bool {
		ai, aj := plainAttrs[i], plainAttrs[j]
		iHasNS := ai.Space != ""
		jHasNS := aj.Space != ""
		if iHasNS != jHasNS {
			return !iHasNS
		}
		if !iHasNS {
			return ai.Key < aj.Key
		}
		return resolveAttrNamespace(ai, frame, opts)+ai.Key < resolveAttrNamespace(aj, frame, opts)+aj.Key
	})

	for _, a := range plainAttrs {
		name := a.Key
		if a.Space != "" {
			name = a.Space + ":" + a.Key
		}
		buf.WriteString(" ")
		buf.WriteString(name)
		buf.WriteString(`="`)
		buf.WriteString(escapeAttrValue(a.Value))
		buf.WriteString(`"`)
	}

	buf.WriteString(">")

	for _, child := range el.Child {
		switch c := child.(type) {
		case *etree.Element:
			canonicalizeElement(buf, c, frame.clone(), opts)
		case *etree.CharData:
			buf.WriteString(escapeText(c.Data))
		}
	}

	buf.WriteString("</")
	buf.WriteString(qname)
	buf.WriteString(">")
}

// resolveAttrNamespace returns the namespace URI used to order attr in
// the attribute axis: the well-known xml namespace for xml:* attributes,
// otherwise whatever this frame (or the fallback map) has bound to the
// attribute's prefix.
func resolveAttrNamespace(attr etree.Attr, frame canonFrame, opts CanonicalizationOptions) string {
	if attr.Space == "xml" {
		return xmlNamespaceURI
	}
	if attr.Space == "" {
		return ""
	}
	if uri, ok := frame.declared[attr.Space]; ok {
		return uri
	}
	return opts.DefaultNamespaceForPrefix[attr.Space]
}

// escapeText normalizes line endings to LF and escapes the characters
// that can appear in text-node canonical output.
func escapeText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case '&':
			b.WriteString("&amp;")
		case '<':
			b.WriteString("&lt;")
		case '>':
			b.WriteString("&gt;")
		case '\r':
			b.WriteString("&#xD;")
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// escapeAttrValue escapes an attribute value per the profile's rules.
// It does not collapse literal whitespace runs: that normalization is
// the XML parser's job during attribute-value parsing (XML 1.0 §3.3.3),
// which happens before this function ever sees the string. Any \r, \n,
// or \t still present at this point came from a character reference in
// the source (e.g. "&#xA;") and must round-trip as that same reference,
// not as a collapsed space.
func escapeAttrValue(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case '&':
			b.WriteString("&amp;")
		case '<':
			b.WriteString("&lt;")
		case '"':
			b.WriteString("&quot;")
		case '\r':
			b.WriteString("&#xD;")
		case '\n':
			b.WriteString("&#xA;")
		case '\t':
			b.WriteString("&#x9;")
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
