// SPDX-License-Identifier: MIT
// Copyright (c) 2024 L. D. T. d.o.o.
// Copyright (c) contributors for their respective contributions. See https://github.com/l-d-t/fiskalhrgo/graphs/contributors

package tizensig

import (
	"crypto/sha512"
	"fmt"
	"runtime"
	"strings"
	"sync"
)

const sha512DigestMethod = "http://www.w3.org/2001/04/xmlenc#sha512"

// fileDigestValue returns Base64(SHA-512(data)), wrapped at 76 columns,
// exactly as it is embedded in a <DigestValue>.
func fileDigestValue(data []byte) string {
	sum := sha512.Sum512(data)
	return wrapBase64(sum[:])
}

// renderFileReference renders the <Reference> fragment for one package
// file given its precomputed digest. uri is embedded as given by the
// caller (already URL-encoded by the packager); only the XML
// metacharacters needed to keep the surrounding template well-formed
// are escaped here.
func renderFileReference(uri, digest string) string {
	return fmt.Sprintf(
		"<Reference URI=\"%s\">\n<DigestMethod Algorithm=\"%s\"></DigestMethod>\n<DigestValue>%s</DigestValue>\n</Reference>\n",
		escapeXMLAttr(uri), sha512DigestMethod, digest,
	)
}

// buildPropReference renders the fixed #prop reference. Its digest is
// hard-coded per role (see Role.propDigest) rather than recomputed,
// because the <Object Id="prop"> block it covers never changes for a
// given role.
func buildPropReference(role Role) string {
	return fmt.Sprintf(
		"<Reference URI=\"#prop\">\n<Transforms><Transform Algorithm=\"http://www.w3.org/2006/12/xml-c14n11\"></Transform></Transforms>\n<DigestMethod Algorithm=\"%s\"></DigestMethod>\n<DigestValue>%s</DigestValue>\n</Reference>\n",
		sha512DigestMethod, role.propDigest(),
	)
}

// buildReferencesXML concatenates one <Reference> per file, in input
// order, followed by the fixed #prop reference last. The per-file
// SHA-512 digests are independent of each other, so they are computed
// by a small bounded worker pool; the pool only fans out the digest
// step, and the <Reference> fragments are re-joined in input order
// before being concatenated, since <SignedInfo> assembly depends on
// that order being exact.
func buildReferencesXML(files []FileEntry, role Role) string {
	digests := computeFileDigests(files)

	var b strings.Builder
	for i, f := range files {
		b.WriteString(renderFileReference(f.URI, digests[i]))
	}
	b.WriteString(buildPropReference(role))
	return b.String()
}

// computeFileDigests returns Base64(SHA-512(data)) for each file, in
// input order, computed across a bounded pool of workers sized to the
// host's CPU count (but never more workers than files to digest).
func computeFileDigests(files []FileEntry) []string {
	digests := make([]string, len(files))
	if len(files) == 0 {
		return digests
	}

	workers := runtime.NumCPU()
	if workers > len(files) {
		workers = len(files)
	}
	if workers < 1 {
		workers = 1
	}

	indices := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indices {
				digests[i] = fileDigestValue(files[i].Data)
			}
		}()
	}
	for i := range files {
		indices <- i
	}
	close(indices)
	wg.Wait()

	return digests
}
