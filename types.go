// SPDX-License-Identifier: MIT
// Copyright (c) 2024 L. D. T. d.o.o.
// Copyright (c) contributors for their respective contributions. See https://github.com/l-d-t/fiskalhrgo/graphs/contributors

package tizensig

import "crypto/rsa"

// FileEntry is a single package file to be digested and referenced from
// <SignedInfo>. URI is a URL-encoded path relative to the package root
// (the packager is responsible for the encoding); Data is the raw octets
// that get digested.
type FileEntry struct {
	URI  string
	Data []byte
}

// Role selects which of the two widget-digsig signature profiles is
// being built. The role determines the output filename, the fixed #prop
// digest, and the Id/Target/Role URIs in the Object block.
type Role string

const (
	RoleAuthor      Role = "AuthorSignature"
	RoleDistributor Role = "DistributorSignature"
)

// filename returns the fixed widget-digsig filename for the role.
func (r Role) filename() string {
	switch r {
	case RoleAuthor:
		return "author-signature.xml"
	case RoleDistributor:
		return "signature1.xml"
	default:
		return ""
	}
}

// propDigest returns the hard-coded Base64 SHA-512 digest of the
// role's constant <Object Id="prop"> block (see §6/§9 of the profile:
// the block's bytes never change for a given role, so its digest is a
// compile-time constant rather than something recomputed per package).
func (r Role) propDigest() string {
	switch r {
	case RoleAuthor:
		return "aXbSAVgmAz0GsBUeZ1UmNDRrxkWhDUVGb45dZcNRq429wX3X+x6kaXT3NdNDTSNVTU+ypkysPMGvQY10fG1EWQ=="
	case RoleDistributor:
		return "/r5npk2VVA46QFJnejgONBEh4BWtjrtu9x/IFeLksjWyGmB/cMWKSJWQl7aU3YRQRZ3AesG8gF7qGyvKX9Snig=="
	default:
		return ""
	}
}

// roleURISuffix returns the "author"/"distributor" token used in the
// dsp:Role URI inside the Object block.
func (r Role) roleURISuffix() string {
	switch r {
	case RoleAuthor:
		return "author"
	case RoleDistributor:
		return "distributor"
	default:
		return ""
	}
}

// signatureState models the §3 state machine: Empty -> ReferencesBuilt ->
// KeyInfoBuilt -> SignedInfoAssembled -> Canonicalized -> Signed ->
// Emitted. No step may be skipped and a Signer is single-use.
type signatureState int

const (
	stateEmpty signatureState = iota
	stateReferencesBuilt
	stateKeyInfoBuilt
	stateSignedInfoAssembled
	stateCanonicalized
	stateSigned
	stateEmitted
)

// Signer accumulates the state of one signing operation. Construct one
// per call to Sign; a Signer must not be reused across concurrent Sign
// calls, and a Signer that has already produced output must not be
// signed again (use a fresh Signer instead).
type Signer struct {
	role Role

	files         []FileEntry
	referencesXML string
	keyInfoXML    string
	signedInfoXML string

	privateKey *rsa.PrivateKey

	state signatureState
}

// NewSigner creates a Signer for the given role. files is the ordered
// package content list; it is never mutated by Sign, which instead
// returns a new slice with the signature entry prepended.
func NewSigner(role Role, files []FileEntry) *Signer {
	filesCopy := make([]FileEntry, len(files))
	copy(filesCopy, files)

	return &Signer{
		role:  role,
		files: filesCopy,
		state: stateEmpty,
	}
}
