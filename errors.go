// SPDX-License-Identifier: MIT
// Copyright (c) 2024 L. D. T. d.o.o.
// Copyright (c) contributors for their respective contributions. See https://github.com/l-d-t/fiskalhrgo/graphs/contributors

package tizensig

import "errors"

// Error kinds surfaced by the signing pipeline. Callers should branch on
// these with errors.Is rather than on the wrapped detail message.
var (
	// ErrInvalidKeyMaterial means the PKCS#12 bundle lacks a private key
	// or lacks any certificate; signing cannot proceed.
	ErrInvalidKeyMaterial = errors.New("tizensig: invalid key material")

	// ErrCryptoFailure means the underlying RSA-SHA512 primitive
	// reported failure (key too small, corrupt ASN.1, etc.).
	ErrCryptoFailure = errors.New("tizensig: cryptographic operation failed")

	// ErrMalformedInternalXML means the throwaway <Signature> wrapper
	// built internally failed to parse back. This is always an
	// implementer bug in this package, not caller input.
	ErrMalformedInternalXML = errors.New("tizensig: internal signature XML is malformed")

	// ErrAlreadySigned means Sign was called more than once on the same
	// Signer. A Signer is single-use; construct a new one per operation.
	ErrAlreadySigned = errors.New("tizensig: signer has already produced a signature")
)
