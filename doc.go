// SPDX-License-Identifier: MIT
// Copyright (c) 2024 L. D. T. d.o.o.
// Copyright (c) contributors for their respective contributions. See https://github.com/l-d-t/fiskalhrgo/graphs/contributors

// Package tizensig rebuilds and signs Tizen application packages (.wgt
// widgets and .tpk native packages) without requiring Tizen Studio.
//
// It produces XML digital signatures — an AuthorSignature and a
// DistributorSignature — embedded as files inside the package archive,
// each binding a set of package contents to an X.509 certificate chain
// via XML-DSig. The hard part is byte-exact: a Tizen device rejects a
// package whose canonicalized digest differs by a single whitespace, so
// the Exclusive XML Canonicalization (Exc-C14N) of <SignedInfo> and the
// RSA-SHA512 signature over that canonical form must match the widget-
// digsig profile exactly.
//
// This package does not pack or unpack zip archives, does not talk to a
// Samsung/Tizen certificate authority, and does not verify signatures —
// it only builds them. Callers supply an ordered file list and a parsed
// PKCS#12 bundle; the returned file list has the signature file
// prepended.
package tizensig
