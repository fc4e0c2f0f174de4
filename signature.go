// SPDX-License-Identifier: MIT
// Copyright (c) 2024 L. D. T. d.o.o.
// Copyright (c) contributors for their respective contributions. See https://github.com/l-d-t/fiskalhrgo/graphs/contributors

package tizensig

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha512"
	"fmt"

	"github.com/beevik/etree"
)

const (
	excC14NAlgorithmID   = "http://www.w3.org/2001/10/xml-exc-c14n#"
	rsaSHA512AlgorithmID = "http://www.w3.org/2001/04/xmldsig-more#rsa-sha512"
	dsigNamespace        = "http://www.w3.org/2000/09/xmldsig#"

	// dsigNamespaceTypo is the deliberate w3c/w3 typo preserved from the
	// reference assembler (see "Open Question decisions" in DESIGN.md). It is
	// only ever consulted as a fallback for an unresolvable "ds" prefix,
	// which this package's own constructed documents never produce since
	// they always use the default-namespace form.
	dsigNamespaceTypo = "http://www.w3c.org/2000/09/xmldsig#"
)

// Sign drives the Signer through its full state machine against bundle
// and returns s.files with the signature file prepended. A Signer must
// not be signed more than once.
func (s *Signer) Sign(bundle *Bundle) ([]FileEntry, error) {
	if s.state != stateEmpty {
		return nil, ErrAlreadySigned
	}

	s.referencesXML = buildReferencesXML(s.files, s.role)
	s.state = stateReferencesBuilt

	s.keyInfoXML = bundle.keyInfoXML()
	s.state = stateKeyInfoBuilt

	s.signedInfoXML = fmt.Sprintf(
		"<SignedInfo>\n<CanonicalizationMethod Algorithm=\"%s\"></CanonicalizationMethod>\n<SignatureMethod Algorithm=\"%s\"></SignatureMethod>\n%s</SignedInfo>",
		excC14NAlgorithmID, rsaSHA512AlgorithmID, s.referencesXML,
	)
	s.state = stateSignedInfoAssembled

	canonicalSignedInfo, err := s.canonicalizeSignedInfo()
	if err != nil {
		return nil, err
	}
	s.state = stateCanonicalized

	s.privateKey = clonePrivateKey(bundle.privateKey)

	sigValue, err := s.signCanonicalBytes(canonicalSignedInfo)
	if err != nil {
		zeroizeKey(s.privateKey)
		return nil, err
	}
	s.state = stateSigned

	signedInfoWithValue := s.signedInfoXML + fmt.Sprintf("\n<SignatureValue>\n%s\n</SignatureValue>", sigValue)

	signatureDoc := fmt.Sprintf(
		"<Signature xmlns=\"%s\" Id=\"%s\">\n%s\n%s\n%s\n</Signature>",
		dsigNamespace, string(s.role), signedInfoWithValue, s.keyInfoXML, buildPropObjectBlock(s.role),
	)

	zeroizeKey(s.privateKey)
	s.state = stateEmitted

	out := make([]FileEntry, 0, len(s.files)+1)
	out = append(out, FileEntry{URI: s.role.filename(), Data: []byte(signatureDoc)})
	out = append(out, s.files...)
	return out, nil
}

// canonicalizeSignedInfo wraps signedInfoXML in the throwaway <Signature>
// root the widget-digsig profile requires, parses it, and canonicalizes
// just the <SignedInfo> child — exclusive, no comments, with the
// deliberate typo'd fallback map preserved for bit-exact parity with
// existing verifiers (see the design note on dsigNamespaceTypo).
func (s *Signer) canonicalizeSignedInfo() ([]byte, error) {
	wrapperXML := fmt.Sprintf("<Signature xmlns=\"%s\">%s</Signature>", dsigNamespace, s.signedInfoXML)

	doc := etree.NewDocument()
	if err := doc.ReadFromString(wrapperXML); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInternalXML, err)
	}

	signedInfoEl := doc.Root().FindElement("SignedInfo")
	if signedInfoEl == nil {
		return nil, fmt.Errorf("%w: throwaway wrapper has no SignedInfo child", ErrMalformedInternalXML)
	}

	return Canonicalize(signedInfoEl, CanonicalizationOptions{
		DefaultNamespace:          dsigNamespace,
		DefaultNamespaceForPrefix: map[string]string{"ds": dsigNamespaceTypo},
	})
}

// signCanonicalBytes signs the canonicalized SignedInfo octets with
// RSA-SHA512 and returns the Base64 signature value wrapped at 76 columns.
func (s *Signer) signCanonicalBytes(canonical []byte) (string, error) {
	hashed := sha512.Sum512(canonical)
	sig, err := rsa.SignPKCS1v15(rand.Reader, s.privateKey, crypto.SHA512, hashed[:])
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCryptoFailure, err)
	}
	return wrapBase64(sig), nil
}

// buildPropObjectBlock renders the fixed <Object Id="prop"> block whose
// canonicalized digest is the hard-coded constant in Role.propDigest.
// It must stay on a single line with no inter-element whitespace: that
// exact byte sequence is what the constant was computed against.
func buildPropObjectBlock(role Role) string {
	return fmt.Sprintf(
		`<Object Id="prop"><SignatureProperties xmlns:dsp="http://www.w3.org/2009/xmldsig-properties">`+
			`<SignatureProperty Id="profile" Target="#%[1]s"><dsp:Profile URI="http://www.w3.org/ns/widgets-digsig#profile"></dsp:Profile></SignatureProperty>`+
			`<SignatureProperty Id="role" Target="#%[1]s"><dsp:Role URI="http://www.w3.org/ns/widgets-digsig#role-%[2]s"></dsp:Role></SignatureProperty>`+
			`<SignatureProperty Id="identifier" Target="#%[1]s"><dsp:Identifier></dsp:Identifier></SignatureProperty>`+
			`</SignatureProperties></Object>`,
		string(role), role.roleURISuffix(),
	)
}
