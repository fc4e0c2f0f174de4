// SPDX-License-Identifier: MIT
// Copyright (c) 2024 L. D. T. d.o.o.
// Copyright (c) contributors for their respective contributions. See https://github.com/l-d-t/fiskalhrgo/graphs/contributors

package tizensig

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	"golang.org/x/crypto/pkcs12"
)

// Bundle is the key material extracted from a PKCS#12 file: one RSA
// private key plus every certificate, in the order the safe bags were
// iterated. That iteration order becomes the <X509Data> certificate
// order, and per the widget-digsig profile the Tizen verifier treats
// the first certificate as the signer and the rest as the chain.
type Bundle struct {
	privateKey   *rsa.PrivateKey
	certificates []*x509.Certificate
}

// LoadPKCS12FromFile reads and decodes a PKCS#12 file at path.
func LoadPKCS12FromFile(path, password string) (*Bundle, error) {
	if !IsFileReadable(path) {
		return nil, fmt.Errorf("%w: cannot read %s", ErrInvalidKeyMaterial, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKeyMaterial, err)
	}
	return LoadPKCS12(data, password)
}

// LoadPKCS12 decodes a PKCS#12 bundle already in memory, extracting the
// RSA private key and every certificate via a flat iteration over the
// bundle's safe bags.
func LoadPKCS12(data []byte, password string) (*Bundle, error) {
	pemBlocks, err := pkcs12.ToPEM(data, password)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to convert PKCS#12 to PEM: %v", ErrInvalidKeyMaterial, err)
	}
	return bundleFromPEMBlocks(pemBlocks)
}

// bundleFromPEMBlocks does the actual safe-bag classification once
// pkcs12.ToPEM has turned the bundle into a flat list of PEM blocks: one
// RSA private key (PKCS8, falling back to PKCS1) and every certificate,
// in iteration order. Split out from LoadPKCS12 so the bag-classification
// logic — including its error paths — can be exercised directly against
// hand-built PEM blocks, without needing a PKCS#12 fixture for every case.
func bundleFromPEMBlocks(pemBlocks []*pem.Block) (*Bundle, error) {
	var privateKey *rsa.PrivateKey
	var certificates []*x509.Certificate

	for _, block := range pemBlocks {
		switch block.Type {
		case "PRIVATE KEY":
			key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
			if err != nil {
				key, err = x509.ParsePKCS1PrivateKey(block.Bytes)
				if err != nil {
					return nil, fmt.Errorf("%w: failed to parse private key (tried PKCS8 and PKCS1): %v", ErrInvalidKeyMaterial, err)
				}
			}
			rsaKey, ok := key.(*rsa.PrivateKey)
			if !ok {
				return nil, fmt.Errorf("%w: private key is not of RSA type", ErrInvalidKeyMaterial)
			}
			if privateKey != nil {
				return nil, fmt.Errorf("%w: bundle contains more than one private key", ErrInvalidKeyMaterial)
			}
			privateKey = rsaKey
		case "CERTIFICATE":
			cert, err := x509.ParseCertificate(block.Bytes)
			if err != nil {
				return nil, fmt.Errorf("%w: failed to parse certificate: %v", ErrInvalidKeyMaterial, err)
			}
			certificates = append(certificates, cert)
		}
	}

	if privateKey == nil {
		return nil, fmt.Errorf("%w: no private key in bundle", ErrInvalidKeyMaterial)
	}
	if len(certificates) == 0 {
		return nil, fmt.Errorf("%w: no certificate in bundle", ErrInvalidKeyMaterial)
	}

	return &Bundle{privateKey: privateKey, certificates: certificates}, nil
}

// LeafCertificate returns the signer's own certificate: the first one
// in bag iteration order.
func (b *Bundle) LeafCertificate() *x509.Certificate {
	return b.certificates[0]
}

// ChainCertificates returns the certificates after the leaf, in bag order.
func (b *Bundle) ChainCertificates() []*x509.Certificate {
	if len(b.certificates) <= 1 {
		return nil
	}
	return b.certificates[1:]
}

// ExpireInfo reports whether the leaf certificate has already expired
// and, if not, how many whole days remain before it does.
type ExpireInfo struct {
	Expired     bool
	ExpireSoon  bool // within 30 days
	DaysUntilExpiry int
}

// ExpireInfo evaluates the leaf certificate's validity window against now.
func (b *Bundle) ExpireInfo(now time.Time) ExpireInfo {
	leaf := b.LeafCertificate()
	days := int(leaf.NotAfter.Sub(now).Hours() / 24)
	return ExpireInfo{
		Expired:         now.After(leaf.NotAfter),
		ExpireSoon:      days <= 30,
		DaysUntilExpiry: days,
	}
}

// DisplayText renders a short human-readable summary of the bundle's
// leaf certificate and chain, for logging or diagnostic output by
// callers — never consulted by the signing pipeline itself.
func (b *Bundle) DisplayText() string {
	leaf := b.LeafCertificate()

	var out strings.Builder
	out.WriteString("Certificate Information:\n")
	fmt.Fprintf(&out, "Issuer: %s\n", leaf.Issuer.String())
	fmt.Fprintf(&out, "Subject: %s\n", leaf.Subject.String())
	fmt.Fprintf(&out, "Serial Number: %s\n", leaf.SerialNumber.String())
	fmt.Fprintf(&out, "Valid From: %s\n", leaf.NotBefore.Format("02 Jan 2006 15:04:05 MST"))
	fmt.Fprintf(&out, "Valid Until: %s\n", leaf.NotAfter.Format("02 Jan 2006 15:04:05 MST"))

	chain := b.ChainCertificates()
	if len(chain) > 0 {
		out.WriteString("Chain Certificates:\n")
		for i, c := range chain {
			fmt.Fprintf(&out, "Chain Cert %d: Issuer: %s, Subject: %s\n", i+1, c.Issuer.String(), c.Subject.String())
		}
	} else {
		out.WriteString("No additional chain certificates.\n")
	}
	return out.String()
}

// keyInfoXML renders <KeyInfo><X509Data>...</X509Data></KeyInfo> with
// one <X509Certificate> per bundle certificate, in bag order: each is
// PEM-encoded, stripped of its header/footer and internal line breaks,
// then rewrapped at 76 columns.
func (b *Bundle) keyInfoXML() string {
	var out strings.Builder
	out.WriteString("<KeyInfo>\n<X509Data>\n")
	for _, cert := range b.certificates {
		fmt.Fprintf(&out, "<X509Certificate>\n%s\n</X509Certificate>\n", wrapBase64(cert.Raw))
	}
	out.WriteString("</X509Data>\n</KeyInfo>\n")
	return out.String()
}

// zeroizeKey overwrites the private key's secret material in place.
// Called once at the end of a Sign operation against the Signer's own
// cloned copy (see clonePrivateKey) — the caller's Bundle is never
// mutated by signing.
func zeroizeKey(key *rsa.PrivateKey) {
	if key == nil {
		return
	}
	key.D.SetInt64(0)
	for _, p := range key.Primes {
		p.SetInt64(0)
	}
}

// clonePrivateKey returns a deep copy of key so the Signer can zero its
// own copy at the end of Sign without destroying the Bundle's key,
// which the caller may reuse (for example to sign both the author and
// distributor roles from the same key material).
func clonePrivateKey(key *rsa.PrivateKey) *rsa.PrivateKey {
	clone := &rsa.PrivateKey{
		PublicKey: rsa.PublicKey{
			N: new(big.Int).Set(key.N),
			E: key.E,
		},
		D:      new(big.Int).Set(key.D),
		Primes: make([]*big.Int, len(key.Primes)),
	}
	for i, p := range key.Primes {
		clone.Primes[i] = new(big.Int).Set(p)
	}
	clone.Precompute()
	return clone
}
