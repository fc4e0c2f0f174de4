// SPDX-License-Identifier: MIT

package tizensig

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/pkcs12"
)

func generateTestCert(t *testing.T, notBefore, notAfter time.Time) (*rsa.PrivateKey, *x509.Certificate) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "tizensig-test", Organization: []string{"Test Org"}},
		NotBefore:    notBefore,
		NotAfter:     notAfter,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	require.NoError(t, err)

	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)

	return key, cert
}

func TestBundleLeafAndChainOrder(t *testing.T) {
	_, leaf := generateTestCert(t, time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	_, chainCert := generateTestCert(t, time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	key, _ := generateTestCert(t, time.Now(), time.Now())

	b := &Bundle{privateKey: key, certificates: []*x509.Certificate{leaf, chainCert}}

	require.Equal(t, leaf, b.LeafCertificate())
	require.Equal(t, []*x509.Certificate{chainCert}, b.ChainCertificates())
}

func TestBundleExpireInfo(t *testing.T) {
	_, expired := generateTestCert(t, time.Now().Add(-48*time.Hour), time.Now().Add(-time.Hour))
	key, _ := generateTestCert(t, time.Now(), time.Now())
	b := &Bundle{privateKey: key, certificates: []*x509.Certificate{expired}}

	info := b.ExpireInfo(time.Now())
	require.True(t, info.Expired)
}

func TestBundleKeyInfoXMLContainsOneCertificatePerBagEntry(t *testing.T) {
	_, leaf := generateTestCert(t, time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	_, chainCert := generateTestCert(t, time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	key, _ := generateTestCert(t, time.Now(), time.Now())

	b := &Bundle{privateKey: key, certificates: []*x509.Certificate{leaf, chainCert}}
	xml := b.keyInfoXML()

	require.Equal(t, 2, strings.Count(xml, "<X509Certificate>"))
	require.True(t, strings.Index(xml, "<X509Data>") < strings.Index(xml, "<X509Certificate>"))
}

func TestBundleDisplayTextReportsNoChainWhenAbsent(t *testing.T) {
	_, leaf := generateTestCert(t, time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	key, _ := generateTestCert(t, time.Now(), time.Now())

	b := &Bundle{privateKey: key, certificates: []*x509.Certificate{leaf}}
	require.Contains(t, b.DisplayText(), "No additional chain certificates.")
}

// marshalPKCS8 is a small helper for building hand-crafted PEM blocks
// that exercise bundleFromPEMBlocks directly, the same way pkcs12.ToPEM
// would label a modern PKCS#8-wrapped RSA key.
func marshalPKCS8(t *testing.T, key *rsa.PrivateKey) []byte {
	t.Helper()
	der, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)
	return der
}

func TestLoadPKCS12RoundTripsChainOrder(t *testing.T) {
	leafKey, leafCert := generateTestCert(t, time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	_, chainCert := generateTestCert(t, time.Now().Add(-time.Hour), time.Now().Add(time.Hour))

	pfxData, err := pkcs12.Encode(rand.Reader, leafKey, leafCert, []*x509.Certificate{chainCert}, "sekret")
	require.NoError(t, err)

	bundle, err := LoadPKCS12(pfxData, "sekret")
	require.NoError(t, err)

	require.Equal(t, leafCert.Raw, bundle.LeafCertificate().Raw)
	chain := bundle.ChainCertificates()
	require.Len(t, chain, 1)
	require.Equal(t, chainCert.Raw, chain[0].Raw)
	require.Equal(t, 0, leafKey.D.Cmp(bundle.privateKey.D))
}

func TestLoadPKCS12WrongPassword(t *testing.T) {
	leafKey, leafCert := generateTestCert(t, time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	pfxData, err := pkcs12.Encode(rand.Reader, leafKey, leafCert, nil, "sekret")
	require.NoError(t, err)

	_, err = LoadPKCS12(pfxData, "wrong-password")
	require.ErrorIs(t, err, ErrInvalidKeyMaterial)
}

func TestLoadPKCS12FromFileReadsGeneratedBundle(t *testing.T) {
	leafKey, leafCert := generateTestCert(t, time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	pfxData, err := pkcs12.Encode(rand.Reader, leafKey, leafCert, nil, "sekret")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "bundle.p12")
	require.NoError(t, os.WriteFile(path, pfxData, 0o600))

	bundle, err := LoadPKCS12FromFile(path, "sekret")
	require.NoError(t, err)
	require.Equal(t, leafCert.Raw, bundle.LeafCertificate().Raw)
}

func TestLoadPKCS12FromFileMissingFile(t *testing.T) {
	_, err := LoadPKCS12FromFile(filepath.Join(t.TempDir(), "missing.p12"), "sekret")
	require.ErrorIs(t, err, ErrInvalidKeyMaterial)
}

func TestBundleFromPEMBlocksFallsBackToPKCS1PrivateKey(t *testing.T) {
	key, cert := generateTestCert(t, time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	blocks := []*pem.Block{
		{Type: "PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)},
		{Type: "CERTIFICATE", Bytes: cert.Raw},
	}

	bundle, err := bundleFromPEMBlocks(blocks)
	require.NoError(t, err)
	require.Equal(t, 0, key.D.Cmp(bundle.privateKey.D))
	require.Equal(t, cert.Raw, bundle.LeafCertificate().Raw)
}

func TestBundleFromPEMBlocksNoPrivateKey(t *testing.T) {
	_, cert := generateTestCert(t, time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	blocks := []*pem.Block{{Type: "CERTIFICATE", Bytes: cert.Raw}}

	_, err := bundleFromPEMBlocks(blocks)
	require.ErrorIs(t, err, ErrInvalidKeyMaterial)
}

func TestBundleFromPEMBlocksNoCertificate(t *testing.T) {
	key, _ := generateTestCert(t, time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	blocks := []*pem.Block{{Type: "PRIVATE KEY", Bytes: marshalPKCS8(t, key)}}

	_, err := bundleFromPEMBlocks(blocks)
	require.ErrorIs(t, err, ErrInvalidKeyMaterial)
}

func TestBundleFromPEMBlocksRejectsMultiplePrivateKeys(t *testing.T) {
	key1, cert := generateTestCert(t, time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	key2, _ := generateTestCert(t, time.Now().Add(-time.Hour), time.Now().Add(time.Hour))

	blocks := []*pem.Block{
		{Type: "PRIVATE KEY", Bytes: marshalPKCS8(t, key1)},
		{Type: "PRIVATE KEY", Bytes: marshalPKCS8(t, key2)},
		{Type: "CERTIFICATE", Bytes: cert.Raw},
	}

	_, err := bundleFromPEMBlocks(blocks)
	require.ErrorIs(t, err, ErrInvalidKeyMaterial)
}
