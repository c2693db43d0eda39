// Package keystoretest builds throwaway keystores for tests.
package keystoretest

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"testing"
	"time"

	jks "github.com/pavlo-v-chernykh/keystore-go/v4"
	"github.com/spf13/afero"
	gopkcs12 "software.sslmate.com/src/go-pkcs12"
)

// Identity is a freshly generated key and self-signed certificate.
type Identity struct {
	Key  *ecdsa.PrivateKey
	Cert *x509.Certificate
}

// NewIdentity generates a P-256 key with a self-signed certificate.
func NewIdentity(t testing.TB) Identity {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "RoastPlus Release"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("create certificate: %v", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("parse certificate: %v", err)
	}

	return Identity{Key: key, Cert: cert}
}

// WriteJKS stores a JKS keystore holding one private key entry under alias.
func WriteJKS(t testing.TB, fs afero.Fs, path, alias, storePassword, keyPassword string) {
	t.Helper()

	id := NewIdentity(t)
	pkcs8, err := x509.MarshalPKCS8PrivateKey(id.Key)
	if err != nil {
		t.Fatalf("marshal key: %v", err)
	}

	ks := jks.New()
	entry := jks.PrivateKeyEntry{
		CreationTime: time.Now(),
		PrivateKey:   pkcs8,
		CertificateChain: []jks.Certificate{
			{Type: "X509", Content: id.Cert.Raw},
		},
	}
	if err := ks.SetPrivateKeyEntry(alias, entry, []byte(keyPassword)); err != nil {
		t.Fatalf("set private key entry: %v", err)
	}

	writeStore(t, fs, path, ks, storePassword)
}

// WriteTrustedJKS stores a JKS keystore whose alias holds only a certificate.
func WriteTrustedJKS(t testing.TB, fs afero.Fs, path, alias, storePassword string) {
	t.Helper()

	id := NewIdentity(t)
	ks := jks.New()
	entry := jks.TrustedCertificateEntry{
		CreationTime: time.Now(),
		Certificate:  jks.Certificate{Type: "X509", Content: id.Cert.Raw},
	}
	if err := ks.SetTrustedCertificateEntry(alias, entry); err != nil {
		t.Fatalf("set trusted certificate entry: %v", err)
	}

	writeStore(t, fs, path, ks, storePassword)
}

// WritePKCS12 stores a PKCS#12 file produced by enc, e.g. gopkcs12.Modern.
func WritePKCS12(t testing.TB, fs afero.Fs, path string, enc *gopkcs12.Encoder, password string) {
	t.Helper()

	id := NewIdentity(t)
	data, err := enc.Encode(id.Key, id.Cert, nil, password)
	if err != nil {
		t.Fatalf("encode PKCS12: %v", err)
	}
	if err := afero.WriteFile(fs, path, data, 0o600); err != nil {
		t.Fatalf("write keystore: %v", err)
	}
}

func writeStore(t testing.TB, fs afero.Fs, path string, ks jks.KeyStore, storePassword string) {
	t.Helper()

	var buf bytes.Buffer
	if err := ks.Store(&buf, []byte(storePassword)); err != nil {
		t.Fatalf("store keystore: %v", err)
	}
	if err := afero.WriteFile(fs, path, buf.Bytes(), 0o600); err != nil {
		t.Fatalf("write keystore: %v", err)
	}
}
