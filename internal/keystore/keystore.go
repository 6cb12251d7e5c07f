// Package keystore loads signing credentials from a PKCS#12 container.
// The keystore is read from disk on demand; nothing here persists keys.
package keystore

import (
	"crypto"
	"crypto/x509"
	"os"

	pkcs12 "software.sslmate.com/src/go-pkcs12"

	"reportsigner/internal/apperr"
)

// Credential bundles a private key with its certificate chain, leaf first.
type Credential struct {
	Key         crypto.Signer
	Certificate *x509.Certificate
	CACerts     []*x509.Certificate
}

// Chain returns the full chain with the leaf certificate first.
func (c *Credential) Chain() []*x509.Certificate {
	return append([]*x509.Certificate{c.Certificate}, c.CACerts...)
}

// Store reads credentials from a password-protected PKCS#12 file.
type Store struct {
	path     string
	password string
}

// New returns a Store for the given keystore path and password. The file
// is not opened until Load is called.
func New(path, password string) *Store {
	return &Store{path: path, password: password}
}

// Load reads and decodes the keystore. An unreadable file is a
// configuration failure; a file that reads but does not decode (wrong
// password, corrupt container, non-signing key) is a credential failure.
func (s *Store) Load() (*Credential, error) {
	if s.path == "" {
		return nil, apperr.New(apperr.Configuration, "keystore path not set")
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, apperr.Wrap(apperr.Configuration, "read keystore", err)
	}

	key, cert, caCerts, err := pkcs12.DecodeChain(data, s.password)
	if err != nil {
		return nil, apperr.Wrap(apperr.Credential, "decode keystore", err)
	}

	signer, ok := key.(crypto.Signer)
	if !ok {
		return nil, apperr.New(apperr.Credential, "keystore key does not support signing")
	}
	if cert == nil {
		return nil, apperr.New(apperr.Credential, "keystore contains no certificate")
	}

	return &Credential{Key: signer, Certificate: cert, CACerts: caCerts}, nil
}
