// Package signer applies one detached CAdES signature to a finished PDF.
// Signing is all-or-nothing: either complete signed bytes come back or an
// error does, and the input bytes are never modified.
package signer

import (
	"bytes"
	"crypto"
	"crypto/x509"
	"fmt"

	"github.com/digitorus/pdf"
	"github.com/digitorus/pdfsign/sign"

	"reportsigner/internal/apperr"
	"reportsigner/internal/clock"
	"reportsigner/internal/config"
	"reportsigner/internal/keystore"
)

// Signer produces a signed copy of unsigned document bytes. Documents are
// signed exactly once, immediately after rendering; re-signing is not
// supported.
type Signer interface {
	Sign(unsigned []byte) ([]byte, error)
}

// CredentialSource supplies the signing credential. *keystore.Store
// satisfies it.
type CredentialSource interface {
	Load() (*keystore.Credential, error)
}

type cadesSigner struct {
	creds    CredentialSource
	reason   string
	location string
	contact  string
	clock    clock.Clock
}

// New returns a Signer that loads its credential from creds on each call.
func New(creds CredentialSource, cfg config.SignatureConfig, clk clock.Clock) Signer {
	return &cadesSigner{
		creds:    creds,
		reason:   cfg.Reason,
		location: cfg.Location,
		contact:  cfg.Contact,
		clock:    clk,
	}
}

func (s *cadesSigner) Sign(unsigned []byte) ([]byte, error) {
	if len(unsigned) == 0 {
		return nil, fmt.Errorf("unsigned document is empty")
	}

	cred, err := s.creds.Load()
	if err != nil {
		// Keystore errors keep their Configuration/Credential kind.
		return nil, err
	}

	input := bytes.NewReader(unsigned)
	rdr, err := pdf.NewReader(input, int64(len(unsigned)))
	if err != nil {
		return nil, apperr.Wrap(apperr.IO, "parse unsigned document", err)
	}

	chains := [][]*x509.Certificate{cred.Chain()}

	var out bytes.Buffer
	err = sign.Sign(input, &out, rdr, int64(len(unsigned)), sign.SignData{
		Signature: sign.SignDataSignature{
			Info: sign.SignDataSignatureInfo{
				Name:        cred.Certificate.Subject.CommonName,
				Location:    s.location,
				Reason:      s.reason,
				ContactInfo: s.contact,
				Date:        s.clock.Now(),
			},
			CertType:   sign.CertificationSignature,
			DocMDPPerm: sign.AllowFillingExistingFormFieldsAndSignaturesPerms,
		},
		Signer:            cred.Key,
		DigestAlgorithm:   crypto.SHA256,
		Certificate:       cred.Certificate,
		CertificateChains: chains,
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.IO, "sign document", err)
	}

	return out.Bytes(), nil
}
