package tls

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/crypto/acme/autocert"
)

// ACMEManager obtains and renews certificates from Let's Encrypt for
// the notification endpoint hostnames
type ACMEManager struct {
	manager *autocert.Manager
	domains []string
}

// NewACMEManager creates an ACME manager with a directory cache
func NewACMEManager(email string, domains []string, cacheDir string) *ACMEManager {
	m := &autocert.Manager{
		Prompt:     autocert.AcceptTOS,
		Email:      email,
		HostPolicy: autocert.HostWhitelist(domains...),
		Cache:      autocert.DirCache(cacheDir),
	}

	return &ACMEManager{
		manager: m,
		domains: domains,
	}
}

// Domains returns the configured hostnames
func (a *ACMEManager) Domains() []string {
	return a.domains
}

// TLSConfig returns a TLS configuration backed by the ACME manager
func (a *ACMEManager) TLSConfig() *tls.Config {
	return &tls.Config{
		GetCertificate: a.manager.GetCertificate,
		MinVersion:     tls.VersionTLS12,
	}
}

// HTTPHandler returns a handler answering HTTP-01 ACME challenges,
// passing everything else to fallback
func (a *ACMEManager) HTTPHandler(fallback http.Handler) http.Handler {
	return a.manager.HTTPHandler(fallback)
}

// EnsureCertificates obtains or renews certificates for every
// configured hostname. The challenge handler must already be serving.
func (a *ACMEManager) EnsureCertificates(ctx context.Context) ([]CertificateInfo, error) {
	var results []CertificateInfo

	for _, domain := range a.domains {
		select {
		case <-ctx.Done():
			return results, ctx.Err()
		default:
		}

		hello := &tls.ClientHelloInfo{ServerName: domain}
		cert, err := a.manager.GetCertificate(hello)
		if err != nil {
			return results, fmt.Errorf("failed to obtain certificate for %s: %w", domain, err)
		}
		if cert == nil || len(cert.Certificate) == 0 {
			continue
		}

		leaf := cert.Leaf
		if leaf == nil {
			leaf, err = x509.ParseCertificate(cert.Certificate[0])
			if err != nil {
				return results, fmt.Errorf("failed to parse certificate for %s: %w", domain, err)
			}
		}

		results = append(results, CertificateInfo{
			Subject:   domain,
			Issuer:    leaf.Issuer.CommonName,
			NotBefore: leaf.NotBefore,
			NotAfter:  leaf.NotAfter,
			DaysLeft:  int(time.Until(leaf.NotAfter).Hours() / 24),
			DNSNames:  leaf.DNSNames,
		})
	}

	return results, nil
}
