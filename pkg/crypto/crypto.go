// Package crypto creates the ephemeral certificates used to serve wss://.
package crypto

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
)

// GenerateCertificates returns a fresh server certificate valid for hosts,
// together with a pool holding the CA that signed it. Clients that want to
// verify the server need the pool; everyone else has to skip verification.
func GenerateCertificates(hosts ...string) (*x509.CertPool, tls.Certificate, error) {
	var cert tls.Certificate

	ca, caKey, err := generateCA()
	if err != nil {
		return nil, cert, fmt.Errorf("generateCA(): %w", err)
	}

	pool := x509.NewCertPool()
	pool.AddCert(ca)

	cert, err = generateServerCertificate(ca, caKey, hosts)
	if err != nil {
		return nil, cert, fmt.Errorf("generateServerCertificate(%v): %w", hosts, err)
	}

	return pool, cert, nil
}
