package crypto

import (
	"crypto/x509"
	"net"
	"testing"
	"time"
)

func TestGenerateCertificates(t *testing.T) {
	t.Parallel()

	pool, cert, err := GenerateCertificates("localhost", "127.0.0.1")
	if err != nil {
		t.Fatalf("GenerateCertificates() error = %v, want nil", err)
	}
	if pool == nil {
		t.Fatal("GenerateCertificates() returned nil pool")
	}
	if cert.PrivateKey == nil {
		t.Error("GenerateCertificates() returned certificate with nil PrivateKey")
	}
	if len(cert.Certificate) != 2 {
		t.Fatalf("certificate chain length = %d, want 2", len(cert.Certificate))
	}

	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		t.Fatalf("x509.ParseCertificate() error = %v", err)
	}

	if len(leaf.DNSNames) != 1 || leaf.DNSNames[0] != "localhost" {
		t.Errorf("DNSNames = %v, want [localhost]", leaf.DNSNames)
	}
	if len(leaf.IPAddresses) != 1 || !leaf.IPAddresses[0].Equal(net.ParseIP("127.0.0.1")) {
		t.Errorf("IPAddresses = %v, want [127.0.0.1]", leaf.IPAddresses)
	}

	for _, name := range []string{"localhost", "127.0.0.1"} {
		_, err := leaf.Verify(x509.VerifyOptions{
			DNSName:     name,
			Roots:       pool,
			CurrentTime: time.Now(),
			KeyUsages:   []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		})
		if err != nil {
			t.Errorf("Verify(%s) error = %v", name, err)
		}
	}
}

func TestGenerateCertificates_NoHosts(t *testing.T) {
	t.Parallel()

	_, cert, err := GenerateCertificates()
	if err != nil {
		t.Fatalf("GenerateCertificates() error = %v", err)
	}

	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		t.Fatalf("x509.ParseCertificate() error = %v", err)
	}
	if leaf.Subject.CommonName != "localhost" {
		t.Errorf("CommonName = %q, want localhost", leaf.Subject.CommonName)
	}
}

func TestGenerateCertificates_Fresh(t *testing.T) {
	t.Parallel()

	pool1, _, err := GenerateCertificates("localhost")
	if err != nil {
		t.Fatalf("first GenerateCertificates() error = %v", err)
	}
	_, cert2, err := GenerateCertificates("localhost")
	if err != nil {
		t.Fatalf("second GenerateCertificates() error = %v", err)
	}

	leaf2, err := x509.ParseCertificate(cert2.Certificate[0])
	if err != nil {
		t.Fatalf("x509.ParseCertificate() error = %v", err)
	}
	if _, err := leaf2.Verify(x509.VerifyOptions{DNSName: "localhost", Roots: pool1}); err == nil {
		t.Error("certificate verified against another run's CA")
	}
}
