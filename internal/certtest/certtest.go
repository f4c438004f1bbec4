// Package certtest generates throwaway certificates and on-disk certificate
// layouts for tests. Nothing in here is safe for production use.
package certtest

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/pem"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"
)

var (
	oidSubjectAltName = asn1.ObjectIdentifier{2, 5, 29, 17}
	oidSRVName        = asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 8, 7}
)

// Options controls certificate generation.
type Options struct {
	CommonName string
	DNSNames   []string
	// SRVNames are encoded as id-on-dnsSRV otherName SANs, e.g. "_xmpp-server.example.com".
	SRVNames    []string
	IPAddresses []net.IP
	NotBefore   time.Time
	NotAfter    time.Time
}

// KeyPair is a generated certificate and its private key in PEM form.
type KeyPair struct {
	CertPEM []byte
	KeyPEM  []byte
	Leaf    *x509.Certificate
}

// Generate creates a self-signed certificate for the given options.
// Validity defaults to one hour in the past until one day in the future.
func Generate(t testing.TB, opts Options) *KeyPair {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}

	serialNumber, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		t.Fatalf("failed to generate serial number: %v", err)
	}

	notBefore := opts.NotBefore
	if notBefore.IsZero() {
		notBefore = time.Now().Add(-time.Hour)
	}
	notAfter := opts.NotAfter
	if notAfter.IsZero() {
		notAfter = time.Now().Add(24 * time.Hour)
	}

	template := x509.Certificate{
		SerialNumber: serialNumber,
		Subject: pkix.Name{
			Organization: []string{"certtest"},
			CommonName:   opts.CommonName,
		},
		NotBefore:             notBefore,
		NotAfter:              notAfter,
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
		BasicConstraintsValid: true,
	}

	if len(opts.SRVNames) > 0 {
		// x509.CreateCertificate cannot emit otherName SANs, so the whole
		// extension is crafted by hand and DNS names ride along inside it.
		ext, err := subjectAltNameExtension(opts.DNSNames, opts.SRVNames)
		if err != nil {
			t.Fatalf("failed to build SAN extension: %v", err)
		}
		template.ExtraExtensions = append(template.ExtraExtensions, ext)
	} else {
		template.DNSNames = opts.DNSNames
		template.IPAddresses = opts.IPAddresses
	}

	derBytes, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("failed to create certificate: %v", err)
	}
	leaf, err := x509.ParseCertificate(derBytes)
	if err != nil {
		t.Fatalf("failed to parse generated certificate: %v", err)
	}

	keyBytes, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		t.Fatalf("failed to marshal private key: %v", err)
	}

	return &KeyPair{
		CertPEM: pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: derBytes}),
		KeyPEM:  pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyBytes}),
		Leaf:    leaf,
	}
}

// GenerateForHost creates a certificate with a single DNS SAN.
func GenerateForHost(t testing.TB, host string) *KeyPair {
	t.Helper()
	return Generate(t, Options{CommonName: host, DNSNames: []string{host}})
}

// GenerateExpired creates a certificate whose validity window ended yesterday.
func GenerateExpired(t testing.TB, host string) *KeyPair {
	t.Helper()
	return Generate(t, Options{
		CommonName: host,
		DNSNames:   []string{host},
		NotBefore:  time.Now().Add(-48 * time.Hour),
		NotAfter:   time.Now().Add(-24 * time.Hour),
	})
}

// WritePair writes dir/<name>.crt and dir/<name>.key and returns the cert path.
func WritePair(t testing.TB, dir, name string, kp *KeyPair) string {
	t.Helper()
	certPath := filepath.Join(dir, name+".crt")
	writeFile(t, certPath, kp.CertPEM, 0644)
	writeFile(t, filepath.Join(dir, name+".key"), kp.KeyPEM, 0600)
	return certPath
}

// WriteFullchain writes dir/<name>/fullchain.pem and dir/<name>/privkey.pem
// and returns the fullchain path.
func WriteFullchain(t testing.TB, dir, name string, kp *KeyPair) string {
	t.Helper()
	hostDir := filepath.Join(dir, name)
	if err := os.MkdirAll(hostDir, 0755); err != nil {
		t.Fatalf("failed to create %s: %v", hostDir, err)
	}
	certPath := filepath.Join(hostDir, "fullchain.pem")
	writeFile(t, certPath, kp.CertPEM, 0644)
	writeFile(t, filepath.Join(hostDir, "privkey.pem"), kp.KeyPEM, 0600)
	return certPath
}

// WriteCombined writes a single dir/<name>.pem holding certificate and key.
func WriteCombined(t testing.TB, dir, name string, kp *KeyPair) string {
	t.Helper()
	path := filepath.Join(dir, name+".pem")
	writeFile(t, path, append(append([]byte{}, kp.CertPEM...), kp.KeyPEM...), 0600)
	return path
}

// WriteEncryptedKey writes a passphrase-protected legacy PEM key to path.
func WriteEncryptedKey(t testing.TB, path string, kp *KeyPair, passphrase string) {
	t.Helper()
	block, rest := pem.Decode(kp.KeyPEM)
	if block == nil || len(rest) > 0 {
		t.Fatal("key PEM did not decode to a single block")
	}
	//nolint:staticcheck // legacy encrypted PEM is exactly what the password path consumes
	enc, err := x509.EncryptPEMBlock(rand.Reader, block.Type, block.Bytes, []byte(passphrase), x509.PEMCipherAES256)
	if err != nil {
		t.Fatalf("failed to encrypt key: %v", err)
	}
	writeFile(t, path, pem.EncodeToMemory(enc), 0600)
}

func writeFile(t testing.TB, path string, data []byte, perm os.FileMode) {
	t.Helper()
	if err := os.WriteFile(path, data, perm); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

// subjectAltNameExtension builds a SAN extension containing dNSName entries
// plus id-on-dnsSRV otherName entries.
func subjectAltNameExtension(dnsNames, srvNames []string) (pkix.Extension, error) {
	var generalNames []asn1.RawValue
	for _, name := range dnsNames {
		generalNames = append(generalNames, asn1.RawValue{
			Class: asn1.ClassContextSpecific,
			Tag:   2,
			Bytes: []byte(name),
		})
	}
	for _, srv := range srvNames {
		otherName, err := srvOtherName(srv)
		if err != nil {
			return pkix.Extension{}, err
		}
		generalNames = append(generalNames, otherName)
	}

	value, err := asn1.Marshal(generalNames)
	if err != nil {
		return pkix.Extension{}, err
	}
	return pkix.Extension{Id: oidSubjectAltName, Value: value}, nil
}

// srvOtherName encodes OtherName{id-on-dnsSRV, [0] EXPLICIT IA5String}.
func srvOtherName(srv string) (asn1.RawValue, error) {
	oidDER, err := asn1.Marshal(oidSRVName)
	if err != nil {
		return asn1.RawValue{}, err
	}
	ia5DER, err := asn1.Marshal(asn1.RawValue{Tag: asn1.TagIA5String, Bytes: []byte(srv)})
	if err != nil {
		return asn1.RawValue{}, err
	}
	wrapperDER, err := asn1.Marshal(asn1.RawValue{
		Class:      asn1.ClassContextSpecific,
		Tag:        0,
		IsCompound: true,
		Bytes:      ia5DER,
	})
	if err != nil {
		return asn1.RawValue{}, err
	}
	return asn1.RawValue{
		Class:      asn1.ClassContextSpecific,
		Tag:        0,
		IsCompound: true,
		Bytes:      append(oidDER, wrapperDER...),
	}, nil
}
