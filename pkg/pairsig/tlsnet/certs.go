package tlsnet

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// CertOptions tunes GenerateCertificates. Zero values select the defaults.
type CertOptions struct {
	KeyBits          int // RSA modulus size, default 2048
	ValidityDays     int // default 365
	IncludeLocalhost bool
}

func (o CertOptions) withDefaults() CertOptions {
	if o.KeyBits == 0 {
		o.KeyBits = 2048
	}
	if o.ValidityDays == 0 {
		o.ValidityDays = 365
	}
	return o
}

// GenerateCertificates writes a demo CA (rootCA.pem, rootCA-key.pem) and a
// certificate/key pair per peer (<name>-cert.pem, <name>-key.pem) to
// outputDir, which must lie inside the working directory. Peer certificates
// support both server and client authentication.
func GenerateCertificates(names []string, outputDir string, opts CertOptions) error {
	if len(names) != 2 {
		return fmt.Errorf("tlsnet: provide exactly two peer names (got %v)", names)
	}
	for _, name := range names {
		if strings.TrimSpace(name) == "" || strings.ContainsAny(name, `/\`) {
			return fmt.Errorf("tlsnet: invalid peer name %q", name)
		}
	}
	opts = opts.withDefaults()
	if opts.KeyBits < 2048 {
		return fmt.Errorf("tlsnet: key size %d below 2048 bits", opts.KeyBits)
	}

	absDir, err := securePath(outputDir)
	if err != nil {
		return fmt.Errorf("resolve output dir: %w", err)
	}
	if err := os.MkdirAll(absDir, 0o750); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	outputDir = absDir

	notBefore := time.Now().Add(-time.Hour)
	notAfter := time.Now().Add(time.Duration(opts.ValidityDays) * 24 * time.Hour)

	caKey, err := rsa.GenerateKey(rand.Reader, opts.KeyBits)
	if err != nil {
		return fmt.Errorf("generate CA key: %w", err)
	}
	caTmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "pairsig-demo-ca"},
		NotBefore:             notBefore,
		NotAfter:              notAfter,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
		MaxPathLenZero:        true,
	}
	caDER, err := x509.CreateCertificate(rand.Reader, caTmpl, caTmpl, &caKey.PublicKey, caKey)
	if err != nil {
		return fmt.Errorf("create CA certificate: %w", err)
	}
	if err := writeCert(filepath.Join(outputDir, "rootCA.pem"), caDER); err != nil {
		return err
	}
	if err := writeKey(filepath.Join(outputDir, "rootCA-key.pem"), caKey); err != nil {
		return err
	}

	caCert, err := x509.ParseCertificate(caDER)
	if err != nil {
		return fmt.Errorf("parse CA certificate: %w", err)
	}

	for i, name := range names {
		key, err := rsa.GenerateKey(rand.Reader, opts.KeyBits)
		if err != nil {
			return fmt.Errorf("generate key for %s: %w", name, err)
		}
		tmpl := &x509.Certificate{
			SerialNumber: big.NewInt(int64(i + 2)),
			Subject:      pkix.Name{CommonName: name},
			NotBefore:    notBefore,
			NotAfter:     notAfter,
			KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
			ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
			DNSNames:     []string{name},
		}
		if opts.IncludeLocalhost {
			tmpl.DNSNames = append(tmpl.DNSNames, "localhost")
			tmpl.IPAddresses = []net.IP{net.ParseIP("127.0.0.1")}
		}
		der, err := x509.CreateCertificate(rand.Reader, tmpl, caCert, &key.PublicKey, caKey)
		if err != nil {
			return fmt.Errorf("create cert for %s: %w", name, err)
		}
		if err := writeCert(filepath.Join(outputDir, name+"-cert.pem"), der); err != nil {
			return err
		}
		if err := writeKey(filepath.Join(outputDir, name+"-key.pem"), key); err != nil {
			return err
		}
	}

	return nil
}

func writeCert(path string, der []byte) error {
	return writePEM(path, &pem.Block{Type: "CERTIFICATE", Bytes: der})
}

func writeKey(path string, key *rsa.PrivateKey) error {
	return writePEM(path, &pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
}

func writePEM(path string, block *pem.Block) error {
	cleanPath, err := securePath(path)
	if err != nil {
		return fmt.Errorf("sanitize path %s: %w", path, err)
	}
	f, err := os.OpenFile(cleanPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600) // #nosec G304 -- cleanPath validated by securePath
	if err != nil {
		return fmt.Errorf("open %s: %w", cleanPath, err)
	}
	defer f.Close()
	if err := pem.Encode(f, block); err != nil {
		return fmt.Errorf("encode %s: %w", cleanPath, err)
	}
	return nil
}

func securePath(path string) (string, error) {
	clean := filepath.Clean(path)
	absPath, err := filepath.Abs(clean)
	if err != nil {
		return "", err
	}
	base, err := os.Getwd()
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(base, absPath)
	if err != nil {
		return "", err
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("path %q escapes working directory", path)
	}
	return absPath, nil
}
