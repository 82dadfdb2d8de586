package api

import (
	"crypto/tls"
	"log"
	"os"
)

// TLSFiles names the certificate and key the server loads.
type TLSFiles struct {
	CertFile string
	KeyFile  string
}

var tlsFiles *TLSFiles

// InitTLS reads STEPWISE_TLS_CERT and STEPWISE_TLS_KEY. TLS is enabled only
// when both are set.
func InitTLS() {
	tlsFiles = nil
	certFile := os.Getenv("STEPWISE_TLS_CERT")
	keyFile := os.Getenv("STEPWISE_TLS_KEY")
	if certFile != "" && keyFile != "" {
		tlsFiles = &TLSFiles{CertFile: certFile, KeyFile: keyFile}
	}
}

// IsTLSEnabled returns true if TLS is configured.
func IsTLSEnabled() bool {
	return tlsFiles != nil
}

// LoadTLSConfig loads the configured key pair. It returns nil when TLS is
// off or the files cannot be loaded; the server then falls back to HTTP.
func LoadTLSConfig() *tls.Config {
	if !IsTLSEnabled() {
		return nil
	}
	cert, err := tls.LoadX509KeyPair(tlsFiles.CertFile, tlsFiles.KeyFile)
	if err != nil {
		log.Printf("failed to load TLS certificate: %v", err)
		return nil
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}
}
