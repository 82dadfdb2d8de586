package api

import "testing"

func TestInitTLS(t *testing.T) {
	tests := []struct {
		name    string
		cert    string
		key     string
		enabled bool
	}{
		{"neither", "", "", false},
		{"only cert", "/path/to/cert.pem", "", false},
		{"only key", "", "/path/to/key.pem", false},
		{"both", "/path/to/cert.pem", "/path/to/key.pem", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("STEPWISE_TLS_CERT", tt.cert)
			t.Setenv("STEPWISE_TLS_KEY", tt.key)
			InitTLS()
			defer func() { tlsFiles = nil }()

			if IsTLSEnabled() != tt.enabled {
				t.Errorf("IsTLSEnabled() = %v, want %v", IsTLSEnabled(), tt.enabled)
			}
			if tt.enabled && (tlsFiles.CertFile != tt.cert || tlsFiles.KeyFile != tt.key) {
				t.Errorf("unexpected files %+v", tlsFiles)
			}
		})
	}
}

func TestLoadTLSConfigFallsBack(t *testing.T) {
	tlsFiles = nil
	if LoadTLSConfig() != nil {
		t.Error("expected nil config when TLS is off")
	}

	tlsFiles = &TLSFiles{CertFile: "/nonexistent/cert.pem", KeyFile: "/nonexistent/key.pem"}
	defer func() { tlsFiles = nil }()
	if LoadTLSConfig() != nil {
		t.Error("expected nil config when the key pair cannot be loaded")
	}
}
