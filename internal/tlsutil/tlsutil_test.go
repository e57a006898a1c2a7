package tlsutil

import (
	"crypto/tls"
	"testing"
	"time"
)

func TestDefaultTLSConfig(t *testing.T) {
	cfg := DefaultTLSConfig()
	if cfg.MinVersion != tls.VersionTLS12 {
		t.Errorf("MinVersion = %d, want %d", cfg.MinVersion, tls.VersionTLS12)
	}
	if len(cfg.CipherSuites) == 0 {
		t.Error("CipherSuites should not be empty")
	}
	for _, cs := range cfg.CipherSuites {
		switch cs {
		case tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305,
			tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305:
		default:
			t.Errorf("unexpected non-AEAD cipher suite: %d", cs)
		}
	}
}

func TestSecureTransport_Defaults(t *testing.T) {
	tr, err := SecureTransport(TransportConfig{})
	if err != nil {
		t.Fatalf("SecureTransport: %v", err)
	}
	if tr.TLSClientConfig == nil || tr.TLSClientConfig.MinVersion != tls.VersionTLS12 {
		t.Fatal("transport should carry the hardened TLS config")
	}
	if tr.MaxIdleConnsPerHost != 10 {
		t.Errorf("MaxIdleConnsPerHost = %d, want 10", tr.MaxIdleConnsPerHost)
	}
	if tr.IdleConnTimeout != 90*time.Second {
		t.Errorf("IdleConnTimeout = %v, want 90s", tr.IdleConnTimeout)
	}
	if _, ok := tr.TLSNextProto["h2"]; !ok {
		t.Error("h2 should be registered on the transport")
	}
}

func TestSecureTransport_Overrides(t *testing.T) {
	tr, err := SecureTransport(TransportConfig{MaxIdleConnsPerHost: 3, IdleConnTimeout: time.Second})
	if err != nil {
		t.Fatalf("SecureTransport: %v", err)
	}
	if tr.MaxIdleConnsPerHost != 3 {
		t.Errorf("MaxIdleConnsPerHost = %d, want 3", tr.MaxIdleConnsPerHost)
	}
	if tr.IdleConnTimeout != time.Second {
		t.Errorf("IdleConnTimeout = %v, want 1s", tr.IdleConnTimeout)
	}
}
