package webserver

import (
	"context"
	"crypto/tls"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

const certCheckInterval = 5 * time.Minute

// TLSReloader serves a certificate pair and picks up renewed files without a
// restart.
type TLSReloader struct {
	certFile    string
	keyFile     string
	log         *zap.SugaredLogger
	cert        *tls.Certificate
	mu          sync.RWMutex
	lastModCert time.Time
	lastModKey  time.Time
}

// NewTLSReloader loads the pair and watches it until ctx is done.
func NewTLSReloader(ctx context.Context, certFile, keyFile string, log *zap.SugaredLogger) (*TLSReloader, error) {
	r := &TLSReloader{certFile: certFile, keyFile: keyFile, log: log}
	if err := r.reload(); err != nil {
		return nil, err
	}
	go r.watch(ctx, certCheckInterval)
	return r, nil
}

func (r *TLSReloader) reload() error {
	cert, err := tls.LoadX509KeyPair(r.certFile, r.keyFile)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.cert = &cert
	if info, err := os.Stat(r.certFile); err == nil {
		r.lastModCert = info.ModTime()
	}
	if info, err := os.Stat(r.keyFile); err == nil {
		r.lastModKey = info.ModTime()
	}
	return nil
}

// changed reports whether either file is newer than the loaded pair.
func (r *TLSReloader) changed() (bool, error) {
	certInfo, err := os.Stat(r.certFile)
	if err != nil {
		return false, err
	}
	keyInfo, err := os.Stat(r.keyFile)
	if err != nil {
		return false, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	return certInfo.ModTime().After(r.lastModCert) || keyInfo.ModTime().After(r.lastModKey), nil
}

func (r *TLSReloader) watch(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		changed, err := r.changed()
		if err != nil {
			r.log.Warnw("failed to stat certificate files", "error", err)
			continue
		}
		if !changed {
			continue
		}
		if err := r.reload(); err != nil {
			r.log.Errorw("failed to reload certificates", "error", err)
			continue
		}
		r.log.Infow("TLS certificates reloaded", "cert", r.certFile)
	}
}

func (r *TLSReloader) GetCertificate(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cert, nil
}

func (r *TLSReloader) Config() *tls.Config {
	return &tls.Config{
		GetCertificate: r.GetCertificate,
		MinVersion:     tls.VersionTLS12,
		CipherSuites: []uint16{
			tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
		},
	}
}
