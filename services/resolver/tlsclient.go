package resolver

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"time"

	utls "github.com/refraction-networking/utls"
	"golang.org/x/net/http2"
)

// Several streaming sites sit behind anti-bot fronts that fingerprint the
// TLS Client Hello and reject the stock Go handshake. NewBrowserClient
// builds an http.Client whose handshake mimics Chrome 120, negotiating h2
// where the server supports it and falling back to HTTP/1.1 otherwise.

const browserDialTimeout = 30 * time.Second

type browserTransport struct {
	h2 *http2.Transport
	h1 *http.Transport
}

// NewBrowserClient returns a client with a Chrome TLS fingerprint. Plain
// http:// requests bypass the custom dialer entirely.
func NewBrowserClient() *http.Client {
	bt := &browserTransport{
		h2: &http2.Transport{
			DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
				return dialBrowserTLS(ctx, network, addr, nil)
			},
		},
		h1: &http.Transport{
			DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
				return dialBrowserTLS(ctx, network, addr, []string{"http/1.1"})
			},
		},
	}
	return &http.Client{Timeout: browserDialTimeout, Transport: bt}
}

func (t *browserTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.URL.Scheme != "https" {
		return http.DefaultTransport.RoundTrip(req)
	}
	// GetBody is set for buffered request bodies, so the h1 retry can replay.
	resp, err := t.h2.RoundTrip(req)
	if err == nil {
		return resp, nil
	}
	retry := req.Clone(req.Context())
	if req.GetBody != nil {
		body, bodyErr := req.GetBody()
		if bodyErr != nil {
			return nil, err
		}
		retry.Body = body
	}
	return t.h1.RoundTrip(retry)
}

// dialBrowserTLS performs the uTLS handshake with the Chrome 120 hello.
// A nil protos list advertises Chrome's natural ALPN (h2 + http/1.1).
func dialBrowserTLS(ctx context.Context, network, addr string, protos []string) (net.Conn, error) {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}
	dialer := &net.Dialer{Timeout: browserDialTimeout}
	conn, err := dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}
	tlsConn := utls.UClient(conn, &utls.Config{
		ServerName: host,
		MinVersion: tls.VersionTLS12,
		NextProtos: protos,
	}, utls.HelloChrome_120)
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("tls handshake: %w", err)
	}
	return tlsConn, nil
}
