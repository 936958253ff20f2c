// Copyright 2026 The Leash Authors
// SPDX-License-Identifier: Apache-2.0

package proxy

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/leash-foundation/leash/lib/netutil"
)

// defaultAuthorizeTimeout bounds a single Policy.Authorize call.
// Expiry counts as deny.
const defaultAuthorizeTimeout = 10 * time.Second

// Server is a per-sandbox filtering proxy bound to a loopback port.
type Server struct {
	policy           Policy
	authorizeTimeout time.Duration
	logger           *slog.Logger

	listener   net.Listener
	httpServer *http.Server
	transport  *http.Transport
	dialer     *net.Dialer

	mu      sync.Mutex
	tunnels map[net.Conn]struct{}
	started bool
}

// Config holds configuration for creating a new Server.
type Config struct {
	// Policy authorizes each request. Nil means deny all.
	Policy Policy

	// AuthorizeTimeout bounds a single Authorize call. Zero uses the
	// default (10s). Expiry counts as deny.
	AuthorizeTimeout time.Duration

	// Logger for proxy operations.
	Logger *slog.Logger
}

// NewServer creates a new filtering proxy. The listener is not bound
// until Start is called.
func NewServer(config Config) *Server {
	policy := config.Policy
	if policy == nil {
		policy = DenyAll{}
	}
	timeout := config.AuthorizeTimeout
	if timeout <= 0 {
		timeout = defaultAuthorizeTimeout
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	dialer := &net.Dialer{Timeout: 30 * time.Second}
	return &Server{
		policy:           policy,
		authorizeTimeout: timeout,
		logger:           logger,
		dialer:           dialer,
		transport: &http.Transport{
			DialContext: dialer.DialContext,
			// The proxy speaks plain HTTP upstream; TLS goes through
			// CONNECT tunnels and is never terminated here. Forwarded
			// responses must arrive as they were sent.
			DisableCompression:  true,
			MaxIdleConnsPerHost: 4,
		},
		tunnels: make(map[net.Conn]struct{}),
	}
}

// Start binds a random loopback port and begins serving. The proxy is
// ready to accept connections when Start returns.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return fmt.Errorf("proxy already started")
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return fmt.Errorf("failed to bind proxy listener: %w", err)
	}
	s.listener = listener
	s.httpServer = &http.Server{
		Handler:     http.HandlerFunc(s.serveHTTP),
		ReadTimeout: 30 * time.Second,
	}
	s.started = true

	s.logger.Info("network proxy started", "address", listener.Addr().String())

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.logger.Error("proxy server error", "error", err)
		}
	}()

	return nil
}

// Port returns the bound loopback port. Valid after Start.
func (s *Server) Port() int {
	if s.listener == nil {
		return 0
	}
	return s.listener.Addr().(*net.TCPAddr).Port
}

// URL returns the proxy URL for HTTP_PROXY/HTTPS_PROXY injection.
func (s *Server) URL() string {
	return fmt.Sprintf("http://127.0.0.1:%d", s.Port())
}

// Shutdown stops the proxy. In-flight ordinary requests are allowed to
// finish within ctx; established CONNECT tunnels are aborted.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	httpServer := s.httpServer
	tunnels := make([]net.Conn, 0, len(s.tunnels))
	for conn := range s.tunnels {
		tunnels = append(tunnels, conn)
	}
	s.mu.Unlock()

	// Abort tunnels first: hijacked connections are invisible to
	// http.Server.Shutdown and would otherwise hold it open.
	for _, conn := range tunnels {
		conn.Close()
	}

	err := httpServer.Shutdown(ctx)
	s.transport.CloseIdleConnections()
	s.logger.Info("network proxy stopped")
	return err
}

// authorize consults the policy with a bounded timeout. Expiry and
// panics count as deny.
func (s *Server) authorize(ctx context.Context, req Request) bool {
	ctx, cancel := context.WithTimeout(ctx, s.authorizeTimeout)
	defer cancel()

	verdict := make(chan bool, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("network policy panicked", "panic", r)
				verdict <- false
			}
		}()
		verdict <- s.policy.Authorize(ctx, req)
	}()

	select {
	case allowed := <-verdict:
		return allowed
	case <-ctx.Done():
		s.logger.Warn("network policy timed out, denying",
			"host", req.Host, "port", req.Port, "method", req.Method)
		return false
	}
}

func (s *Server) serveHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodConnect {
		s.handleConnect(w, r)
		return
	}
	s.handleForward(w, r)
}

// handleConnect authorizes and establishes a CONNECT tunnel. Once the
// tunnel is up, bytes are spliced without inspection until either side
// closes.
func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	connID := uuid.NewString()
	host, port, err := splitHostPort(r.Host, 443)
	if err != nil || host == "" {
		http.Error(w, "invalid CONNECT target", http.StatusBadRequest)
		return
	}

	req := Request{Host: host, Port: port, Method: http.MethodConnect}
	if !s.authorize(r.Context(), req) {
		s.logger.Info("connection denied by policy",
			"conn", connID, "host", host, "port", port, "method", "CONNECT")
		http.Error(w, "blocked by sandbox policy", http.StatusForbidden)
		return
	}

	upstream, err := s.dialer.DialContext(r.Context(), "tcp", joinHostPort(host, port))
	if err != nil {
		s.logger.Warn("upstream connect failed",
			"conn", connID, "host", host, "port", port, "error", err)
		http.Error(w, "failed to connect to target", http.StatusBadGateway)
		return
	}

	hijacker, ok := w.(http.Hijacker)
	if !ok {
		upstream.Close()
		http.Error(w, "tunneling unsupported", http.StatusInternalServerError)
		return
	}
	client, buffered, err := hijacker.Hijack()
	if err != nil {
		upstream.Close()
		s.logger.Warn("hijack failed", "conn", connID, "error", err)
		return
	}
	// The server's read deadline survives the hijack and would cut
	// long-lived tunnels off; the tunnel has no protocol timeout.
	client.SetDeadline(time.Time{})

	if _, err := client.Write([]byte("HTTP/1.1 200 Connection Established\r\n\r\n")); err != nil {
		client.Close()
		upstream.Close()
		return
	}
	// Flush any bytes the client pipelined behind the CONNECT.
	if n := buffered.Reader.Buffered(); n > 0 {
		pipelined := make([]byte, n)
		buffered.Reader.Read(pipelined)
		upstream.Write(pipelined)
	}

	s.trackTunnel(client, upstream)
	defer s.untrackTunnel(client, upstream)

	s.logger.Debug("tunnel established", "conn", connID, "host", host, "port", port)
	if err := netutil.BridgeConnections(client, upstream); err != nil {
		s.logger.Debug("tunnel error", "conn", connID, "error", err)
	}
}

// handleForward authorizes and forwards a plaintext HTTP request.
func (s *Server) handleForward(w http.ResponseWriter, r *http.Request) {
	connID := uuid.NewString()
	if r.URL.Host == "" {
		http.Error(w, "missing host", http.StatusBadRequest)
		return
	}
	host, port, err := splitHostPort(r.URL.Host, 80)
	if err != nil || host == "" {
		http.Error(w, "invalid host", http.StatusBadRequest)
		return
	}

	req := Request{Host: host, Port: port, Method: r.Method}
	if !s.authorize(r.Context(), req) {
		s.logger.Info("request denied by policy",
			"conn", connID, "host", host, "port", port, "method", r.Method)
		http.Error(w, "blocked by sandbox policy", http.StatusForbidden)
		return
	}

	outbound := r.Clone(r.Context())
	outbound.RequestURI = ""
	if outbound.URL.Scheme == "" {
		outbound.URL.Scheme = "http"
	}
	removeHopHeaders(outbound.Header)

	response, err := s.transport.RoundTrip(outbound)
	if err != nil {
		s.logger.Warn("upstream request failed",
			"conn", connID, "host", host, "port", port, "error", err)
		http.Error(w, "failed to reach target", http.StatusBadGateway)
		return
	}
	defer response.Body.Close()

	removeHopHeaders(response.Header)
	for key, values := range response.Header {
		for _, value := range values {
			w.Header().Add(key, value)
		}
	}
	w.WriteHeader(response.StatusCode)
	if _, err := io.Copy(w, response.Body); err != nil && !netutil.IsExpectedCloseError(err) {
		s.logger.Debug("response copy error", "conn", connID, "error", err)
	}
}

func (s *Server) trackTunnel(conns ...net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, conn := range conns {
		s.tunnels[conn] = struct{}{}
	}
}

func (s *Server) untrackTunnel(conns ...net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, conn := range conns {
		delete(s.tunnels, conn)
	}
}

// hopHeaders are connection-scoped headers that must not be forwarded.
var hopHeaders = []string{
	"Connection",
	"Proxy-Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

func removeHopHeaders(header http.Header) {
	for _, name := range hopHeaders {
		header.Del(name)
	}
}

// splitHostPort splits "host:port" using defaultPort when no port is
// present. IPv6 literals keep their brackets stripped.
func splitHostPort(hostport string, defaultPort int) (string, int, error) {
	host, portStr, err := net.SplitHostPort(hostport)
	if err != nil {
		// No port present. Strip brackets from a bare IPv6 literal.
		host := strings.TrimSuffix(strings.TrimPrefix(hostport, "["), "]")
		return host, defaultPort, nil
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return "", 0, fmt.Errorf("invalid port %q", portStr)
	}
	return host, port, nil
}

// joinHostPort formats a dial target, bracketing IPv6 literals.
func joinHostPort(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}
