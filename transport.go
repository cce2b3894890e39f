package netoff

import (
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"
)

// Transport is C1: a reliable ordered byte stream with blocking send/recv of
// exact byte counts, plus a recv_variable convenience that reads a u32
// length prefix then that many bytes. It opens/closes exactly one OS socket.
type Transport struct {
	conn    net.Conn
	metrics Metrics
	logger  *slog.Logger

	readTimeout  time.Duration
	writeTimeout time.Duration
}

func newTransport(conn net.Conn, cfg *Config) *Transport {
	return &Transport{
		conn:         conn,
		metrics:      cfg.metrics,
		logger:       cfg.logger,
		readTimeout:  cfg.readTimeout,
		writeTimeout: cfg.writeTimeout,
	}
}

// AcceptOnePeer binds cfg's port and blocks until a single driver connects,
// retrying the bind+accept as a unit up to cfg's bounded attempt count with
// a fixed inter-attempt delay (spec.md §4.1). The listening socket is closed
// as soon as one peer is accepted or the budget is exhausted — this
// protocol never multiplexes more than one driver per worker.
func AcceptOnePeer(cfg *Config) (*Transport, error) {
	budget := newRetryBudget(cfg.retryAttempts, cfg.retryDelay, cfg.retryBackoff)
	var lastErr error
	for attempt := 1; attempt <= budget.attempts; attempt++ {
		t, err := acceptOnce(cfg)
		if err == nil {
			return t, nil
		}
		lastErr = err
		cfg.logger.Warn("netoff: accept attempt failed", "attempt", attempt, "of", budget.attempts, "err", err)
		if attempt < budget.attempts {
			budget.sleep()
		}
	}
	return nil, fmt.Errorf("%w: accept failed after %d attempts: %v", ErrTransport, budget.attempts, lastErr)
}

func acceptOnce(cfg *Config) (*Transport, error) {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.port))
	if err != nil {
		return nil, err
	}
	defer ln.Close()

	conn, err := ln.Accept()
	if err != nil {
		return nil, err
	}
	return newTransport(conn, cfg), nil
}

// Connect dials host:cfg.port, retrying up to cfg's bounded attempt count
// with a fixed inter-attempt delay, returning failure without panicking
// once the budget is exhausted (spec.md §4.1).
func Connect(host string, cfg *Config) (*Transport, error) {
	addr := fmt.Sprintf("%s:%d", host, cfg.port)
	budget := newRetryBudget(cfg.retryAttempts, cfg.retryDelay, cfg.retryBackoff)
	var lastErr error
	for attempt := 1; attempt <= budget.attempts; attempt++ {
		conn, err := net.DialTimeout("tcp", addr, cfg.writeTimeout)
		if err == nil {
			return newTransport(conn, cfg), nil
		}
		lastErr = err
		cfg.logger.Warn("netoff: connect attempt failed", "attempt", attempt, "of", budget.attempts, "addr", addr, "err", err)
		if attempt < budget.attempts {
			budget.sleep()
		}
	}
	return nil, fmt.Errorf("%w: connect to %s failed after %d attempts: %v", ErrTransport, addr, budget.attempts, lastErr)
}

// Send writes exactly len(buf) bytes, or fails with ErrTransport. net.Conn's
// Write already guarantees a full write or an error for stream sockets, but
// the loop below is defensive against implementations that don't.
func (t *Transport) Send(buf []byte) error {
	if t.writeTimeout > 0 {
		_ = t.conn.SetWriteDeadline(time.Now().Add(t.writeTimeout))
	}
	total := 0
	for total < len(buf) {
		n, err := t.conn.Write(buf[total:])
		total += n
		if err != nil {
			return fmt.Errorf("%w: send: %v", ErrTransport, err)
		}
	}
	t.metrics.IncrementBytesSent(int64(total))
	return nil
}

// Recv reads exactly len(buf) bytes into buf, or fails with ErrTransport on
// unreachable peer, premature close, or timeout exhaustion.
func (t *Transport) Recv(buf []byte) error {
	if len(buf) == 0 {
		return nil
	}
	if t.readTimeout > 0 {
		_ = t.conn.SetReadDeadline(time.Now().Add(t.readTimeout))
	}
	n, err := io.ReadFull(t.conn, buf)
	if err != nil {
		return fmt.Errorf("%w: recv: %v", ErrTransport, err)
	}
	t.metrics.IncrementBytesReceived(int64(n))
	return nil
}

// RecvVariable reads a u32 length prefix, then that many bytes into a freshly
// allocated buffer.
func (t *Transport) RecvVariable() ([]byte, error) {
	var lenBuf [4]byte
	if err := t.Recv(lenBuf[:]); err != nil {
		return nil, err
	}
	n := wire.Uint32(lenBuf[:])
	if n > DefaultMaxStringLen {
		return nil, fmt.Errorf("%w: recv_variable declared length %d exceeds limit", ErrCodec, n)
	}
	buf := make([]byte, n)
	if err := t.Recv(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// Close closes the underlying socket. Safe to call more than once.
func (t *Transport) Close() error {
	return t.conn.Close()
}

// LocalAddr and RemoteAddr expose the underlying socket's endpoints, mainly
// for logging.
func (t *Transport) LocalAddr() net.Addr  { return t.conn.LocalAddr() }
func (t *Transport) RemoteAddr() net.Addr { return t.conn.RemoteAddr() }
