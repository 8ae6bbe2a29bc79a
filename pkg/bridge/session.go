// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/utmc-tools/xkopbridge/pkg/xkop"
)

// SessionState is the connection lifecycle state of a Session.
type SessionState int32

const (
	StateDisconnected SessionState = iota
	StateConnecting
	StateConnected
	StateError
)

func (s SessionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// ErrNotConnected is returned by SendRequest while no socket is up.
var ErrNotConnected = errors.New("bridge: not connected to controller")

// Dialer opens one link to the controller. Implementations must honor
// the context for cancellation and connect timeout.
type Dialer func(ctx context.Context) (io.ReadWriteCloser, error)

// deadliner is the optional deadline surface of a connection (all
// net.Conn implementations have it; serial ports do not).
type deadliner interface {
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
}

// SessionConfig configures a controller session. Zero durations fall
// back to the defaults below.
type SessionConfig struct {
	Dial   Dialer
	Codec  *xkop.Codec
	Store  *Store
	Logger zerolog.Logger

	ConnectTimeout time.Duration
	ReadTimeout    time.Duration // per-read deadline; a timed-out read just re-checks for shutdown
	WriteTimeout   time.Duration
	BackoffMin     time.Duration
	BackoffMax     time.Duration

	Metrics *Metrics // optional

	// OnMessage, when set, observes every decoded inbound message after
	// it has been applied to the store (feeds the WebSocket broadcast).
	OnMessage func(xkop.Message)
}

const (
	defaultConnectTimeout = 5 * time.Second
	defaultReadTimeout    = time.Second
	defaultWriteTimeout   = 5 * time.Second
	defaultBackoffMin     = time.Second
	defaultBackoffMax     = 30 * time.Second
)

// Session owns exactly one socket to a controller endpoint: connect,
// read loop, dispatch into the store, outbound sends, and reconnect
// with capped exponential backoff. There is no terminal failure state;
// the session retries until its context is cancelled.
type Session struct {
	cfg     SessionConfig
	decoder *xkop.StreamDecoder
	state   atomic.Int32

	connMu sync.Mutex // guards conn pointer swaps
	conn   io.ReadWriteCloser

	writeMu sync.Mutex // serializes whole-frame writes

	lastFrame atomic.Int64 // unix nanos of last valid inbound frame
}

// NewSession creates a session. Dial, Codec and Store are required.
func NewSession(cfg SessionConfig) (*Session, error) {
	if cfg.Dial == nil || cfg.Codec == nil || cfg.Store == nil {
		return nil, errors.New("bridge: session needs Dial, Codec and Store")
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = defaultReadTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	if cfg.BackoffMin <= 0 {
		cfg.BackoffMin = defaultBackoffMin
	}
	if cfg.BackoffMax < cfg.BackoffMin {
		cfg.BackoffMax = defaultBackoffMax
	}

	s := &Session{cfg: cfg}
	s.decoder = xkop.NewStreamDecoder(cfg.Codec)
	s.decoder.ErrorFunc = func(err error) {
		cfg.Logger.Debug().Err(err).Msg("dropped malformed frame")
		if cfg.Metrics != nil {
			cfg.Metrics.FramesDropped.Inc()
		}
	}
	return s, nil
}

// SetOnMessage installs the inbound message observer. Must be called
// before Run; it exists so the observer can hold a reference back to
// the session.
func (s *Session) SetOnMessage(fn func(xkop.Message)) {
	s.cfg.OnMessage = fn
}

// State returns the current lifecycle state.
func (s *Session) State() SessionState {
	return SessionState(s.state.Load())
}

// Stats returns a copy of the stream statistics.
func (s *Session) Stats() xkop.StatisticsSnapshot {
	return s.decoder.Stats().Snapshot()
}

// LastFrame returns the arrival time of the most recent valid frame,
// or the zero time if none has arrived yet. STATUS keep-alives count.
func (s *Session) LastFrame() time.Time {
	n := s.lastFrame.Load()
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}

func (s *Session) setState(st SessionState) {
	old := SessionState(s.state.Swap(int32(st)))
	if old == st {
		return
	}
	s.cfg.Logger.Info().Stringer("from", old).Stringer("to", st).Msg("session state")
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.SetSessionState(st)
	}
}

// Run drives the connect/read/reconnect loop until ctx is cancelled.
// It always returns ctx.Err().
func (s *Session) Run(ctx context.Context) error {
	backoff := s.cfg.BackoffMin
	for {
		if ctx.Err() != nil {
			s.setState(StateDisconnected)
			return ctx.Err()
		}

		s.setState(StateConnecting)
		conn, err := s.dial(ctx)
		if err != nil {
			s.setState(StateError)
			s.cfg.Logger.Warn().Err(err).Dur("backoff", backoff).Msg("connect failed")
			if !s.sleep(ctx, backoff) {
				s.setState(StateDisconnected)
				return ctx.Err()
			}
			backoff = s.nextBackoff(backoff)
			continue
		}

		s.setConn(conn)
		s.setState(StateConnected)
		if s.cfg.Metrics != nil {
			s.cfg.Metrics.Reconnects.Inc()
		}
		backoff = s.cfg.BackoffMin

		err = s.readLoop(ctx, conn)
		s.setConn(nil)
		conn.Close()
		s.decoder.Reset()

		if ctx.Err() != nil {
			s.setState(StateDisconnected)
			return ctx.Err()
		}

		s.setState(StateError)
		s.cfg.Logger.Warn().Err(err).Dur("backoff", backoff).Msg("connection lost")
		if !s.sleep(ctx, backoff) {
			s.setState(StateDisconnected)
			return ctx.Err()
		}
		backoff = s.nextBackoff(backoff)
	}
}

func (s *Session) dial(ctx context.Context) (io.ReadWriteCloser, error) {
	dctx, cancel := context.WithTimeout(ctx, s.cfg.ConnectTimeout)
	defer cancel()
	return s.cfg.Dial(dctx)
}

// readLoop pumps bytes from the socket through the stream decoder until
// a hard transport error or shutdown. Malformed frames never end the
// loop; they are dropped by the decoder.
func (s *Session) readLoop(ctx context.Context, conn io.ReadWriteCloser) error {
	// Unblock the in-flight read on shutdown by closing the socket.
	watchDone := make(chan struct{})
	defer close(watchDone)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-watchDone:
		}
	}()

	dl, hasDeadline := conn.(deadliner)
	buf := make([]byte, 4*xkop.FrameSize)
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if hasDeadline {
			if err := dl.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout)); err != nil {
				return err
			}
		}

		n, err := conn.Read(buf)
		if n > 0 {
			for _, msg := range s.decoder.Feed(buf[:n]) {
				s.dispatch(msg)
			}
		}
		if err != nil {
			var nerr net.Error
			if errors.As(err, &nerr) && nerr.Timeout() {
				continue // idle link; go around and re-check ctx
			}
			if errors.Is(err, io.EOF) {
				return errors.New("controller closed connection")
			}
			return err
		}
	}
}

func (s *Session) dispatch(msg xkop.Message) {
	s.lastFrame.Store(msg.Timestamp.UnixNano())
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.FramesReceived.Inc()
	}
	if msg.Type == xkop.TypeData {
		s.cfg.Store.Apply(msg)
	}
	s.cfg.Logger.Debug().Stringer("type", msg.Type).Int("records", len(msg.Records)).Msg("frame received")
	if s.cfg.OnMessage != nil {
		s.cfg.OnMessage(msg)
	}
}

// SendRequest encodes a frame and writes it to the controller. Safe to
// call from any goroutine; concurrent senders serialize so partial
// frames never interleave on the wire.
func (s *Session) SendRequest(t xkop.MessageType, records []xkop.Record) error {
	frame, err := s.cfg.Codec.Encode(t, records)
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	conn := s.getConn()
	if conn == nil {
		return ErrNotConnected
	}
	if dl, ok := conn.(deadliner); ok {
		if err := dl.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout)); err != nil {
			return err
		}
	}
	if _, err := conn.Write(frame); err != nil {
		return err
	}
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.FramesSent.Inc()
	}
	s.cfg.Logger.Debug().Stringer("type", t).Int("records", len(records)).Msg("frame sent")
	return nil
}

func (s *Session) setConn(conn io.ReadWriteCloser) {
	s.connMu.Lock()
	s.conn = conn
	s.connMu.Unlock()
}

func (s *Session) getConn() io.ReadWriteCloser {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	return s.conn
}

func (s *Session) sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (s *Session) nextBackoff(d time.Duration) time.Duration {
	d *= 2
	if d > s.cfg.BackoffMax {
		d = s.cfg.BackoffMax
	}
	return d
}
