// Package ptybridge exposes a connected BLE session as a pseudo-terminal.
//
// Bytes written to the PTY by another program are buffered and forwarded to the
// session in small chunks. The session is polled on a fixed interval and any new
// text it returns is written back to the PTY.
package ptybridge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/creack/pty"
	"github.com/sirupsen/logrus"
	"github.com/smallnest/ringbuffer"
	"github.com/srg/blesh/internal/groutine"
	"github.com/srg/blesh/internal/session"
	"golang.org/x/term"
)

const (
	// DefaultChunkSize keeps each write within a default ATT payload
	DefaultChunkSize = 20
	// DefaultPollInterval is how often the session is read for PTY-bound data
	DefaultPollInterval = 200 * time.Millisecond
	// DefaultBufferSize is the capacity of the PTY to BLE buffer in bytes
	DefaultBufferSize = 4096
)

// ErrDisconnected is returned when the session reports it is no longer connected
var ErrDisconnected = errors.New("device disconnected")

// Session is the part of the session manager the bridge needs. *session.Manager implements it.
type Session interface {
	IsConnected(ctx context.Context) (bool, error)
	Write(ctx context.Context, data string, charUUID string) (int, error)
	Read(ctx context.Context, charUUID string) (string, error)
}

// Options tunes a Bridge. Zero values use the package defaults.
type Options struct {
	ChunkSize    int
	PollInterval time.Duration
	BufferSize   int
	// WriteChar and ReadChar select characteristics explicitly; empty means auto-select
	WriteChar string
	ReadChar  string
}

// Bridge pumps data between a PTY and a BLE session
type Bridge struct {
	session Session
	logger  *logrus.Logger
	opts    Options
}

// New creates a bridge over s
func New(s Session, logger *logrus.Logger, opts *Options) *Bridge {
	if logger == nil {
		logger = logrus.New()
	}

	b := &Bridge{session: s, logger: logger}
	if opts != nil {
		b.opts = *opts
	}
	if b.opts.ChunkSize <= 0 {
		b.opts.ChunkSize = DefaultChunkSize
	}
	if b.opts.PollInterval <= 0 {
		b.opts.PollInterval = DefaultPollInterval
	}
	if b.opts.BufferSize <= 0 {
		b.opts.BufferSize = DefaultBufferSize
	}
	return b
}

// PTY is an open master/slave pair
type PTY struct {
	Master *os.File
	Slave  *os.File
}

// Name returns the slave device path other programs should open
func (p *PTY) Name() string {
	return p.Slave.Name()
}

// Close closes both ends
func (p *PTY) Close() error {
	return errors.Join(p.Master.Close(), p.Slave.Close())
}

// OpenPTY creates a PTY pair with the slave in raw mode
func OpenPTY() (*PTY, error) {
	master, slave, err := pty.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to create PTY (check permissions and available PTY devices): %w", err)
	}

	if _, err := term.MakeRaw(int(slave.Fd())); err != nil {
		path := slave.Name()
		if closeErr := errors.Join(master.Close(), slave.Close()); closeErr != nil {
			return nil, fmt.Errorf("failed to set PTY %s to raw mode: %w (cleanup errors: %v)", path, err, closeErr)
		}
		return nil, fmt.Errorf("failed to set PTY %s to raw mode: %w", path, err)
	}

	return &PTY{Master: master, Slave: slave}, nil
}

// Run opens a PTY, reports its path through onReady and serves it until ctx is
// cancelled or the device disconnects.
func (b *Bridge) Run(ctx context.Context, onReady func(path string)) error {
	p, err := OpenPTY()
	if err != nil {
		return err
	}

	b.logger.WithField("tty", p.Name()).Info("PTY bridge started")
	if onReady != nil {
		onReady(p.Name())
	}

	serveErr := b.Serve(ctx, p.Master)
	if err := p.Close(); err != nil {
		b.logger.WithError(err).Warn("Failed to close PTY")
	}
	b.logger.WithField("tty", p.Name()).Info("PTY bridge stopped")
	return serveErr
}

// Serve pumps data between rw and the session. It returns nil once ctx is
// cancelled, ErrDisconnected when the session drops, or the first I/O failure.
// A Read blocked on rw is released by closing rw.
func (b *Bridge) Serve(ctx context.Context, rw io.ReadWriter) error {
	outbound := ringbuffer.New(b.opts.BufferSize)
	wake := make(chan struct{}, 1)
	readErr := make(chan error, 1)

	groutine.Go(ctx, "pty-read-loop", func(ctx context.Context) {
		buf := make([]byte, 256)
		for {
			n, err := rw.Read(buf)
			if n > 0 {
				written, werr := outbound.Write(buf[:n])
				if werr != nil && !errors.Is(werr, ringbuffer.ErrIsFull) {
					readErr <- fmt.Errorf("failed to buffer PTY data: %w", werr)
					return
				}
				if written < n {
					b.logger.WithField("dropped", n-written).Warn("PTY buffer full, dropping input")
				}
				select {
				case wake <- struct{}{}:
				default:
				}
			}
			if err != nil {
				readErr <- err
				return
			}
		}
	})

	ticker := time.NewTicker(b.opts.PollInterval)
	defer ticker.Stop()

	var last string
	for {
		select {
		case <-ctx.Done():
			return nil

		case err := <-readErr:
			if errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
				b.logger.Debug("PTY closed")
				return nil
			}
			return fmt.Errorf("failed to read from PTY: %w", err)

		case <-wake:
			if err := b.forward(ctx, outbound); err != nil {
				return err
			}

		case <-ticker.C:
			connected, err := b.session.IsConnected(ctx)
			if err != nil {
				return err
			}
			if !connected {
				b.logger.Info("Device disconnected, stopping PTY bridge")
				return ErrDisconnected
			}

			if err := b.forward(ctx, outbound); err != nil {
				return err
			}

			text, err := b.session.Read(ctx, b.opts.ReadChar)
			if err != nil {
				b.logger.WithError(err).Debug("Bridge poll read failed")
				continue
			}
			if text == "" || text == last {
				continue
			}
			last = text
			if _, err := io.WriteString(rw, text); err != nil {
				return fmt.Errorf("failed to write to PTY: %w", err)
			}
		}
	}
}

// forward drains the outbound buffer into the session, ChunkSize bytes per write
func (b *Bridge) forward(ctx context.Context, outbound *ringbuffer.RingBuffer) error {
	chunk := make([]byte, b.opts.ChunkSize)
	for {
		n, err := outbound.TryRead(chunk)
		if n == 0 || errors.Is(err, ringbuffer.ErrIsEmpty) {
			return nil
		}

		if _, err := b.session.Write(ctx, string(chunk[:n]), b.opts.WriteChar); err != nil {
			if errors.Is(err, session.ErrNotConnected) {
				return ErrDisconnected
			}
			b.logger.WithError(err).WithField("bytes", n).Warn("Failed to forward PTY data, chunk dropped")
		}
	}
}
