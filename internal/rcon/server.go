package rcon

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"lingbot/pkg/logx"
)

// Server accepts control connections on a unix socket. Each connection is a
// sequence of framed request/response pairs: greeting first, then commands
// until the client disconnects, sends exit, or fails validation.
type Server struct {
	path string
	h    *Handlers
	log  logx.Logger

	connSeq atomic.Int64
	connWG  sync.WaitGroup
}

func NewServer(socketPath string, h *Handlers, log logx.Logger) *Server {
	return &Server{path: socketPath, h: h, log: log}
}

// Run listens until ctx is cancelled. An accept-loop failure is returned as
// an error; the process is expected to restart under supervision.
func (s *Server) Run(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	// A previous process may have left its socket behind.
	if _, err := os.Stat(s.path); err == nil {
		if err := os.Remove(s.path); err != nil {
			return fmt.Errorf("removing stale socket: %w", err)
		}
	}
	ln, err := net.Listen("unix", s.path)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.path, err)
	}
	if err := os.Chmod(s.path, 0o600); err != nil {
		_ = ln.Close()
		return err
	}
	s.log.Info("control socket listening", logx.String("path", s.path))

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()
	defer func() {
		_ = os.Remove(s.path)
		s.connWG.Wait()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("accept: %w", err)
		}
		s.connWG.Add(1)
		go s.serveConn(conn)
	}
}

func (s *Server) serveConn(conn net.Conn) {
	defer s.connWG.Done()
	defer conn.Close()

	log := s.log.With(logx.Int64("conn", s.connSeq.Add(1)))
	log.Debug("client connected")
	defer log.Debug("client disconnected")

	r := bufio.NewReader(conn)
	w := bufio.NewWriter(conn)

	if err := s.write(w, Message("hi!", "")); err != nil {
		return
	}

	for {
		frame, err := r.ReadBytes(0)
		if err != nil {
			return
		}
		frame = frame[:len(frame)-1]

		resp, terminal := s.dispatch(log, frame)
		if err := s.write(w, resp); err != nil {
			return
		}
		if terminal {
			return
		}
	}
}

// dispatch decodes and executes one frame. Handler panics terminate only
// this connection, never the process.
func (s *Server) dispatch(log logx.Logger, frame []byte) (resp Response, terminal bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("panic while handling command", logx.Any("panic", r))
			resp = Exit(ExitServerError, "")
			terminal = true
		}
	}()

	cmd, errs := ParseCommand(frame)
	if errs != nil {
		log.Warn("invalid command", logx.Any("errors", errs))
		return ValidationError(errs), true
	}
	log.Debug("command received", logx.String("type", cmd.Type))

	if cmd.Type == CmdExit {
		return Exit(ExitUserRequest, cmd.Nonce), true
	}
	return s.h.Handle(cmd), false
}

func (s *Server) write(w *bufio.Writer, resp Response) error {
	b, err := resp.Encode()
	if err != nil {
		return err
	}
	if _, err := w.Write(b); err != nil {
		return err
	}
	return w.Flush()
}
