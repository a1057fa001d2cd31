package rwserver

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"net"
	"strings"

	"rwhoisd/pkg/directive"
	"rwhoisd/pkg/query"
	"rwhoisd/pkg/rwerr"
	"rwhoisd/pkg/session"
	"rwhoisd/pkg/store"
)

// maxRequestBytes bounds one request line, per spec §4.8/§5: "the
// per-connection read buffer is capped at 1024 bytes per request; extra
// bytes past the first line of a recv are discarded".
const maxRequestBytes = 1024

// ServerConfig configures a Server. Field names and defaults mirror
// original_source/rwhoisd/config.py.
type ServerConfig struct {
	Port           int
	ServerAddress  string
	ServerHostname string
	DefaultLimit   int
	MinLimit       int
	MaxLimit       int
	Verbose        bool

	MaxConns  int
	AcceptQPS float64
	Burst     int
}

// BannerString derives config.py's "%rwhois V-1.5 <host> (<impl> <version>)"
// banner.
func (c ServerConfig) BannerString() string {
	return fmt.Sprintf("%%rwhois V-1.5 %s (rwhoisd 1.0)", c.ServerHostname)
}

// Server accepts RWhois connections and dispatches each to its own session
// loop, grounded on original_source/rwhoisd/RwhoisServer.py's
// RwhoisTCPServer/RwhoisHandler (there: a SocketServer.ThreadingTCPServer;
// here: a plain Accept loop handed off to a ConnPool).
type Server struct {
	store      *store.Store
	cfg        ServerConfig
	directives *directive.Processor
	executor   *query.Executor
	pool       *ConnPool
}

// New builds a Server over an already-loaded Store.
func New(st *store.Store, cfg ServerConfig) *Server {
	limits := directive.Limits{Min: cfg.MinLimit, Max: cfg.MaxLimit}
	return &Server{
		store:      st,
		cfg:        cfg,
		directives: directive.New(st, limits, cfg.BannerString()),
		executor:   query.New(st),
	}
}

// ListenAndServe binds cfg.ServerAddress:cfg.Port and accepts connections
// until ctx is canceled or Accept returns a permanent error.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.ServerAddress, s.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("rwserver: listen: %w", err)
	}
	defer ln.Close()

	s.pool = NewConnPool(ctx, Config{
		MaxConns:  s.cfg.MaxConns,
		AcceptQPS: s.cfg.AcceptQPS,
		Burst:     s.cfg.Burst,
	})

	if s.cfg.ServerAddress == "" {
		log.Printf("listening on port %d", s.cfg.Port)
	} else {
		log.Printf("listening on %s port %d", s.cfg.ServerAddress, s.cfg.Port)
	}

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				s.pool.Stop()
				return nil
			default:
				return fmt.Errorf("rwserver: accept: %w", err)
			}
		}
		if s.cfg.Verbose {
			log.Printf("accepted connection from %s", conn.RemoteAddr())
		}
		s.pool.Handle(conn, s.serveConn)
	}
}

// serveConn runs one connection's whole session: emit the banner, then loop
// reading CRLF-terminated requests and dispatching each to the directive or
// query layer until the peer closes or -quit is issued. Matches
// RwhoisHandler.handle's loop shape.
func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	w := bufio.NewWriter(conn)
	if _, err := w.WriteString(s.cfg.BannerString() + "\r\n"); err != nil {
		return
	}
	if err := w.Flush(); err != nil {
		return
	}

	sess := session.New(s.store, s.cfg.DefaultLimit)
	r := bufio.NewReader(conn)

	for {
		line, err := readRequestLine(r)
		if err != nil {
			return
		}
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "-") {
			s.handleDirective(sess, w, line)
		} else {
			s.handleQuery(sess, w, line)
			if !sess.HoldConnect() {
				sess.RequestQuit()
			}
		}

		if err := w.Flush(); err != nil {
			return
		}
		if sess.ShouldQuit() {
			return
		}
	}
}

func (s *Server) handleDirective(sess *session.Context, w *bufio.Writer, line string) {
	reply := s.directives.Process(sess, line)
	w.WriteString(reply)
	w.WriteString("\r\n")
}

// handleQuery parses and executes one query line, writing object lines,
// referral lines and the %ok/%error terminator. Matches
// QueryProcessor.process_query.
func (s *Server) handleQuery(sess *session.Context, w *bufio.Writer, line string) {
	q, err := sess.Parser().Parse(line)
	if err != nil {
		w.WriteString(rwerr.Message(350, err.Error()))
		w.WriteString("\r\n")
		return
	}

	max := sess.Limit()
	res, err := s.executor.Run(q, max)
	if err != nil {
		if _, ok := err.(*query.ErrQueryTooComplex); ok {
			w.WriteString(rwerr.Message(351, ""))
		} else {
			w.WriteString(rwerr.Message(350, err.Error()))
		}
		w.WriteString("\r\n")
		return
	}

	if len(res.Objects) == 0 && len(res.Referrals) == 0 {
		w.WriteString(rwerr.Message(230, ""))
		w.WriteString("\r\n")
		return
	}

	for _, obj := range res.Objects {
		w.WriteString(obj.ToWireStr(""))
		w.WriteString("\r\n")
	}
	if len(res.Referrals) > 0 {
		w.WriteString(strings.Join(res.Referrals, "\r\n"))
		w.WriteString("\r\n")
	}

	if res.Overflow {
		w.WriteString(rwerr.Message(330, ""))
	} else {
		w.WriteString(rwerr.OK)
	}
	w.WriteString("\r\n")
}

// readRequestLine reads one CRLF- or LF-terminated line, capped at
// maxRequestBytes; bytes beyond the cap are discarded until the terminating
// newline (or connection close) is found. The cap applies to the raw line
// before surrounding whitespace is trimmed, so a request with leading
// whitespace keeps fewer than maxRequestBytes bytes of content.
func readRequestLine(r *bufio.Reader) (string, error) {
	var buf []byte
	for {
		b, err := r.ReadByte()
		if err != nil {
			if len(buf) > 0 {
				break
			}
			return "", err
		}
		if b == '\n' {
			break
		}
		if len(buf) < maxRequestBytes {
			buf = append(buf, b)
		}
	}
	return strings.TrimSpace(string(buf)), nil
}
