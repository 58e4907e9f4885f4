package ws

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"nearbysmelt/internal/protocol"
	"nearbysmelt/internal/sim/world"
)

const (
	handshakeTimeout = 5 * time.Second
	lateJoinWait     = 30 * time.Second
	readTimeout      = 60 * time.Second
	writeTimeout     = 5 * time.Second
)

// World is the part of world.World the transport needs.
type World interface {
	Inbox() chan<- world.ActionEnvelope
	Join() chan<- world.JoinRequest
	Leave() chan<- string
}

type Server struct {
	world    World
	log      *zap.SugaredLogger
	outQueue int

	// joinTimeout bounds the wait for a join answer; a later answer is
	// still retired with a leave for up to lateJoinWait.
	joinTimeout  time.Duration
	lateJoinWait time.Duration

	upgrader websocket.Upgrader
}

func NewServer(w World, outQueue int, logger *zap.SugaredLogger) *Server {
	if outQueue <= 0 {
		outQueue = 256
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Server{
		world:        w,
		log:          logger.With("component", "ws"),
		outQueue:     outQueue,
		joinTimeout:  handshakeTimeout,
		lateJoinWait: lateJoinWait,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

// session is one upgraded connection. Drop may be called from the world
// goroutine, so it only records the reason and cancels.
type session struct {
	id     string
	conn   *websocket.Conn
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	dropped bool
	reason  string
}

// drop records the first reason and cancels the session.
func (s *session) drop(reason string) {
	s.mu.Lock()
	if !s.dropped {
		s.dropped = true
		s.reason = reason
	}
	s.mu.Unlock()
	s.cancel()
}

func (s *session) dropReason() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reason
}

func (s *session) closeWith(reason string) {
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason),
		time.Now().Add(time.Second))
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()
		sess := &session{id: uuid.NewString(), conn: conn, ctx: ctx, cancel: cancel}
		log := s.log.With("session", sess.id, "remote", r.RemoteAddr)

		hello, ok := s.readHello(sess)
		if !ok {
			log.Infow("handshake failed")
			return
		}

		out := make(chan []byte, s.outQueue)
		writerDone := make(chan struct{})
		go func() {
			defer close(writerDone)
			s.writeLoop(sess, out)
		}()

		respCh := make(chan world.JoinResponse, 1)
		select {
		case s.world.Join() <- world.JoinRequest{
			Name:     hello.AgentName,
			Viewport: world.ViewportFromWire(hello.Viewport),
			Out:      out,
			Drop:     sess.drop,
			Resp:     respCh,
		}:
		case <-ctx.Done():
			<-writerDone
			return
		}
		// Once sent, the join is always answered unless the world stopped.
		var agentID string
		select {
		case resp := <-respCh:
			agentID = resp.AgentID
		case <-time.After(s.joinTimeout):
			log.Warnw("join not answered")
			sess.drop("")
			<-writerDone
			// A late answer still created the agent.
			select {
			case resp := <-respCh:
				s.leave(resp.AgentID, log)
			case <-time.After(s.lateJoinWait):
			}
			return
		}
		log = log.With("agent_id", agentID)
		log.Infow("agent connected", "name", hello.AgentName)

		s.readLoop(sess, agentID, log)

		sess.drop("")
		<-writerDone
		s.leave(agentID, log)
		log.Infow("agent disconnected", "reason", sess.dropReason())
	}
}

func (s *Server) leave(agentID string, log *zap.SugaredLogger) {
	select {
	case s.world.Leave() <- agentID:
	case <-time.After(time.Second):
		log.Warnw("leave not delivered", "agent_id", agentID)
	}
}

func (s *Server) readHello(sess *session) (protocol.Hello, bool) {
	_ = sess.conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	mt, msg, err := sess.conn.ReadMessage()
	if err != nil {
		return protocol.Hello{}, false
	}
	if mt != websocket.BinaryMessage {
		sess.closeWith(protocol.CloseMalformed)
		return protocol.Hello{}, false
	}
	m, err := protocol.Decode(msg)
	if err != nil {
		sess.closeWith(protocol.CloseMalformed)
		return protocol.Hello{}, false
	}
	hello, ok := m.(protocol.Hello)
	if !ok {
		sess.closeWith(protocol.CloseExpectHello)
		return protocol.Hello{}, false
	}
	if hello.AgentName == "" {
		hello.AgentName = "agent"
	}
	return hello, true
}

func (s *Server) readLoop(sess *session, agentID string, log *zap.SugaredLogger) {
	for {
		_ = sess.conn.SetReadDeadline(time.Now().Add(readTimeout))
		mt, msg, err := sess.conn.ReadMessage()
		if err != nil {
			return
		}
		if mt != websocket.BinaryMessage {
			log.Warnw("non-binary frame")
			sess.drop(protocol.CloseMalformed)
			return
		}
		m, err := protocol.Decode(msg)
		if err != nil {
			log.Warnw("malformed frame", "err", err)
			sess.drop(protocol.CloseMalformed)
			return
		}
		switch m.(type) {
		case protocol.SmeltNearby, protocol.AgentPose, protocol.ViewportUpdate:
		default:
			log.Warnw("unexpected frame", "kind", m.Kind().String())
			sess.drop(protocol.CloseUnexpected)
			return
		}
		select {
		case s.world.Inbox() <- world.ActionEnvelope{AgentID: agentID, Msg: m}:
		case <-sess.ctx.Done():
			return
		}
	}
}

func (s *Server) writeLoop(sess *session, out <-chan []byte) {
	for {
		select {
		case <-sess.ctx.Done():
			if reason := sess.dropReason(); reason != "" {
				sess.closeWith(reason)
			}
			// Unblock the reader.
			_ = sess.conn.SetReadDeadline(time.Now())
			return
		case b := <-out:
			_ = sess.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := sess.conn.WriteMessage(websocket.BinaryMessage, b); err != nil {
				if !errors.Is(err, websocket.ErrCloseSent) {
					s.log.Debugw("write failed", "session", sess.id, "err", err)
				}
				sess.drop("")
				_ = sess.conn.SetReadDeadline(time.Now())
				return
			}
		}
	}
}
