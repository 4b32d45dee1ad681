package ws

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/cwrk-planet/watch-buddy/internal/domain"
	"github.com/cwrk-planet/watch-buddy/internal/presence"
	"github.com/cwrk-planet/watch-buddy/internal/protocol"
	"github.com/cwrk-planet/watch-buddy/internal/session"
	"github.com/cwrk-planet/watch-buddy/internal/telemetry"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

type Config struct {
	PingEvery       time.Duration
	ReadLimit       int64
	SendBuffer      int
	WriteTimeout    time.Duration
	EventsPerSecond int
	AllowedOrigins  []string
}

func (c Config) withDefaults() Config {
	if c.PingEvery <= 0 {
		c.PingEvery = 15 * time.Second
	}
	if c.ReadLimit <= 0 {
		c.ReadLimit = 1 << 20
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = 64
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 5 * time.Second
	}
	if c.EventsPerSecond <= 0 {
		c.EventsPerSecond = 30
	}
	return c
}

type Sessions interface {
	Open(roomID domain.RoomID, conn presence.Conn) *session.Session
}

type Server struct {
	upgrader websocket.Upgrader
	sessions Sessions
	metrics  *telemetry.Metrics
	cfg      Config
	log      *slog.Logger
}

func NewServer(sessions Sessions, cfg Config, m *telemetry.Metrics) *Server {
	cfg = cfg.withDefaults()
	if m == nil {
		m = telemetry.Noop()
	}
	return &Server{
		sessions: sessions,
		metrics:  m,
		cfg:      cfg,
		log:      slog.Default().With("module", "ws"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(cfg.AllowedOrigins),
		},
	}
}

// WS endpoint: GET /ws/rooms/{id}
// The client must send room:join before any room event.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	roomID := domain.RoomID(chi.URLParam(r, "id"))
	if err := roomID.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader has already written the response
		s.log.Warn("ws upgrade failed", "room", roomID, "err", err)
		return
	}

	ctx := r.Context()
	c := newWsConn(conn, s.cfg.SendBuffer)
	sess := s.sessions.Open(roomID, c)

	s.metrics.Connections.Add(ctx, 1)
	defer s.metrics.Connections.Add(context.WithoutCancel(ctx), -1)

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.writeLoop(c)
	}()

	s.readLoop(ctx, c, sess)

	sess.Close(ctx)
	_ = c.Close()
	<-done
}

func (s *Server) readLoop(ctx context.Context, c *wsConn, sess *session.Session) {
	deadline := func() time.Time { return time.Now().Add(2 * s.cfg.PingEvery) }

	c.conn.SetReadLimit(s.cfg.ReadLimit)
	_ = c.conn.SetReadDeadline(deadline())
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(deadline())
	})

	limiter := newRateLimiter(s.cfg.EventsPerSecond, time.Second)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug("ws read failed", "room", sess.RoomID(), "err", err)
			}
			return
		}
		_ = c.conn.SetReadDeadline(deadline())

		in, err := protocol.Decode(data)
		if err != nil {
			_ = c.Send(protocol.Error(err))
			continue
		}
		if !limiter.Allow(time.Now()) {
			_ = c.Send(protocol.ErrorCode(domain.CodeRateLimited, "too many events, slow down"))
			continue
		}
		sess.Handle(ctx, in)
	}
}

func (s *Server) writeLoop(c *wsConn) {
	ticker := time.NewTicker(s.cfg.PingEvery)
	defer func() {
		ticker.Stop()
		_ = c.Close()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			if err := c.write(msg, s.cfg.WriteTimeout); err != nil {
				s.log.Debug("ws write failed", "type", msg.Type, "err", err)
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.cfg.WriteTimeout)); err != nil {
				return
			}
		case <-c.closed:
			// flush what was queued before the close, e.g. a "replaced" error
			c.drain(s.cfg.WriteTimeout)
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(s.cfg.WriteTimeout))
			return
		}
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}
