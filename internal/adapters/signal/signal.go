package signal

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/maloy23073-dotcom/PP1-telegram-bot/internal/app/orch"
	"github.com/maloy23073-dotcom/PP1-telegram-bot/internal/core"
	"github.com/maloy23073-dotcom/PP1-telegram-bot/internal/domain"
	"github.com/maloy23073-dotcom/PP1-telegram-bot/internal/metrics"
)

type Options struct {
	ReadLimit   int64
	PingPeriod  time.Duration
	WriteWait   time.Duration
	SendBuffer  int
	ValidateSDP bool

	MessagesPerSecond float64
	MessageBurst      int
	JoinsPerMinute    int
}

func (o *Options) withDefaults() {
	if o.ReadLimit <= 0 {
		o.ReadLimit = 32768
	}
	if o.PingPeriod <= 0 {
		o.PingPeriod = 54 * time.Second
	}
	if o.WriteWait <= 0 {
		o.WriteWait = 5 * time.Second
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = 32
	}
}

type SignalWSController struct {
	Orch    *orch.Orchestrator
	opts    Options
	joins   *JoinRateLimiter
	metrics *metrics.Metrics
}

func NewSignalWSController(o *orch.Orchestrator, opts Options, m *metrics.Metrics) *SignalWSController {
	opts.withDefaults()
	return &SignalWSController{
		Orch:    o,
		opts:    opts,
		joins:   NewJoinRateLimiter(opts.JoinsPerMinute),
		metrics: m,
	}
}

// WsSignalConn is the core.SignalConnection of one browser. Close stops
// accepting frames; writePump flushes what is queued and closes the socket.
type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return core.ErrConnClosed
	}
	select {
	case c.send <- f:
	default:
		return core.ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// peerSession is the per-connection signaling state, owned by readPump.
type peerSession struct {
	conn    *WsSignalConn
	token   string
	limiter *rate.Limiter

	joined bool
	code   domain.CallCode
	peer   domain.PeerID
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	token := c.GetString("client_token")
	log.Info().Str("module", "signal").Str("client", token).Msg("new WS connection")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}

	conn := &WsSignalConn{
		conn: ws,
		send: make(chan core.Frame, ctl.opts.SendBuffer),
	}
	sess := &peerSession{
		conn:    conn,
		token:   token,
		limiter: newMessageLimiter(ctl.opts.MessagesPerSecond, ctl.opts.MessageBurst),
	}

	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, sess)
}
