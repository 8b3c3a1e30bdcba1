package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/fatflowers/gachapon/internal/app/service/relay"
	"github.com/fatflowers/gachapon/pkg/logctx"
)

const (
	wsWriteTimeout  = 10 * time.Second
	DefaultWSBuffer = 64
	wsReadLimit     = 4 << 10
)

// upgrader hijacks the connection before writing the 101, which gin's writer requires.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

type Subscriber interface {
	Subscribe(h relay.Handler) (unsubscribe func())
}

// wsClient is the relay registration of one websocket connection.
type wsClient struct {
	userID  string
	out     chan relay.Envelope
	dropped atomic.Int64
}

func (w *wsClient) HandleEnvelope(_ context.Context, env relay.Envelope) error {
	if !env.For(w.userID) {
		return nil
	}
	select {
	case w.out <- env:
	default:
		w.dropped.Add(1)
	}
	return nil
}

func (w *wsClient) enqueue(env relay.Envelope) {
	select {
	case w.out <- env:
	default:
	}
}

// @Summary      Notification stream
// @Description  Websocket streaming the caller's notifications and heartbeats. A client PING is answered with PONG.
// @Tags         Notification
// @Param        token query string true "Session token"
// @Router       /ws [get]
func ApiWebsocket(bus Subscriber, clk clock.Clock, buffer int, log *zap.SugaredLogger) gin.HandlerFunc {
	if buffer <= 0 {
		buffer = DefaultWSBuffer
	}
	return func(c *gin.Context) {
		lg := logctx.FromGin(c, log)
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			lg.Warnw("ws_accept_failed", "err", err)
			return
		}
		defer conn.Close()
		conn.SetReadLimit(wsReadLimit)

		client := &wsClient{userID: userID(c), out: make(chan relay.Envelope, buffer)}
		unsubscribe := bus.Subscribe(client)
		defer unsubscribe()
		lg.Infow("ws_connected")

		ctx, cancel := context.WithCancel(c.Request.Context())
		defer cancel()
		go func() {
			defer cancel()
			readLoop(conn, client, clk)
		}()

		err = writeLoop(ctx, conn, client)
		if errors.Is(err, context.Canceled) {
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		} else {
			lg.Infow("ws_write_failed", "err", err)
		}
		lg.Infow("ws_disconnected", "dropped", client.dropped.Load())
	}
}

// readLoop answers PING and discards everything else. It returns once the peer
// closes or the connection is closed under it.
func readLoop(conn *websocket.Conn, client *wsClient, clk clock.Clock) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		env, err := relay.DecodeEnvelope(data)
		if err != nil {
			continue
		}
		if env.Type() == relay.TypePing {
			client.enqueue(relay.NewEnvelope(relay.Pong{}, client.userID, clk.Now()))
		}
	}
}

func writeLoop(ctx context.Context, conn *websocket.Conn, client *wsClient) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case env := <-client.out:
			data, err := json.Marshal(env)
			if err != nil {
				continue
			}
			if err := conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout)); err != nil {
				return err
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return err
			}
		}
	}
}

func RegisterWebsocketRoutes(r gin.IRouter, bus Subscriber, clk clock.Clock, buffer int, log *zap.SugaredLogger) {
	r.GET("/ws", ApiWebsocket(bus, clk, buffer, log))
}
