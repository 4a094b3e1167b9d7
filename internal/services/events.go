package services

import (
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"bridge/agent/internal/constants"
	"bridge/agent/internal/models"

	"github.com/gorilla/websocket"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 54 * time.Second
	wsSendBuffer = 16
)

type eventEnvelope struct {
	Channel string                   `json:"channel"`
	Data    models.BridgeStatusEvent `json:"data"`
}

// localOrigin accepts non-browser clients and pages served from localhost.
func localOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	switch u.Hostname() {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	return false
}

// handleEvents streams bridgeTransactionUpdate events. A client that cannot
// keep up is disconnected rather than slowing the broadcaster.
func (a *ApiService) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.logger.Warnw("websocket upgrade failed", "error", err)
		return
	}

	send := make(chan []byte, wsSendBuffer)
	done := make(chan struct{})
	overflow := make(chan struct{}, 1)

	unsubscribe := a.events.Subscribe(func(ev models.BridgeStatusEvent) {
		msg, err := json.Marshal(eventEnvelope{Channel: constants.EventChannel, Data: ev})
		if err != nil {
			return
		}
		select {
		case send <- msg:
		case <-done:
		default:
			select {
			case overflow <- struct{}{}:
			default:
			}
		}
	})

	go func() {
		defer close(done)
		conn.SetReadLimit(512)
		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	a.logger.Debugw("event stream opened", "remote", r.RemoteAddr)
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		unsubscribe()
		conn.Close()
		a.logger.Debugw("event stream closed", "remote", r.RemoteAddr)
	}()

	for {
		select {
		case msg := <-send:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-overflow:
			a.logger.Warnw("event stream client too slow, closing", "remote", r.RemoteAddr)
			conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "too slow"), time.Now().Add(wsWriteWait))
			return
		case <-done:
			return
		}
	}
}
