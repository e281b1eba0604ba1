package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	// writeWait bounds a single websocket write.
	writeWait = 10 * time.Second

	// pongWait is how long a silent client is kept; pings are sent at 9/10 of it.
	pongWait = 60 * time.Second
)

// handleWatch upgrades to a websocket and pushes the JSON status of the server
// every watch interval until the client goes away.
func (s *Server) handleWatch(w http.ResponseWriter, r *http.Request) {
	q, rerr := s.parseQuery(r)
	if rerr != nil {
		writeError(w, rerr.status, rerr.Error())
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debug().Err(err).Msg("Websocket upgrade failed")
		return
	}
	defer func() { _ = conn.Close() }()

	ctx := r.Context()

	// The read loop only consumes control frames; it ends when the client disconnects.
	closed := make(chan struct{})
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	interval := s.watchInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	pinger := time.NewTicker(pongWait * 9 / 10)
	defer pinger.Stop()

	log.Debug().Str("host", q.Host).Msg("Watch stream opened")
	defer log.Debug().Str("host", q.Host).Msg("Watch stream closed")

	for {
		res := s.engine.Resolve(ctx, q)
		s.enqueue(q, res)

		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(res); err != nil {
			return
		}

		for next := false; !next; {
			select {
			case <-closed:
				return
			case <-ctx.Done():
				return
			case <-s.shutdown:
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutdown"),
					time.Now().Add(writeWait))
				return
			case <-pinger.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
					return
				}
			case <-ticker.C:
				next = true
			}
		}
	}
}
