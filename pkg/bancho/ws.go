package bancho

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The osu protocol authenticates inside its own first frame.
	CheckOrigin: func(*http.Request) bool { return true },
}

// wsPushInterval is how often queued packets are flushed to a websocket
// client between inbound frames.
const wsPushInterval = 250 * time.Millisecond

// handleWebSocket bridges the byte protocol over a websocket: the first
// binary frame is the login payload, every later frame is a packet
// batch, and queued server packets are pushed without waiting for a
// poll. The engine underneath is identical to the long-poll path.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	conn.SetReadLimit(maxRequestBody)

	_, loginBody, err := conn.ReadMessage()
	if err != nil {
		return
	}
	token, response := s.Login(r.Context(), loginBody)
	if err := conn.WriteMessage(websocket.BinaryMessage, response); err != nil {
		return
	}
	if token == NoToken {
		return
	}

	p := s.sessions.ByToken(token)
	if p == nil {
		return
	}
	defer s.Logout(p)

	// Reader goroutine feeds inbound batches; the main loop pushes the
	// queue on a short interval so other players' broadcasts reach this
	// client promptly.
	inbound := make(chan []byte)
	readErr := make(chan error, 1)
	go func() {
		for {
			_, batch, err := conn.ReadMessage()
			if err != nil {
				readErr <- err
				return
			}
			inbound <- batch
		}
	}()

	ticker := time.NewTicker(wsPushInterval)
	defer ticker.Stop()

	flush := func(out []byte) error {
		if len(out) == 0 {
			return nil
		}
		return conn.WriteMessage(websocket.BinaryMessage, out)
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case <-readErr:
			return
		case batch := <-inbound:
			if err := flush(s.Handle(r.Context(), token, batch)); err != nil {
				return
			}
		case <-ticker.C:
			if err := flush(p.Dequeue()); err != nil {
				return
			}
		}
	}
}
