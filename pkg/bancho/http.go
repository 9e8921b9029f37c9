package bancho

import (
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// tokenHeader carries the session token out-of-band, as the client
// expects.
const tokenHeader = "cho-token"

// maxRequestBody bounds an inbound packet batch; anything larger is a
// broken or hostile client.
const maxRequestBody = 4 << 20

// Router builds the HTTP surface: the long-poll packet endpoint, the
// websocket bridge, and metrics.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Get("/", s.handleIndex)
	r.Post("/", s.handleBancho)
	r.Get("/ws", s.handleWebSocket)
	r.Handle("/metrics", promhttp.Handler())

	return r
}

// handleIndex answers browsers poking at the endpoint.
func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	fmt.Fprintf(w, "bancho-go: %d players online\n", s.sessions.Count())
}

// handleBancho is the long-poll transport: a request without a token is
// a login, one with a token is a packet batch. Either way the response
// body is the player's drained queue.
func (s *Server) handleBancho(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	token := r.Header.Get("osu-token")
	if token == "" {
		newToken, response := s.Login(r.Context(), body)
		w.Header().Set(tokenHeader, newToken)
		w.Write(response)
		return
	}

	// An empty body is a plain poll; Handle touches the session and
	// drains whatever is queued.
	w.Write(s.Handle(r.Context(), token, body))
}
