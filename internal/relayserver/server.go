package relayserver

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"sobre/internal/domain"
	"sobre/internal/realtime"
)

// Server bundles the REST directory surface and the websocket relay.
type Server struct {
	store    *memoryStore
	hub      *hub
	token    string
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// New builds a server. When token is non-empty every /api request must carry
// it as a bearer credential.
func New(token string, log zerolog.Logger) *Server {
	return &Server{
		store: newMemoryStore(),
		hub:   newHub(log),
		token: token,
		log:   log,
		upgrader: websocket.Upgrader{
			// Development server: browsers on any origin may connect.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Router assembles the HTTP surface.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}))

	r.Route("/api/chat", func(r chi.Router) {
		r.Use(s.requireBearer)
		r.Post("/keys", s.handleRegisterKey)
		r.Get("/keys/{identity}", s.handleLookupKey)
		r.Get("/contacts", s.handleContacts)
		r.Get("/messages/{identity}/{other}", s.handleMessages)
	})
	r.Get("/ws", s.handleWS)
	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	})
}

func (s *Server) requireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.token != "" {
			got := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if got != s.token {
				http.Error(w, "invalid credential", http.StatusUnauthorized)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleRegisterKey(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Identity  domain.Identity `json:"identity"`
		PublicKey string          `json:"publicKey"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Identity == "" || body.PublicKey == "" {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	s.store.setKey(body.Identity, body.PublicKey)
	writeJSON(w, map[string]any{"success": true})
}

func (s *Server) handleLookupKey(w http.ResponseWriter, r *http.Request) {
	identity := domain.Identity(chi.URLParam(r, "identity"))
	exported, ok := s.store.key(identity)
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		writeJSON(w, map[string]any{"success": false})
		return
	}
	writeJSON(w, map[string]any{"success": true, "publicKey": exported})
}

func (s *Server) handleContacts(w http.ResponseWriter, r *http.Request) {
	identity := domain.Identity(r.URL.Query().Get("userId"))
	if identity == "" {
		http.Error(w, "userId required", http.StatusBadRequest)
		return
	}
	writeJSON(w, map[string]any{"success": true, "contacts": s.store.contacts(identity)})
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	a := domain.Identity(chi.URLParam(r, "identity"))
	b := domain.Identity(chi.URLParam(r, "other"))
	writeJSON(w, map[string]any{"success": true, "messages": s.store.conversation(a, b)})
}

// handleWS runs one relay session: subscribe handshake, then a read loop
// routing published messages.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	var sub realtime.Frame
	if err := conn.ReadJSON(&sub); err != nil || sub.Type != realtime.FrameSubscribe || sub.Identity == "" {
		conn.Close()
		return
	}
	identity := sub.Identity
	client := s.hub.subscribe(identity, conn)
	defer s.hub.unsubscribe(identity, client)
	defer conn.Close()

	if err := client.writeFrame(realtime.Frame{Type: realtime.FrameSubscribed, Identity: identity}); err != nil {
		return
	}
	s.log.Info().Str("identity", string(identity)).Msg("subscribed")

	for {
		var f realtime.Frame
		if err := conn.ReadJSON(&f); err != nil {
			s.log.Info().Str("identity", string(identity)).Msg("session ended")
			return
		}
		switch f.Type {
		case realtime.FramePresence:
			if f.Message != nil {
				s.log.Info().Str("identity", string(f.Message.SenderID)).Msg("user joined")
			}
		case realtime.FrameMessage:
			if f.Message == nil || f.Message.ReceiverID == "" {
				continue
			}
			// Persist first so offline receivers find it in history, then
			// route to the live subscriber if any.
			s.store.appendMessage(*f.Message)
			s.hub.deliver(*f.Message)
		}
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
