// internal/httpserver/server.go
//
// HTTP wiring for the score service.
// Responsibilities:
//   - Router + middleware (JSON, CORS, timeouts, panic recovery, request IDs).
//   - Public endpoints: "/", "/health", GET /leaderboard.
//   - Account endpoints: POST /login, POST /register, POST /logout.
//   - Score endpoint: POST /save-score (bare userId capability, no token).
//   - Gated endpoint: GET /me (JWT cookie).
//
// Notes:
//   - Input validation always runs before any storage mutation.
//   - Login failures are uniform: the response never reveals whether the
//     username exists.
//   - save-score deliberately accepts an unverified userId.

package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"

	"memorymatch/internal/score"
)

// ScoreStore is the persistence surface the handlers need. *score.Store
// satisfies it; tests substitute a fake.
type ScoreStore interface {
	CreateUser(ctx context.Context, username, password string) (string, error)
	Authenticate(ctx context.Context, username, password string) (string, error)
	FindUserByID(ctx context.Context, id string) (*score.User, error)
	SaveScore(ctx context.Context, rec score.Record) error
	Leaderboard(ctx context.Context) ([]score.Entry, error)
}

// Server bundles the router and the score store.
type Server struct {
	r     *chi.Mux
	store ScoreStore
}

// New constructs a Server, installs middleware, and registers routes.
func New(st ScoreStore) *Server {
	s := &Server{r: chi.NewRouter(), store: st}

	// --- middleware ---
	s.r.Use(chimw.RequestID)
	s.r.Use(chimw.RealIP)
	s.r.Use(chimw.Recoverer)
	s.r.Use(chimw.Timeout(10 * time.Second))
	s.r.Use(jsonContentType)
	s.r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{clientOrigin()},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	}))

	// --- diagnostics ---
	s.r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"service":"memorymatch","endpoints":["/health","POST /login","POST /register","POST /save-score","GET /leaderboard"]}`))
	})
	s.r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	// --- score service ---
	s.r.Post("/login", s.handleLogin)
	s.r.Post("/register", s.handleRegister)
	s.r.Post("/save-score", s.handleSaveScore)
	s.r.Get("/leaderboard", s.handleLeaderboard)
	s.r.Post("/logout", s.handleLogout)
	s.r.With(s.requireAuth()).Get("/me", s.handleMe)

	// JSON 404/405 for easier debugging
	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"not_found","path":"`+r.URL.Path+`"}`, http.StatusNotFound)
	})
	s.r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"method_not_allowed"}`, http.StatusMethodNotAllowed)
	})

	return s
}

// Start begins serving HTTP on addr.
func (s *Server) Start(addr string) error { return http.ListenAndServe(addr, s.r) }

// Router exposes the internal router (useful for tests).
func (s *Server) Router() chi.Router { return s.r }

// ----------------------------- middleware ----------------------------------

// jsonContentType sets a default JSON Content-Type header on all responses.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

// clientOrigin returns the browser origin allowed by CORS.
func clientOrigin() string {
	return getEnv("CLIENT_ORIGIN", "http://localhost:5173")
}

// ------------------------------ handlers -----------------------------------

type credentialsReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type authRes struct {
	Success bool   `json:"success"`
	UserID  string `json:"userId,omitempty"`
	Message string `json:"message,omitempty"`
}

// handleLogin verifies credentials and returns the user id. On success an
// HS256 JWT cookie is also set; the JSON body is the contract, the cookie
// only gates /me.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body credentialsReq
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, `{"error":"invalid_json"}`, http.StatusBadRequest)
		return
	}
	body.Username = strings.TrimSpace(body.Username)
	if body.Username == "" || body.Password == "" {
		writeJSON(w, http.StatusBadRequest, authRes{Success: false, Message: "Username and password are required"})
		return
	}

	id, err := s.store.Authenticate(r.Context(), body.Username, body.Password)
	if errors.Is(err, score.ErrInvalidCredentials) {
		writeJSON(w, http.StatusUnauthorized, authRes{Success: false, Message: "Invalid username or password"})
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("login")
		http.Error(w, `{"error":"internal_error"}`, http.StatusInternalServerError)
		return
	}

	s.issueAuthCookie(w, id, body.Username)
	writeJSON(w, http.StatusOK, authRes{Success: true, UserID: id})
}

// handleRegister creates a new account. Duplicate usernames are reported
// distinctly; the password is stored only as a bcrypt hash.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var body credentialsReq
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, `{"error":"invalid_json"}`, http.StatusBadRequest)
		return
	}
	body.Username = strings.TrimSpace(body.Username)
	if body.Username == "" || body.Password == "" {
		writeJSON(w, http.StatusBadRequest, authRes{Success: false, Message: "Username and password are required"})
		return
	}

	id, err := s.store.CreateUser(r.Context(), body.Username, body.Password)
	if errors.Is(err, score.ErrUsernameTaken) {
		writeJSON(w, http.StatusConflict, authRes{Success: false, Message: "Username already exists"})
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("register")
		http.Error(w, `{"error":"internal_error"}`, http.StatusInternalServerError)
		return
	}

	s.issueAuthCookie(w, id, body.Username)
	writeJSON(w, http.StatusOK, authRes{Success: true})
}

// saveScoreReq uses pointers so a missing field is distinguishable from a
// legitimate zero (a loss can carry score 0 and timeRemaining 0).
type saveScoreReq struct {
	UserID        string `json:"userId"`
	Score         *int   `json:"score"`
	TimeRemaining *int   `json:"timeRemaining"`
}

// handleSaveScore appends a score row. The userId is taken on trust.
func (s *Server) handleSaveScore(w http.ResponseWriter, r *http.Request) {
	var body saveScoreReq
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, `{"error":"invalid_json"}`, http.StatusBadRequest)
		return
	}
	if body.UserID == "" || body.Score == nil || body.TimeRemaining == nil {
		writeJSON(w, http.StatusBadRequest, authRes{Success: false, Message: "Missing required fields"})
		return
	}

	rec := score.Record{UserID: body.UserID, Score: *body.Score, TimeLeft: *body.TimeRemaining}
	if err := s.store.SaveScore(r.Context(), rec); err != nil {
		log.Error().Err(err).Str("userId", body.UserID).Msg("save score")
		http.Error(w, `{"error":"internal_error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// handleLeaderboard returns every score as ranked entries. Empty board is
// an empty array, never null.
func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	entries, err := s.store.Leaderboard(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("leaderboard")
		http.Error(w, `{"error":"internal_error"}`, http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []score.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// handleMe reports the authenticated user.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	me, _ := r.Context().Value(ctxUserKey{}).(*authUser)
	if me == nil {
		http.Error(w, `{"error":"Unauthorized"}`, http.StatusUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, me)
}

// handleLogout clears the auth cookie.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.clearAuthCookie(w)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// ------------------------------- small util --------------------------------

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("encode response")
	}
}

// getEnv returns the value of k or def if unset/empty.
func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
