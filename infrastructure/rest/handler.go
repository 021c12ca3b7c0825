package rest

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/infrastructure/wire"
	"chat-relay/observability"
	"chat-relay/services"
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/samber/lo"
)

// Handler serves the request/response surface: accounts, history, search, health
// and the websocket upgrade.
type Handler struct {
	log         *slog.Logger
	authService services.IAuthService
	chatService services.IChatService
	registry    contract.IPresenceRegistry
	stats       *observability.Stats
	gateway     http.Handler
}

func New(log *slog.Logger, authService services.IAuthService, chatService services.IChatService,
	registry contract.IPresenceRegistry, stats *observability.Stats, gateway http.Handler) *Handler {
	return &Handler{
		log:         log,
		authService: authService,
		chatService: chatService,
		registry:    registry,
		stats:       stats,
		gateway:     gateway,
	}
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Message  string `json:"message"`
	Token    string `json:"token"`
	Username string `json:"username"`
}

type userResponse struct {
	Username string `json:"username"`
}

type postMessageRequest struct {
	Sender  string `json:"sender"`
	Message string `json:"message"`
}

// SetupRouter configures the routes
func (h *Handler) SetupRouter() *mux.Router {
	r := mux.NewRouter()

	// Accounts
	r.HandleFunc("/register", h.Register).Methods(http.MethodPost)
	r.HandleFunc("/login", h.Login).Methods(http.MethodPost)
	r.HandleFunc("/users", h.ListUsers).Methods(http.MethodGet)

	// Messages
	r.HandleFunc("/messages", h.PostMessage).Methods(http.MethodPost)
	r.HandleFunc("/messages", h.PublicHistory).Methods(http.MethodGet)
	r.HandleFunc("/messages/private", h.PrivateHistory).Methods(http.MethodGet)
	r.HandleFunc("/messages/search", h.Search).Methods(http.MethodGet)

	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)

	// WebSocket
	if h.gateway != nil {
		r.Handle("/ws", h.gateway).Methods(http.MethodGet)
	}
	return r
}

// WithCORS wraps the router with the CORS policy of the allowed origins.
func (h *Handler) WithCORS(allowedOrigins []string) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		ExposedHeaders:   []string{"Content-Length"},
		MaxAge:           300,
		AllowCredentials: true,
	})
	return c.Handler(h.SetupRouter())
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var body credentials
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	err := h.authService.Register(body.Username, body.Password)
	switch {
	case err == nil:
		h.log.Info("User created", "username", body.Username)
		writeJSON(w, http.StatusCreated, map[string]string{"message": "User created successfully"})
	case stderrors.Is(err, errors.ErrUserAlreadyExists):
		writeError(w, http.StatusBadRequest, "User already exists")
	default:
		h.fail(w, r, err, "Failed to create user")
	}
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var body credentials
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	token, err := h.authService.Login(body.Username, body.Password)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, loginResponse{Message: "Login successful", Token: string(token), Username: body.Username})
	case stderrors.Is(err, errors.ErrInvalidCredentials):
		writeError(w, http.StatusBadRequest, "Invalid username or password")
	default:
		h.fail(w, r, err, "Failed to login")
	}
}

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	identities, err := h.authService.ListIdentities()
	if err != nil {
		h.fail(w, r, err, "Failed to retrieve users")
		return
	}
	writeJSON(w, http.StatusOK, lo.Map(identities, func(identity string, _ int) userResponse {
		return userResponse{Username: identity}
	}))
}

// PostMessage stores a public message and pushes it to every live connection.
func (h *Handler) PostMessage(w http.ResponseWriter, r *http.Request) {
	var body postMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Sender == "" || body.Message == "" {
		writeError(w, http.StatusBadRequest, "All fields are required")
		return
	}

	if _, err := h.chatService.PostPublic(r.Context(), body.Sender, body.Message); err != nil {
		h.fail(w, r, err, "Failed to store message")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"message": "Message stored successfully"})
}

func (h *Handler) PublicHistory(w http.ResponseWriter, r *http.Request) {
	messages, err := h.chatService.PublicHistory()
	if err != nil {
		h.fail(w, r, err, "Failed to retrieve messages")
		return
	}
	writeJSON(w, http.StatusOK, toRecords(messages))
}

func (h *Handler) PrivateHistory(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	user1, user2 := query.Get("user1"), query.Get("user2")
	if user1 == "" || user2 == "" {
		writeError(w, http.StatusBadRequest, "Two usernames required")
		return
	}

	messages, err := h.chatService.PrivateHistory(user1, user2)
	if err != nil {
		h.fail(w, r, err, "Could not fetch private messages")
		return
	}
	writeJSON(w, http.StatusOK, toRecords(messages))
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	q := query.Get("q")
	if q == "" {
		writeError(w, http.StatusBadRequest, "Query required")
		return
	}
	limit := 0
	if raw := query.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = parsed
	}

	messages, err := h.chatService.Search(r.Context(), q, limit)
	if err != nil {
		h.fail(w, r, err, "Search failed")
		return
	}
	writeJSON(w, http.StatusOK, toRecords(messages))
}

func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.stats.Snapshot(len(h.registry.Identities())))
}

// fail maps a service error to its status. Server side failures are logged and
// answered with a generic message.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error, message string) {
	status := errors.MapToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.log.Error(message, "path", r.URL.Path, "error", err)
		writeError(w, status, message)
		return
	}
	writeError(w, status, err.Error())
}

func toRecords(messages []domain.Message) []wire.ReceiveMessage {
	return lo.Map(messages, func(m domain.Message, _ int) wire.ReceiveMessage {
		return wire.ToReceiveMessage(m)
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
