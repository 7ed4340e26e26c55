package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"configreader/internal/confstore"
	"configreader/internal/token"
)

const defaultTokenExpiryMinutes = 60

// maskedPrefixLen is how much of a token value the list endpoint reveals.
const maskedPrefixLen = 6

// Handler wires the configuration store and token store into HTTP handlers.
type Handler struct {
	store  confstore.Store
	tokens *token.Store

	clock func() time.Time
}

// HandlerOption configures Handler behaviour.
type HandlerOption func(*Handler)

// WithClock overrides the time source, primarily for tests.
func WithClock(clock func() time.Time) HandlerOption {
	return func(h *Handler) {
		h.clock = clock
	}
}

// NewHandler constructs a Handler with the provided dependencies.
func NewHandler(store confstore.Store, tokens *token.Store, opts ...HandlerOption) *Handler {
	h := &Handler{
		store:  store,
		tokens: tokens,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	_ = r
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "ok",
		Timestamp: h.clock(),
	})
}

func (h *Handler) handleConfigAll(w http.ResponseWriter, r *http.Request) {
	_ = r
	entries, err := h.store.All()
	if err != nil {
		h.writeInternalError(w, err)
		return
	}
	h.writeEntries(w, entries)
}

func (h *Handler) handleConfigEnvironment(w http.ResponseWriter, r *http.Request) {
	_ = r
	entries, err := h.store.Environment()
	if err != nil {
		h.writeInternalError(w, err)
		return
	}
	h.writeEntries(w, entries)
}

func (h *Handler) handleConfigAppSettings(w http.ResponseWriter, r *http.Request) {
	_ = r
	entries, err := h.store.AppSettings()
	if err != nil {
		h.writeInternalError(w, err)
		return
	}
	h.writeEntries(w, entries)
}

func (h *Handler) handleConfigKey(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	entry, found, err := h.store.Lookup(key)
	if err != nil {
		h.writeInternalError(w, err)
		return
	}
	if !found {
		h.writeError(w, http.StatusNotFound, "Not Found", "no configuration entry named "+strconv.Quote(key))
		return
	}
	writeJSON(w, http.StatusOK, entryResponse{
		Entry:     entry,
		Timestamp: h.clock(),
	})
}

func (h *Handler) handleTokenGenerate(w http.ResponseWriter, r *http.Request) {
	minutes := defaultTokenExpiryMinutes
	if raw := r.URL.Query().Get("expiryMinutes"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "Invalid Request", "expiryMinutes must be an integer")
			return
		}
		minutes = parsed
	}

	issued, err := h.tokens.Issue(time.Duration(minutes) * time.Minute)
	if err != nil {
		switch {
		case errors.Is(err, token.ErrIssuanceDisabled):
			h.writeError(w, http.StatusForbidden, "Forbidden", "token issuance is disabled in this deployment")
		case errors.Is(err, token.ErrInvalidTTL):
			h.writeError(w, http.StatusBadRequest, "Invalid Request", err.Error())
		default:
			h.writeInternalError(w, err)
		}
		return
	}

	writeJSON(w, http.StatusCreated, tokenResponse{
		Token:     issued.Value,
		CreatedAt: issued.CreatedAt,
		ExpiresAt: issued.ExpiresAt,
		Message:   "store this token securely; it is not retrievable later",
	})
}

func (h *Handler) handleTokenList(w http.ResponseWriter, r *http.Request) {
	_ = r
	live := h.tokens.List()

	items := make([]tokenListItem, 0, len(live))
	for _, tok := range live {
		items = append(items, tokenListItem{
			Token:     maskToken(tok.Value),
			CreatedAt: tok.CreatedAt,
			ExpiresAt: tok.ExpiresAt,
			Active:    tok.Active,
		})
	}

	writeJSON(w, http.StatusOK, tokenListResponse{
		Tokens:    items,
		Count:     len(items),
		Timestamp: h.clock(),
	})
}

func (h *Handler) handleTokenRevoke(w http.ResponseWriter, r *http.Request) {
	value := r.URL.Query().Get("token")
	if value == "" {
		h.writeError(w, http.StatusBadRequest, "Invalid Request", "token query parameter is required")
		return
	}

	if !h.tokens.Revoke(value) {
		h.writeError(w, http.StatusNotFound, "Not Found", "no such token")
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{
		Message:   "token revoked",
		Timestamp: h.clock(),
	})
}

func (h *Handler) writeEntries(w http.ResponseWriter, entries []confstore.Entry) {
	writeJSON(w, http.StatusOK, entriesResponse{
		Entries:   entries,
		Count:     len(entries),
		Timestamp: h.clock(),
	})
}

func maskToken(value string) string {
	if len(value) <= maskedPrefixLen {
		return "******"
	}
	return value[:maskedPrefixLen] + "..."
}

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

type entriesResponse struct {
	Entries   []confstore.Entry `json:"entries"`
	Count     int               `json:"count"`
	Timestamp time.Time         `json:"timestamp"`
}

type entryResponse struct {
	confstore.Entry
	Timestamp time.Time `json:"timestamp"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
	Message   string    `json:"message"`
}

type tokenListItem struct {
	Token     string    `json:"token"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
	Active    bool      `json:"active"`
}

type tokenListResponse struct {
	Tokens    []tokenListItem `json:"tokens"`
	Count     int             `json:"count"`
	Timestamp time.Time       `json:"timestamp"`
}

type messageResponse struct {
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// errorResponse mirrors the pipeline's rejection envelope so clients see one
// error shape regardless of which layer refused them.
type errorResponse struct {
	Error      string    `json:"error"`
	Message    string    `json:"message"`
	StatusCode int       `json:"statusCode"`
	Timestamp  time.Time `json:"timestamp"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if status != 0 {
		w.WriteHeader(status)
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, errLabel, message string) {
	writeJSON(w, status, errorResponse{
		Error:      errLabel,
		Message:    message,
		StatusCode: status,
		Timestamp:  h.clock(),
	})
}

func (h *Handler) writeInternalError(w http.ResponseWriter, err error) {
	h.writeError(w, http.StatusInternalServerError, "Internal Server Error", err.Error())
}
