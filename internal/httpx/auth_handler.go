package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/lokmanguedri/motivex/internal/users"
)

type UserService interface {
	Register(ctx context.Context, in users.RegisterInput) (users.User, error)
	Login(ctx context.Context, in users.LoginInput) (users.User, error)
	Me(ctx context.Context, id string) (users.User, error)
}

type TokenIssuer interface {
	Issue(userID, role string) (string, time.Time, error)
}

type AuthHandler struct {
	Users  UserService
	Tokens TokenIssuer
	Log    zerolog.Logger
}

type tokenResponse struct {
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expires_at"`
	User      users.User `json:"user"`
}

func (h *AuthHandler) Register(r chi.Router) {
	r.Post("/auth/register", h.register)
	r.Post("/auth/login", h.login)
}

func (h *AuthHandler) RegisterUser(r chi.Router) {
	r.Get("/account/me", h.me)
}

func (h *AuthHandler) register(w http.ResponseWriter, r *http.Request) {
	var in users.RegisterInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	u, err := h.Users.Register(r.Context(), in)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	h.Log.Info().Str("user_id", u.ID).Msg("user registered")
	h.writeToken(w, r, http.StatusCreated, u)
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	var in users.LoginInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	u, err := h.Users.Login(r.Context(), in)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	h.writeToken(w, r, http.StatusOK, u)
}

func (h *AuthHandler) writeToken(w http.ResponseWriter, r *http.Request, code int, u users.User) {
	tok, exp, err := h.Tokens.Issue(u.ID, string(u.Role))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, code, tokenResponse{Token: tok, ExpiresAt: exp, User: u})
}

func (h *AuthHandler) me(w http.ResponseWriter, r *http.Request) {
	id, _ := currentUser(r)
	u, err := h.Users.Me(r.Context(), id.UserID)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}
