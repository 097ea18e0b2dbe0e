package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/DataClean/internal/auth"
	"github.com/JonMunkholm/DataClean/internal/core"
)

// maxJSONBody bounds small JSON request bodies.
const maxJSONBody = 1 << 20

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{
		"message": "Data cleaning backend is working!",
	})
}

// handleRegister creates an account from a JSON body.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(&req); err != nil {
		fail(w, r, fmt.Errorf("%w: decode register body: %v", errBadRequest, err))
		return
	}

	u, err := s.service.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, userResponse{ID: u.ID, Email: u.Email})
}

// handleLogin exchanges form credentials for a bearer token. "username" is
// accepted in place of "email" for OAuth2 password-flow clients.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := r.ParseForm(); err != nil {
		fail(w, r, fmt.Errorf("%w: parse login form: %v", errBadRequest, err))
		return
	}
	email := r.PostFormValue("email")
	if email == "" {
		email = r.PostFormValue("username")
	}
	password := r.PostFormValue("password")
	if email == "" || password == "" {
		fail(w, r, fmt.Errorf("%w: email and password are required", errBadRequest))
		return
	}

	token, err := s.service.Login(r.Context(), email, password)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, tokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int(s.cfg.Security.TokenTTL.Seconds()),
	})
}

// currentUser returns the user BearerAuth stored on the request.
func currentUser(r *http.Request) (core.User, error) {
	u, ok := core.GetUserFromContext(r.Context())
	if !ok {
		return core.User{}, auth.ErrInvalidToken
	}
	return u, nil
}

// pathID parses a positive integer URL parameter.
func pathID(r *http.Request, name string) (int64, error) {
	value := chi.URLParam(r, name)
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %s must be a positive integer, got %q", errBadRequest, name, value)
	}
	return id, nil
}
