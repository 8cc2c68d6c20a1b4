package server

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/jonathan/application-tracker/internal/logging"
	"github.com/jonathan/application-tracker/internal/server/middleware"
	"github.com/jonathan/application-tracker/internal/types"
)

// setSessionCookie stores a fresh token for user.
func (s *Server) setSessionCookie(w http.ResponseWriter, user *types.User) error {
	token, expiresAt, err := s.tokens.GenerateToken(user.ID)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		MaxAge:   int(s.tokens.Lifetime() / time.Second),
		HttpOnly: true,
		Secure:   s.cfg.CookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
	return nil
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cfg.CookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
}

// handleRegister creates an account and starts a session.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req types.RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	user, err := s.accounts.Register(r.Context(), &req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.setSessionCookie(w, user); err != nil {
		s.writeError(w, r, err)
		return
	}

	s.logger.Info("account registered", zap.String("user_id", user.ID.String()), zap.String("email", logging.MaskEmail(user.Email)))
	s.ok(w, http.StatusCreated, user)
}

// handleLogin checks credentials and starts a session.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req types.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	user, err := s.accounts.Login(r.Context(), &req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.setSessionCookie(w, user); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.ok(w, http.StatusOK, user)
}

// handleLogout expires the session cookie. It needs no valid session.
func (s *Server) handleLogout(w http.ResponseWriter, _ *http.Request) {
	s.clearSessionCookie(w)
	s.jsonResponse(w, http.StatusOK, Envelope{Success: true, Message: "Logged out successfully"})
}

// handleMe returns the signed-in identity.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		s.writeError(w, r, errNoSession)
		return
	}
	s.ok(w, http.StatusOK, user)
}

// handleUpdatePassword changes the signed-in account's password.
func (s *Server) handleUpdatePassword(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		s.writeError(w, r, errNoSession)
		return
	}

	var req types.UpdatePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.accounts.UpdatePassword(r.Context(), user.ID, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, Envelope{Success: true, Message: "Password updated successfully"})
}
