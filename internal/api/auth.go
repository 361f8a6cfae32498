package api

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"

	validation "github.com/go-ozzo/ozzo-validation"

	"github.com/nerrad567/shopgate/internal/audit"
	"github.com/nerrad567/shopgate/internal/auth"
	"github.com/nerrad567/shopgate/internal/throttle"
)

// maxPasswordLength bounds the work a single registration can ask the hasher to do.
const maxPasswordLength = 128

// credentialsRequest is the request body for POST /auth/register and POST /auth/login.
type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// loginResponse is the response body for POST /auth/login.
type loginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// registerResponse is the response body for POST /auth/register.
type registerResponse struct {
	Message  string `json:"message"`
	Username string `json:"username"`
}

func (req credentialsRequest) validateRegistration() error {
	return validation.ValidateStruct(&req,
		validation.Field(&req.Username,
			validation.Required,
			validation.Length(auth.MinUsernameLength, auth.MaxUsernameLength),
			validation.Match(auth.UsernamePattern).Error("may only contain letters, digits, '.', '_' and '-'"),
		),
		validation.Field(&req.Password,
			validation.Required,
			validation.Length(auth.MinPasswordLength, maxPasswordLength),
		),
	)
}

func (req credentialsRequest) validateLogin() error {
	return validation.ValidateStruct(&req,
		validation.Field(&req.Username, validation.Required),
		validation.Field(&req.Password, validation.Required),
	)
}

// handleRegister creates an account with the default role set.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if err := req.validateRegistration(); err != nil {
		writeValidationError(w, err)
		return
	}

	err := s.auth.Register(r.Context(), req.Username, req.Password)
	switch {
	case err == nil:
	case errors.Is(err, auth.ErrDuplicateUser):
		writeConflict(w, "username already exists")
		return
	case errors.Is(err, auth.ErrInvalidUsername), errors.Is(err, auth.ErrWeakPassword):
		writeValidationError(w, err)
		return
	default:
		s.logger.Error("registration failed", "error", err, "request_id", requestID(r.Context()))
		writeInternalError(w, "registration failed")
		return
	}

	s.emit(audit.ActionUserRegistered, req.Username, nil)
	writeJSON(w, http.StatusOK, registerResponse{
		Message:  "user registered",
		Username: req.Username,
	})
}

// handleLogin exchanges a username and password for a bearer token.
// Unknown users and wrong passwords produce the same response.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if err := req.validateLogin(); err != nil {
		writeValidationError(w, err)
		return
	}

	ctx := r.Context()
	ip := clientIP(r)

	if s.throttle != nil {
		err := s.throttle.Check(ctx, req.Username, ip)
		switch {
		case err == nil:
		case errors.Is(err, throttle.ErrThrottled):
			s.emit(audit.ActionLoginThrottled, req.Username, map[string]any{"ip": ip})
			if wait := s.throttle.RetryAfter(ctx, req.Username, ip); wait > 0 {
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			}
			writeTooManyRequests(w, "too many failed login attempts")
			return
		default:
			// Limiter outages must not lock everyone out.
			s.logger.Warn("login throttle unavailable", "error", err)
		}
	}

	// No stored password can be this long, so skip the hasher.
	if len(req.Password) > maxPasswordLength {
		s.rejectLogin(w, r, req.Username, "bad_credentials")
		return
	}

	token, err := s.auth.Login(ctx, req.Username, req.Password)
	if err != nil {
		if !errors.Is(err, auth.ErrUserNotFound) && !errors.Is(err, auth.ErrBadCredentials) {
			s.logger.Error("login failed", "error", err, "request_id", requestID(ctx))
			writeInternalError(w, "login failed")
			return
		}

		reason := "bad_credentials"
		if errors.Is(err, auth.ErrUserNotFound) {
			reason = "user_not_found"
		}
		s.rejectLogin(w, r, req.Username, reason)
		return
	}

	if s.throttle != nil {
		if terr := s.throttle.Reset(ctx, req.Username); terr != nil {
			s.logger.Warn("resetting login throttle", "error", terr)
		}
	}
	s.emit(audit.ActionLoginSucceeded, req.Username, map[string]any{"ip": ip})

	writeJSON(w, http.StatusOK, loginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int(s.auth.TokenLifetime().Seconds()),
	})
}

// rejectLogin counts the failure against the throttle and writes the one
// 401 body every failed login gets.
func (s *Server) rejectLogin(w http.ResponseWriter, r *http.Request, username, reason string) {
	ctx := r.Context()
	ip := clientIP(r)
	if s.throttle != nil {
		if err := s.throttle.RecordFailure(ctx, username, ip); err != nil {
			s.logger.Warn("recording failed login", "error", err)
		}
	}
	s.emit(audit.ActionLoginFailed, username, map[string]any{"ip": ip, "reason": reason})
	writeUnauthorized(w, "invalid credentials")
}

// handleMe returns the identity carried by the caller's token.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "authentication required")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"username": principal.Username,
		"roles":    principal.Roles,
	})
}
