package api

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	"github.com/npezzotti/harmony-hub/internal/auth"
	"github.com/npezzotti/harmony-hub/internal/database"
	"github.com/npezzotti/harmony-hub/internal/server"
	"github.com/npezzotti/harmony-hub/internal/types"
	"golang.org/x/crypto/bcrypt"
)

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	User  types.User `json:"user"`
	Token string     `json:"token"`
}

func hashPassword(passwd string) (string, error) {
	passwdHash, err := bcrypt.GenerateFromPassword([]byte(passwd), bcrypt.DefaultCost)
	return string(passwdHash), err
}

func verifyPassword(passwdHash, passwd string) bool {
	return bcrypt.CompareHashAndPassword([]byte(passwdHash), []byte(passwd)) == nil
}

func newDiscriminator() string {
	return fmt.Sprintf("%04d", rand.IntN(10000))
}

func createJwtCookie(tokenString string, exp time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     auth.TokenCookieKey,
		Value:    tokenString,
		Path:     "/",
		Expires:  time.Now().Add(exp),
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	}
}

func (s *HarmonyApp) createAccount(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := s.readJson(w, r, &req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if req.Username == "" || req.Email == "" || req.Password == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	pwdHash, err := hashPassword(req.Password)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	newUser, err := s.db.CreateAccount(r.Context(), database.CreateAccountParams{
		Username:      req.Username,
		Discriminator: newDiscriminator(),
		EmailAddress:  req.Email,
		PasswordHash:  pwdHash,
	})
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, database.ErrDuplicate) {
			errResp = NewConflictError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusCreated, toUser(newUser))
}

func (s *HarmonyApp) login(w http.ResponseWriter, r *http.Request) {
	var lr LoginRequest
	if err := s.readJson(w, r, &lr); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	dbUser, err := s.db.GetAccountByEmail(r.Context(), lr.Email)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, database.ErrNotFound) {
			errResp = NewUnauthorizedError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if !verifyPassword(dbUser.PasswordHash, lr.Password) {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	token, err := s.tokens.Issue(dbUser.Id)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	http.SetCookie(w, createJwtCookie(token, s.tokens.Expiry()))
	s.writeJson(w, http.StatusOK, LoginResponse{User: toUser(dbUser), Token: token})
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
}

type UpdateProfileRequest struct {
	Username string  `json:"username"`
	Avatar   *string `json:"avatar,omitempty"`
}

// setStatus routes an explicit status change through the presence tracker
// so it is persisted and broadcast like one sent over the websocket.
func (s *HarmonyApp) setStatus(r *http.Request, userId int, status string) error {
	if s.statuses == nil {
		return s.db.SetUserPresence(r.Context(), userId, status)
	}
	return s.statuses.UpdateStatus(r.Context(), userId, status)
}

// logout marks the user offline and expires the token cookie. A failed
// status change is logged but does not keep the user signed in.
func (s *HarmonyApp) logout(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())

	if err := s.setStatus(r, userId, string(types.StatusOffline)); err != nil {
		s.log.Error().Err(err).Int("user_id", userId).Msg("failed to set offline on logout")
	}

	// overwrite with an already expired cookie
	http.SetCookie(w, createJwtCookie("", -time.Hour))
	w.WriteHeader(http.StatusNoContent)
}

func (s *HarmonyApp) updateStatus(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())

	var req UpdateStatusRequest
	if err := s.readJson(w, r, &req); err != nil {
		s.writeApiError(w, NewBadRequestError())
		return
	}

	st, ok := types.ParseStatus(req.Status)
	if !ok {
		s.writeApiError(w, NewBadRequestError())
		return
	}

	err := s.setStatus(r, userId, string(st))
	var invalid *server.InvalidStatusError
	switch {
	case errors.As(err, &invalid):
		s.writeApiError(w, NewBadRequestError())
		return
	case errors.Is(err, server.ErrServerStopped):
		s.writeApiError(w, newApiError(http.StatusServiceUnavailable))
		return
	case err != nil:
		s.writeError(w, err)
		return
	}

	dbUser, err := s.db.GetAccountById(r.Context(), userId)
	if err != nil {
		s.writeError(w, err)
		return
	}

	u := toUser(dbUser)
	u.Status = st
	s.writeJson(w, http.StatusOK, u)
}

func (s *HarmonyApp) updateProfile(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())

	var req UpdateProfileRequest
	if err := s.readJson(w, r, &req); err != nil {
		s.writeApiError(w, NewBadRequestError())
		return
	}

	dbUser, err := s.db.UpdateAccount(r.Context(), database.UpdateAccountParams{
		Id:       userId,
		Username: strings.TrimSpace(req.Username),
		Avatar:   req.Avatar,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJson(w, http.StatusOK, s.liveStatus(toUser(dbUser), userId))
}

// session returns the authenticated user with their live status.
func (s *HarmonyApp) session(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())

	dbUser, err := s.db.GetAccountById(r.Context(), userId)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJson(w, http.StatusOK, s.liveStatus(toUser(dbUser), userId))
}
