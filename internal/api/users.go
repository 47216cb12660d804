package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/timemachine-ai/retrospect/internal/auth"
	"github.com/timemachine-ai/retrospect/internal/store"
)

type userResponse struct {
	ID       int64   `json:"id"`
	Username string  `json:"username"`
	Email    *string `json:"email"`
	LoginID  string  `json:"loginId"`
}

func toUserResponse(u store.User) userResponse {
	return userResponse{ID: u.ID, Username: u.Username, Email: u.Email, LoginID: u.LoginID}
}

type createUserRequest struct {
	Username string  `json:"username"`
	Email    *string `json:"email"`
	LoginID  string  `json:"loginId"`
	Password string  `json:"password"`
}

func (s *Server) createUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Username == "" || req.LoginID == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "username, loginId and password are required")
		return
	}

	ctx := r.Context()
	if req.Email != nil && *req.Email != "" {
		if _, err := s.users.GetUserByEmail(ctx, *req.Email); err == nil {
			respondError(w, http.StatusBadRequest, "Email already registered")
			return
		}
	}
	if _, err := s.users.GetUserByLoginID(ctx, req.LoginID); err == nil {
		respondError(w, http.StatusBadRequest, "Login ID already registered")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := s.users.CreateUser(ctx, req.Username, req.Email, req.LoginID, hash)
	if err != nil {
		s.logger.Error("create user failed", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to create user")
		return
	}
	respondJSON(w, http.StatusCreated, toUserResponse(user))
}

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	skip := queryInt(r, "skip", 0)
	limit := queryInt(r, "limit", 10)

	users, err := s.users.ListUsers(r.Context(), skip, limit)
	if err != nil {
		s.logger.Error("list users failed", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to list users")
		return
	}
	out := make([]userResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toUserResponse(u))
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) getUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	user, err := s.users.GetUser(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		s.logger.Error("get user failed", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to fetch user")
		return
	}
	respondJSON(w, http.StatusOK, toUserResponse(user))
}

type updateUserRequest struct {
	Username *string `json:"username"`
	Email    *string `json:"email"`
	Password *string `json:"password"`
}

func (s *Server) updateUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	callerID, ok := currentUserID(r)
	if !ok || callerID != id {
		respondError(w, http.StatusForbidden, "Forbidden")
		return
	}

	var req updateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	var passwordHash *string
	if req.Password != nil {
		hash, err := auth.HashPassword(*req.Password)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		passwordHash = &hash
	}

	user, err := s.users.UpdateUser(r.Context(), id, req.Username, req.Email, passwordHash)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		s.logger.Error("update user failed", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to update user")
		return
	}
	respondJSON(w, http.StatusOK, toUserResponse(user))
}

func (s *Server) deleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	callerID, ok := currentUserID(r)
	if !ok || callerID != id {
		respondError(w, http.StatusForbidden, "Forbidden")
		return
	}

	err = s.users.DeleteUser(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		s.logger.Error("delete user failed", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to delete user")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type loginRequest struct {
	LoginID  string `json:"loginId"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	user, err := s.users.GetUserByLoginID(r.Context(), req.LoginID)
	if err != nil || !auth.VerifyPassword(req.Password, user.PasswordHash) {
		respondError(w, http.StatusBadRequest, "Invalid login credentials")
		return
	}

	token, err := s.tokens.Mint(user.ID)
	if err != nil {
		s.logger.Error("token mint failed", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}
	respondJSON(w, http.StatusOK, loginResponse{AccessToken: token, TokenType: "bearer"})
}

func queryInt(r *http.Request, key string, fallback int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return fallback
}
