// internal/handlers/user.go
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/jason-s-yu/scoreroom/internal/auth"
	"github.com/jason-s-yu/scoreroom/internal/models"
	"github.com/jason-s-yu/scoreroom/internal/store"
)

// guestDisplayName is shown for callers who have not set a name.
const guestDisplayName = "Guest"

// ensureCaller returns the authenticated caller, or creates an ephemeral guest
// account and sets its token cookie when the request has no valid token.
func ensureCaller(srv *RoomServer, w http.ResponseWriter, r *http.Request) (string, error) {
	if caller, err := auth.CallerFromRequest(r); err == nil {
		return caller, nil
	}

	id := uuid.New()
	guest := models.User{
		ID:          id,
		Email:       id.String() + "@guest.invalid",
		DisplayName: guestDisplayName,
		IsEphemeral: true,
	}
	if err := srv.Users.CreateUser(r.Context(), &guest); err != nil {
		return "", fmt.Errorf("failed to create ephemeral user: %w", err)
	}
	token, err := auth.CreateJWT(guest.ID.String())
	if err != nil {
		return "", fmt.Errorf("failed to create ephemeral JWT: %w", err)
	}
	auth.SetTokenCookie(w, token)
	srv.Logger.WithField("caller", guest.ID).Debug("issued guest identity")
	return guest.ID.String(), nil
}

type createUserRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
	AvatarRef   string `json:"avatarRef"`
}

// CreateUserHandler registers an account and returns it without the password.
func CreateUserHandler(srv *RoomServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createUserRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid payload", http.StatusBadRequest)
			return
		}
		req.Email = strings.TrimSpace(strings.ToLower(req.Email))
		if req.Email == "" || req.Password == "" {
			http.Error(w, "email and password are required", http.StatusBadRequest)
			return
		}

		hash, err := auth.HashPassword(req.Password)
		if err != nil {
			srv.Logger.WithError(err).Error("failed to hash password")
			http.Error(w, "error creating user", http.StatusInternalServerError)
			return
		}
		user := models.User{
			Email:       req.Email,
			Password:    hash,
			DisplayName: req.DisplayName,
			AvatarRef:   req.AvatarRef,
		}
		if err := srv.Users.CreateUser(r.Context(), &user); err != nil {
			if errors.Is(err, store.ErrExists) {
				http.Error(w, "email already exists", http.StatusConflict)
				return
			}
			srv.Logger.WithError(err).Error("failed to create user")
			http.Error(w, "error creating user", http.StatusInternalServerError)
			return
		}
		user.Password = ""
		writeJSON(w, http.StatusCreated, user)
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

// LoginHandler checks credentials and returns an identity token, also sent as
// the auth_token cookie.
//
// Request payload:
//
//	{
//	  "email": "someone@example.com",
//	  "password": "password"
//	}
func LoginHandler(srv *RoomServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request payload", http.StatusBadRequest)
			return
		}

		user, err := srv.Users.GetUserByEmail(r.Context(), strings.TrimSpace(strings.ToLower(req.Email)))
		if err != nil {
			if !errors.Is(err, store.ErrNotFound) {
				srv.Logger.WithError(err).Error("user lookup failed")
			}
			http.Error(w, "authentication failed", http.StatusForbidden)
			return
		}
		match, err := auth.ComparePasswordAndHash(req.Password, user.Password)
		if err != nil || !match {
			http.Error(w, "authentication failed", http.StatusForbidden)
			return
		}

		token, err := auth.CreateJWT(user.ID.String())
		if err != nil {
			srv.Logger.WithError(err).Error("failed to create jwt")
			http.Error(w, "authentication failed", http.StatusInternalServerError)
			return
		}
		auth.SetTokenCookie(w, token)
		writeJSON(w, http.StatusOK, loginResponse{Token: token})
	}
}

type profileRequest struct {
	DisplayName string `json:"displayName"`
	AvatarRef   string `json:"avatarRef"`
}

// UpdateProfileHandler sets the caller's display name and avatar. Rooms pick
// the new values up on the caller's next create or join.
func UpdateProfileHandler(srv *RoomServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, err := auth.CallerFromRequest(r)
		if err != nil {
			http.Error(w, "authentication required", http.StatusUnauthorized)
			return
		}
		var req profileRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid payload", http.StatusBadRequest)
			return
		}
		if strings.TrimSpace(req.DisplayName) == "" {
			http.Error(w, "displayName is required", http.StatusBadRequest)
			return
		}
		if err := srv.Users.UpdateProfile(r.Context(), caller, req.DisplayName, req.AvatarRef); err != nil {
			srv.Logger.WithError(err).WithField("caller", caller).Error("profile update failed")
			http.Error(w, "failed to update profile", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
