package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dverbeek/lecturecast/internal/account"
	"github.com/dverbeek/lecturecast/internal/auth"
	"github.com/dverbeek/lecturecast/internal/model"
)

const dbUnavailableMsg = "Database not connected. Check LECTURECAST_DATABASE_URL and network access."

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.accounts == nil {
		respondError(w, http.StatusServiceUnavailable, dbUnavailableMsg)
		return
	}
	var req struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = model.NormalizeEmail(req.Email)
	if req.Name == "" || req.Email == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "name, email and password are required")
		return
	}
	if len(req.Password) < 6 {
		respondError(w, http.StatusBadRequest, "password must be at least 6 characters")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Server error during signup")
		return
	}
	now := time.Now().UTC()
	acc := &model.Account{
		ID:           uuid.NewString(),
		Email:        req.Email,
		PasswordHash: hash,
		Name:         req.Name,
		Preferences:  model.DefaultPreferences(),
		CreatedAt:    now,
		LastLogin:    now,
	}
	if err := s.accounts.Create(r.Context(), acc); err != nil {
		if errors.Is(err, account.ErrEmailTaken) {
			respondError(w, http.StatusBadRequest, "User already exists with this email")
			return
		}
		s.log.Error("create account failed", "error", err)
		respondError(w, http.StatusServiceUnavailable, dbUnavailableMsg)
		return
	}

	token, err := auth.GenerateToken(acc.ID, acc.Email, s.cfg.JWTSecret, s.cfg.TokenTTL)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Server error during signup")
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{
		"token": token,
		"user":  userPayload(acc, false),
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.accounts == nil {
		respondError(w, http.StatusServiceUnavailable, dbUnavailableMsg)
		return
	}
	var req struct {
		Email      string `json:"email"`
		Password   string `json:"password"`
		RememberMe bool   `json:"rememberMe"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	acc, err := s.accounts.GetByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			respondError(w, http.StatusUnauthorized, "Invalid email or password")
			return
		}
		s.log.Error("lookup account failed", "error", err)
		respondError(w, http.StatusServiceUnavailable, dbUnavailableMsg)
		return
	}
	if !auth.CheckPassword(acc.PasswordHash, req.Password) {
		respondError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	ttl := s.cfg.TokenTTL
	if req.RememberMe {
		ttl = s.cfg.RememberTokenTTL
	}
	token, err := auth.GenerateToken(acc.ID, acc.Email, s.cfg.JWTSecret, ttl)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Server error during login")
		return
	}

	acc.LastLogin = time.Now().UTC()
	if err := s.accounts.Save(r.Context(), acc); err != nil {
		s.log.Warn("update last login failed", "userId", acc.ID, "error", err)
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"token": token,
		"user":  userPayload(acc, false),
	})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	acc, ok := s.requireAccount(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"user": userPayload(acc, true)})
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	acc, ok := s.requireAccount(w, r)
	if !ok {
		return
	}
	var req struct {
		Name        *string `json:"name"`
		Preferences *struct {
			ModelSize    *string `json:"modelSize"`
			GeminiAPIKey *string `json:"geminiApiKey"`
		} `json:"preferences"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name != nil && strings.TrimSpace(*req.Name) != "" {
		acc.Name = strings.TrimSpace(*req.Name)
	}
	if req.Preferences != nil {
		if req.Preferences.ModelSize != nil {
			size, err := model.ParseModelSize(*req.Preferences.ModelSize)
			if err != nil {
				respondError(w, http.StatusBadRequest, err.Error())
				return
			}
			acc.Preferences.ModelSize = size
		}
		if req.Preferences.GeminiAPIKey != nil {
			acc.Preferences.GeminiAPIKey = req.Preferences.GeminiAPIKey
		}
	}
	if err := s.accounts.Save(r.Context(), acc); err != nil {
		s.log.Error("save profile failed", "userId", acc.ID, "error", err)
		respondError(w, http.StatusServiceUnavailable, dbUnavailableMsg)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"user": userPayload(acc, false)})
}

// requireAccount resolves the bearer token to an account, writing the error
// response itself when authentication fails.
func (s *Server) requireAccount(w http.ResponseWriter, r *http.Request) (*model.Account, bool) {
	token := bearerToken(r)
	if token == "" {
		respondError(w, http.StatusUnauthorized, "Access token required")
		return nil, false
	}
	if s.accounts == nil {
		respondError(w, http.StatusServiceUnavailable, dbUnavailableMsg)
		return nil, false
	}
	claims, err := auth.ParseToken(token, s.cfg.JWTSecret)
	if err != nil {
		respondError(w, http.StatusForbidden, "Invalid or expired token")
		return nil, false
	}
	acc, err := s.accounts.GetByID(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			respondError(w, http.StatusUnauthorized, "Invalid token")
			return nil, false
		}
		s.log.Error("resolve account failed", "error", err)
		respondError(w, http.StatusServiceUnavailable, dbUnavailableMsg)
		return nil, false
	}
	return acc, true
}

// optionalAccount resolves the bearer token when present and valid. Guests and
// failed resolutions both proceed as unauthenticated.
func (s *Server) optionalAccount(r *http.Request) *model.Account {
	token := bearerToken(r)
	if token == "" || s.accounts == nil {
		return nil
	}
	claims, err := auth.ParseToken(token, s.cfg.JWTSecret)
	if err != nil {
		return nil
	}
	acc, err := s.accounts.GetByID(r.Context(), claims.UserID)
	if err != nil {
		return nil
	}
	return acc
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

func userPayload(acc *model.Account, includeHistory bool) map[string]any {
	payload := map[string]any{
		"id":          acc.ID,
		"name":        acc.Name,
		"email":       acc.Email,
		"initials":    acc.Initials(),
		"preferences": acc.Preferences,
	}
	if includeHistory {
		history := acc.UploadHistory
		if history == nil {
			history = []model.UploadHistoryEntry{}
		}
		payload["uploadHistory"] = history
	}
	return payload
}
