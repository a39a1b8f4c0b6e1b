package main

import (
	"encoding/json"
	"net/http"
	"time"
)

const msgNoLocation = "You must provide either a city or coordinates (lat, lon)"

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

type userResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"createdAt"`
}

func (a *App) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var in registerRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}
	u, err := a.Auth.Register(r.Context(), in.Email, in.Password, in.Username)
	if err != nil {
		writeServiceError(r.Context(), a.Log, w, err)
		return
	}
	writeJSON(w, http.StatusCreated, userResponse{
		ID:        u.ID,
		Email:     u.Email,
		Username:  u.Username,
		CreatedAt: u.CreatedAt,
	})
}

func (a *App) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var in loginRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		// every login failure is a 401
		writeServiceError(r.Context(), a.Log, w, ErrInvalidCredentials)
		return
	}
	tok, err := a.Auth.Login(r.Context(), in.Email, in.Password)
	if err != nil {
		writeServiceError(r.Context(), a.Log, w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": tok})
}

func parseLocation(r *http.Request) (LocationQuery, error) {
	q := r.URL.Query()
	return locationParams{City: q.Get("city"), Lat: q.Get("lat"), Lon: q.Get("lon")}.Query()
}

func (a *App) HandleRestaurants(w http.ResponseWriter, r *http.Request) {
	loc, err := parseLocation(r)
	if err != nil {
		writeServiceError(r.Context(), a.Log, w, err)
		return
	}
	var userID *string
	if c, ok := ClaimsFromContext(r.Context()); ok {
		userID = &c.Subject
	}
	items, err := a.Restaurants.Find(r.Context(), loc, userID)
	if err != nil {
		writeServiceError(r.Context(), a.Log, w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"restaurants": items})
}

func (a *App) HandleTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := a.Transactions.List(r.Context())
	if err != nil {
		writeServiceError(r.Context(), a.Log, w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"transactions": txs})
}

func (a *App) HandleLogout(w http.ResponseWriter, r *http.Request) {
	tok, _ := TokenFromContext(r.Context())
	if tok == "" {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "No token provided")
		return
	}
	if err := a.Auth.Logout(r.Context(), tok); err != nil {
		writeServiceError(r.Context(), a.Log, w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}
