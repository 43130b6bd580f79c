package handlers

import (
	"encoding/json"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"

	"github.com/linesmerrill/dispute-resolution-api/api"
	"github.com/linesmerrill/dispute-resolution-api/config"
	"github.com/linesmerrill/dispute-resolution-api/databases"
	"github.com/linesmerrill/dispute-resolution-api/models"
)

// User exported for testing purposes
type User struct {
	DB databases.UserDatabase
}

type createUserRequest struct {
	Email      string `json:"email"`
	Name       string `json:"name"`
	Password   string `json:"password"`
	Role       string `json:"role"`
	PanelistID string `json:"panelistID"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
	User  struct {
		ID   string `json:"id"`
		Name string `json:"name"`
		Role string `json:"role"`
	} `json:"user"`
}

var validRoles = map[string]bool{
	models.RoleAdmin:    true,
	models.RoleClient:   true,
	models.RolePanelist: true,
}

// UserCreateHandler registers a new user with a bcrypt-hashed password
func (u User) UserCreateHandler(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || req.Password == "" {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(models.ErrorResponse{Success: false, Error: "email and password required"})
		return
	}
	if !validRoles[req.Role] {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(models.ErrorResponse{Success: false, Error: "invalid role"})
		return
	}
	if req.Role == models.RolePanelist && req.PanelistID == "" {
		req.PanelistID = primitive.NewObjectID().Hex()
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	existing, err := u.DB.Find(ctx, bson.M{"user.email": req.Email})
	if err == nil && len(existing) > 0 {
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(models.ErrorResponse{Success: false, Error: "email already registered"})
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		config.ErrorStatus("failed to hash password", http.StatusInternalServerError, w, err)
		return
	}

	now := time.Now()
	user := models.User{
		ID: primitive.NewObjectID().Hex(),
		Details: models.UserDetails{
			Email:      req.Email,
			Name:       req.Name,
			Password:   string(hashed),
			Role:       req.Role,
			PanelistID: req.PanelistID,
			CreatedAt:  now,
			UpdatedAt:  now,
		},
	}

	if _, err := u.DB.InsertOne(ctx, user); err != nil {
		config.ErrorStatus("failed to create user", http.StatusInternalServerError, w, err)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"_id":  user.ID,
		"role": user.Details.Role,
	})
}

// LoginHandler verifies credentials and returns a signed JWT for clients
// that want a stateless token instead of a cached bearer token
func (u User) LoginHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(models.ErrorResponse{Success: false, Error: "invalid request"})
		return
	}

	email := strings.TrimSpace(strings.ToLower(req.Email))
	if email == "" || req.Password == "" {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(models.ErrorResponse{Success: false, Error: "email and password required"})
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	users, err := u.DB.Find(ctx, bson.M{"user.email": email})
	if err != nil || len(users) == 0 {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(models.ErrorResponse{Success: false, Error: "Invalid credentials", Code: "INVALID_CREDENTIALS"})
		return
	}
	user := users[0]

	if err := bcrypt.CompareHashAndPassword([]byte(user.Details.Password), []byte(req.Password)); err != nil {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(models.ErrorResponse{Success: false, Error: "Invalid credentials", Code: "INVALID_CREDENTIALS"})
		return
	}

	jwtSecret := []byte(os.Getenv("JWT_SECRET"))
	if len(jwtSecret) == 0 {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(models.ErrorResponse{Success: false, Error: "server misconfigured"})
		return
	}

	claims := jwt.MapClaims{
		"sub":  user.ID,
		"name": user.Details.Name,
		"role": user.Details.Role,
		"typ":  "access",
		"iat":  time.Now().Unix(),
		"exp":  time.Now().Add(24 * time.Hour).Unix(),
	}
	if user.Details.PanelistID != "" {
		claims["panelistID"] = user.Details.PanelistID
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(jwtSecret)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(models.ErrorResponse{Success: false, Error: "token generation failed"})
		return
	}

	var resp loginResponse
	resp.Token = signed
	resp.User.ID = user.ID
	resp.User.Name = user.Details.Name
	resp.User.Role = user.Details.Role

	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}

// UserHandler returns a user by ID with the password hash stripped
func (u User) UserHandler(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["user_id"]

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	dbResp, err := u.DB.FindOne(ctx, bson.M{"_id": userID})
	if err != nil {
		config.ErrorStatus("failed to get user by ID", http.StatusNotFound, w, err)
		return
	}

	dbResp.Details.Password = ""
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(dbResp)
}
