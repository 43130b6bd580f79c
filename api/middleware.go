package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shaj13/go-guardian/auth"
	"github.com/shaj13/go-guardian/auth/strategies/basic"
	"github.com/shaj13/go-guardian/auth/strategies/bearer"
	"github.com/shaj13/go-guardian/store"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/linesmerrill/dispute-resolution-api/databases"
	"github.com/linesmerrill/dispute-resolution-api/models"
)

// MiddlewareDB is a struct that holds the database
type MiddlewareDB struct {
	DB databases.UserDatabase
}

type contextKey string

const actingUserKey contextKey = "actingUser"

var authenticator auth.Authenticator
var cache store.Cache

// Middleware adds some basic header authentication around accessing the
// routes and stashes the acting user's identity in the request context
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		user, err := authenticator.Authenticate(r)
		if err != nil {
			zap.S().Errorw("unauthorized",
				"url", r.URL)
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error": "unauthorized"}`))
			return
		}
		zap.S().Debugf("User %s Authenticated\n", user.UserName())
		ctx := context.WithValue(r.Context(), actingUserKey, userContextFromInfo(user))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ActingUser returns the authenticated user context stashed by Middleware
func ActingUser(r *http.Request) (models.UserContext, bool) {
	uc, ok := r.Context().Value(actingUserKey).(models.UserContext)
	return uc, ok
}

func userContextFromInfo(info auth.Info) models.UserContext {
	uc := models.UserContext{ID: info.ID(), Name: info.UserName()}
	ext := info.Extensions()
	if v := ext["role"]; len(v) > 0 {
		uc.Role = v[0]
	}
	if v := ext["panelistID"]; len(v) > 0 {
		uc.PanelistID = v[0]
	}
	if v := ext["name"]; len(v) > 0 {
		uc.Name = v[0]
	}
	return uc
}

func userExtensions(details models.UserDetails) map[string][]string {
	ext := map[string][]string{
		"role": {details.Role},
		"name": {details.Name},
	}
	if details.PanelistID != "" {
		ext["panelistID"] = []string{details.PanelistID}
	}
	return ext
}

// CreateToken returns a bearer token for the basic-authed user
func (m MiddlewareDB) CreateToken(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	email, _, ok := r.BasicAuth()
	if !ok {
		http.Error(w, "basic auth failed", http.StatusUnauthorized)
		return
	}

	// Fetch user details from the database
	dbEmailResp, err := m.DB.Find(context.Background(), bson.M{"user.email": email})
	if err != nil || len(dbEmailResp) == 0 {
		http.Error(w, "failed to get user by email", http.StatusUnauthorized)
		return
	}

	user := dbEmailResp[0]
	token := uuid.New().String()
	authUser := auth.NewDefaultUser(email, user.ID, nil, userExtensions(user.Details))
	tokenStrategy := authenticator.Strategy(bearer.CachedStrategyKey)
	auth.Append(tokenStrategy, token, authUser, r)

	response := map[string]string{
		"token": token,
		"_id":   user.ID,
		"role":  user.Details.Role,
	}

	responseBody, err := json.Marshal(response)
	if err != nil {
		http.Error(w, "failed to marshal response", http.StatusInternalServerError)
		return
	}

	w.Write(responseBody)
}

// SetupGoGuardian sets up the go-guardian middleware
func (m MiddlewareDB) SetupGoGuardian() {
	authenticator = auth.New()
	cache = store.NewFIFO(context.Background(), time.Hour*24)
	basicStrategy := basic.New(m.ValidateUser, cache)
	tokenStrategy := bearer.New(bearer.NoOpAuthenticate, cache)

	authenticator.EnableStrategy(basic.StrategyKey, basicStrategy)
	authenticator.EnableStrategy(bearer.CachedStrategyKey, tokenStrategy)
}

// ValidateUser validates a user's email and password against the user collection
func (m MiddlewareDB) ValidateUser(ctx context.Context, r *http.Request, email, password string) (auth.Info, error) {
	dbEmailResp, err := m.DB.Find(context.Background(), bson.M{"user.email": email})
	if err != nil {
		return nil, fmt.Errorf("failed to get user by email")
	}
	if len(dbEmailResp) == 0 {
		return nil, fmt.Errorf("no matching email found")
	}

	user := dbEmailResp[0]
	err = bcrypt.CompareHashAndPassword([]byte(user.Details.Password), []byte(password))
	if err != nil {
		return nil, fmt.Errorf("failed to compare password")
	}

	return auth.NewDefaultUser(email, user.ID, nil, userExtensions(user.Details)), nil
}

// RevokeToken revokes a token
func RevokeToken(w http.ResponseWriter, r *http.Request) {
	reqToken := r.Header.Get("Authorization")
	splitToken := strings.Split(reqToken, "Bearer ")
	if len(splitToken) < 2 {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": "missing bearer token"}`))
		return
	}
	reqToken = splitToken[1]

	tokenStrategy := authenticator.Strategy(bearer.CachedStrategyKey)
	auth.Revoke(tokenStrategy, reqToken, r)
	body := fmt.Sprintf(`{"revoked token": "%s"}`, reqToken)
	w.Write([]byte(body))
}
