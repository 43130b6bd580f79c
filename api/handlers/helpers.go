package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/linesmerrill/dispute-resolution-api/api"
	"github.com/linesmerrill/dispute-resolution-api/config"
	"github.com/linesmerrill/dispute-resolution-api/models"
	"github.com/linesmerrill/dispute-resolution-api/services"
)

func getPage(Page int, r *http.Request) int {
	if r.URL.Query().Get("page") == "" {
		zap.S().Warnf("page not set, using default of %v", Page)
	} else {
		var err error
		Page, err = strconv.Atoi(r.URL.Query().Get("page"))
		if err != nil {
			zap.S().Errorf(fmt.Sprintf("error parsing page number: %v", err))
		}
		if Page < 1 {
			zap.S().Warnf(fmt.Sprintf("cannot process page number less than 1. Got: %v", Page))
			return 1
		}
	}
	return Page
}

func getLimit(Limit int, r *http.Request) int {
	parsed, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || parsed <= 0 {
		return Limit
	}
	return parsed
}

// serviceError maps a service error kind onto the matching HTTP status
// and writes the standard error body
func serviceError(message string, w http.ResponseWriter, err error) {
	config.ErrorStatus(message, services.StatusForError(err), w, err)
}

// actingUser pulls the authenticated user from the request, writing a 401
// if the middleware did not run
func actingUser(w http.ResponseWriter, r *http.Request) (models.UserContext, bool) {
	actor, ok := api.ActingUser(r)
	if !ok {
		config.ErrorStatus("missing authenticated user", http.StatusUnauthorized, w, fmt.Errorf("no user in request context"))
		return models.UserContext{}, false
	}
	return actor, true
}
