package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/linesmerrill/dispute-resolution-api/api"
	"github.com/linesmerrill/dispute-resolution-api/config"
	"github.com/linesmerrill/dispute-resolution-api/models"
	"github.com/linesmerrill/dispute-resolution-api/services"
)

// Message exported for testing purposes
type Message struct {
	Service *services.MessageService
}

// CreateMessageHandler posts a message to a case thread
func (m Message) CreateMessageHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := actingUser(w, r)
	if !ok {
		return
	}

	var req models.CreateMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	created, err := m.Service.Create(ctx, req, actor)
	if err != nil {
		serviceError("failed to create message", w, err)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(created)
}

// MessagesByCaseHandler returns the case thread, oldest first
func (m Message) MessagesByCaseHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := actingUser(w, r)
	if !ok {
		return
	}
	caseID := mux.Vars(r)["case_id"]
	page := getPage(1, r)
	limit := getLimit(10, r)

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	dbResp, err := m.Service.ListByCase(ctx, caseID, actor, page, limit)
	if err != nil {
		serviceError("failed to list case messages", w, err)
		return
	}

	b, err := json.Marshal(dbResp)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// MarkMessageReadHandler marks the caller's recipient entry as read
func (m Message) MarkMessageReadHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := actingUser(w, r)
	if !ok {
		return
	}
	messageID := mux.Vars(r)["message_id"]

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	msg, err := m.Service.MarkAsRead(ctx, messageID, actor.ID)
	if err != nil {
		serviceError("failed to mark message as read", w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(msg)
}

// BulkMarkReadHandler marks a batch of messages as read for the caller
func (m Message) BulkMarkReadHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := actingUser(w, r)
	if !ok {
		return
	}

	var req models.MarkAsReadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	if err := m.Service.BulkMarkAsRead(ctx, req.MessageIDs, actor.ID); err != nil {
		serviceError("failed to mark messages as read", w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message": "Messages marked as read",
	})
}

// UnreadCountHandler returns the caller's unread message count
func (m Message) UnreadCountHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := actingUser(w, r)
	if !ok {
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	count, err := m.Service.UnreadCount(ctx, actor.ID)
	if err != nil {
		serviceError("failed to count unread messages", w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(models.UnreadCountResponse{UserID: actor.ID, Unread: count})
}

// UnreadMessagesHandler lists the caller's unread messages, newest first
func (m Message) UnreadMessagesHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := actingUser(w, r)
	if !ok {
		return
	}
	page := getPage(1, r)
	limit := getLimit(10, r)

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	dbResp, err := m.Service.UnreadMessages(ctx, actor.ID, page, limit)
	if err != nil {
		serviceError("failed to list unread messages", w, err)
		return
	}

	b, err := json.Marshal(dbResp)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// DeleteMessageHandler soft-deletes a message for the sender or an admin
func (m Message) DeleteMessageHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := actingUser(w, r)
	if !ok {
		return
	}
	messageID := mux.Vars(r)["message_id"]

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	if err := m.Service.Delete(ctx, messageID, actor); err != nil {
		serviceError("failed to delete message", w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message": "Message deleted successfully",
	})
}
