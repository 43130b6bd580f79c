package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/linesmerrill/dispute-resolution-api/api"
	"github.com/linesmerrill/dispute-resolution-api/config"
	"github.com/linesmerrill/dispute-resolution-api/models"
	"github.com/linesmerrill/dispute-resolution-api/services"
)

// Case exported for testing purposes
type Case struct {
	Service *services.CaseService
}

// CreateCaseHandler opens a new dispute case owned by the calling client
func (c Case) CreateCaseHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := actingUser(w, r)
	if !ok {
		return
	}

	var req models.CreateCaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	created, err := c.Service.Create(ctx, req, actor)
	if err != nil {
		serviceError("failed to create case", w, err)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(created)
}

// GetCaseByIDHandler returns a case by ID after the access check
func (c Case) GetCaseByIDHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := actingUser(w, r)
	if !ok {
		return
	}
	caseID := mux.Vars(r)["case_id"]

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	dbResp, err := c.Service.GetByID(ctx, caseID, actor)
	if err != nil {
		serviceError("failed to find case", w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(dbResp)
}

// GetCaseWithRelationsHandler returns a case with its owner, assignee and
// panelists resolved to display-ready records
func (c Case) GetCaseWithRelationsHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := actingUser(w, r)
	if !ok {
		return
	}
	caseID := mux.Vars(r)["case_id"]

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	dbResp, err := c.Service.GetByIDWithRelations(ctx, caseID, actor)
	if err != nil {
		serviceError("failed to find case", w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(dbResp)
}

// UpdateCaseHandler applies a field patch to a case. Restricted fields
// are dropped for non-admin callers.
func (c Case) UpdateCaseHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := actingUser(w, r)
	if !ok {
		return
	}
	caseID := mux.Vars(r)["case_id"]

	var patch map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	updated, err := c.Service.Update(ctx, caseID, patch, actor)
	if err != nil {
		serviceError("failed to update case", w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(updated)
}

// AssignCaseHandler assigns a caseworker to a case
func (c Case) AssignCaseHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := actingUser(w, r)
	if !ok {
		return
	}
	if !actor.IsAdmin() {
		config.ErrorStatus("only admins may assign cases", http.StatusForbidden, w, fmt.Errorf("role %q", actor.Role))
		return
	}
	caseID := mux.Vars(r)["case_id"]

	var assignData struct {
		CaseworkerID string `json:"caseworkerID"`
	}
	if err := json.NewDecoder(r.Body).Decode(&assignData); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}
	if assignData.CaseworkerID == "" {
		config.ErrorStatus("caseworkerID is required", http.StatusBadRequest, w, fmt.Errorf("empty caseworkerID"))
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	if err := c.Service.Assign(ctx, caseID, assignData.CaseworkerID, actor.ID); err != nil {
		serviceError("failed to assign case", w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message": "Case assigned successfully",
	})
}

// AssignPanelistsHandler appends active panel entries for the given
// panelist ids and moves the case to panel_assigned
func (c Case) AssignPanelistsHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := actingUser(w, r)
	if !ok {
		return
	}
	if !actor.IsAdmin() {
		config.ErrorStatus("only admins may assign panelists", http.StatusForbidden, w, fmt.Errorf("role %q", actor.Role))
		return
	}
	caseID := mux.Vars(r)["case_id"]

	var panelData struct {
		PanelistIDs []string `json:"panelistIDs"`
	}
	if err := json.NewDecoder(r.Body).Decode(&panelData); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	if err := c.Service.AssignPanelists(ctx, caseID, panelData.PanelistIDs, actor.ID); err != nil {
		serviceError("failed to assign panelists", w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message": "Panelists assigned successfully",
	})
}

// RemovePanelistHandler transitions a panelist's active entry to removed
func (c Case) RemovePanelistHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := actingUser(w, r)
	if !ok {
		return
	}
	vars := mux.Vars(r)

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	if err := c.Service.RemovePanelist(ctx, vars["case_id"], vars["panelist_id"], actor); err != nil {
		serviceError("failed to remove panelist", w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message": "Panelist removed successfully",
	})
}

// SubmitResolutionHandler records the calling panelist's resolution
// submission
func (c Case) SubmitResolutionHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := actingUser(w, r)
	if !ok {
		return
	}
	if actor.PanelistID == "" {
		config.ErrorStatus("only panelists may submit resolutions", http.StatusForbidden, w, fmt.Errorf("role %q", actor.Role))
		return
	}
	caseID := mux.Vars(r)["case_id"]

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	if err := c.Service.RecordResolutionSubmission(ctx, caseID, actor.PanelistID); err != nil {
		serviceError("failed to record resolution submission", w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message": "Resolution submission recorded",
	})
}

// FinalizeCaseHandler records the calling panelist's finalization
func (c Case) FinalizeCaseHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := actingUser(w, r)
	if !ok {
		return
	}
	if actor.PanelistID == "" {
		config.ErrorStatus("only panelists may finalize cases", http.StatusForbidden, w, fmt.Errorf("role %q", actor.Role))
		return
	}
	caseID := mux.Vars(r)["case_id"]

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	if err := c.Service.Finalize(ctx, caseID, actor.PanelistID); err != nil {
		serviceError("failed to finalize case", w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message": "Finalization recorded",
	})
}

// AddDocumentHandler appends uploaded document metadata to a case
func (c Case) AddDocumentHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := actingUser(w, r)
	if !ok {
		return
	}
	caseID := mux.Vars(r)["case_id"]

	var doc models.DocumentMeta
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	if err := c.Service.AddDocument(ctx, caseID, doc, actor); err != nil {
		serviceError("failed to add document", w, err)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message": "Document added successfully",
	})
}

// AddNoteHandler appends a note to a case
func (c Case) AddNoteHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := actingUser(w, r)
	if !ok {
		return
	}
	caseID := mux.Vars(r)["case_id"]

	var noteData struct {
		Body string `json:"body"`
	}
	if err := json.NewDecoder(r.Body).Decode(&noteData); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	if err := c.Service.AddNote(ctx, caseID, noteData.Body, actor); err != nil {
		serviceError("failed to add note", w, err)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message": "Note added successfully",
	})
}

// ListCasesHandler returns a page of cases visible to the caller
func (c Case) ListCasesHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := actingUser(w, r)
	if !ok {
		return
	}

	filter := models.CaseFilter{
		Status:   r.URL.Query().Get("status"),
		Type:     r.URL.Query().Get("type"),
		Priority: r.URL.Query().Get("priority"),
	}
	page := getPage(1, r)
	limit := getLimit(10, r)

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	dbResp, err := c.Service.List(ctx, actor, filter, page, limit)
	if err != nil {
		serviceError("failed to list cases", w, err)
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

// DashboardStatsHandler returns case counts grouped by status and type.
// Admin-facing; the role gate lives here, not in the service.
func (c Case) DashboardStatsHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := actingUser(w, r)
	if !ok {
		return
	}
	if !actor.IsAdmin() {
		config.ErrorStatus("only admins may view dashboard stats", http.StatusForbidden, w, fmt.Errorf("role %q", actor.Role))
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	stats, err := c.Service.DashboardStats(ctx)
	if err != nil {
		serviceError("failed to aggregate dashboard stats", w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(stats)
}
