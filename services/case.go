package services

import (
	"context"
	"errors"
	"math"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/linesmerrill/dispute-resolution-api/databases"
	"github.com/linesmerrill/dispute-resolution-api/models"
)

// restrictedCaseFields are silently stripped from update patches when the
// actor is not an admin. Non-admins get a filtered update, not a rejection.
var restrictedCaseFields = []string{"status", "assignedTo", "assignedPanelists", "priority"}

// updatableCaseFields is the whitelist of patchable inner-document fields.
// Everything else (createdBy, resolutionProgress, history, ...) is dropped
// regardless of role.
var updatableCaseFields = map[string]bool{
	"title":       true,
	"description": true,
	"type":        true,
	"priority":    true,
	"status":      true,
	"assignedTo":  true,
}

// nextCaseStatus is the forward transition graph. An admin may additionally
// jump straight to closed from any state.
var nextCaseStatus = map[string]string{
	models.CaseStatusOpen:          models.CaseStatusAssigned,
	models.CaseStatusAssigned:      models.CaseStatusPanelAssigned,
	models.CaseStatusPanelAssigned: models.CaseStatusInProgress,
	models.CaseStatusInProgress:    models.CaseStatusResolved,
	models.CaseStatusResolved:      models.CaseStatusClosed,
}

var validCaseTypes = map[string]bool{
	models.CaseTypeMarriage: true,
	models.CaseTypeLand:     true,
	models.CaseTypeProperty: true,
	models.CaseTypeFamily:   true,
}

var validCasePriorities = map[string]bool{
	models.CasePriorityLow:    true,
	models.CasePriorityMedium: true,
	models.CasePriorityHigh:   true,
	models.CasePriorityUrgent: true,
}

// CaseService orchestrates the case lifecycle against the case collection
type CaseService struct {
	CDB databases.CaseDatabase
	UDB databases.UserDatabase
}

// NewCaseService constructs a case service with its repositories
func NewCaseService(cdb databases.CaseDatabase, udb databases.UserDatabase) *CaseService {
	return &CaseService{CDB: cdb, UDB: udb}
}

// Create opens a new case owned by the given client. Any authenticated
// client may create, so there is no access check here.
func (s *CaseService) Create(ctx context.Context, req models.CreateCaseRequest, client models.UserContext) (*models.Case, error) {
	if req.Title == "" {
		return nil, validationf("title is required")
	}
	if !validCaseTypes[req.Type] {
		return nil, validationf("invalid case type %q", req.Type)
	}
	if req.Priority == "" {
		req.Priority = models.CasePriorityMedium
	}
	if !validCasePriorities[req.Priority] {
		return nil, validationf("invalid priority %q", req.Priority)
	}

	now := primitive.NewDateTimeFromTime(time.Now())
	disputeCase := models.Case{
		ID: primitive.NewObjectID(),
		Details: models.CaseDetails{
			Title:             req.Title,
			Description:       req.Description,
			Type:              req.Type,
			Status:            models.CaseStatusOpen,
			Priority:          req.Priority,
			CreatedBy:         client.ID,
			AssignedPanelists: []models.PanelistAssignment{},
			FinalizedBy:       []string{},
			Documents:         []models.DocumentMeta{},
			Notes:             []models.CaseNote{},
			History: []models.CaseHistoryEntry{
				{
					Action:    "created",
					UserID:    client.ID,
					UserName:  client.Name,
					Timestamp: now,
				},
			},
			CreatedAt: now,
			UpdatedAt: now,
		},
	}

	if _, err := s.CDB.InsertOne(ctx, disputeCase); err != nil {
		return nil, err
	}
	return &disputeCase, nil
}

// GetByID returns a case after the access check
func (s *CaseService) GetByID(ctx context.Context, caseID string, actor models.UserContext) (*models.Case, error) {
	disputeCase, _, err := s.findCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if !CanAccessCase(disputeCase, actor) {
		return nil, forbiddenf("user %s may not access case %s", actor.ID, caseID)
	}
	return disputeCase, nil
}

// GetByIDWithRelations returns a case with owner, assignee and active
// panelist references resolved to display-ready records
func (s *CaseService) GetByIDWithRelations(ctx context.Context, caseID string, actor models.UserContext) (*models.CaseWithRelations, error) {
	disputeCase, err := s.GetByID(ctx, caseID, actor)
	if err != nil {
		return nil, err
	}

	userIDs := []string{disputeCase.Details.CreatedBy}
	if disputeCase.Details.AssignedTo != "" {
		userIDs = append(userIDs, disputeCase.Details.AssignedTo)
	}
	panelistIDs := make([]string, 0, len(disputeCase.Details.AssignedPanelists))
	for _, pa := range disputeCase.Details.AssignedPanelists {
		if pa.Status == models.PanelistStatusActive || pa.Status == models.PanelistStatusCompleted {
			panelistIDs = append(panelistIDs, pa.Panelist)
		}
	}

	users, err := s.UDB.Find(ctx, bson.M{"$or": []bson.M{
		{"_id": bson.M{"$in": userIDs}},
		{"user.panelistID": bson.M{"$in": panelistIDs}},
	}})
	if err != nil {
		return nil, err
	}

	resolved := models.CaseWithRelations{Case: *disputeCase, Panelists: []models.UserSummary{}}
	for _, u := range users {
		summary := models.UserSummary{ID: u.ID, Name: u.Details.Name, Email: u.Details.Email, Role: u.Details.Role}
		switch {
		case u.ID == disputeCase.Details.CreatedBy:
			owner := summary
			resolved.Owner = &owner
		case u.ID == disputeCase.Details.AssignedTo:
			assignee := summary
			resolved.Assignee = &assignee
		default:
			resolved.Panelists = append(resolved.Panelists, summary)
		}
	}
	return &resolved, nil
}

// Update applies a field patch to a case. Restricted fields are silently
// dropped from non-admin patches instead of rejecting the request, which
// keeps existing clients working.
func (s *CaseService) Update(ctx context.Context, caseID string, patch map[string]interface{}, actor models.UserContext) (*models.Case, error) {
	disputeCase, bID, err := s.findCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if !CanAccessCase(disputeCase, actor) {
		return nil, forbiddenf("user %s may not access case %s", actor.ID, caseID)
	}

	setFields := bson.M{}
	for field, value := range patch {
		if !updatableCaseFields[field] {
			continue
		}
		if !actor.IsAdmin() && isRestrictedCaseField(field) {
			continue
		}
		setFields["case."+field] = value
	}

	if status, ok := setFields["case.status"]; ok {
		target, isString := status.(string)
		if !isString || !canTransitionCase(disputeCase.Details.Status, target, actor.IsAdmin()) {
			return nil, validationf("cannot move case from %q to %v", disputeCase.Details.Status, status)
		}
	}
	if priority, ok := setFields["case.priority"]; ok {
		p, isString := priority.(string)
		if !isString || !validCasePriorities[p] {
			return nil, validationf("invalid priority %v", priority)
		}
	}

	if len(setFields) == 0 {
		// nothing survived the filter, return the record as-is
		return disputeCase, nil
	}

	now := primitive.NewDateTimeFromTime(time.Now())
	setFields["case.updatedAt"] = now

	update := bson.M{
		"$set": setFields,
		"$push": bson.M{
			"case.history": models.CaseHistoryEntry{
				Action:    "updated",
				UserID:    actor.ID,
				UserName:  actor.Name,
				Timestamp: now,
			},
		},
	}
	if err := s.CDB.UpdateOne(ctx, bson.M{"_id": bID}, update); err != nil {
		return nil, err
	}
	return s.CDB.FindOne(ctx, bson.M{"_id": bID})
}

// Assign sets the caseworker and moves the case to assigned
func (s *CaseService) Assign(ctx context.Context, caseID, caseworkerID, assignedBy string) error {
	_, bID, err := s.findCase(ctx, caseID)
	if err != nil {
		return err
	}

	now := primitive.NewDateTimeFromTime(time.Now())
	update := bson.M{
		"$set": bson.M{
			"case.assignedTo": caseworkerID,
			"case.assignedAt": now,
			"case.status":     models.CaseStatusAssigned,
			"case.updatedAt":  now,
		},
		"$push": bson.M{
			"case.history": models.CaseHistoryEntry{
				Action:    "assigned",
				UserID:    assignedBy,
				Notes:     "caseworker " + caseworkerID,
				Timestamp: now,
			},
		},
	}
	return s.CDB.UpdateOne(ctx, bson.M{"_id": bID}, update)
}

// AssignPanelists appends one active panel entry per panelist id and moves
// the case to panel_assigned. The whole mutation is a single update
// document so concurrent assignments cannot overwrite each other's
// entries. Already-active duplicates are not filtered here.
func (s *CaseService) AssignPanelists(ctx context.Context, caseID string, panelistIDs []string, assignedBy string) error {
	if len(panelistIDs) == 0 {
		return validationf("no panelists given")
	}
	_, bID, err := s.findCase(ctx, caseID)
	if err != nil {
		return err
	}

	now := primitive.NewDateTimeFromTime(time.Now())
	entries := make([]models.PanelistAssignment, 0, len(panelistIDs))
	for _, pid := range panelistIDs {
		entries = append(entries, models.PanelistAssignment{
			Panelist:   pid,
			AssignedBy: assignedBy,
			AssignedAt: now,
			Status:     models.PanelistStatusActive,
		})
	}

	update := bson.M{
		"$set": bson.M{
			"case.status":                         models.CaseStatusPanelAssigned,
			"case.panelAssignedAt":                now,
			"case.resolutionProgress.lastUpdated": now,
			"case.updatedAt":                      now,
		},
		"$inc": bson.M{"case.resolutionProgress.total": len(entries)},
		"$push": bson.M{
			"case.assignedPanelists": bson.M{"$each": entries},
			"case.history": models.CaseHistoryEntry{
				Action:    "panel_assigned",
				UserID:    assignedBy,
				Timestamp: now,
			},
		},
	}
	return s.CDB.UpdateOne(ctx, bson.M{"_id": bID}, update)
}

// RemovePanelist transitions a panelist's active entry to removed. The
// entry stays in the array.
func (s *CaseService) RemovePanelist(ctx context.Context, caseID, panelistID string, actor models.UserContext) error {
	if !actor.IsAdmin() {
		return forbiddenf("only admins may remove panelists")
	}
	disputeCase, bID, err := s.findCase(ctx, caseID)
	if err != nil {
		return err
	}
	if !hasActivePanelAssignment(disputeCase, panelistID) {
		return notFoundf("panelist %s has no active assignment on case %s", panelistID, caseID)
	}

	now := primitive.NewDateTimeFromTime(time.Now())
	update := bson.M{
		"$set": bson.M{
			"case.assignedPanelists.$.status": models.PanelistStatusRemoved,
			"case.updatedAt":                  now,
		},
		"$inc": bson.M{"case.resolutionProgress.total": -1},
		"$push": bson.M{
			"case.history": models.CaseHistoryEntry{
				Action:    "panelist_removed",
				UserID:    actor.ID,
				Notes:     "panelist " + panelistID,
				Timestamp: now,
			},
		},
	}
	filter := bson.M{
		"_id": bID,
		"case.assignedPanelists": bson.M{
			"$elemMatch": bson.M{"panelist": panelistID, "status": models.PanelistStatusActive},
		},
	}
	return s.CDB.UpdateOne(ctx, filter, update)
}

// RecordResolutionSubmission records that a panelist submitted their
// resolution. Submitted only ever increases, driven by this path. The
// filter requires the panelist's entry to still be active, so a double
// submission cannot double-increment.
func (s *CaseService) RecordResolutionSubmission(ctx context.Context, caseID, panelistID string) error {
	disputeCase, bID, err := s.findCase(ctx, caseID)
	if err != nil {
		return err
	}
	if !hasActivePanelAssignment(disputeCase, panelistID) {
		return forbiddenf("panelist %s has no active assignment on case %s", panelistID, caseID)
	}

	progress := disputeCase.Details.ResolutionProgress
	newStatus := models.CaseStatusInProgress
	if progress.Submitted+1 >= progress.Total {
		newStatus = models.CaseStatusResolved
	}

	now := primitive.NewDateTimeFromTime(time.Now())
	filter := bson.M{
		"_id": bID,
		"case.assignedPanelists": bson.M{
			"$elemMatch": bson.M{"panelist": panelistID, "status": models.PanelistStatusActive},
		},
	}
	update := bson.M{
		"$set": bson.M{
			"case.assignedPanelists.$.status":     models.PanelistStatusCompleted,
			"case.resolutionProgress.lastUpdated": now,
			"case.status":                         newStatus,
			"case.updatedAt":                      now,
		},
		"$inc": bson.M{"case.resolutionProgress.submitted": 1},
		"$push": bson.M{
			"case.history": models.CaseHistoryEntry{
				Action:    "resolution_submitted",
				UserID:    panelistID,
				Timestamp: now,
			},
		},
	}
	return s.CDB.UpdateOne(ctx, filter, update)
}

// Finalize records a panelist's finalization on a resolved case. When the
// last non-removed panelist finalizes, the case closes.
func (s *CaseService) Finalize(ctx context.Context, caseID, panelistID string) error {
	disputeCase, bID, err := s.findCase(ctx, caseID)
	if err != nil {
		return err
	}
	if disputeCase.Details.Status != models.CaseStatusResolved {
		return validationf("case %s is %q, expected %q", caseID, disputeCase.Details.Status, models.CaseStatusResolved)
	}
	if !isPanelMember(disputeCase, panelistID) {
		return forbiddenf("panelist %s is not on the panel for case %s", panelistID, caseID)
	}

	finalized := map[string]bool{panelistID: true}
	for _, id := range disputeCase.Details.FinalizedBy {
		finalized[id] = true
	}
	allDone := true
	for _, pa := range disputeCase.Details.AssignedPanelists {
		if pa.Status == models.PanelistStatusRemoved {
			continue
		}
		if !finalized[pa.Panelist] {
			allDone = false
			break
		}
	}

	now := primitive.NewDateTimeFromTime(time.Now())
	setFields := bson.M{"case.updatedAt": now}
	action := "finalized"
	if allDone {
		setFields["case.status"] = models.CaseStatusClosed
		action = "closed"
	}
	update := bson.M{
		"$addToSet": bson.M{"case.finalizedBy": panelistID},
		"$set":      setFields,
		"$push": bson.M{
			"case.history": models.CaseHistoryEntry{
				Action:    action,
				UserID:    panelistID,
				Timestamp: now,
			},
		},
	}
	return s.CDB.UpdateOne(ctx, bson.M{"_id": bID}, update)
}

// AddDocument appends object-storage metadata to a case. The bytes
// themselves never pass through this layer.
func (s *CaseService) AddDocument(ctx context.Context, caseID string, doc models.DocumentMeta, actor models.UserContext) error {
	disputeCase, bID, err := s.findCase(ctx, caseID)
	if err != nil {
		return err
	}
	if !CanAccessCase(disputeCase, actor) {
		return forbiddenf("user %s may not access case %s", actor.ID, caseID)
	}
	if doc.URL == "" || doc.Key == "" {
		return validationf("document url and key are required")
	}

	now := primitive.NewDateTimeFromTime(time.Now())
	doc.UploadedBy = actor.ID
	doc.UploadedAt = now
	update := bson.M{
		"$push": bson.M{"case.documents": doc},
		"$set":  bson.M{"case.updatedAt": now},
	}
	return s.CDB.UpdateOne(ctx, bson.M{"_id": bID}, update)
}

// AddNote appends a note to a case
func (s *CaseService) AddNote(ctx context.Context, caseID, body string, actor models.UserContext) error {
	disputeCase, bID, err := s.findCase(ctx, caseID)
	if err != nil {
		return err
	}
	if !CanAccessCase(disputeCase, actor) {
		return forbiddenf("user %s may not access case %s", actor.ID, caseID)
	}
	if body == "" {
		return validationf("note body is required")
	}

	now := primitive.NewDateTimeFromTime(time.Now())
	update := bson.M{
		"$push": bson.M{"case.notes": models.CaseNote{Author: actor.ID, Body: body, CreatedAt: now}},
		"$set":  bson.M{"case.updatedAt": now},
	}
	return s.CDB.UpdateOne(ctx, bson.M{"_id": bID}, update)
}

// List returns a page of cases the actor may see. The role filter is
// applied before any explicit filters: clients see their own cases,
// panelists the cases they actively sit on, admins everything.
func (s *CaseService) List(ctx context.Context, actor models.UserContext, filter models.CaseFilter, page, limit int) (*models.PagedCases, error) {
	if page < 1 {
		zap.S().Warnf("page not set, using default of 1")
		page = 1
	}
	if limit < 1 {
		limit = 10
	}

	query := bson.M{}
	switch actor.Role {
	case models.RoleAdmin:
		// no implicit filter
	case models.RoleClient:
		query["case.createdBy"] = actor.ID
	case models.RolePanelist:
		query["case.assignedPanelists"] = bson.M{
			"$elemMatch": bson.M{"panelist": actor.PanelistID, "status": models.PanelistStatusActive},
		}
	default:
		return nil, forbiddenf("unknown role %q", actor.Role)
	}
	if filter.Status != "" {
		query["case.status"] = filter.Status
	}
	if filter.Type != "" {
		query["case.type"] = filter.Type
	}
	if filter.Priority != "" {
		query["case.priority"] = filter.Priority
	}

	findOpts := databases.PaginatedOpts(limit, page)
	findOpts.SetSort(bson.M{"case.createdAt": -1})

	type findResult struct {
		cases []models.Case
		err   error
	}
	type countResult struct {
		count int64
		err   error
	}

	findChan := make(chan findResult, 1)
	countChan := make(chan countResult, 1)

	go func() {
		cases, err := s.CDB.Find(ctx, query, findOpts)
		findChan <- findResult{cases: cases, err: err}
	}()
	go func() {
		count, err := s.CDB.CountDocuments(ctx, query)
		countChan <- countResult{count: count, err: err}
	}()

	findRes := <-findChan
	countRes := <-countChan

	if findRes.err != nil {
		return nil, findRes.err
	}
	if countRes.err != nil {
		return nil, countRes.err
	}

	cases := findRes.cases
	if len(cases) == 0 {
		cases = []models.Case{}
	}

	return &models.PagedCases{
		Data:  cases,
		Total: countRes.count,
		Page:  page,
		Limit: limit,
		Pages: int(math.Ceil(float64(countRes.count) / float64(limit))),
	}, nil
}

// DashboardStats groups all cases by status and by type. There is no
// per-record authorization here; the caller gates access to the endpoint.
func (s *CaseService) DashboardStats(ctx context.Context) (*models.DashboardStats, error) {
	type groupResult struct {
		counts []models.GroupCount
		err    error
	}

	statusChan := make(chan groupResult, 1)
	typeChan := make(chan groupResult, 1)

	go func() {
		counts, err := s.CDB.AggregateGroupCounts(ctx, "status")
		statusChan <- groupResult{counts: counts, err: err}
	}()
	go func() {
		counts, err := s.CDB.AggregateGroupCounts(ctx, "type")
		typeChan <- groupResult{counts: counts, err: err}
	}()

	statusRes := <-statusChan
	typeRes := <-typeChan

	if statusRes.err != nil {
		return nil, statusRes.err
	}
	if typeRes.err != nil {
		return nil, typeRes.err
	}

	stats := models.DashboardStats{ByStatus: statusRes.counts, ByType: typeRes.counts}
	if stats.ByStatus == nil {
		stats.ByStatus = []models.GroupCount{}
	}
	if stats.ByType == nil {
		stats.ByType = []models.GroupCount{}
	}
	return &stats, nil
}

// findCase loads a case by hex id, mapping a bad id to ErrValidation and
// a missing document to ErrNotFound. Store failures pass through as-is.
func (s *CaseService) findCase(ctx context.Context, caseID string) (*models.Case, primitive.ObjectID, error) {
	bID, err := primitive.ObjectIDFromHex(caseID)
	if err != nil {
		return nil, primitive.NilObjectID, validationf("invalid case id %q", caseID)
	}
	disputeCase, err := s.CDB.FindOne(ctx, bson.M{"_id": bID})
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, primitive.NilObjectID, notFoundf("case %s", caseID)
		}
		return nil, primitive.NilObjectID, err
	}
	return disputeCase, bID, nil
}

func isRestrictedCaseField(field string) bool {
	for _, f := range restrictedCaseFields {
		if f == field {
			return true
		}
	}
	return false
}

func canTransitionCase(from, to string, admin bool) bool {
	if admin && to == models.CaseStatusClosed {
		return true
	}
	return nextCaseStatus[from] == to
}

func isPanelMember(c *models.Case, panelistID string) bool {
	for _, pa := range c.Details.AssignedPanelists {
		if pa.Panelist == panelistID && pa.Status != models.PanelistStatusRemoved {
			return true
		}
	}
	return false
}
