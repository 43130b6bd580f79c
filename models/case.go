package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// Case statuses. A case only moves forward through these, in order,
// except for an admin override straight to closed.
const (
	CaseStatusOpen          = "open"
	CaseStatusAssigned      = "assigned"
	CaseStatusPanelAssigned = "panel_assigned"
	CaseStatusInProgress    = "in_progress"
	CaseStatusResolved      = "resolved"
	CaseStatusClosed        = "closed"
)

// Case types
const (
	CaseTypeMarriage = "marriage"
	CaseTypeLand     = "land"
	CaseTypeProperty = "property"
	CaseTypeFamily   = "family"
)

// Case priorities
const (
	CasePriorityLow    = "low"
	CasePriorityMedium = "medium"
	CasePriorityHigh   = "high"
	CasePriorityUrgent = "urgent"
)

// Panelist assignment entry statuses. Entries are never removed from the
// array, only transitioned between these.
const (
	PanelistStatusActive    = "active"
	PanelistStatusRemoved   = "removed"
	PanelistStatusCompleted = "completed"
)

// Case holds the structure for the cases collection in mongo
type Case struct {
	ID      primitive.ObjectID `json:"_id" bson:"_id"`
	Details CaseDetails        `json:"case" bson:"case"`
	Version int32              `json:"__v" bson:"__v"`
}

// CaseDetails holds the structure for the inner case details
type CaseDetails struct {
	Title       string `json:"title" bson:"title"`
	Description string `json:"description" bson:"description"`
	Type        string `json:"type" bson:"type"` // "marriage", "land", "property", "family"

	// Status: "open", "assigned", "panel_assigned", "in_progress", "resolved", "closed"
	Status   string `json:"status" bson:"status"`
	Priority string `json:"priority" bson:"priority"` // "low", "medium", "high", "urgent"

	CreatedBy string `json:"createdBy" bson:"createdBy"` // the client who opened this case, immutable

	// Caseworker assignment
	AssignedTo string             `json:"assignedTo" bson:"assignedTo"`
	AssignedAt primitive.DateTime `json:"assignedAt,omitempty" bson:"assignedAt,omitempty"`

	// Panel assignment, append-only
	AssignedPanelists []PanelistAssignment `json:"assignedPanelists" bson:"assignedPanelists"`
	PanelAssignedAt   primitive.DateTime   `json:"panelAssignedAt,omitempty" bson:"panelAssignedAt,omitempty"`

	ResolutionProgress ResolutionProgress `json:"resolutionProgress" bson:"resolutionProgress"`

	// Panelists who have completed finalization
	FinalizedBy []string `json:"finalizedBy" bson:"finalizedBy"`

	// Attachment metadata only, bytes live in object storage
	Documents []DocumentMeta `json:"documents" bson:"documents"`
	Notes     []CaseNote     `json:"notes" bson:"notes"`

	// Audit trail
	History []CaseHistoryEntry `json:"history" bson:"history"`

	CreatedAt primitive.DateTime `json:"createdAt" bson:"createdAt"`
	UpdatedAt primitive.DateTime `json:"updatedAt" bson:"updatedAt"`
}

// PanelistAssignment represents a single panelist's membership on a case panel
type PanelistAssignment struct {
	Panelist   string             `json:"panelist" bson:"panelist"`
	AssignedBy string             `json:"assignedBy" bson:"assignedBy"`
	AssignedAt primitive.DateTime `json:"assignedAt" bson:"assignedAt"`
	Status     string             `json:"status" bson:"status"` // "active", "removed", "completed"
}

// ResolutionProgress tracks how many of the assigned panelists have
// submitted a resolution. Submitted never exceeds Total.
type ResolutionProgress struct {
	Total       int                `json:"total" bson:"total"`
	Submitted   int                `json:"submitted" bson:"submitted"`
	LastUpdated primitive.DateTime `json:"lastUpdated,omitempty" bson:"lastUpdated,omitempty"`
}

// DocumentMeta stores object-storage metadata for an uploaded case document
type DocumentMeta struct {
	URL        string             `json:"url" bson:"url"`
	Key        string             `json:"key" bson:"key"`
	Size       int64              `json:"size" bson:"size"`
	MimeType   string             `json:"mimetype" bson:"mimetype"`
	UploadedBy string             `json:"uploadedBy" bson:"uploadedBy"`
	UploadedAt primitive.DateTime `json:"uploadedAt" bson:"uploadedAt"`
}

// CaseNote is a free-form note appended to a case
type CaseNote struct {
	Author    string             `json:"author" bson:"author"`
	Body      string             `json:"body" bson:"body"`
	CreatedAt primitive.DateTime `json:"createdAt" bson:"createdAt"`
}

// CaseHistoryEntry records a single event in the case lifecycle
type CaseHistoryEntry struct {
	Action    string             `json:"action" bson:"action"` // "created", "assigned", "panel_assigned", "resolution_submitted", "finalized", "closed", ...
	UserID    string             `json:"userID" bson:"userID"`
	UserName  string             `json:"userName,omitempty" bson:"userName,omitempty"`
	Notes     string             `json:"notes,omitempty" bson:"notes,omitempty"`
	Timestamp primitive.DateTime `json:"timestamp" bson:"timestamp"`
}

// CreateCaseRequest holds the structure for creating a new case
type CreateCaseRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Type        string `json:"type"`
	Priority    string `json:"priority"`
}

// CaseFilter holds the optional filters for listing cases
type CaseFilter struct {
	Status   string `json:"status"`
	Type     string `json:"type"`
	Priority string `json:"priority"`
}

// UserSummary is the display-ready projection of a user resolved from a
// case reference
type UserSummary struct {
	ID    string `json:"_id" bson:"_id"`
	Name  string `json:"name" bson:"name"`
	Email string `json:"email" bson:"email"`
	Role  string `json:"role" bson:"role"`
}

// CaseWithRelations is a case with its owner, assignee and panelist
// references resolved to display-ready records
type CaseWithRelations struct {
	Case      Case          `json:"case"`
	Owner     *UserSummary  `json:"owner,omitempty"`
	Assignee  *UserSummary  `json:"assignee,omitempty"`
	Panelists []UserSummary `json:"panelists"`
}

// GroupCount is a single bucket from a $group aggregation
type GroupCount struct {
	Value string `json:"value" bson:"_id"`
	Count int64  `json:"count" bson:"count"`
}

// DashboardStats groups case counts by status and by type
type DashboardStats struct {
	ByStatus []GroupCount `json:"byStatus"`
	ByType   []GroupCount `json:"byType"`
}

// PagedCases is a page of cases plus the pagination envelope
type PagedCases struct {
	Data  []Case `json:"data"`
	Total int64  `json:"total"`
	Page  int    `json:"page"`
	Limit int    `json:"limit"`
	Pages int    `json:"pages"`
}
