package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// MaxMessageContentLength bounds the message body
const MaxMessageContentLength = 5000

// Message holds the structure for the messages collection in mongo
type Message struct {
	ID         primitive.ObjectID `json:"_id" bson:"_id"`
	CaseID     string             `json:"caseID" bson:"caseID"` // the case this message belongs to, immutable
	Sender     MessageSender      `json:"sender" bson:"sender"`
	Recipients []MessageRecipient `json:"recipients" bson:"recipients"`
	Subject    string             `json:"subject,omitempty" bson:"subject,omitempty"`
	Content    string             `json:"content" bson:"content"`
	Priority   string             `json:"priority" bson:"priority"`
	IsDeleted  bool               `json:"isDeleted" bson:"isDeleted"`
	CreatedAt  primitive.DateTime `json:"createdAt" bson:"createdAt"`
}

// MessageSender is the sender identity block, fixed at creation from the
// authenticated caller, never taken from the request payload
type MessageSender struct {
	Role       string `json:"role" bson:"role"`
	UserID     string `json:"userID" bson:"userID"`
	PanelistID string `json:"panelistID,omitempty" bson:"panelistID,omitempty"`
	Name       string `json:"name" bson:"name"`
}

// MessageRecipient is a single fan-out entry. Membership is fixed at
// creation, only IsRead/ReadAt mutate afterwards.
type MessageRecipient struct {
	Recipient string             `json:"recipient" bson:"recipient"`
	IsRead    bool               `json:"isRead" bson:"isRead"`
	ReadAt    primitive.DateTime `json:"readAt,omitempty" bson:"readAt,omitempty"`
}

// CreateMessageRequest holds the structure for posting a message to a case
type CreateMessageRequest struct {
	CaseID     string   `json:"caseID"`
	Recipients []string `json:"recipients"`
	Subject    string   `json:"subject"`
	Content    string   `json:"content"`
	Priority   string   `json:"priority"`
}

// MarkAsReadRequest holds the structure for marking messages as read
type MarkAsReadRequest struct {
	MessageIDs []string `json:"messageIds"`
}

// UnreadCountResponse holds the unread counter for a recipient
type UnreadCountResponse struct {
	UserID string `json:"userID"`
	Unread int64  `json:"unread"`
}

// PagedMessages is a page of messages plus the pagination envelope
type PagedMessages struct {
	Data  []Message `json:"data"`
	Total int64     `json:"total"`
	Page  int       `json:"page"`
	Limit int       `json:"limit"`
	Pages int       `json:"pages"`
}
