package services

import (
	"context"
	"errors"
	"math"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/linesmerrill/dispute-resolution-api/databases"
	"github.com/linesmerrill/dispute-resolution-api/models"
)

// MessageService orchestrates message fan-out, read tracking and soft
// deletion. It needs the case repository only for access checks.
type MessageService struct {
	MDB databases.MessageDatabase
	CDB databases.CaseDatabase
}

// NewMessageService constructs a message service with its repositories
func NewMessageService(mdb databases.MessageDatabase, cdb databases.CaseDatabase) *MessageService {
	return &MessageService{MDB: mdb, CDB: cdb}
}

// Create persists a new message on a case. The sender block always comes
// from the authenticated actor, so a caller cannot forge sender identity
// through the payload. The recipient list is taken as given.
func (s *MessageService) Create(ctx context.Context, req models.CreateMessageRequest, actor models.UserContext) (*models.Message, error) {
	if req.Content == "" {
		return nil, validationf("content is required")
	}
	if len(req.Content) > models.MaxMessageContentLength {
		return nil, validationf("content exceeds %d characters", models.MaxMessageContentLength)
	}
	if len(req.Recipients) == 0 {
		return nil, validationf("at least one recipient is required")
	}
	if req.Priority == "" {
		req.Priority = models.CasePriorityMedium
	}

	caseOID, err := primitive.ObjectIDFromHex(req.CaseID)
	if err != nil {
		return nil, validationf("invalid case id %q", req.CaseID)
	}
	disputeCase, err := s.CDB.FindOne(ctx, bson.M{"_id": caseOID})
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, notFoundf("case %s", req.CaseID)
		}
		return nil, err
	}
	if !CanAccessCase(disputeCase, actor) {
		return nil, forbiddenf("user %s may not post to case %s", actor.ID, req.CaseID)
	}

	recipients := make([]models.MessageRecipient, 0, len(req.Recipients))
	for _, r := range req.Recipients {
		recipients = append(recipients, models.MessageRecipient{Recipient: r})
	}

	msg := models.Message{
		ID:     primitive.NewObjectID(),
		CaseID: req.CaseID,
		Sender: models.MessageSender{
			Role:       actor.Role,
			UserID:     actor.ID,
			PanelistID: actor.PanelistID,
			Name:       actor.Name,
		},
		Recipients: recipients,
		Subject:    req.Subject,
		Content:    req.Content,
		Priority:   req.Priority,
		CreatedAt:  primitive.NewDateTimeFromTime(time.Now()),
	}

	if _, err := s.MDB.InsertOne(ctx, msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// MarkAsRead marks the recipient entry for userID as read. Idempotent:
// an already-read entry, or a user who is not a recipient at all, is a
// no-op and the record is returned unchanged. A missing message is
// NotFound.
func (s *MessageService) MarkAsRead(ctx context.Context, messageID, userID string) (*models.Message, error) {
	msg, bID, err := s.findMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}

	idx := -1
	for i, r := range msg.Recipients {
		if r.Recipient == userID {
			idx = i
			break
		}
	}
	if idx == -1 || msg.Recipients[idx].IsRead {
		return msg, nil
	}

	now := primitive.NewDateTimeFromTime(time.Now())
	filter := bson.M{
		"_id": bID,
		"recipients": bson.M{
			"$elemMatch": bson.M{"recipient": userID, "isRead": false},
		},
	}
	update := bson.M{
		"$set": bson.M{
			"recipients.$.isRead": true,
			"recipients.$.readAt": now,
		},
	}
	if err := s.MDB.UpdateOne(ctx, filter, update); err != nil {
		return nil, err
	}

	msg.Recipients[idx].IsRead = true
	msg.Recipients[idx].ReadAt = now
	return msg, nil
}

// BulkMarkAsRead applies the idempotent read-mark across a set of message
// ids scoped to the given recipient. Ids that do not resolve to a message
// with an unread entry for the user are skipped.
func (s *MessageService) BulkMarkAsRead(ctx context.Context, messageIDs []string, userID string) error {
	now := primitive.NewDateTimeFromTime(time.Now())
	for _, id := range messageIDs {
		bID, err := primitive.ObjectIDFromHex(id)
		if err != nil {
			return validationf("invalid message id %q", id)
		}
		filter := bson.M{
			"_id": bID,
			"recipients": bson.M{
				"$elemMatch": bson.M{"recipient": userID, "isRead": false},
			},
		}
		update := bson.M{
			"$set": bson.M{
				"recipients.$.isRead": true,
				"recipients.$.readAt": now,
			},
		}
		if err := s.MDB.UpdateOne(ctx, filter, update); err != nil {
			return err
		}
	}
	return nil
}

// UnreadCount counts messages where the user appears as an unread
// recipient, excluding soft-deleted messages
func (s *MessageService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	return s.MDB.CountDocuments(ctx, unreadFilter(userID))
}

// UnreadMessages lists the user's unread messages, most recent first
func (s *MessageService) UnreadMessages(ctx context.Context, userID string, page, limit int) (*models.PagedMessages, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}

	filter := unreadFilter(userID)
	findOpts := databases.PaginatedOpts(limit, page)
	findOpts.SetSort(bson.M{"createdAt": -1})

	messages, err := s.MDB.Find(ctx, filter, findOpts)
	if err != nil {
		return nil, err
	}
	total, err := s.MDB.CountDocuments(ctx, filter)
	if err != nil {
		return nil, err
	}
	if len(messages) == 0 {
		messages = []models.Message{}
	}

	return &models.PagedMessages{
		Data:  messages,
		Total: total,
		Page:  page,
		Limit: limit,
		Pages: int(math.Ceil(float64(total) / float64(limit))),
	}, nil
}

// ListByCase returns the message thread for a case in chronological order,
// oldest first. Every other listing is most-recent-first; the thread view
// reads top to bottom.
func (s *MessageService) ListByCase(ctx context.Context, caseID string, actor models.UserContext, page, limit int) (*models.PagedMessages, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}

	caseOID, err := primitive.ObjectIDFromHex(caseID)
	if err != nil {
		return nil, validationf("invalid case id %q", caseID)
	}
	disputeCase, err := s.CDB.FindOne(ctx, bson.M{"_id": caseOID})
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, notFoundf("case %s", caseID)
		}
		return nil, err
	}
	if !CanAccessCase(disputeCase, actor) {
		return nil, forbiddenf("user %s may not access case %s", actor.ID, caseID)
	}

	filter := bson.M{"caseID": caseID, "isDeleted": false}
	findOpts := databases.PaginatedOpts(limit, page)
	findOpts.SetSort(bson.M{"createdAt": 1})

	messages, err := s.MDB.Find(ctx, filter, findOpts)
	if err != nil {
		return nil, err
	}
	total, err := s.MDB.CountDocuments(ctx, filter)
	if err != nil {
		return nil, err
	}
	if len(messages) == 0 {
		messages = []models.Message{}
	}

	return &models.PagedMessages{
		Data:  messages,
		Total: total,
		Page:  page,
		Limit: limit,
		Pages: int(math.Ceil(float64(total) / float64(limit))),
	}, nil
}

// Delete soft-deletes a message. Only the original sender or an admin may
// delete; the record is never physically removed.
func (s *MessageService) Delete(ctx context.Context, messageID string, actor models.UserContext) error {
	msg, bID, err := s.findMessage(ctx, messageID)
	if err != nil {
		return err
	}
	if !actor.IsAdmin() && msg.Sender.UserID != actor.ID {
		return forbiddenf("user %s may not delete message %s", actor.ID, messageID)
	}

	return s.MDB.UpdateOne(ctx, bson.M{"_id": bID}, bson.M{"$set": bson.M{"isDeleted": true}})
}

func (s *MessageService) findMessage(ctx context.Context, messageID string) (*models.Message, primitive.ObjectID, error) {
	bID, err := primitive.ObjectIDFromHex(messageID)
	if err != nil {
		return nil, primitive.NilObjectID, validationf("invalid message id %q", messageID)
	}
	msg, err := s.MDB.FindOne(ctx, bson.M{"_id": bID})
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, primitive.NilObjectID, notFoundf("message %s", messageID)
		}
		return nil, primitive.NilObjectID, err
	}
	return msg, bID, nil
}

func unreadFilter(userID string) bson.M {
	return bson.M{
		"recipients": bson.M{
			"$elemMatch": bson.M{"recipient": userID, "isRead": false},
		},
		"isDeleted": false,
	}
}
