package services_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/linesmerrill/dispute-resolution-api/databases/mocks"
	"github.com/linesmerrill/dispute-resolution-api/models"
	"github.com/linesmerrill/dispute-resolution-api/services"
)

func storedMessage(id primitive.ObjectID, sender string, recipients ...models.MessageRecipient) *models.Message {
	return &models.Message{
		ID:         id,
		CaseID:     primitive.NewObjectID().Hex(),
		Sender:     models.MessageSender{Role: models.RoleClient, UserID: sender},
		Recipients: recipients,
		Content:    "hello",
	}
}

func TestMessageService_Create(t *testing.T) {
	caseOID := primitive.NewObjectID()

	caseDB := mocks.NewCaseDatabase(t)
	caseDB.On("FindOne", mock.Anything, bson.M{"_id": caseOID}).Return(storedCase(caseOID, models.CaseStatusOpen), nil)

	msgDB := mocks.NewMessageDatabase(t)
	msgDB.On("InsertOne", mock.Anything, mock.AnythingOfType("models.Message")).Return(nil, nil)

	svc := services.NewMessageService(msgDB, caseDB)

	msg, err := svc.Create(context.Background(), models.CreateMessageRequest{
		CaseID:     caseOID.Hex(),
		Content:    "hello",
		Recipients: []string{"admin-1", "pan-1"},
	}, clientActor)

	assert.NoError(t, err)
	// sender identity comes from the authenticated actor, never the payload
	assert.Equal(t, clientActor.ID, msg.Sender.UserID)
	assert.Equal(t, models.RoleClient, msg.Sender.Role)
	assert.Equal(t, models.CasePriorityMedium, msg.Priority)
	if assert.Len(t, msg.Recipients, 2) {
		assert.False(t, msg.Recipients[0].IsRead)
		assert.False(t, msg.Recipients[1].IsRead)
	}
}

func TestMessageService_Create_Validation(t *testing.T) {
	svc := services.NewMessageService(mocks.NewMessageDatabase(t), mocks.NewCaseDatabase(t))

	_, err := svc.Create(context.Background(), models.CreateMessageRequest{
		CaseID:     primitive.NewObjectID().Hex(),
		Recipients: []string{"admin-1"},
	}, clientActor)
	assert.ErrorIs(t, err, services.ErrValidation)

	_, err = svc.Create(context.Background(), models.CreateMessageRequest{
		CaseID:     primitive.NewObjectID().Hex(),
		Content:    strings.Repeat("a", models.MaxMessageContentLength+1),
		Recipients: []string{"admin-1"},
	}, clientActor)
	assert.ErrorIs(t, err, services.ErrValidation)

	_, err = svc.Create(context.Background(), models.CreateMessageRequest{
		CaseID:  primitive.NewObjectID().Hex(),
		Content: "hello",
	}, clientActor)
	assert.ErrorIs(t, err, services.ErrValidation)
}

func TestMessageService_Create_CaseMissing(t *testing.T) {
	caseOID := primitive.NewObjectID()

	caseDB := mocks.NewCaseDatabase(t)
	caseDB.On("FindOne", mock.Anything, bson.M{"_id": caseOID}).Return(nil, mongo.ErrNoDocuments)

	svc := services.NewMessageService(mocks.NewMessageDatabase(t), caseDB)

	_, err := svc.Create(context.Background(), models.CreateMessageRequest{
		CaseID:     caseOID.Hex(),
		Content:    "hello",
		Recipients: []string{"admin-1"},
	}, clientActor)
	assert.ErrorIs(t, err, services.ErrNotFound)
}

func TestMessageService_MarkAsRead(t *testing.T) {
	msgOID := primitive.NewObjectID()

	msgDB := mocks.NewMessageDatabase(t)
	msgDB.On("FindOne", mock.Anything, bson.M{"_id": msgOID}).Return(
		storedMessage(msgOID, "client-1",
			models.MessageRecipient{Recipient: "admin-1"},
			models.MessageRecipient{Recipient: "pan-1"},
		), nil)
	msgDB.On("UpdateOne", mock.Anything, mock.MatchedBy(func(filter bson.M) bool {
		elem := filter["recipients"].(bson.M)["$elemMatch"].(bson.M)
		return elem["recipient"] == "admin-1" && elem["isRead"] == false
	}), mock.MatchedBy(func(update bson.M) bool {
		set := update["$set"].(bson.M)
		return set["recipients.$.isRead"] == true
	})).Return(nil)

	svc := services.NewMessageService(msgDB, mocks.NewCaseDatabase(t))

	msg, err := svc.MarkAsRead(context.Background(), msgOID.Hex(), "admin-1")
	assert.NoError(t, err)
	assert.True(t, msg.Recipients[0].IsRead)
	// the other recipient's entry is untouched
	assert.False(t, msg.Recipients[1].IsRead)
}

func TestMessageService_MarkAsRead_Idempotent(t *testing.T) {
	msgOID := primitive.NewObjectID()

	msgDB := mocks.NewMessageDatabase(t)
	msgDB.On("FindOne", mock.Anything, bson.M{"_id": msgOID}).Return(
		storedMessage(msgOID, "client-1",
			models.MessageRecipient{Recipient: "admin-1", IsRead: true},
		), nil)

	svc := services.NewMessageService(msgDB, mocks.NewCaseDatabase(t))

	// already read: returned unchanged, no write issued
	msg, err := svc.MarkAsRead(context.Background(), msgOID.Hex(), "admin-1")
	assert.NoError(t, err)
	assert.True(t, msg.Recipients[0].IsRead)

	// not a recipient at all: same no-op behavior
	msg, err = svc.MarkAsRead(context.Background(), msgOID.Hex(), "stranger")
	assert.NoError(t, err)
	assert.Len(t, msg.Recipients, 1)

	msgDB.AssertNotCalled(t, "UpdateOne", mock.Anything, mock.Anything, mock.Anything)
}

func TestMessageService_MarkAsRead_NotFound(t *testing.T) {
	msgOID := primitive.NewObjectID()

	msgDB := mocks.NewMessageDatabase(t)
	msgDB.On("FindOne", mock.Anything, bson.M{"_id": msgOID}).Return(nil, mongo.ErrNoDocuments)

	svc := services.NewMessageService(msgDB, mocks.NewCaseDatabase(t))

	_, err := svc.MarkAsRead(context.Background(), msgOID.Hex(), "admin-1")
	assert.ErrorIs(t, err, services.ErrNotFound)

	_, err = svc.MarkAsRead(context.Background(), "nope", "admin-1")
	assert.ErrorIs(t, err, services.ErrValidation)
}

func TestMessageService_BulkMarkAsRead(t *testing.T) {
	first := primitive.NewObjectID()
	second := primitive.NewObjectID()

	msgDB := mocks.NewMessageDatabase(t)
	for _, id := range []primitive.ObjectID{first, second} {
		msgDB.On("UpdateOne", mock.Anything, mock.MatchedBy(func(filter bson.M) bool {
			elem := filter["recipients"].(bson.M)["$elemMatch"].(bson.M)
			return filter["_id"] == id && elem["recipient"] == "admin-1"
		}), mock.Anything).Return(nil).Once()
	}

	svc := services.NewMessageService(msgDB, mocks.NewCaseDatabase(t))

	err := svc.BulkMarkAsRead(context.Background(), []string{first.Hex(), second.Hex()}, "admin-1")
	assert.NoError(t, err)

	err = svc.BulkMarkAsRead(context.Background(), []string{"bad-id"}, "admin-1")
	assert.ErrorIs(t, err, services.ErrValidation)
}

func TestMessageService_UnreadCount(t *testing.T) {
	msgDB := mocks.NewMessageDatabase(t)
	msgDB.On("CountDocuments", mock.Anything, mock.MatchedBy(func(filter bson.M) bool {
		elem := filter["recipients"].(bson.M)["$elemMatch"].(bson.M)
		return elem["recipient"] == "admin-1" && elem["isRead"] == false && filter["isDeleted"] == false
	})).Return(int64(4), nil)

	svc := services.NewMessageService(msgDB, mocks.NewCaseDatabase(t))

	count, err := svc.UnreadCount(context.Background(), "admin-1")
	assert.NoError(t, err)
	assert.Equal(t, int64(4), count)
}

func TestMessageService_ListByCase(t *testing.T) {
	caseOID := primitive.NewObjectID()

	caseDB := mocks.NewCaseDatabase(t)
	caseDB.On("FindOne", mock.Anything, bson.M{"_id": caseOID}).Return(storedCase(caseOID, models.CaseStatusOpen), nil)

	msgDB := mocks.NewMessageDatabase(t)
	msgDB.On("Find", mock.Anything, bson.M{"caseID": caseOID.Hex(), "isDeleted": false}, mock.MatchedBy(func(opts *options.FindOptions) bool {
		// the case thread reads oldest first, unlike the unread feed
		sort, ok := opts.Sort.(bson.M)
		return ok && sort["createdAt"] == 1
	})).Return([]models.Message{{Content: "hello"}}, nil)
	msgDB.On("CountDocuments", mock.Anything, bson.M{"caseID": caseOID.Hex(), "isDeleted": false}).Return(int64(1), nil)

	svc := services.NewMessageService(msgDB, caseDB)

	page, err := svc.ListByCase(context.Background(), caseOID.Hex(), clientActor, 1, 10)
	assert.NoError(t, err)
	assert.Len(t, page.Data, 1)
	assert.Equal(t, int64(1), page.Total)
}

func TestMessageService_ListByCase_Forbidden(t *testing.T) {
	caseOID := primitive.NewObjectID()

	caseDB := mocks.NewCaseDatabase(t)
	caseDB.On("FindOne", mock.Anything, bson.M{"_id": caseOID}).Return(storedCase(caseOID, models.CaseStatusOpen), nil)

	svc := services.NewMessageService(mocks.NewMessageDatabase(t), caseDB)

	_, err := svc.ListByCase(context.Background(), caseOID.Hex(), models.UserContext{ID: "client-2", Role: models.RoleClient}, 1, 10)
	assert.ErrorIs(t, err, services.ErrForbidden)
}

func TestMessageService_Delete(t *testing.T) {
	msgOID := primitive.NewObjectID()

	msgDB := mocks.NewMessageDatabase(t)
	msgDB.On("FindOne", mock.Anything, bson.M{"_id": msgOID}).Return(
		storedMessage(msgOID, "client-1", models.MessageRecipient{Recipient: "admin-1"}), nil)
	msgDB.On("UpdateOne", mock.Anything, bson.M{"_id": msgOID}, bson.M{"$set": bson.M{"isDeleted": true}}).Return(nil)

	svc := services.NewMessageService(msgDB, mocks.NewCaseDatabase(t))

	// a stranger cannot delete
	err := svc.Delete(context.Background(), msgOID.Hex(), models.UserContext{ID: "client-2", Role: models.RoleClient})
	assert.ErrorIs(t, err, services.ErrForbidden)

	// the sender can
	err = svc.Delete(context.Background(), msgOID.Hex(), clientActor)
	assert.NoError(t, err)

	// so can an admin
	err = svc.Delete(context.Background(), msgOID.Hex(), adminActor)
	assert.NoError(t, err)
}
