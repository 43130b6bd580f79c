package databases

// go generate: mockery --name MessageDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/linesmerrill/dispute-resolution-api/models"
)

const messageCollectionName = "messages"

// MessageDatabase contains the methods to use with the message database
type MessageDatabase interface {
	FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.Message, error)
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Message, error)
	CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error)
	InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (InsertOneResultHelper, error)
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) error
}

type messageDatabase struct {
	db DatabaseHelper
}

// NewMessageDatabase initializes a new instance of message database with the provided db connection
func NewMessageDatabase(db DatabaseHelper) MessageDatabase {
	return &messageDatabase{
		db: db,
	}
}

func (m *messageDatabase) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.Message, error) {
	msg := &models.Message{}
	err := m.db.Collection(messageCollectionName).FindOne(ctx, filter, opts...).Decode(&msg)
	if err != nil {
		return nil, err
	}
	return msg, nil
}

func (m *messageDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Message, error) {
	var messages []models.Message
	curr, err := m.db.Collection(messageCollectionName).Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer curr.Close(ctx)
	err = curr.All(ctx, &messages)
	if err != nil {
		return nil, err
	}
	return messages, nil
}

func (m *messageDatabase) CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error) {
	return m.db.Collection(messageCollectionName).CountDocuments(ctx, filter, opts...)
}

func (m *messageDatabase) InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (InsertOneResultHelper, error) {
	res, err := m.db.Collection(messageCollectionName).InsertOne(ctx, document, opts...)
	return res, err
}

func (m *messageDatabase) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) error {
	return m.db.Collection(messageCollectionName).UpdateOne(ctx, filter, update, opts...)
}
