package databases

// go generate: mockery --name CaseDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/linesmerrill/dispute-resolution-api/models"
)

const caseCollectionName = "cases"

// CaseDatabase contains the methods to use with the case database
type CaseDatabase interface {
	FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.Case, error)
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Case, error)
	CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error)
	InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (InsertOneResultHelper, error)
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) error
	AggregateGroupCounts(ctx context.Context, groupField string) ([]models.GroupCount, error)
}

type caseDatabase struct {
	db DatabaseHelper
}

// NewCaseDatabase initializes a new instance of case database with the provided db connection
func NewCaseDatabase(db DatabaseHelper) CaseDatabase {
	return &caseDatabase{
		db: db,
	}
}

func (c *caseDatabase) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.Case, error) {
	disputeCase := &models.Case{}
	err := c.db.Collection(caseCollectionName).FindOne(ctx, filter, opts...).Decode(&disputeCase)
	if err != nil {
		return nil, err
	}
	return disputeCase, nil
}

func (c *caseDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Case, error) {
	var cases []models.Case
	curr, err := c.db.Collection(caseCollectionName).Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer curr.Close(ctx)
	err = curr.All(ctx, &cases)
	if err != nil {
		return nil, err
	}
	return cases, nil
}

func (c *caseDatabase) CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error) {
	return c.db.Collection(caseCollectionName).CountDocuments(ctx, filter, opts...)
}

func (c *caseDatabase) InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (InsertOneResultHelper, error) {
	res, err := c.db.Collection(caseCollectionName).InsertOne(ctx, document, opts...)
	return res, err
}

func (c *caseDatabase) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) error {
	return c.db.Collection(caseCollectionName).UpdateOne(ctx, filter, update, opts...)
}

// AggregateGroupCounts buckets all cases by the given inner-document field,
// e.g. "status" or "type", for the dashboard
func (c *caseDatabase) AggregateGroupCounts(ctx context.Context, groupField string) ([]models.GroupCount, error) {
	pipeline := []bson.M{
		{"$group": bson.M{
			"_id":   "$case." + groupField,
			"count": bson.M{"$sum": 1},
		}},
	}
	curr, err := c.db.Collection(caseCollectionName).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer curr.Close(ctx)

	var counts []models.GroupCount
	if err := curr.All(ctx, &counts); err != nil {
		return nil, err
	}
	return counts, nil
}
