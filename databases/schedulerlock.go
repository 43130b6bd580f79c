package databases

// go generate: mockery --name SchedulerLockDatabase

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const schedulerLockCollectionName = "schedulerlocks"

// SchedulerLockDatabase provides a best-effort distributed lock so cron
// jobs run on a single instance at a time
type SchedulerLockDatabase interface {
	TryAcquireLock(ctx context.Context, jobName, instanceID string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, jobName, instanceID string) error
}

type schedulerLockDatabase struct {
	db DatabaseHelper
}

// NewSchedulerLockDatabase initializes a new instance of scheduler lock database with the provided db connection
func NewSchedulerLockDatabase(db DatabaseHelper) SchedulerLockDatabase {
	return &schedulerLockDatabase{
		db: db,
	}
}

func (s *schedulerLockDatabase) TryAcquireLock(ctx context.Context, jobName, instanceID string, ttl time.Duration) (bool, error) {
	now := time.Now()

	// clear a stale lock first so a crashed instance cannot wedge the job
	_ = s.db.Collection(schedulerLockCollectionName).DeleteOne(ctx, bson.M{
		"_id":       jobName,
		"expiresAt": bson.M{"$lt": now},
	})

	_, err := s.db.Collection(schedulerLockCollectionName).InsertOne(ctx, bson.M{
		"_id":       jobName,
		"owner":     instanceID,
		"expiresAt": now.Add(ttl),
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *schedulerLockDatabase) ReleaseLock(ctx context.Context, jobName, instanceID string) error {
	return s.db.Collection(schedulerLockCollectionName).DeleteOne(ctx, bson.M{
		"_id":   jobName,
		"owner": instanceID,
	})
}
