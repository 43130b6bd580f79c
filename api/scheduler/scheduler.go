package scheduler

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/linesmerrill/dispute-resolution-api/databases"
	"github.com/linesmerrill/dispute-resolution-api/models"
)

const (
	autoCloseJobName = "auto_close_resolved_cases"

	// defaultRetentionDays is how long a resolved case may sit without
	// activity before the scheduler closes it
	defaultRetentionDays = 30
)

// Scheduler handles periodic background jobs for case housekeeping
type Scheduler struct {
	cron       *cron.Cron
	CDB        databases.CaseDatabase
	LockDB     databases.SchedulerLockDatabase
	instanceID string
}

// New creates a new scheduler instance
func New(cDB databases.CaseDatabase, lockDB databases.SchedulerLockDatabase) *Scheduler {
	// Generate a unique instance ID for this pod
	instanceID := os.Getenv("DYNO") // Heroku sets this to "web.1", "web.2", etc.
	if instanceID == "" {
		instanceID = fmt.Sprintf("instance-%d", time.Now().UnixNano())
	}

	return &Scheduler{
		cron:       cron.New(cron.WithLocation(time.UTC)),
		CDB:        cDB,
		LockDB:     lockDB,
		instanceID: instanceID,
	}
}

// Start begins the scheduler with all registered jobs
func (s *Scheduler) Start() {
	// Close stale resolved cases daily at 3 AM UTC
	_, err := s.cron.AddFunc("0 3 * * *", s.autoCloseResolvedCases)
	if err != nil {
		zap.S().Errorw("failed to register auto-close job", "error", err)
	}

	s.cron.Start()
	zap.S().Info("Case scheduler started")
}

// Stop gracefully stops the scheduler
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	zap.S().Info("Case scheduler stopped")
}

func retentionDays() int {
	if v := os.Getenv("CASE_RETENTION_DAYS"); v != "" {
		if days, err := strconv.Atoi(v); err == nil && days > 0 {
			return days
		}
		zap.S().Warnw("invalid CASE_RETENTION_DAYS, using default", "value", v)
	}
	return defaultRetentionDays
}

// autoCloseResolvedCases closes resolved cases that have seen no activity
// for the retention window
func (s *Scheduler) autoCloseResolvedCases() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	// Try to acquire distributed lock (10 minute TTL)
	acquired, err := s.LockDB.TryAcquireLock(ctx, autoCloseJobName, s.instanceID, 10*time.Minute)
	if err != nil {
		zap.S().Errorw("failed to acquire lock for auto-close job", "error", err)
		return
	}
	if !acquired {
		zap.S().Debug("Auto-close job already running on another instance, skipping")
		return
	}
	defer s.LockDB.ReleaseLock(ctx, autoCloseJobName, s.instanceID)

	cutoff := time.Now().Add(-time.Duration(retentionDays()) * 24 * time.Hour)

	zap.S().Infow("Running auto-close job", "instance", s.instanceID, "cutoff", cutoff)

	staleFilter := bson.M{
		"case.status":    models.CaseStatusResolved,
		"case.updatedAt": bson.M{"$lt": primitive.NewDateTimeFromTime(cutoff)},
	}
	staleCases, err := s.CDB.Find(ctx, staleFilter)
	if err != nil {
		zap.S().Errorw("failed to find stale resolved cases", "error", err)
		return
	}

	closed := 0
	now := primitive.NewDateTimeFromTime(time.Now())
	for _, stale := range staleCases {
		update := bson.M{
			"$set": bson.M{
				"case.status":    models.CaseStatusClosed,
				"case.updatedAt": now,
			},
			"$push": bson.M{
				"case.history": models.CaseHistoryEntry{
					Action:    "auto_closed",
					UserID:    "system",
					Notes:     fmt.Sprintf("closed after %d days without activity", retentionDays()),
					Timestamp: now,
				},
			},
		}
		// status is re-checked in the filter so a concurrent manual close wins
		err := s.CDB.UpdateOne(ctx, bson.M{
			"_id":         stale.ID,
			"case.status": models.CaseStatusResolved,
		}, update)
		if err != nil {
			zap.S().Errorw("failed to auto-close case", "error", err, "caseId", stale.ID.Hex())
			continue
		}
		closed++
	}

	zap.S().Infow("Auto-close job complete", "checked", len(staleCases), "closed", closed)
}
