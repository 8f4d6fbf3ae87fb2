//go:build integration

package workflow_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"firmo/internal/workflow"
	id "firmo/pkg/domain"
	"firmo/pkg/platform/sentinel"
	"firmo/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *workflow.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = workflow.NewPostgresStore(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(), "property_workflows")
	s.Require().NoError(err)
}

// TestSaveRoundTrip verifies the progress map survives the jsonb column.
func (s *PostgresStoreSuite) TestSaveRoundTrip() {
	ctx := context.Background()
	propertyID := id.NewPropertyID()
	completedAt := time.Now().UTC().Truncate(time.Microsecond)

	w := workflow.New(propertyID)
	w.Status = workflow.StatusPendingGuarantor
	w.AppendProgress(id.RoleTenant, completedAt)
	w.UpdatedAt = completedAt
	s.Require().NoError(s.store.Save(ctx, w))

	got, err := s.store.FindByProperty(ctx, propertyID)
	s.Require().NoError(err)
	s.Equal(workflow.StatusPendingGuarantor, got.Status)
	s.True(got.Completed(id.RoleTenant))
	s.False(got.Completed(id.RoleLandlord))
	s.WithinDuration(completedAt, got.Data.BiometricProgress[id.RoleTenant].CompletedAt, time.Millisecond)
}

// TestSaveUpserts verifies a second save replaces status and data in place.
func (s *PostgresStoreSuite) TestSaveUpserts() {
	ctx := context.Background()
	propertyID := id.NewPropertyID()
	now := time.Now()

	w := workflow.New(propertyID)
	w.Status = workflow.StatusPendingTenant
	w.UpdatedAt = now
	s.Require().NoError(s.store.Save(ctx, w))

	w.Status = workflow.StatusCompleted
	w.AppendProgress(id.RoleTenant, now)
	w.AppendProgress(id.RoleLandlord, now.Add(time.Hour))
	w.UpdatedAt = now.Add(time.Hour)
	s.Require().NoError(s.store.Save(ctx, w))

	got, err := s.store.FindByProperty(ctx, propertyID)
	s.Require().NoError(err)
	s.Equal(workflow.StatusCompleted, got.Status)
	s.Len(got.Data.BiometricProgress, 2)
}

// TestFindMissingWorkflow verifies the not-found sentinel.
func (s *PostgresStoreSuite) TestFindMissingWorkflow() {
	_, err := s.store.FindByProperty(context.Background(), id.NewPropertyID())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

// TestProgressMapNeverNil verifies a read always yields a usable map, even
// for a row saved with no progress.
func (s *PostgresStoreSuite) TestProgressMapNeverNil() {
	ctx := context.Background()
	propertyID := id.NewPropertyID()

	w := &workflow.Workflow{
		PropertyID: propertyID,
		Status:     workflow.StatusPendingTenant,
		UpdatedAt:  time.Now(),
	}
	s.Require().NoError(s.store.Save(ctx, w))

	got, err := s.store.FindByProperty(ctx, propertyID)
	s.Require().NoError(err)
	s.Require().NotNil(got.Data.BiometricProgress)

	got.AppendProgress(id.RoleTenant, time.Now())
	s.True(got.Completed(id.RoleTenant))
}
