package store

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kpetrov/jobscout/internal/jobs"
)

// Integration tests run against a throwaway database:
//
//	JOBSCOUT_TEST_DATABASE_URL=postgres://localhost/jobscout_test go test ./internal/store/
func testStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("JOBSCOUT_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("JOBSCOUT_TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	s, err := New(ctx, dsn, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(s.Close)

	require.NoError(t, s.Migrate(ctx))
	_, err = s.pool.Exec(ctx, `TRUNCATE postings, runs`)
	require.NoError(t, err)
	return s
}

func posting(title, company string, score int) *jobs.Posting {
	return &jobs.Posting{
		Source:   "Greenhouse",
		SourceID: "gh_test_1",
		Title:    title,
		Company:  company,
		Score:    score,
		PostedAt: time.Now().UTC(),
		Breakdown: jobs.Breakdown{
			Base: 10, Skills: 20, Seniority: 25, Sponsorship: 16, CompanyTier: 13,
		},
	}
}

func TestInsertBatchSkipsZeroScore(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	inserted, err := s.InsertBatch(ctx, []*jobs.Posting{
		posting("Software Engineer", "Stripe", 84),
		posting("Security Clearance Role", "DefenseCo", 0),
	})
	require.NoError(t, err)
	require.Equal(t, 1, inserted)

	_, err = s.Get(ctx, jobs.IdentityKey("Security Clearance Role", "DefenseCo"))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestArchivedKeyIsTombstone(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	key := jobs.IdentityKey("Software Engineer", "Stripe")

	_, err := s.InsertBatch(ctx, []*jobs.Posting{posting("Software Engineer", "Stripe", 84)})
	require.NoError(t, err)
	require.NoError(t, s.Archive(ctx, key))

	// A later run re-discovering the same offer must not revive it.
	_, err = s.InsertBatch(ctx, []*jobs.Posting{posting("Software Engineer", "Stripe", 90)})
	require.NoError(t, err)

	got, err := s.Get(ctx, key)
	require.NoError(t, err)
	require.Equal(t, jobs.StatusArchived, got.Status)
	require.Equal(t, 84, got.Score, "tombstone row must keep its original fields")

	keys, err := s.ExistingKeys(ctx)
	require.NoError(t, err)
	require.True(t, keys[key], "archived key must stay in the dedup set")
}

func TestUpdateStatusValidatesTransitions(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	key := jobs.IdentityKey("Software Engineer", "Stripe")

	_, err := s.InsertBatch(ctx, []*jobs.Posting{posting("Software Engineer", "Stripe", 84)})
	require.NoError(t, err)

	require.NoError(t, s.UpdateStatus(ctx, key, jobs.StatusApplied))
	require.NoError(t, s.UpdateStatus(ctx, key, jobs.StatusInterviewing))

	err = s.UpdateStatus(ctx, key, jobs.StatusNew)
	require.ErrorIs(t, err, ErrBadTransition)

	err = s.UpdateStatus(ctx, "no|such", jobs.StatusApplied)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestUnarchiveReturnsToNew(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	key := jobs.IdentityKey("Software Engineer", "Stripe")

	_, err := s.InsertBatch(ctx, []*jobs.Posting{posting("Software Engineer", "Stripe", 84)})
	require.NoError(t, err)
	require.NoError(t, s.Archive(ctx, key))
	require.NoError(t, s.Unarchive(ctx, key))

	got, err := s.Get(ctx, key)
	require.NoError(t, err)
	require.Equal(t, jobs.StatusNew, got.Status)
}

func TestNotificationFlow(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	_, err := s.InsertBatch(ctx, []*jobs.Posting{
		posting("Software Engineer", "Stripe", 84),
		posting("Backend Engineer", "Ramp", 40),
	})
	require.NoError(t, err)

	pending, err := s.Unnotified(ctx, 60)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, "Stripe", pending[0].Company)

	require.NoError(t, s.MarkNotified(ctx, []string{pending[0].IdentityKey()}))

	pending, err = s.Unnotified(ctx, 60)
	require.NoError(t, err)
	require.Empty(t, pending)
}

func TestQueryFilters(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	low := posting("Backend Engineer", "Ramp", 40)
	low.Source = "Lever"
	_, err := s.InsertBatch(ctx, []*jobs.Posting{
		posting("Software Engineer", "Stripe", 84),
		low,
	})
	require.NoError(t, err)

	got, err := s.Query(ctx, QueryOpts{MinScore: 50})
	require.NoError(t, err)
	require.Len(t, got, 1)

	got, err = s.Query(ctx, QueryOpts{Source: "Lever"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "Ramp", got[0].Company)
}

func TestLogRun(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	err := s.LogRun(ctx, Run{
		StartedAt:  time.Now().Add(-time.Minute),
		FinishedAt: time.Now(),
		Fetched:    120, Filtered: 80, Scored: 30, Stored: 12,
		BySource: map[string]int{"Greenhouse": 60, "Remotive": 60},
	})
	require.NoError(t, err)

	var count int
	require.NoError(t, s.pool.QueryRow(ctx, `SELECT count(*) FROM runs`).Scan(&count))
	require.Equal(t, 1, count)
}

func TestBadStatusValue(t *testing.T) {
	s := testStore(t)
	err := s.UpdateStatus(context.Background(), "any|key", jobs.Status("bogus"))
	if !errors.Is(err, ErrBadTransition) {
		t.Fatalf("err = %v, want ErrBadTransition", err)
	}
}
