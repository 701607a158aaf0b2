//go:build integration

package store_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"rollcall/internal/ledger/models"
	"rollcall/internal/ledger/store"
	"rollcall/pkg/domain"
	"rollcall/pkg/platform/sentinel"
	"rollcall/pkg/testutil/containers"
)

type PostgresLedgerSuite struct {
	suite.Suite
	pg    *containers.PostgresContainer
	store *store.PostgresStore
}

func TestPostgresLedgerSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresLedgerSuite))
}

func (s *PostgresLedgerSuite) SetupSuite() {
	s.pg = containers.GetManager().GetPostgres(s.T())
	s.store = store.NewPostgres(s.pg.DB)
}

func (s *PostgresLedgerSuite) SetupTest() {
	s.Require().NoError(s.pg.TruncateTables(context.Background(), "attendance_records"))
}

func (s *PostgresLedgerSuite) checkIn(sid domain.SessionID, pid domain.ParticipantID, method domain.CheckInMethod) *models.Record {
	r, err := models.NewCheckIn(sid, "C1", pid, method, 0.9, models.OutcomePresent, time.Now().UTC().Truncate(time.Microsecond))
	s.Require().NoError(err)
	return r
}

func (s *PostgresLedgerSuite) TestConcurrentInsertsKeepOneRoot() {
	ctx := context.Background()
	sid := domain.NewSessionID()

	const workers = 20
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		fresh int
		dupes int
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.store.InsertCheckIn(ctx, s.checkIn(sid, "P1", domain.MethodToken))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				fresh++
			case errors.Is(err, sentinel.ErrDuplicate):
				dupes++
			}
		}()
	}
	wg.Wait()

	s.Equal(1, fresh)
	s.Equal(workers-1, dupes)
	records, err := s.store.ListBySession(ctx, sid)
	s.Require().NoError(err)
	s.Len(records, 1)
	s.Equal(1.0, records[0].Confidence)
}

func (s *PostgresLedgerSuite) TestDuplicateReturnsExistingRoot() {
	ctx := context.Background()
	sid := domain.NewSessionID()
	first, err := s.store.InsertCheckIn(ctx, s.checkIn(sid, "P1", domain.MethodFace))
	s.Require().NoError(err)

	existing, err := s.store.InsertCheckIn(ctx, s.checkIn(sid, "P1", domain.MethodToken))
	s.ErrorIs(err, sentinel.ErrDuplicate)
	s.Require().NotNil(existing)
	s.Equal(first.ID, existing.ID)
	s.Equal(domain.MethodFace, existing.Method)
	s.InDelta(0.9, existing.Confidence, 1e-9)
}

func (s *PostgresLedgerSuite) TestAmendChainAndAbsences() {
	ctx := context.Background()
	sid := domain.NewSessionID()
	root, err := s.store.InsertCheckIn(ctx, s.checkIn(sid, "P1", domain.MethodToken))
	s.Require().NoError(err)

	fix, err := models.NewCorrection(sid, "C1", "P1", models.OutcomeExcused, "note", time.Now().UTC())
	s.Require().NoError(err)
	amended, err := s.store.Amend(ctx, fix)
	s.Require().NoError(err)
	s.Require().NotNil(amended.Supersedes)
	s.Equal(root.ID, *amended.Supersedes)

	n, err := s.store.InsertAbsences(ctx, sid, "C1", []domain.ParticipantID{"P1", "P2", "P3"}, time.Now().UTC(), "closed")
	s.Require().NoError(err)
	s.Equal(2, n)

	records, err := s.store.ListBySession(ctx, sid)
	s.Require().NoError(err)
	s.Len(records, 4)

	history, err := s.store.ListByParticipant(ctx, "P1", time.Time{}, time.Time{})
	s.Require().NoError(err)
	s.Len(history, 2)
	s.Equal(models.OutcomeExcused, history[1].Outcome)
}
