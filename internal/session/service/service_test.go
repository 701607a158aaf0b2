package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"rollcall/internal/notify"
	"rollcall/internal/session/models"
	"rollcall/internal/session/service/mocks"
	"rollcall/internal/token/codec"
	tokenModels "rollcall/internal/token/models"
	tokenService "rollcall/internal/token/service"
	tokenStore "rollcall/internal/token/store"
	"rollcall/pkg/domain"
	dErrors "rollcall/pkg/domain-errors"
	"rollcall/pkg/requestcontext"
)

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks TokenIssuer,Publisher

type SessionServiceSuite struct {
	suite.Suite
	tokens *tokenService.Service
	svc    *Service
	now    time.Time
}

func TestSessionServiceSuite(t *testing.T) {
	suite.Run(t, new(SessionServiceSuite))
}

func (s *SessionServiceSuite) SetupTest() {
	c, err := codec.New([]byte(strings.Repeat("k", 32)))
	s.Require().NoError(err)
	s.tokens = tokenService.New(tokenStore.NewInMemory(4), c, tokenService.Config{
		TTL:       30 * time.Second,
		GraceSkew: 5 * time.Second,
		Retention: time.Minute,
	})
	s.svc = New(s.tokens)
	s.now = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
}

func (s *SessionServiceSuite) at(d time.Duration) context.Context {
	return requestcontext.WithTime(context.Background(), s.now.Add(d))
}

func (s *SessionServiceSuite) open() *models.Session {
	sess, tok, err := s.svc.Open(s.at(0), "C1", "instructor-1", "")
	s.Require().NoError(err)
	s.Require().NotNil(tok)
	return sess
}

func (s *SessionServiceSuite) checkIn(ctx context.Context, id domain.SessionID, p domain.ParticipantID) error {
	return s.svc.CheckIn(ctx, id, func(context.Context, *models.Session) (domain.ParticipantID, error) {
		return p, nil
	})
}

func (s *SessionServiceSuite) TestOpen() {
	sess, tok, err := s.svc.Open(s.at(0), "C1", "instructor-1", models.ModeToken)
	s.Require().NoError(err)

	s.Equal(models.StateActive, sess.State)
	s.Equal(models.ModeToken, sess.Mode)
	s.Equal(s.now, sess.OpenedAt)
	s.Equal(sess.ID, tok.SessionID)

	_, err = s.tokens.Validate(s.at(time.Second), sess.ID, tok.Value)
	s.NoError(err)

	s.Run("default mode applies", func() {
		sess := s.open()
		s.Equal(models.ModeBoth, sess.Mode)
	})

	s.Run("missing class rejected", func() {
		_, _, err := s.svc.Open(s.at(0), "", "instructor-1", "")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *SessionServiceSuite) TestClose() {
	sess := s.open()
	s.Require().NoError(s.checkIn(s.at(time.Second), sess.ID, "P1"))
	s.Require().NoError(s.checkIn(s.at(2*time.Second), sess.ID, "P2"))
	s.Require().NoError(s.checkIn(s.at(3*time.Second), sess.ID, "P1"))

	count, err := s.svc.Close(s.at(time.Minute), sess.ID)
	s.Require().NoError(err)
	s.Equal(2, count)

	s.Run("check-in after close fails as closed", func() {
		err := s.checkIn(s.at(2*time.Minute), sess.ID, "P3")
		s.True(dErrors.HasCode(err, dErrors.CodeSessionClosed))
	})

	s.Run("second close is an invalid transition", func() {
		_, err := s.svc.Close(s.at(2*time.Minute), sess.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidStateTransition))
	})

	s.Run("unknown session close is an invalid transition", func() {
		_, err := s.svc.Close(s.at(0), domain.NewSessionID())
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidStateTransition))
	})

	s.Run("live token revoked", func() {
		_, err := s.tokens.Current(s.at(time.Minute), sess.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("snapshot reflects closure", func() {
		got, err := s.svc.Get(context.Background(), sess.ID)
		s.Require().NoError(err)
		s.Equal(models.StateClosed, got.State)
		s.Nil(got.CurrentToken)
		s.Equal(2, got.AttendeeCount())
	})
}

func (s *SessionServiceSuite) TestCheckInErrorsDoNotAddAttendee() {
	sess := s.open()
	err := s.svc.CheckIn(s.at(time.Second), sess.ID, func(context.Context, *models.Session) (domain.ParticipantID, error) {
		return "", dErrors.New(dErrors.CodeNoMatch, "no match")
	})
	s.True(dErrors.HasCode(err, dErrors.CodeNoMatch))

	got, err := s.svc.Get(context.Background(), sess.ID)
	s.Require().NoError(err)
	s.Zero(got.AttendeeCount())

	err = s.checkIn(s.at(0), domain.NewSessionID(), "P1")
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *SessionServiceSuite) TestCloseWaitsForInFlightCheckIns() {
	sess := s.open()

	const participants = 50
	var started sync.WaitGroup
	var done sync.WaitGroup
	var committed atomic.Int32
	release := make(chan struct{})

	for i := range participants {
		started.Add(1)
		done.Add(1)
		go func() {
			defer done.Done()
			err := s.svc.CheckIn(s.at(time.Second), sess.ID, func(context.Context, *models.Session) (domain.ParticipantID, error) {
				started.Done()
				<-release
				committed.Add(1)
				return domain.ParticipantID(fmt.Sprintf("P%d", i)), nil
			})
			s.NoError(err)
		}()
	}
	started.Wait()

	closed := make(chan int)
	go func() {
		count, err := s.svc.Close(s.at(time.Minute), sess.ID)
		s.NoError(err)
		closed <- count
	}()

	close(release)
	count := <-closed
	done.Wait()

	s.Equal(int(committed.Load()), count)
	s.Equal(participants, count)
}

func (s *SessionServiceSuite) TestRotate() {
	sess := s.open()
	first := sess.CurrentToken

	next, err := s.svc.Rotate(s.at(10*time.Second), sess.ID)
	s.Require().NoError(err)
	s.NotEqual(first.Value, next.Value)

	got, err := s.svc.Get(context.Background(), sess.ID)
	s.Require().NoError(err)
	s.Equal(next.Value, got.CurrentToken.Value)

	_, err = s.tokens.Validate(s.at(12*time.Second), sess.ID, first.Value)
	s.NoError(err, "old token honored within grace")

	_, err = s.svc.Close(s.at(20*time.Second), sess.ID)
	s.Require().NoError(err)
	_, err = s.svc.Rotate(s.at(21*time.Second), sess.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidStateTransition))
}

func (s *SessionServiceSuite) TestRotateActiveSkipsClosed() {
	a := s.open()
	b := s.open()
	_, err := s.svc.Close(s.at(time.Second), b.ID)
	s.Require().NoError(err)

	rotated, err := s.svc.RotateActive(s.at(30 * time.Second))
	s.Require().NoError(err)
	s.Equal(1, rotated)

	got, err := s.svc.Get(context.Background(), a.ID)
	s.Require().NoError(err)
	s.NotEqual(a.CurrentToken.Value, got.CurrentToken.Value)
}

func (s *SessionServiceSuite) TestRotatorTick() {
	a := s.open()
	b := s.open()
	_, err := s.svc.Close(s.at(time.Second), b.ID)
	s.Require().NoError(err)

	r := NewRotator(s.svc, 30*time.Second, time.Hour, nil)
	r.TickAt(context.Background(), s.now.Add(30*time.Second))

	got, err := s.svc.Get(context.Background(), a.ID)
	s.Require().NoError(err)
	s.NotEqual(a.CurrentToken.Value, got.CurrentToken.Value)

	r.TickAt(context.Background(), s.now.Add(2*time.Hour))
	_, err = s.svc.Get(context.Background(), b.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound), "closed session evicted after retention")
	_, err = s.svc.Get(context.Background(), a.ID)
	s.NoError(err, "active session never evicted")
}

func (s *SessionServiceSuite) TestPublishesLifecycleEvents() {
	ctrl := gomock.NewController(s.T())
	publisher := mocks.NewMockPublisher(ctrl)
	svc := New(s.tokens, WithPublisher(publisher))

	var kinds []notify.Kind
	publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).
		Do(func(_ context.Context, e notify.Event) { kinds = append(kinds, e.Kind) }).
		Times(2)

	sess, _, err := svc.Open(s.at(0), "C1", "instructor-1", "")
	s.Require().NoError(err)
	_, err = svc.Close(s.at(time.Minute), sess.ID)
	s.Require().NoError(err)

	s.Equal([]notify.Kind{notify.KindSessionOpened, notify.KindSessionClosed}, kinds)
}

func (s *SessionServiceSuite) TestIssuerFailures() {
	ctrl := gomock.NewController(s.T())
	issuer := mocks.NewMockTokenIssuer(ctrl)
	svc := New(issuer)

	s.Run("open fails when no token can be minted", func() {
		issuer.EXPECT().Issue(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeInternal, "store down"))
		_, _, err := svc.Open(s.at(0), "C1", "instructor-1", "")
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})

	s.Run("close succeeds even if revoke fails", func() {
		issuer.EXPECT().Issue(gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(ctx context.Context, id domain.SessionID, ttl time.Duration) (*tokenModels.Token, error) {
				return tokenModels.New(id, requestcontext.Now(ctx), 30*time.Second)
			})
		issuer.EXPECT().Revoke(gomock.Any(), gomock.Any()).Return(errors.New("redis down"))

		sess, _, err := svc.Open(s.at(0), "C1", "instructor-1", "")
		s.Require().NoError(err)
		count, err := svc.Close(s.at(time.Minute), sess.ID)
		s.NoError(err)
		s.Zero(count)
	})
}
