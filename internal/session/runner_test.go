package session_test

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/vytor/lingoflash/internal/errors"
	"github.com/vytor/lingoflash/internal/models"
	"github.com/vytor/lingoflash/internal/repository/memory"
	"github.com/vytor/lingoflash/internal/session"
	"github.com/vytor/lingoflash/internal/store"
	"github.com/vytor/lingoflash/internal/testutil"
	"github.com/vytor/lingoflash/internal/testutil/mocks"
)

var fastRetry = session.RetryPolicy{
	MaxAttempts:     3,
	InitialInterval: time.Millisecond,
	MaxInterval:     2 * time.Millisecond,
}

// failTimes fails op for the first n calls, then succeeds.
func failTimes(target string, n int) memory.FailFunc {
	calls := 0
	return func(op string) error {
		if op != target {
			return nil
		}
		calls++
		if calls <= n {
			return stderrors.New("transient " + op + " failure")
		}
		return nil
	}
}

func failAlways(target string) memory.FailFunc {
	return func(op string) error {
		if op == target {
			return stderrors.New(op + " unavailable")
		}
		return nil
	}
}

type RunnerSuite struct {
	suite.Suite
	ctx      context.Context
	items    *memory.ItemRepository
	outcomes *memory.OutcomeRepository
	store    *store.Store
	runner   *session.Runner
}

func (s *RunnerSuite) SetupTest() {
	s.ctx = context.Background()
	s.items = memory.NewItemRepository(
		testutil.DueItem("due", testutil.Days(1)),
		testutil.NewItem("fresh"),
		testutil.ScheduledItem("later", testutil.Days(3)),
	)
	s.outcomes = memory.NewOutcomeRepository()
	s.store = store.New(s.items)
	s.runner = session.NewRunner(s.store, s.outcomes,
		session.WithRetryPolicy(fastRetry),
		session.WithIDGenerator(func() string { return "sess-1" }),
	)
	s.Require().NoError(s.runner.Init(s.ctx))
}

func TestRunnerSuite(t *testing.T) {
	suite.Run(t, new(RunnerSuite))
}

func (s *RunnerSuite) startSession() *session.Session {
	sess := s.runner.NewSession(testutil.Ref, 0)
	s.Require().NoError(s.runner.Start(sess, testutil.Ref))
	return sess
}

func (s *RunnerSuite) loggedOutcomes() []models.ReviewOutcome {
	out, err := s.outcomes.List(s.ctx, time.Time{})
	s.Require().NoError(err)
	return out
}

func (s *RunnerSuite) TestNewSession() {
	sess := s.runner.NewSession(testutil.Ref, 0)

	s.Equal("sess-1", sess.ID)
	s.Equal([]string{"due", "fresh"}, ids(sess.Items))
	s.Equal(session.StateNotStarted, sess.State)
	s.Zero(sess.Elapsed(testutil.Ref.Add(time.Hour)))
}

func (s *RunnerSuite) TestCompleteItem_WritesBack() {
	sess := s.startSession()

	t1 := testutil.Ref.Add(30 * time.Second)
	updated, err := s.runner.CompleteItem(s.ctx, sess, "due", true, t1)
	s.Require().NoError(err)
	s.Equal(40, updated.MasteryLevel)
	s.Equal(2, updated.ReviewCount)

	t2 := t1.Add(45 * time.Second)
	updated, err = s.runner.CompleteItem(s.ctx, sess, "fresh", true, t2)
	s.Require().NoError(err)
	s.Equal(20, updated.MasteryLevel)
	s.Equal(1, updated.ReviewCount)
	s.True(t2.Add(testutil.Days(3)).Equal(*updated.NextReview))

	stored, err := s.store.GetByID("fresh")
	s.Require().NoError(err)
	s.Equal(updated.MasteryLevel, stored.MasteryLevel)
	s.True(updated.NextReview.Equal(*stored.NextReview))
	persisted, ok := s.items.Get("fresh")
	s.Require().True(ok)
	s.Equal(20, persisted.MasteryLevel)

	logged := s.loggedOutcomes()
	s.Require().Len(logged, 2)
	s.Equal(30*time.Second, logged[0].TimeSpent)
	s.Equal(45*time.Second, logged[1].TimeSpent)
	s.Equal("sess-1", logged[1].SessionID)

	s.Equal(session.StateCompleted, sess.State)
	s.Equal(2, sess.Answered)
	s.Equal(2, sess.Correct)
	s.InDelta(100.0, sess.Accuracy(), 0.001)
	s.Equal(75*time.Second, sess.Elapsed(t2.Add(time.Hour)))
	s.Empty(s.runner.Pending())
}

func (s *RunnerSuite) TestCompleteItem_IncorrectKeepsCount() {
	sess := s.startSession()

	updated, err := s.runner.CompleteItem(s.ctx, sess, "due", false, testutil.Ref)
	s.Require().NoError(err)
	s.Equal(10, updated.MasteryLevel)
	s.Equal(1, updated.ReviewCount)
	s.True(testutil.Ref.Add(testutil.Days(3)).Equal(*updated.NextReview))
}

func (s *RunnerSuite) TestCompleteItem_OutOfTurn() {
	sess := s.startSession()

	_, err := s.runner.CompleteItem(s.ctx, sess, "fresh", true, testutil.Ref)
	s.True(errors.IsValidation(err))
	s.Equal(0, sess.Position())
	s.Empty(s.loggedOutcomes())
}

func (s *RunnerSuite) TestCompleteItem_WrongState() {
	sess := s.runner.NewSession(testutil.Ref, 0)

	_, err := s.runner.CompleteItem(s.ctx, sess, "due", true, testutil.Ref)
	s.True(errors.IsValidation(err), "not started")

	s.Require().NoError(s.runner.Start(sess, testutil.Ref))
	s.True(errors.IsValidation(s.runner.Start(sess, testutil.Ref)), "started twice")

	s.Require().NoError(s.runner.Skip(sess, "due", testutil.Ref))
	s.Require().NoError(s.runner.Skip(sess, "fresh", testutil.Ref))
	s.Equal(session.StateCompleted, sess.State)

	_, err = s.runner.CompleteItem(s.ctx, sess, "fresh", true, testutil.Ref)
	s.True(errors.IsValidation(err), "completed")
}

func (s *RunnerSuite) TestStart_EmptySessionCompletes() {
	sess := s.runner.NewSession(testutil.Ref.Add(-testutil.Days(30)), 0)
	sess.Items = nil

	s.Require().NoError(s.runner.Start(sess, testutil.Ref))
	s.Equal(session.StateCompleted, sess.State)
	_, ok := sess.Current()
	s.False(ok)
}

func (s *RunnerSuite) TestSkip_RecordsNothing() {
	sess := s.startSession()

	s.Require().NoError(s.runner.Skip(sess, "due", testutil.Ref))
	s.Equal(1, sess.Skipped)
	current, ok := sess.Current()
	s.Require().True(ok)
	s.Equal("fresh", current.ID)

	s.True(errors.IsValidation(s.runner.Skip(sess, "due", testutil.Ref)))

	item, err := s.store.GetByID("due")
	s.Require().NoError(err)
	s.Equal(1, item.ReviewCount)
	s.Empty(s.loggedOutcomes())
}

func (s *RunnerSuite) TestAbandon_LeavesUnreviewedItemsAlone() {
	sess := s.startSession()
	_, err := s.runner.CompleteItem(s.ctx, sess, "due", true, testutil.Ref)
	s.Require().NoError(err)

	s.runner.Abandon(sess)

	s.Equal(session.StateNotStarted, sess.State)
	s.Equal(0, sess.Position())
	s.Equal(0, sess.Answered)
	fresh, err := s.store.GetByID("fresh")
	s.Require().NoError(err)
	s.True(fresh.IsNew())
	s.Len(s.loggedOutcomes(), 1, "the answered item stays recorded")

	s.Require().NoError(s.runner.Start(sess, testutil.Ref), "an abandoned session can be restarted")
}

func (s *RunnerSuite) TestCompleteItem_TransientFailureRetried() {
	s.items.FailWith(failTimes("Save", 2))
	sess := s.startSession()

	_, err := s.runner.CompleteItem(s.ctx, sess, "due", true, testutil.Ref)
	s.Require().NoError(err)

	s.Len(s.loggedOutcomes(), 1)
	s.Empty(s.runner.Pending())
	persisted, _ := s.items.Get("due")
	s.Equal(2, persisted.ReviewCount)
}

func (s *RunnerSuite) TestCompleteItem_ExhaustedItemWriteIsBuffered() {
	s.items.FailWith(failAlways("Save"))
	sess := s.startSession()

	updated, err := s.runner.CompleteItem(s.ctx, sess, "due", true, testutil.Ref)
	s.Require().Error(err)
	s.True(errors.IsPersistence(err))
	s.Equal(40, updated.MasteryLevel)
	s.Equal(1, sess.Position(), "cursor advances")

	pending := s.runner.Pending()
	s.Require().Len(pending, 1)
	s.False(pending[0].ItemSaved)
	s.Equal(fastRetry.MaxAttempts, pending[0].Attempts)
	s.Error(pending[0].LastErr)
	s.Empty(s.loggedOutcomes())

	stored, _ := s.store.GetByID("due")
	s.Equal(20, stored.MasteryLevel, "memory never runs ahead of storage")

	s.items.FailWith(nil)
	flushed, err := s.runner.RetryPending(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, flushed)
	s.Empty(s.runner.Pending())

	stored, _ = s.store.GetByID("due")
	s.Equal(40, stored.MasteryLevel)
	s.Len(s.loggedOutcomes(), 1)
}

func (s *RunnerSuite) TestCompleteItem_ExhaustedOutcomeAppendNotDuplicated() {
	s.outcomes.FailWith(failAlways("Append"))
	sess := s.startSession()

	_, err := s.runner.CompleteItem(s.ctx, sess, "due", false, testutil.Ref)
	s.True(errors.IsPersistence(err))

	pending := s.runner.Pending()
	s.Require().Len(pending, 1)
	s.True(pending[0].ItemSaved)

	s.outcomes.FailWith(nil)
	_, err = s.runner.RetryPending(s.ctx)
	s.Require().NoError(err)
	s.Len(s.loggedOutcomes(), 1)
}

func (s *RunnerSuite) TestRetryPending_StillFailingKeepsOrder() {
	s.outcomes.FailWith(failAlways("Append"))
	sess := s.startSession()
	_, err := s.runner.CompleteItem(s.ctx, sess, "due", true, testutil.Ref)
	s.Require().Error(err)
	_, err = s.runner.CompleteItem(s.ctx, sess, "fresh", true, testutil.Ref)
	s.Require().Error(err)

	flushed, err := s.runner.RetryPending(s.ctx)
	s.True(errors.IsPersistence(err))
	s.Equal(0, flushed)

	pending := s.runner.Pending()
	s.Require().Len(pending, 2)
	s.Equal("due", pending[0].Outcome.ItemID)
	s.Equal("fresh", pending[1].Outcome.ItemID)
}

func (s *RunnerSuite) TestCompleteItem_BuildsOnBufferedState() {
	s.items.FailWith(failAlways("Save"))
	first := s.startSession()
	s.Require().NoError(s.runner.Skip(first, "due", testutil.Ref))
	_, err := s.runner.CompleteItem(s.ctx, first, "fresh", true, testutil.Ref)
	s.Require().Error(err)
	s.Require().Len(s.runner.Pending(), 1)

	s.items.FailWith(nil)
	later := testutil.Ref.Add(testutil.Days(3))
	second := s.runner.NewSession(later, 0)
	s.Require().NoError(s.runner.Start(second, later))
	s.Require().NoError(s.runner.Skip(second, "due", later))

	updated, err := s.runner.CompleteItem(s.ctx, second, "fresh", true, later)
	s.Require().NoError(err)
	s.Equal(40, updated.MasteryLevel)
	s.Equal(2, updated.ReviewCount)

	_, err = s.runner.RetryPending(s.ctx)
	s.Require().NoError(err)

	stored, _ := s.store.GetByID("fresh")
	s.Equal(40, stored.MasteryLevel, "older buffered state does not overwrite newer")
	s.Len(s.loggedOutcomes(), 2)
}

func (s *RunnerSuite) TestNewSession_UsesBufferedState() {
	s.items.FailWith(failAlways("Save"))
	sess := s.startSession()
	_, err := s.runner.CompleteItem(s.ctx, sess, "due", true, testutil.Ref)
	s.Require().True(errors.IsPersistence(err))

	stored, _ := s.store.GetByID("due")
	s.Require().True(stored.NextReview.Before(testutil.Ref), "storage still holds the due state")

	next := s.runner.NewSession(testutil.Ref, 0)
	s.NotContains(ids(next.Items), "due")
	s.Equal([]string{"fresh"}, ids(next.Items))

	st := s.runner.Stats(testutil.Ref)
	s.Equal(0, st.DueItems)
	s.Equal(1, st.NewItems)
	s.Equal(3, st.TotalItems)
	s.Equal(1, s.store.Stats(testutil.Ref).DueItems)
}

func (s *RunnerSuite) TestItems_BufferedStateDoesNotResurrect() {
	s.items.FailWith(failAlways("Save"))
	sess := s.startSession()
	_, err := s.runner.CompleteItem(s.ctx, sess, "due", true, testutil.Ref)
	s.Require().Error(err)

	s.items.FailWith(nil)
	_, err = s.store.Remove(s.ctx, "due")
	s.Require().NoError(err)

	s.Equal([]string{"fresh", "later"}, ids(s.runner.Items()))
}

// rejectingStore turns every Upsert into a validation failure while reject is
// set.
type rejectingStore struct {
	*store.Store
	reject bool
}

func (r *rejectingStore) Upsert(ctx context.Context, item models.LearningItem) (models.LearningItem, error) {
	if r.reject {
		return models.LearningItem{}, errors.NewValidationError("content", "rejected")
	}
	return r.Store.Upsert(ctx, item)
}

func (s *RunnerSuite) TestCompleteItem_RejectedAnswerKeepsOlderBuffered() {
	cs := &rejectingStore{Store: s.store}
	runner := session.NewRunner(cs, s.outcomes, session.WithRetryPolicy(fastRetry))

	s.items.FailWith(failAlways("Save"))
	first := runner.NewSession(testutil.Ref, 0)
	s.Require().NoError(runner.Start(first, testutil.Ref))
	s.Require().NoError(runner.Skip(first, "due", testutil.Ref))
	_, err := runner.CompleteItem(s.ctx, first, "fresh", true, testutil.Ref)
	s.Require().True(errors.IsPersistence(err))

	s.items.FailWith(nil)
	cs.reject = true
	later := testutil.Ref.Add(testutil.Days(3))
	second := runner.NewSession(later, 0)
	s.Require().NoError(runner.Start(second, later))
	s.Require().NoError(runner.Skip(second, "due", later))
	_, err = runner.CompleteItem(s.ctx, second, "fresh", false, later)
	s.Require().True(errors.IsValidation(err))

	pending := runner.Pending()
	s.Require().Len(pending, 1)
	s.False(pending[0].ItemSaved, "a rejected answer does not stand in for the buffered one")

	cs.reject = false
	flushed, err := runner.RetryPending(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, flushed)

	stored, _ := s.store.GetByID("fresh")
	s.Equal(1, stored.ReviewCount)
	s.Equal(20, stored.MasteryLevel)
	s.Len(s.loggedOutcomes(), 1)
}

func (s *RunnerSuite) TestCompleteItem_RemovedItem() {
	sess := s.startSession()
	_, err := s.store.Remove(s.ctx, "due")
	s.Require().NoError(err)

	_, err = s.runner.CompleteItem(s.ctx, sess, "due", true, testutil.Ref)
	s.True(errors.IsNotFound(err))
	s.Equal(0, sess.Position())
}

func (s *RunnerSuite) TestRetryPending_ItemRemovedMeanwhile() {
	s.items.FailWith(failAlways("Save"))
	sess := s.startSession()
	_, err := s.runner.CompleteItem(s.ctx, sess, "due", true, testutil.Ref)
	s.Require().Error(err)

	s.items.FailWith(nil)
	_, err = s.store.Remove(s.ctx, "due")
	s.Require().NoError(err)

	_, err = s.runner.RetryPending(s.ctx)
	s.Require().NoError(err)

	_, err = s.store.GetByID("due")
	s.True(errors.IsNotFound(err), "flush does not resurrect removed items")
	s.Len(s.loggedOutcomes(), 1)
}

func (s *RunnerSuite) TestClose_FlushesPending() {
	s.outcomes.FailWith(failAlways("Append"))
	sess := s.startSession()
	_, err := s.runner.CompleteItem(s.ctx, sess, "due", true, testutil.Ref)
	s.Require().Error(err)

	s.True(errors.IsPersistence(s.runner.Close(s.ctx)))
	s.True(s.store.Loaded(), "store stays open while writes are pending")

	s.outcomes.FailWith(nil)
	s.Require().NoError(s.runner.Close(s.ctx))
	s.False(s.store.Loaded())
	s.Len(s.loggedOutcomes(), 1)
}

func TestCompleteItem_AppendsOutcomeOnce(t *testing.T) {
	ctx := context.Background()
	items := memory.NewItemRepository(testutil.NewItem("a"))
	items.FailWith(failTimes("Save", 2))
	st := store.New(items)
	require.NoError(t, st.Init(ctx))

	outcomes := new(mocks.MockOutcomeRepository)
	outcomes.On("Append", mock.Anything, mock.MatchedBy(func(o models.ReviewOutcome) bool {
		return o.ItemID == "a" && o.Correct
	})).Return(nil).Once()

	runner := session.NewRunner(st, outcomes, session.WithRetryPolicy(fastRetry))
	sess := runner.NewSession(testutil.Ref, 1)
	require.NoError(t, runner.Start(sess, testutil.Ref))

	_, err := runner.CompleteItem(ctx, sess, "a", true, testutil.Ref)
	require.NoError(t, err)
	outcomes.AssertExpectations(t)
	outcomes.AssertNumberOfCalls(t, "Append", 1)
}

func TestPending_NotBlockedByRetryBackoff(t *testing.T) {
	ctx := context.Background()
	items := memory.NewItemRepository(testutil.DueItem("a", testutil.Days(1)))
	st := store.New(items)
	require.NoError(t, st.Init(ctx))

	firstTry := make(chan struct{})
	var once sync.Once
	items.FailWith(func(op string) error {
		if op != "Save" {
			return nil
		}
		once.Do(func() { close(firstTry) })
		return stderrors.New("disk busy")
	})

	runner := session.NewRunner(st, memory.NewOutcomeRepository(), session.WithRetryPolicy(session.RetryPolicy{
		MaxAttempts:     3,
		InitialInterval: 300 * time.Millisecond,
		MaxInterval:     300 * time.Millisecond,
	}))
	sess := runner.NewSession(testutil.Ref, 1)
	require.NoError(t, runner.Start(sess, testutil.Ref))

	done := make(chan error, 1)
	go func() {
		_, err := runner.CompleteItem(ctx, sess, "a", true, testutil.Ref)
		done <- err
	}()
	<-firstTry

	read := make(chan int, 1)
	go func() {
		n := len(runner.Pending())
		runner.Stats(testutil.Ref)
		read <- n
	}()
	select {
	case n := <-read:
		assert.Equal(t, 0, n)
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Pending waited on a retrying write-back")
	}

	err := <-done
	assert.True(t, errors.IsPersistence(err))
	assert.Len(t, runner.Pending(), 1)
}

func TestCompleteItem_MasteryStaysInRange(t *testing.T) {
	ctx := context.Background()
	st := store.New(memory.NewItemRepository(testutil.NewItem("a")))
	require.NoError(t, st.Init(ctx))
	runner := session.NewRunner(st, memory.NewOutcomeRepository(), session.WithRetryPolicy(fastRetry))

	now := testutil.Ref
	answers := []bool{true, true, true, true, true, true, true, false, false, false, false, false, false, false, false, false, false, false, true}
	prevCount := 0
	for _, correct := range answers {
		sess := runner.NewSession(now, 1)
		require.NoError(t, runner.Start(sess, now))
		updated, err := runner.CompleteItem(ctx, sess, "a", correct, now)
		require.NoError(t, err)

		assert.GreaterOrEqual(t, updated.MasteryLevel, models.MinMastery)
		assert.LessOrEqual(t, updated.MasteryLevel, models.MaxMastery)
		assert.GreaterOrEqual(t, updated.ReviewCount, prevCount)
		prevCount = updated.ReviewCount
		now = *updated.NextReview
	}
}
