package voting

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"ecoforum/pkg/common"
	"ecoforum/pkg/gateway"
	"ecoforum/pkg/gateway/memstore"
	"ecoforum/pkg/tables"
	"ecoforum/pkg/user"
)

var (
	voter  = &user.User{Id: "u1", Username: "greta"}
	author = "u2"
)

type karmaSpy struct {
	mu     sync.Mutex
	total  map[string]int
	failed bool
}

func (k *karmaSpy) ApplyVoteDelta(_ context.Context, authorId string, oldValue, newValue int) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.failed {
		return errors.New("profiles unavailable")
	}
	if k.total == nil {
		k.total = map[string]int{}
	}
	k.total[authorId] += newValue - oldValue
	return nil
}

func (k *karmaSpy) of(id string) int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.total[id]
}

func newStore(t *testing.T) *memstore.Store {
	t.Helper()
	s := memstore.New(tables.Unique)
	ctx := context.Background()
	assert.NoError(t, s.Insert(ctx, tables.Posts, gateway.Row{"id": "p1", "author_id": author, "likes": int64(0), "dislikes": int64(0)}))
	assert.NoError(t, s.Insert(ctx, tables.Comments, gateway.Row{"id": "c1", "post_id": "p1", "author_id": author, "likes": int64(0), "dislikes": int64(0)}))
	return s
}

func storedVotes(t *testing.T, s gateway.Gateway) []gateway.Row {
	t.Helper()
	rows, err := s.Select(context.Background(), tables.Votes, gateway.Query{})
	assert.NoError(t, err)
	return rows
}

func TestCastVoteToggle(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	karma := &karmaSpy{}
	l := NewLedger(s, karma)

	t.Run("first upvote inserts", func(t *testing.T) {
		out, err := l.CastVote(ctx, voter, tables.TargetPost, "p1", ScoreUp)
		assert.NoError(t, err)
		assert.Equal(t, int64(1), out.Likes)
		assert.Equal(t, int64(1), out.Score())
		assert.Equal(t, ScoreDiscard, out.Previous)
		assert.Equal(t, ScoreUp, out.Current())
		assert.Equal(t, "p1", out.PostId)
		assert.Len(t, storedVotes(t, s), 1)
	})

	t.Run("same value retracts", func(t *testing.T) {
		out, err := l.CastVote(ctx, voter, tables.TargetPost, "p1", ScoreUp)
		assert.NoError(t, err)
		assert.Nil(t, out.Vote)
		assert.Equal(t, int64(0), out.Score())
		assert.Empty(t, storedVotes(t, s))
		assert.Equal(t, 0, karma.of(author))
	})

	t.Run("opposite value swings by two", func(t *testing.T) {
		up, err := l.CastVote(ctx, voter, tables.TargetPost, "p1", ScoreUp)
		assert.NoError(t, err)
		down, err := l.CastVote(ctx, voter, tables.TargetPost, "p1", ScoreDown)
		assert.NoError(t, err)

		assert.Equal(t, int64(-2), down.Score()-up.Score())
		rows := storedVotes(t, s)
		if assert.Len(t, rows, 1) {
			assert.Equal(t, int64(-1), rows[0].Int("value"))
		}

		posts, _ := s.Select(ctx, tables.Posts, gateway.Where(gateway.Eq("id", "p1")))
		assert.Equal(t, int64(0), posts[0].Int("likes"))
		assert.Equal(t, int64(1), posts[0].Int("dislikes"))
	})
}

func TestCastVoteKarma(t *testing.T) {
	ctx := context.Background()
	karma := &karmaSpy{}
	l := NewLedger(newStore(t), karma)

	_, err := l.CastVote(ctx, voter, tables.TargetComment, "c1", ScoreDown)
	assert.NoError(t, err)
	assert.Equal(t, -1, karma.of(author))

	out, err := l.CastVote(ctx, voter, tables.TargetComment, "c1", ScoreUp)
	assert.NoError(t, err)
	assert.Equal(t, 1, karma.of(author))
	assert.Equal(t, "p1", out.PostId)
}

func TestCastVoteKarmaFailureIsNotFatal(t *testing.T) {
	l := NewLedger(newStore(t), &karmaSpy{failed: true})
	out, err := l.CastVote(context.Background(), voter, tables.TargetPost, "p1", ScoreUp)
	assert.NoError(t, err)
	assert.Equal(t, int64(1), out.Likes)
}

func TestCastVoteRejected(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	l := NewLedger(s, nil)

	_, err := l.CastVote(ctx, nil, tables.TargetPost, "p1", ScoreUp)
	assert.ErrorIs(t, err, common.ErrUnauthenticated)

	_, err = l.CastVote(ctx, voter, "award", "p1", ScoreUp)
	assert.ErrorIs(t, err, common.ErrValidation)

	_, err = l.CastVote(ctx, voter, tables.TargetPost, "p1", ScoreDiscard)
	assert.ErrorIs(t, err, common.ErrValidation)

	_, err = l.CastVote(ctx, voter, tables.TargetPost, "nope", ScoreUp)
	assert.ErrorIs(t, err, common.ErrNotFound)

	assert.Empty(t, storedVotes(t, s))
}

func TestCastVoteSequenceKeepsAtMostOneRow(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	l := NewLedger(s, nil)

	seq := []VotingScore{ScoreUp, ScoreDown, ScoreDown, ScoreUp, ScoreUp, ScoreDown, ScoreUp}
	var last VotingScore
	for _, v := range seq {
		out, err := l.CastVote(ctx, voter, tables.TargetPost, "p1", v)
		assert.NoError(t, err)
		last = out.Current()

		rows := storedVotes(t, s)
		assert.LessOrEqual(t, len(rows), 1)
		if last == ScoreDiscard {
			assert.Empty(t, rows)
		} else if assert.Len(t, rows, 1) {
			assert.Equal(t, int64(last), rows[0].Int("value"))
		}
	}
	assert.Equal(t, ScoreUp, last)
}

// racingStore lets the first two vote lookups see an empty table before either
// writer inserts.
type racingStore struct {
	gateway.Gateway
	mu      sync.Mutex
	arrived int
	both    sync.WaitGroup
}

func newRacingStore(g gateway.Gateway) *racingStore {
	rs := &racingStore{Gateway: g}
	rs.both.Add(2)
	return rs
}

func (rs *racingStore) Select(ctx context.Context, table string, q gateway.Query) ([]gateway.Row, error) {
	rows, err := rs.Gateway.Select(ctx, table, q)
	if table != tables.Votes || !hasFilter(q, "user_id") {
		return rows, err
	}
	rs.mu.Lock()
	wait := rs.arrived < 2
	if wait {
		rs.arrived++
	}
	rs.mu.Unlock()
	if wait {
		rs.both.Done()
		rs.both.Wait()
	}
	return rows, err
}

func hasFilter(q gateway.Query, field string) bool {
	for _, f := range q.Filters {
		if f.Field == field {
			return true
		}
	}
	return false
}

func TestConcurrentIdenticalVotesAcrossLedgers(t *testing.T) {
	store := newRacingStore(newStore(t))
	karma := &karmaSpy{}
	ledgers := []*Ledger{NewLedger(store, karma), NewLedger(store, karma)}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, l := range ledgers {
		wg.Add(1)
		go func(i int, l *Ledger) {
			defer wg.Done()
			_, errs[i] = l.CastVote(context.Background(), voter, tables.TargetPost, "p1", ScoreUp)
		}(i, l)
	}
	wg.Wait()

	assert.NoError(t, errs[0])
	assert.NoError(t, errs[1])
	rows := storedVotes(t, store)
	if assert.Len(t, rows, 1) {
		assert.Equal(t, int64(1), rows[0].Int("value"))
	}
	assert.Equal(t, 1, karma.of(author))
}

// gatedStore holds the first vote lookup until release is closed.
type gatedStore struct {
	gateway.Gateway
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (gs *gatedStore) Select(ctx context.Context, table string, q gateway.Query) ([]gateway.Row, error) {
	if table == tables.Votes && hasFilter(q, "user_id") {
		gs.once.Do(func() {
			close(gs.entered)
			<-gs.release
		})
	}
	return gs.Gateway.Select(ctx, table, q)
}

func TestDoubleClickOnSameLedgerStoresOneVote(t *testing.T) {
	store := &gatedStore{
		Gateway: newStore(t),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	l := NewLedger(store, nil)

	var wg sync.WaitGroup
	outs := make([]*Outcome, 2)
	click := func(i int) {
		defer wg.Done()
		out, err := l.CastVote(context.Background(), voter, tables.TargetPost, "p1", ScoreUp)
		assert.NoError(t, err)
		outs[i] = out
	}

	wg.Add(2)
	go click(0)
	<-store.entered
	go click(1)
	time.Sleep(50 * time.Millisecond)
	close(store.release)
	wg.Wait()

	assert.Len(t, storedVotes(t, store), 1)
	assert.Equal(t, ScoreUp, outs[0].Current())
	assert.Equal(t, ScoreUp, outs[1].Current())
}

func TestVotesByAndPurge(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	l := NewLedger(s, nil)

	_, err := l.CastVote(ctx, voter, tables.TargetPost, "p1", ScoreDown)
	assert.NoError(t, err)
	_, err = l.CastVote(ctx, voter, tables.TargetComment, "c1", ScoreUp)
	assert.NoError(t, err)

	got, err := l.VotesBy(ctx, voter.Id, tables.TargetPost, []string{"p1", "p2"})
	assert.NoError(t, err)
	assert.Equal(t, map[string]VotingScore{"p1": ScoreDown}, got)

	assert.NoError(t, l.Purge(ctx, tables.TargetComment, []string{"c1"}))
	assert.Len(t, storedVotes(t, s), 1)
}

func TestParseScore(t *testing.T) {
	v, err := ParseScore("up")
	assert.NoError(t, err)
	assert.Equal(t, ScoreUp, v)

	v, err = ParseScore("-1")
	assert.NoError(t, err)
	assert.Equal(t, ScoreDown, v)

	_, err = ParseScore("sideways")
	assert.ErrorIs(t, err, common.ErrValidation)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not reached")
		}
		time.Sleep(time.Millisecond)
	}
}

func (l *Ledger) queuedValue(key string) VotingScore {
	l.mu.Lock()
	defer l.mu.Unlock()
	if p, ok := l.queued[key]; ok {
		return p.value
	}
	return ScoreDiscard
}

func TestQueuedClicksApplyInArrivalOrder(t *testing.T) {
	store := &gatedStore{
		Gateway: newStore(t),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	karma := &karmaSpy{}
	l := NewLedger(store, karma)
	key := voter.Id + "|" + tables.TargetPost + "|p1"

	var wg sync.WaitGroup
	outs := make([]*Outcome, 3)
	click := func(i int, v VotingScore) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := l.CastVote(context.Background(), voter, tables.TargetPost, "p1", v)
			assert.NoError(t, err)
			outs[i] = out
		}()
	}

	click(0, ScoreUp)
	<-store.entered
	click(1, ScoreDown)
	waitFor(t, func() bool { return l.queuedValue(key) == ScoreDown })
	click(2, ScoreUp)
	waitFor(t, func() bool { return l.queuedValue(key) == ScoreUp })
	close(store.release)
	wg.Wait()

	assert.Equal(t, ScoreUp, outs[0].Current())
	assert.Equal(t, ScoreDown, outs[1].Current())
	assert.Equal(t, ScoreUp, outs[2].Current())
	rows := storedVotes(t, store)
	if assert.Len(t, rows, 1) {
		assert.Equal(t, int64(1), rows[0].Int("value"))
	}
	assert.Equal(t, 1, karma.of(author))
}

func TestCancelledCallerDoesNotFailSharedVote(t *testing.T) {
	store := &gatedStore{
		Gateway: newStore(t),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	l := NewLedger(store, nil)

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := l.CastVote(ctx, voter, tables.TargetPost, "p1", ScoreUp)
		first <- err
	}()
	<-store.entered

	second := make(chan *Outcome, 1)
	go func() {
		out, err := l.CastVote(context.Background(), voter, tables.TargetPost, "p1", ScoreUp)
		assert.NoError(t, err)
		second <- out
	}()
	time.Sleep(50 * time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-first, context.Canceled)
	close(store.release)

	out := <-second
	if assert.NotNil(t, out) {
		assert.Equal(t, ScoreUp, out.Current())
		assert.Equal(t, int64(1), out.Likes)
	}
	assert.Len(t, storedVotes(t, store), 1)
}

// slowCounterStore holds the first counter update of a post until release is closed.
type slowCounterStore struct {
	gateway.Gateway
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (s *slowCounterStore) Update(ctx context.Context, table string, filters []gateway.Filter, patch gateway.Row) (int64, error) {
	if table == tables.Posts {
		s.once.Do(func() {
			close(s.entered)
			<-s.release
		})
	}
	return s.Gateway.Update(ctx, table, filters, patch)
}

func TestConcurrentVotersKeepCountersInStep(t *testing.T) {
	base := newStore(t)
	store := &slowCounterStore{
		Gateway: base,
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	l := NewLedger(store, nil)
	other := &user.User{Id: "u3", Username: "wangari"}

	var wg sync.WaitGroup
	vote := func(u *user.User) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.CastVote(context.Background(), u, tables.TargetPost, "p1", ScoreUp)
			assert.NoError(t, err)
		}()
	}

	vote(voter)
	<-store.entered
	vote(other)
	waitFor(t, func() bool { return len(storedVotes(t, base)) == 2 })
	close(store.release)
	wg.Wait()

	posts, err := base.Select(context.Background(), tables.Posts, gateway.Where(gateway.Eq("id", "p1")))
	assert.NoError(t, err)
	assert.Equal(t, int64(2), posts[0].Int("likes"))
}
