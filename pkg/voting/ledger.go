package voting

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"ecoforum/pkg/common"
	"ecoforum/pkg/gateway"
	"ecoforum/pkg/logger"
	"ecoforum/pkg/tables"
	"ecoforum/pkg/user"
)

// KarmaRecorder receives the author's karma change for every vote transition.
type KarmaRecorder interface {
	ApplyVoteDelta(ctx context.Context, authorId string, oldValue, newValue int) error
}

// Outcome is the state of a target right after a vote was cast.
type Outcome struct {
	// Vote is nil when the call retracted the previous vote.
	Vote     *Vote       `json:"vote"`
	Previous VotingScore `json:"previous"`
	Likes    int64       `json:"likes"`
	Dislikes int64       `json:"dislikes"`
	AuthorId string      `json:"-"`
	// PostId is the owning post, for comments and posts alike.
	PostId string `json:"post_id"`
}

func (o *Outcome) Score() int64 {
	return o.Likes - o.Dislikes
}

func (o *Outcome) Current() VotingScore {
	if o.Vote == nil {
		return ScoreDiscard
	}
	return o.Vote.Score
}

// Ledger keeps at most one vote per (user, target) and the like/dislike counters
// of the target in step with the stored votes.
type Ledger struct {
	store gateway.Gateway
	karma KarmaRecorder

	// targets orders counter recounts per target.
	targets *common.KeyedMutex

	mu     sync.Mutex
	queued map[string]*pendingVote
}

// pendingVote is the latest vote queued for a (user, target) key. Calls run in
// arrival order; each waits for the one queued before it.
type pendingVote struct {
	value VotingScore
	done  chan struct{}
	out   *Outcome
	err   error
}

const castTimeout = 30 * time.Second

func NewLedger(store gateway.Gateway, karma KarmaRecorder) *Ledger {
	return &Ledger{
		store:   store,
		karma:   karma,
		targets: common.NewKeyedMutex(),
		queued:  make(map[string]*pendingVote),
	}
}

// CastVote applies the toggle rules: same value again retracts, the opposite
// value replaces, no previous vote inserts.
//
// Calls for the same voter and target run one at a time in arrival order. A
// call identical to the latest queued one for that key shares its result
// instead of toggling the vote back off. The vote is applied even when ctx is
// cancelled while it waits.
func (l *Ledger) CastVote(ctx context.Context, voter *user.User, targetType, targetId string, value VotingScore) (*Outcome, error) {
	if voter == nil || voter.Id == "" {
		return nil, fmt.Errorf("voting/ledger: cast vote: %w", common.ErrUnauthenticated)
	}
	table, err := targetTable(targetType)
	if err != nil {
		return nil, err
	}
	if targetId == "" {
		return nil, common.Invalid("target_id", "must not be empty")
	}
	if !value.Valid() {
		return nil, common.Invalid("value", "must be +1 or -1")
	}

	key := voter.Id + "|" + targetType + "|" + targetId
	p := l.enqueue(ctx, key, table, &Vote{
		UserId:     voter.Id,
		TargetId:   targetId,
		TargetType: targetType,
		Score:      value,
	})

	select {
	case <-p.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if p.err != nil {
		return nil, p.err
	}
	out := *p.out
	return &out, nil
}

// enqueue joins the latest queued call for key when it carries the same value,
// otherwise queues a new call behind it.
func (l *Ledger) enqueue(ctx context.Context, key, table string, v *Vote) *pendingVote {
	l.mu.Lock()
	defer l.mu.Unlock()

	last := l.queued[key]
	if last != nil && last.value == v.Score {
		return last
	}
	p := &pendingVote{value: v.Score, done: make(chan struct{})}
	l.queued[key] = p

	var before <-chan struct{}
	if last != nil {
		before = last.done
	}
	go l.run(detach(ctx), key, table, v, p, before)
	return p
}

func (l *Ledger) run(ctx context.Context, key, table string, v *Vote, p *pendingVote, before <-chan struct{}) {
	if before != nil {
		<-before
	}
	ctx, cancel := context.WithTimeout(ctx, castTimeout)
	defer cancel()
	p.out, p.err = l.cast(ctx, table, v)

	l.mu.Lock()
	if l.queued[key] == p {
		delete(l.queued, key)
	}
	l.mu.Unlock()
	close(p.done)
}

// detached keeps the values of a request context without its cancellation.
type detached struct{ context.Context }

func (detached) Deadline() (time.Time, bool) { return time.Time{}, false }
func (detached) Done() <-chan struct{} { return nil }
func (detached) Err() error { return nil }

func detach(ctx context.Context) context.Context {
	return detached{ctx}
}

func (l *Ledger) cast(ctx context.Context, table string, v *Vote) (*Outcome, error) {
	targets, err := l.store.Select(ctx, table, gateway.Query{
		Filters: []gateway.Filter{gateway.Eq("id", v.TargetId)},
		Limit:   1,
	})
	if err != nil {
		return nil, common.GatewayError("voting/ledger: load target", err)
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("voting/ledger: %s %s: %w", v.TargetType, v.TargetId, common.ErrNotFound)
	}
	target := targets[0]

	prev, err := l.current(ctx, v)
	if err != nil {
		return nil, err
	}

	next := v.Score
	switch {
	case prev == v.Score:
		if _, err := l.store.Delete(ctx, tables.Votes, voteKey(v.UserId, v.TargetId, v.TargetType)); err != nil {
			return nil, common.GatewayError("voting/ledger: retract vote", err)
		}
		next = ScoreDiscard
	case prev != ScoreDiscard:
		if err := l.store.Upsert(ctx, tables.Votes, v.row(), tables.TargetKeys); err != nil {
			return nil, common.GatewayError("voting/ledger: replace vote", err)
		}
	default:
		err := l.store.Insert(ctx, tables.Votes, v.row())
		if errors.Is(err, gateway.ErrDuplicate) {
			// Another writer stored a vote for the same key first.
			prev, err = l.current(ctx, v)
			if err != nil {
				return nil, err
			}
			if prev != v.Score {
				err = l.store.Upsert(ctx, tables.Votes, v.row(), tables.TargetKeys)
			}
		}
		if err != nil {
			return nil, common.GatewayError("voting/ledger: insert vote", err)
		}
	}

	likes, dislikes, err := l.Recount(ctx, v.TargetType, v.TargetId)
	if err != nil {
		return nil, err
	}

	out := &Outcome{
		Previous: prev,
		Likes:    likes,
		Dislikes: dislikes,
		AuthorId: target.String("author_id"),
		PostId:   target.String("post_id"),
	}
	if v.TargetType == tables.TargetPost {
		out.PostId = v.TargetId
	}
	if next != ScoreDiscard {
		stored := *v
		out.Vote = &stored
	}

	if prev != next && l.karma != nil && out.AuthorId != "" {
		if err := l.karma.ApplyVoteDelta(ctx, out.AuthorId, int(prev), int(next)); err != nil {
			logger.Log(ctx).Warnf("voting/ledger: karma for %s not updated: %v", out.AuthorId, err)
		}
	}
	return out, nil
}

func (l *Ledger) current(ctx context.Context, v *Vote) (VotingScore, error) {
	rows, err := l.store.Select(ctx, tables.Votes, gateway.Where(voteKey(v.UserId, v.TargetId, v.TargetType)...))
	if err != nil {
		return ScoreDiscard, common.GatewayError("voting/ledger: lookup vote", err)
	}
	if len(rows) == 0 {
		return ScoreDiscard, nil
	}
	return VotingScore(rows[0].Int("value")), nil
}

// Recount derives the target's counters from the stored votes and writes them
// back to the target row. Recounts of one target do not overlap, so a later
// recount never reads votes older than the counters already written.
func (l *Ledger) Recount(ctx context.Context, targetType, targetId string) (likes, dislikes int64, err error) {
	table, err := targetTable(targetType)
	if err != nil {
		return 0, 0, err
	}
	unlock := l.targets.Lock(targetType + "|" + targetId)
	defer unlock()

	rows, err := l.store.Select(ctx, tables.Votes, gateway.Where(
		gateway.Eq("target_id", targetId),
		gateway.Eq("target_type", targetType),
	))
	if err != nil {
		return 0, 0, common.GatewayError("voting/ledger: count votes", err)
	}
	for _, r := range rows {
		switch VotingScore(r.Int("value")) {
		case ScoreUp:
			likes++
		case ScoreDown:
			dislikes++
		}
	}

	_, err = l.store.Update(ctx, table,
		[]gateway.Filter{gateway.Eq("id", targetId)},
		gateway.Row{"likes": likes, "dislikes": dislikes},
	)
	if err != nil {
		return 0, 0, common.GatewayError("voting/ledger: update counters", err)
	}
	return likes, dislikes, nil
}

// VotesBy returns the viewer's vote per target id. Targets without a vote are absent.
func (l *Ledger) VotesBy(ctx context.Context, userId, targetType string, targetIds []string) (map[string]VotingScore, error) {
	out := make(map[string]VotingScore)
	if userId == "" || len(targetIds) == 0 {
		return out, nil
	}
	rows, err := l.store.Select(ctx, tables.Votes, gateway.Where(
		gateway.Eq("user_id", userId),
		gateway.Eq("target_type", targetType),
		gateway.In("target_id", gateway.Strings(targetIds)...),
	))
	if err != nil {
		return nil, common.GatewayError("voting/ledger: viewer votes", err)
	}
	for _, r := range rows {
		v := voteFromRow(r)
		out[v.TargetId] = v.Score
	}
	return out, nil
}

// Purge removes every vote attached to the given targets.
func (l *Ledger) Purge(ctx context.Context, targetType string, targetIds []string) error {
	if len(targetIds) == 0 {
		return nil
	}
	_, err := l.store.Delete(ctx, tables.Votes, []gateway.Filter{
		gateway.Eq("target_type", targetType),
		gateway.In("target_id", gateway.Strings(targetIds)...),
	})
	if err != nil {
		return common.GatewayError("voting/ledger: purge votes", err)
	}
	return nil
}
