// Package verification collects peer reviews of challenge proofs and decides
// whether a submission is verified once enough reviews are in.
package verification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ecoforum/pkg/common"
	"ecoforum/pkg/gateway"
	"ecoforum/pkg/logger"
	"ecoforum/pkg/tables"
	"ecoforum/pkg/user"
)

type Status string

const (
	StatusUnsubmitted Status = "unsubmitted"
	StatusPending     Status = "pending_reviews"
	StatusVerified    Status = "verified"
	StatusRejected    Status = "rejected"
)

func (s Status) Final() bool {
	return s == StatusVerified || s == StatusRejected
}

type Review struct {
	ReviewerId string    `json:"reviewer_id"`
	Score      int       `json:"score"`
	Seq        int       `json:"seq"`
	Created    time.Time `json:"created"`
}

type Submission struct {
	UserId      string    `json:"user_id"`
	ChallengeId string    `json:"challenge_id"`
	Status      Status    `json:"status"`
	PhotoRef    string    `json:"photo_ref,omitempty"`
	ReviewsDone int       `json:"reviews_done"`
	Mean        float64   `json:"mean,omitempty"`
	Reviews     []Review  `json:"reviews"`
	Created     time.Time `json:"created,omitempty"`
}

// PointsAdder credits the submitter once a proof is verified.
type PointsAdder interface {
	AddPoints(ctx context.Context, userId string, n int64) error
}

type Config struct {
	// Reviews needed before a decision.
	Reviews int
	// PassMark is the lowest mean score that verifies a submission. Zero means
	// unset and selects the default.
	PassMark float64
	Bonus    int64
}

func DefaultConfig() Config {
	return Config{Reviews: 3, PassMark: 60, Bonus: 100}
}

type Engine struct {
	store  gateway.Gateway
	points PointsAdder
	cfg    Config
	locks  *common.KeyedMutex
	Now    func() time.Time
}

func NewEngine(store gateway.Gateway, points PointsAdder, cfg Config) *Engine {
	def := DefaultConfig()
	if cfg.Reviews <= 0 {
		cfg.Reviews = def.Reviews
	}
	if cfg.PassMark <= 0 {
		cfg.PassMark = def.PassMark
	}
	return &Engine{
		store:  store,
		points: points,
		cfg:    cfg,
		locks:  common.NewKeyedMutex(),
		Now:    time.Now,
	}
}

func subKey(challengeId, userId string) []gateway.Filter {
	return []gateway.Filter{
		gateway.Eq("user_id", userId),
		gateway.Eq("challenge_id", challengeId),
	}
}

// SubmitProof opens a submission for review. A user gets one submission per
// challenge.
func (e *Engine) SubmitProof(ctx context.Context, u *user.User, challengeId, photoRef string) (*Submission, error) {
	if u == nil || u.Id == "" {
		return nil, fmt.Errorf("verification: submit proof: %w", common.ErrUnauthenticated)
	}
	if common.Blank(challengeId) {
		return nil, common.Invalid("challenge_id", "must not be empty")
	}
	if common.Blank(photoRef) {
		return nil, common.Invalid("photo", "a proof photo is required")
	}

	unlock := e.locks.Lock(challengeId + "|" + u.Id)
	defer unlock()

	existing, err := e.load(ctx, challengeId, u.Id)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if existing.Status.Final() {
			return nil, fmt.Errorf("verification: submission is %s: %w", existing.Status, common.ErrAlreadyFinalized)
		}
		return nil, fmt.Errorf("verification: submission already pending: %w", common.ErrConflict)
	}

	sub := &Submission{
		UserId:      u.Id,
		ChallengeId: challengeId,
		Status:      StatusPending,
		PhotoRef:    photoRef,
		Reviews:     []Review{},
		Created:     e.Now(),
	}
	err = e.store.Insert(ctx, tables.Submissions, gateway.Row{
		"user_id":      sub.UserId,
		"challenge_id": sub.ChallengeId,
		"status":       string(sub.Status),
		"photo_ref":    sub.PhotoRef,
		"reviews_done": int64(0),
		"mean":         float64(0),
		"created":      sub.Created,
	})
	if errors.Is(err, gateway.ErrDuplicate) {
		return nil, fmt.Errorf("verification: submission already exists: %w", common.ErrConflict)
	}
	if err != nil {
		return nil, common.GatewayError("verification: insert submission", err)
	}
	return sub, nil
}

// AddReview records the reviewer's score for the submitter's proof and decides
// the submission on the last required review.
func (e *Engine) AddReview(ctx context.Context, reviewer *user.User, challengeId, submitterId string, score int) (*Submission, error) {
	if reviewer == nil || reviewer.Id == "" {
		return nil, fmt.Errorf("verification: add review: %w", common.ErrUnauthenticated)
	}
	if score < 0 || score > 100 {
		return nil, common.Invalid("score", "must be between 0 and 100")
	}
	if reviewer.Id == submitterId {
		return nil, fmt.Errorf("verification: self review: %w", common.ErrForbidden)
	}

	unlock := e.locks.Lock(challengeId + "|" + submitterId)
	defer unlock()

	sub, err := e.load(ctx, challengeId, submitterId)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, fmt.Errorf("verification: submission of %s for %s: %w", submitterId, challengeId, common.ErrNotFound)
	}
	if sub.Status != StatusPending || sub.ReviewsDone >= e.cfg.Reviews {
		return nil, fmt.Errorf("verification: submission is %s: %w", sub.Status, common.ErrAlreadyFinalized)
	}
	for _, r := range sub.Reviews {
		if r.ReviewerId == reviewer.Id {
			return nil, fmt.Errorf("verification: already reviewed: %w", common.ErrConflict)
		}
	}

	review := Review{
		ReviewerId: reviewer.Id,
		Score:      score,
		Seq:        sub.ReviewsDone + 1,
		Created:    e.Now(),
	}
	err = e.store.Insert(ctx, tables.Reviews, gateway.Row{
		"user_id":      submitterId,
		"challenge_id": challengeId,
		"reviewer_id":  review.ReviewerId,
		"score":        int64(review.Score),
		"seq":          int64(review.Seq),
		"created":      review.Created,
	})
	if errors.Is(err, gateway.ErrDuplicate) {
		return nil, fmt.Errorf("verification: review slot taken: %w", common.ErrConflict)
	}
	if err != nil {
		return nil, common.GatewayError("verification: insert review", err)
	}

	reviews := append(sub.Reviews, review)
	patch := gateway.Row{"reviews_done": int64(len(reviews))}
	status := StatusPending
	var mean float64
	if len(reviews) >= e.cfg.Reviews {
		total := 0
		for _, r := range reviews {
			total += r.Score
		}
		mean = float64(total) / float64(len(reviews))
		status = StatusRejected
		if mean >= e.cfg.PassMark {
			status = StatusVerified
		}
		patch["status"] = string(status)
		patch["mean"] = mean
	}

	filters := append(subKey(challengeId, submitterId),
		gateway.Eq("status", string(StatusPending)),
		gateway.Eq("reviews_done", int64(sub.ReviewsDone)),
	)
	n, err := e.store.Update(ctx, tables.Submissions, filters, patch)
	if err != nil || n == 0 {
		e.dropReview(ctx, challengeId, submitterId, reviewer.Id)
		if err != nil {
			return nil, common.GatewayError("verification: update submission", err)
		}
		return nil, fmt.Errorf("verification: submission changed concurrently: %w", common.ErrAlreadyFinalized)
	}

	sub.Reviews = reviews
	sub.ReviewsDone = len(reviews)
	sub.Status = status
	sub.Mean = mean

	if status == StatusVerified && e.points != nil && e.cfg.Bonus > 0 {
		if err := e.points.AddPoints(ctx, submitterId, e.cfg.Bonus); err != nil {
			logger.Log(ctx).Warnf("verification: %s verified but bonus not credited: %v", submitterId, err)
		}
	}
	return sub, nil
}

func (e *Engine) dropReview(ctx context.Context, challengeId, submitterId, reviewerId string) {
	filters := append(subKey(challengeId, submitterId), gateway.Eq("reviewer_id", reviewerId))
	if _, err := e.store.Delete(ctx, tables.Reviews, filters); err != nil {
		logger.Log(ctx).Errorf("verification: can't drop review of %s: %v", reviewerId, err)
	}
}

// Get returns the user's submission for the challenge, or an unsubmitted one.
func (e *Engine) Get(ctx context.Context, challengeId, userId string) (*Submission, error) {
	sub, err := e.load(ctx, challengeId, userId)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return &Submission{
			UserId:      userId,
			ChallengeId: challengeId,
			Status:      StatusUnsubmitted,
			Reviews:     []Review{},
		}, nil
	}
	return sub, nil
}

// Queue lists pending submissions of the challenge the reviewer may still review.
func (e *Engine) Queue(ctx context.Context, reviewer *user.User, challengeId string) ([]*Submission, error) {
	if reviewer == nil || reviewer.Id == "" {
		return nil, fmt.Errorf("verification: review queue: %w", common.ErrUnauthenticated)
	}
	rows, err := e.store.Select(ctx, tables.Submissions, gateway.Query{
		Filters: []gateway.Filter{
			gateway.Eq("challenge_id", challengeId),
			gateway.Eq("status", string(StatusPending)),
			gateway.Neq("user_id", reviewer.Id),
		},
		Order: []gateway.Order{{Field: "created"}, {Field: "user_id"}},
	})
	if err != nil {
		return nil, common.GatewayError("verification: list pending", err)
	}
	reviewed, err := e.store.Select(ctx, tables.Reviews, gateway.Where(
		gateway.Eq("challenge_id", challengeId),
		gateway.Eq("reviewer_id", reviewer.Id),
	))
	if err != nil {
		return nil, common.GatewayError("verification: list own reviews", err)
	}
	done := make(map[string]bool, len(reviewed))
	for _, r := range reviewed {
		done[r.String("user_id")] = true
	}

	out := []*Submission{}
	for _, row := range rows {
		if done[row.String("user_id")] {
			continue
		}
		out = append(out, submissionFromRow(row))
	}
	return out, nil
}

func (e *Engine) load(ctx context.Context, challengeId, userId string) (*Submission, error) {
	rows, err := e.store.Select(ctx, tables.Submissions, gateway.Query{Filters: subKey(challengeId, userId), Limit: 1})
	if err != nil {
		return nil, common.GatewayError("verification: load submission", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	sub := submissionFromRow(rows[0])

	reviewRows, err := e.store.Select(ctx, tables.Reviews, gateway.Query{
		Filters: subKey(challengeId, userId),
		Order:   []gateway.Order{{Field: "seq"}},
	})
	if err != nil {
		return nil, common.GatewayError("verification: load reviews", err)
	}
	for _, r := range reviewRows {
		sub.Reviews = append(sub.Reviews, Review{
			ReviewerId: r.String("reviewer_id"),
			Score:      int(r.Int("score")),
			Seq:        int(r.Int("seq")),
			Created:    r.Time("created"),
		})
	}
	return sub, nil
}

func submissionFromRow(r gateway.Row) *Submission {
	return &Submission{
		UserId:      r.String("user_id"),
		ChallengeId: r.String("challenge_id"),
		Status:      Status(r.String("status")),
		PhotoRef:    r.String("photo_ref"),
		ReviewsDone: int(r.Int("reviews_done")),
		Mean:        r.Float("mean"),
		Reviews:     []Review{},
		Created:     r.Time("created"),
	}
}
