package karma

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ecoforum/pkg/award"
	"ecoforum/pkg/common"
	"ecoforum/pkg/gateway"
	"ecoforum/pkg/logger"
	"ecoforum/pkg/tables"
	"ecoforum/pkg/user"
)

// casAttempts bounds the retries of a karma update that lost to another writer.
const casAttempts = 5

var errContended = errors.New("karma: profile update kept losing to concurrent writers")

type Profile struct {
	UserId string `json:"user_id"`
	Karma  int64  `json:"karma"`
	Badge  string `json:"badge"`
}

type Accumulator struct {
	store   gateway.Gateway
	awards  *award.Repo
	bonuses award.Bonuses
	tiers   Tiers
	locks   *common.KeyedMutex

	Now   func() time.Time
	NewId func() string
}

func NewAccumulator(store gateway.Gateway, bonuses award.Bonuses, tiers Tiers) *Accumulator {
	if bonuses == nil {
		bonuses = award.DefaultBonuses()
	}
	if len(tiers) == 0 {
		tiers = DefaultTiers()
	}
	return &Accumulator{
		store:   store,
		awards:  award.NewAwardRepo(store),
		bonuses: bonuses,
		tiers:   tiers,
		locks:   common.NewKeyedMutex(),
		Now:     time.Now,
		NewId:   func() string { return common.RandStringRunes(12) },
	}
}

// ApplyVoteDelta adds newValue-oldValue to the author's karma. A missing vote
// counts as 0.
func (a *Accumulator) ApplyVoteDelta(ctx context.Context, authorId string, oldValue, newValue int) error {
	return a.AddPoints(ctx, authorId, int64(newValue-oldValue))
}

// AddPoints changes the user's karma by delta, creating the profile on first use.
func (a *Accumulator) AddPoints(ctx context.Context, userId string, delta int64) error {
	if userId == "" {
		return common.Invalid("user_id", "must not be empty")
	}
	if delta == 0 {
		return nil
	}
	unlock := a.locks.Lock(userId)
	defer unlock()

	for i := 0; i < casAttempts; i++ {
		rows, err := a.store.Select(ctx, tables.Profiles, gateway.Query{
			Filters: []gateway.Filter{gateway.Eq("user_id", userId)},
			Limit:   1,
		})
		if err != nil {
			return common.GatewayError("karma: load profile", err)
		}

		if len(rows) == 0 {
			err := a.store.Insert(ctx, tables.Profiles, gateway.Row{"user_id": userId, "karma": delta})
			if errors.Is(err, gateway.ErrDuplicate) {
				continue
			}
			if err != nil {
				return common.GatewayError("karma: create profile", err)
			}
			return nil
		}

		old := rows[0].Int("karma")
		n, err := a.store.Update(ctx, tables.Profiles,
			[]gateway.Filter{gateway.Eq("user_id", userId), gateway.Eq("karma", old)},
			gateway.Row{"karma": old + delta},
		)
		if err != nil {
			return common.GatewayError("karma: update profile", err)
		}
		if n > 0 {
			return nil
		}
	}
	return common.GatewayError("karma: add points", errContended)
}

// GrantAward records an award on a post or comment and credits its author.
func (a *Accumulator) GrantAward(ctx context.Context, granter *user.User, targetType, targetId, awardType string) (*award.Award, error) {
	if granter == nil || granter.Id == "" {
		return nil, fmt.Errorf("karma: grant award: %w", common.ErrUnauthenticated)
	}
	bonus, err := a.bonuses.Bonus(awardType)
	if err != nil {
		return nil, err
	}

	var table string
	switch targetType {
	case tables.TargetPost:
		table = tables.Posts
	case tables.TargetComment:
		table = tables.Comments
	default:
		return nil, common.Invalid("target_type", "must be post or comment")
	}
	rows, err := a.store.Select(ctx, table, gateway.Query{
		Filters: []gateway.Filter{gateway.Eq("id", targetId)},
		Limit:   1,
	})
	if err != nil {
		return nil, common.GatewayError("karma: load award target", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("karma: %s %s: %w", targetType, targetId, common.ErrNotFound)
	}

	aw := &award.Award{
		Id:         a.NewId(),
		TargetId:   targetId,
		TargetType: targetType,
		GranterId:  granter.Id,
		Type:       awardType,
		Created:    a.Now(),
	}
	if err := a.awards.Add(ctx, aw); err != nil {
		return nil, err
	}

	authorId := rows[0].String("author_id")
	if err := a.AddPoints(ctx, authorId, bonus); err != nil {
		logger.Log(ctx).Warnf("karma: award %s granted but %s not credited: %v", aw.Id, authorId, err)
	}
	return aw, nil
}

// Profile reads the user's karma and derives the badge. Users without a profile
// row have zero karma.
func (a *Accumulator) Profile(ctx context.Context, userId string) (*Profile, error) {
	rows, err := a.store.Select(ctx, tables.Profiles, gateway.Query{
		Filters: []gateway.Filter{gateway.Eq("user_id", userId)},
		Limit:   1,
	})
	if err != nil {
		return nil, common.GatewayError("karma: load profile", err)
	}
	p := &Profile{UserId: userId}
	if len(rows) > 0 {
		p.Karma = rows[0].Int("karma")
	}
	p.Badge = BadgeFor(p.Karma, a.tiers)
	return p, nil
}

func (a *Accumulator) Awards() *award.Repo {
	return a.awards
}
