package karma

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"ecoforum/pkg/award"
	"ecoforum/pkg/common"
	"ecoforum/pkg/gateway"
	"ecoforum/pkg/gateway/memstore"
	"ecoforum/pkg/tables"
	"ecoforum/pkg/user"
)

func newAccumulator(t *testing.T) (*Accumulator, *memstore.Store) {
	t.Helper()
	s := memstore.New(tables.Unique)
	assert.NoError(t, s.Insert(context.Background(), tables.Posts, gateway.Row{"id": "p1", "author_id": "author"}))
	a := NewAccumulator(s, nil, nil)
	a.Now = func() time.Time { return time.Date(2024, 6, 5, 0, 0, 0, 0, time.UTC) }
	a.NewId = func() string { return "award-1" }
	return a, s
}

func karmaOf(t *testing.T, a *Accumulator, id string) int64 {
	t.Helper()
	p, err := a.Profile(context.Background(), id)
	assert.NoError(t, err)
	return p.Karma
}

func TestApplyVoteDelta(t *testing.T) {
	ctx := context.Background()
	a, _ := newAccumulator(t)

	assert.NoError(t, a.ApplyVoteDelta(ctx, "author", 0, -1))
	assert.Equal(t, int64(-1), karmaOf(t, a, "author"))

	assert.NoError(t, a.ApplyVoteDelta(ctx, "author", -1, 1))
	assert.Equal(t, int64(1), karmaOf(t, a, "author"))

	assert.NoError(t, a.ApplyVoteDelta(ctx, "author", 1, 0))
	assert.Equal(t, int64(0), karmaOf(t, a, "author"))

	assert.ErrorIs(t, a.ApplyVoteDelta(ctx, "", 0, 1), common.ErrValidation)
}

func TestAddPointsConcurrent(t *testing.T) {
	a, _ := newAccumulator(t)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, a.AddPoints(context.Background(), "author", 2))
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(100), karmaOf(t, a, "author"))
}

func TestGrantAward(t *testing.T) {
	ctx := context.Background()
	a, s := newAccumulator(t)
	granter := &user.User{Id: "fan"}

	aw, err := a.GrantAward(ctx, granter, tables.TargetPost, "p1", award.Tree)
	assert.NoError(t, err)
	assert.Equal(t, "award-1", aw.Id)
	assert.Equal(t, "fan", aw.GranterId)
	assert.Equal(t, int64(20), karmaOf(t, a, "author"))
	assert.Equal(t, 1, s.Len(tables.Awards))

	t.Run("rejected before any write", func(t *testing.T) {
		_, err := a.GrantAward(ctx, nil, tables.TargetPost, "p1", award.Leaf)
		assert.ErrorIs(t, err, common.ErrUnauthenticated)

		_, err = a.GrantAward(ctx, granter, tables.TargetPost, "p1", "gold")
		assert.ErrorIs(t, err, common.ErrValidation)

		_, err = a.GrantAward(ctx, granter, "profile", "p1", award.Leaf)
		assert.ErrorIs(t, err, common.ErrValidation)

		_, err = a.GrantAward(ctx, granter, tables.TargetComment, "c404", award.Leaf)
		assert.ErrorIs(t, err, common.ErrNotFound)

		assert.Equal(t, 1, s.Len(tables.Awards))
		assert.Equal(t, int64(20), karmaOf(t, a, "author"))
	})
}

func TestProfileBadge(t *testing.T) {
	ctx := context.Background()
	a, _ := newAccumulator(t)

	p, err := a.Profile(ctx, "newcomer")
	assert.NoError(t, err)
	assert.Equal(t, &Profile{UserId: "newcomer", Karma: 0, Badge: "Seedling"}, p)

	assert.NoError(t, a.AddPoints(ctx, "author", 2000))
	p, err = a.Profile(ctx, "author")
	assert.NoError(t, err)
	assert.Equal(t, "Earth Guardian", p.Badge)
}

func TestBadgeFor(t *testing.T) {
	tiers := DefaultTiers()
	cases := map[int64]string{
		-10:  "Seedling",
		0:    "Seedling",
		499:  "Seedling",
		500:  "Green Warrior",
		1999: "Green Warrior",
		2000: "Earth Guardian",
	}
	for karma, want := range cases {
		assert.Equal(t, want, BadgeFor(karma, tiers), karma)
	}
	assert.Equal(t, "", BadgeFor(10, nil))
}

func TestParseTiers(t *testing.T) {
	tiers, err := ParseTiers("Earth Guardian:2000, Seedling:0,Green Warrior:500")
	assert.NoError(t, err)
	assert.Equal(t, DefaultTiers(), tiers)

	for _, bad := range []string{"", "Seedling", ":5", "Seedling:x"} {
		_, err := ParseTiers(bad)
		assert.Error(t, err, bad)
	}
}
