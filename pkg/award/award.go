package award

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"ecoforum/pkg/common"
	"ecoforum/pkg/gateway"
	"ecoforum/pkg/tables"
)

const (
	Leaf   = "leaf"
	Tree   = "tree"
	Planet = "planet"
)

// Award is append-only: once granted it is never edited or removed by hand.
type Award struct {
	Id         string    `json:"id"`
	TargetId   string    `json:"target_id"`
	TargetType string    `json:"target_type"`
	GranterId  string    `json:"granter_id"`
	Type       string    `json:"type"`
	Created    time.Time `json:"created"`
}

// Bonuses maps an award type to the karma it adds.
type Bonuses map[string]int64

func DefaultBonuses() Bonuses {
	return Bonuses{Leaf: 5, Tree: 20, Planet: 50}
}

// ParseBonuses reads "leaf=5,tree=20,planet=50".
func ParseBonuses(s string) (Bonuses, error) {
	out := Bonuses{}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 || strings.TrimSpace(kv[0]) == "" {
			return nil, fmt.Errorf("award: bad bonus entry %q", part)
		}
		n, err := strconv.ParseInt(strings.TrimSpace(kv[1]), 10, 64)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("award: bad bonus value in %q", part)
		}
		out[strings.ToLower(strings.TrimSpace(kv[0]))] = n
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("award: no bonuses in %q", s)
	}
	return out, nil
}

// Bonus returns the karma for awardType or a validation error for unknown types.
func (b Bonuses) Bonus(awardType string) (int64, error) {
	n, ok := b[awardType]
	if !ok {
		return 0, common.Invalid("award_type", fmt.Sprintf("unknown award %q", awardType))
	}
	return n, nil
}

func (b Bonuses) Types() []string {
	out := make([]string, 0, len(b))
	for k := range b {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

type Repo struct {
	store gateway.Gateway
}

func NewAwardRepo(store gateway.Gateway) *Repo {
	return &Repo{store: store}
}

func (r *Repo) Add(ctx context.Context, a *Award) error {
	err := r.store.Insert(ctx, tables.Awards, gateway.Row{
		"id":          a.Id,
		"target_id":   a.TargetId,
		"target_type": a.TargetType,
		"granter_id":  a.GranterId,
		"type":        a.Type,
		"created":     a.Created,
	})
	if err != nil {
		return common.GatewayError("award/repo: insert award", err)
	}
	return nil
}

// ForTargets groups the awards of the given targets by target id, oldest first.
func (r *Repo) ForTargets(ctx context.Context, targetType string, ids []string) (map[string][]*Award, error) {
	out := make(map[string][]*Award)
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.store.Select(ctx, tables.Awards, gateway.Query{
		Filters: []gateway.Filter{
			gateway.Eq("target_type", targetType),
			gateway.In("target_id", gateway.Strings(ids)...),
		},
		Order: []gateway.Order{{Field: "created"}, {Field: "id"}},
	})
	if err != nil {
		return nil, common.GatewayError("award/repo: list awards", err)
	}
	for _, row := range rows {
		a := &Award{
			Id:         row.String("id"),
			TargetId:   row.String("target_id"),
			TargetType: row.String("target_type"),
			GranterId:  row.String("granter_id"),
			Type:       row.String("type"),
			Created:    row.Time("created"),
		}
		out[a.TargetId] = append(out[a.TargetId], a)
	}
	return out, nil
}

// PurgeTargets drops the awards of deleted targets.
func (r *Repo) PurgeTargets(ctx context.Context, targetType string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.store.Delete(ctx, tables.Awards, []gateway.Filter{
		gateway.Eq("target_type", targetType),
		gateway.In("target_id", gateway.Strings(ids)...),
	})
	if err != nil {
		return common.GatewayError("award/repo: purge awards", err)
	}
	return nil
}
