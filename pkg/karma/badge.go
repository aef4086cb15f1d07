package karma

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

type Tier struct {
	Name string `json:"name"`
	Min  int64  `json:"min"`
}

// Tiers is ordered by ascending threshold.
type Tiers []Tier

func DefaultTiers() Tiers {
	return Tiers{
		{Name: "Seedling", Min: 0},
		{Name: "Green Warrior", Min: 500},
		{Name: "Earth Guardian", Min: 2000},
	}
}

// ParseTiers reads "Seedling:0,Green Warrior:500,Earth Guardian:2000".
func ParseTiers(s string) (Tiers, error) {
	var out Tiers
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		idx := strings.LastIndex(part, ":")
		if idx <= 0 {
			return nil, fmt.Errorf("karma: bad tier %q", part)
		}
		min, err := strconv.ParseInt(strings.TrimSpace(part[idx+1:]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("karma: bad tier threshold in %q", part)
		}
		out = append(out, Tier{Name: strings.TrimSpace(part[:idx]), Min: min})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("karma: no tiers in %q", s)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Min < out[j].Min })
	return out, nil
}

// BadgeFor returns the highest tier reached. Karma below every threshold gets
// the lowest tier.
func BadgeFor(karma int64, tiers Tiers) string {
	if len(tiers) == 0 {
		return ""
	}
	badge := tiers[0].Name
	for _, t := range tiers {
		if karma >= t.Min {
			badge = t.Name
		}
	}
	return badge
}
