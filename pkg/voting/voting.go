package voting

import (
	"ecoforum/pkg/common"
	"ecoforum/pkg/gateway"
	"ecoforum/pkg/tables"
)

type (
	VotingScore int

	Vote struct {
		UserId     string      `json:"user"`
		TargetId   string      `json:"target_id"`
		TargetType string      `json:"target_type"`
		Score      VotingScore `json:"vote"`
	}
)

const (
	ScoreUp      VotingScore = 1
	ScoreDiscard VotingScore = 0
	ScoreDown    VotingScore = -1
)

func (v VotingScore) Valid() bool {
	return v == ScoreUp || v == ScoreDown
}

// ParseScore accepts "up"/"down" as well as 1/-1.
func ParseScore(s string) (VotingScore, error) {
	switch s {
	case "up", "1", "+1":
		return ScoreUp, nil
	case "down", "-1":
		return ScoreDown, nil
	}
	return ScoreDiscard, common.Invalid("value", "must be up or down")
}

func targetTable(targetType string) (string, error) {
	switch targetType {
	case tables.TargetPost:
		return tables.Posts, nil
	case tables.TargetComment:
		return tables.Comments, nil
	}
	return "", common.Invalid("target_type", "must be post or comment")
}

func voteKey(userId, targetId, targetType string) []gateway.Filter {
	return []gateway.Filter{
		gateway.Eq("user_id", userId),
		gateway.Eq("target_id", targetId),
		gateway.Eq("target_type", targetType),
	}
}

func (v *Vote) row() gateway.Row {
	return gateway.Row{
		"user_id":     v.UserId,
		"target_id":   v.TargetId,
		"target_type": v.TargetType,
		"value":       int64(v.Score),
	}
}

func voteFromRow(r gateway.Row) *Vote {
	return &Vote{
		UserId:     r.String("user_id"),
		TargetId:   r.String("target_id"),
		TargetType: r.String("target_type"),
		Score:      VotingScore(r.Int("value")),
	}
}
