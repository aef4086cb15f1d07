// Package tables names the forum tables and the unique keys every gateway
// backend must enforce on them.
package tables

const (
	Posts       = "posts"
	Comments    = "comments"
	Votes       = "votes"
	Saves       = "saves"
	Awards      = "awards"
	Profiles    = "profiles"
	Submissions = "submissions"
	Reviews     = "reviews"
)

const (
	TargetPost    = "post"
	TargetComment = "comment"
)

// Unique lists the unique column sets per table.
var Unique = map[string][][]string{
	Posts:       {{"id"}},
	Comments:    {{"id"}},
	Votes:       {{"user_id", "target_id", "target_type"}},
	Saves:       {{"user_id", "target_id", "target_type"}},
	Awards:      {{"id"}},
	Profiles:    {{"user_id"}},
	Submissions: {{"user_id", "challenge_id"}},
	Reviews: {
		{"user_id", "challenge_id", "reviewer_id"},
		{"user_id", "challenge_id", "seq"},
	},
}

// All returns every table name in creation order.
func All() []string {
	return []string{Posts, Comments, Votes, Saves, Awards, Profiles, Submissions, Reviews}
}

// TargetKeys is the conflict key for votes and saves.
var TargetKeys = []string{"user_id", "target_id", "target_type"}
