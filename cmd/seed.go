package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"

	"github.com/jaswdr/faker"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ecoforum/pkg/award"
	"ecoforum/pkg/comment"
	. "ecoforum/pkg/common"
	"ecoforum/pkg/community"
	"ecoforum/pkg/config"
	"ecoforum/pkg/post"
	"ecoforum/pkg/tables"
	"ecoforum/pkg/user"
	"ecoforum/pkg/voting"
)

const seedPassword = "sdfsdfsdf"

var (
	f          = faker.New()
	categories = []string{"energy", "food", "transport", "waste", "water", "biodiversity"}
	challenges = []string{"plastic-free-week", "bike-to-work", "meatless-month"}
)

type seedOptions struct {
	Users    int
	Posts    int
	Comments int
}

type IUserRepo interface {
	Add(context.Context, *user.User) (string, error)
	GetAll(context.Context) ([]*user.User, error)
	MarkEmailVerified(context.Context, string) error
}

func newSeedCommand(root *rootOptions) *cobra.Command {
	opts := &seedOptions{}
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Fill the configured store with fake forum content",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if root.cfg.Store == config.StoreMemory {
				return errors.New("seed: FORUM_STORE=memory keeps nothing after exit, choose mongo or postgres")
			}
			ctx := cmd.Context()
			b, err := openBackends(ctx, root.cfg)
			if err != nil {
				return err
			}
			defer b.close(context.Background())

			s := &seeder{
				users: user.NewUserRepo(b.users),
				forum: community.NewService(b.forum, root.cfg.Community),
				log:   root.log,
			}
			return s.run(ctx, opts)
		},
	}
	cmd.Flags().IntVar(&opts.Users, "users", 5, "number of authors to create when there are none")
	cmd.Flags().IntVar(&opts.Posts, "posts", 6, "number of posts to create")
	cmd.Flags().IntVar(&opts.Comments, "comments", 10, "maximum number of comments per post")
	return cmd
}

type seeder struct {
	users IUserRepo
	forum *community.Service
	log   *zap.SugaredLogger
}

func (s *seeder) run(ctx context.Context, opts *seedOptions) error {
	authors, err := s.users.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("seed: can't get all authors: %w", err)
	}
	if len(authors) == 0 {
		if authors, err = s.createAuthors(ctx, opts.Users); err != nil {
			return err
		}
	}

	for i := 0; i < opts.Posts; i++ {
		p, err := s.forum.CreatePost(ctx, randUser(authors), genTitle(), genText(), randCategory())
		if err != nil {
			return fmt.Errorf("seed: can't add post: %w", err)
		}
		if err := s.comment(ctx, authors, p.Id, rand.Intn(opts.Comments+1)); err != nil {
			return err
		}
		s.vote(ctx, authors, p.Id)
	}

	s.submitProofs(ctx, authors)
	s.log.Infof("seed: %d posts written by %d authors", opts.Posts, len(authors))
	return nil
}

func (s *seeder) createAuthors(ctx context.Context, n int) ([]*user.User, error) {
	// User for experiments (not random)
	names := []string{"pike"}
	for len(names) < n+1 {
		names = append(names, strings.ToLower(f.Person().FirstName())+RandStringRunes(3))
	}

	authors := make([]*user.User, 0, len(names))
	for _, name := range names {
		u := &user.User{
			Username: name,
			Email:    name + "@example.org",
			Password: HashPass(seedPassword, NewSalt()),
		}
		id, err := s.users.Add(ctx, u)
		if err != nil {
			return nil, fmt.Errorf("seed: can't add user %s: %w", name, err)
		}
		if err := s.users.MarkEmailVerified(ctx, id); err != nil {
			return nil, fmt.Errorf("seed: can't verify user %s: %w", name, err)
		}
		u.Id, u.EmailVerified = id, true
		authors = append(authors, u)
	}
	return authors, nil
}

// comment adds n comments, each replying to an earlier one or starting a new thread.
func (s *seeder) comment(ctx context.Context, authors []*user.User, postId post.PostId, n int) error {
	var added []comment.CommentId
	for i := 0; i < n; i++ {
		var parent comment.CommentId
		if len(added) > 0 && rand.Intn(2) == 0 {
			parent = added[rand.Intn(len(added))]
		}
		change, err := s.forum.AddComment(ctx, randUser(authors), postId, parent, genText())
		if err != nil {
			return fmt.Errorf("seed: can't add comment to %s: %w", postId, err)
		}
		added = append(added, change.Comment.Id)
	}
	return nil
}

func (s *seeder) vote(ctx context.Context, authors []*user.User, postId post.PostId) {
	for _, u := range authors {
		score := voting.ScoreUp
		switch rand.Intn(4) {
		case 0:
			continue
		case 1:
			score = voting.ScoreDown
		}
		if _, err := s.forum.VotePost(ctx, u, postId, score); err != nil {
			s.log.Warnf("seed: vote of %s on %s failed: %v", u.Username, postId, err)
		}
	}
	if rand.Intn(3) == 0 {
		if _, err := s.forum.GrantAward(ctx, randUser(authors), tables.TargetPost, string(postId), randAward()); err != nil {
			s.log.Warnf("seed: award on %s failed: %v", postId, err)
		}
	}
}

// submitProofs leaves one pending proof per challenge with a partial set of reviews.
func (s *seeder) submitProofs(ctx context.Context, authors []*user.User) {
	if len(authors) < 2 {
		return
	}
	for _, challengeId := range challenges {
		submitter := randUser(authors)
		_, err := s.forum.SubmitProof(ctx, submitter, challengeId, fmt.Sprintf("proofs/%s/%s.jpg", challengeId, submitter.Id))
		if err != nil {
			s.log.Warnf("seed: proof of %s for %s failed: %v", submitter.Username, challengeId, err)
			continue
		}
		for _, reviewer := range authors {
			if reviewer.Id == submitter.Id || rand.Intn(2) == 0 {
				continue
			}
			if _, err := s.forum.AddReview(ctx, reviewer, challengeId, submitter.Id, rand.Intn(101)); err != nil {
				s.log.Warnf("seed: review by %s failed: %v", reviewer.Username, err)
				break
			}
		}
	}
}

func randCategory() string {
	return categories[rand.Intn(len(categories))]
}

func randAward() string {
	types := []string{award.Leaf, award.Tree, award.Planet}
	return types[rand.Intn(len(types))]
}

func genTitle() string {
	return strings.Join(f.Lorem().Words(rand.Intn(5)+3), " ")
}

func genText() string {
	return f.Lorem().Paragraph(rand.Intn(3) + 2)
}

func randUser(users []*user.User) *user.User {
	return users[rand.Intn(len(users))]
}
