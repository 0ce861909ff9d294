package portal

import (
	"fmt"
	"time"

	"github.com/MCIKIDS/mci.kids/pkg/feed"
	"github.com/MCIKIDS/mci.kids/pkg/logger"
	"github.com/MCIKIDS/mci.kids/pkg/metrics"
	"github.com/MCIKIDS/mci.kids/pkg/models"
)

// NewPost is the input for CreatePost.
type NewPost struct {
	Body     string
	Category models.Category
	Public   bool
	Mentions string
}

func (s *State) CreatePost(viewer models.Viewer, in NewPost) (models.Post, error) {
	var out models.Post
	err := s.mutate("post_create", func() error {
		p, err := s.posts.Create(viewer, in.Body, in.Category, in.Public, in.Mentions)
		out = p
		return err
	})
	if err == nil {
		logger.Info("post_created", "id", out.ID, "author", out.Author, "category", out.Category, "public", out.Public)
	}
	return out, err
}

func (s *State) DeletePost(viewer models.Viewer, id string) error {
	err := s.mutate("post_delete", func() error {
		return s.posts.Delete(id, viewer)
	})
	if err == nil {
		logger.Info("post_deleted", "id", id, "by", viewer.Name)
	}
	return err
}

func (s *State) React(viewer models.Viewer, id string, r models.Reaction) (models.Post, feed.ReactionOutcome, error) {
	var (
		out     models.Post
		outcome feed.ReactionOutcome
	)
	if c, ok := models.ParseReaction(string(r)); ok {
		r = c
	}
	err := s.mutate("react", func() error {
		if !viewer.Resolved() {
			return feed.ErrUnauthenticated
		}
		if err := s.visibleLocked(viewer, id); err != nil {
			return err
		}
		p, o, err := s.posts.React(id, viewer, r)
		out, outcome = p, o
		return err
	})
	if err == nil {
		metrics.Reactions.WithLabelValues(string(r), string(outcome)).Inc()
	}
	return out, outcome, err
}

func (s *State) Comment(viewer models.Viewer, id, text string) (models.Post, error) {
	var out models.Post
	err := s.mutate("comment", func() error {
		if err := s.visibleLocked(viewer, id); err != nil {
			return err
		}
		p, err := s.posts.Comment(id, viewer, text)
		out = p
		return err
	})
	return out, err
}

// visibleLocked reports a post the viewer cannot see as not found.
func (s *State) visibleLocked(viewer models.Viewer, id string) error {
	p, err := s.posts.Get(id)
	if err != nil {
		return err
	}
	if !feed.CanSee(viewer, p) {
		return fmt.Errorf("%w: post %s", feed.ErrNotFound, id)
	}
	return nil
}

// TapResult reports what a tap on a post surface did.
type TapResult struct {
	DoubleTap bool                 `json:"double_tap"`
	Outcome   feed.ReactionOutcome `json:"outcome,omitempty"`
	Post      models.Post          `json:"post"`
}

// Tap records a tap on the viewer's surface for a post. A double tap
// applies the affection reaction.
func (s *State) Tap(viewer models.Viewer, id string, at time.Time) (TapResult, error) {
	if !viewer.Resolved() {
		return TapResult{}, feed.ErrUnauthenticated
	}
	p, err := s.Post(viewer, id)
	if err != nil {
		return TapResult{}, err
	}
	if !s.gestures.Tap(feed.SurfaceKey(viewer.Key(), id), at) {
		return TapResult{Post: p}, nil
	}
	metrics.DoubleTaps.Inc()
	p, outcome, err := s.React(viewer, id, models.ReactionHeart)
	if err != nil {
		return TapResult{}, err
	}
	return TapResult{DoubleTap: true, Outcome: outcome, Post: p}, nil
}

// Feed returns the viewer's feed, optionally narrowed to one author.
func (s *State) Feed(viewer models.Viewer, author string) []models.Post {
	s.mu.Lock()
	posts := s.posts.List()
	s.mu.Unlock()
	if author != "" {
		return feed.ProfileFeed(viewer, posts, author)
	}
	return feed.VisibleTo(viewer, posts)
}

func (s *State) PublicFeed() []models.Post {
	s.mu.Lock()
	posts := s.posts.List()
	s.mu.Unlock()
	return feed.PublicFeed(posts)
}

// Post returns one post if the viewer may see it. Hidden posts are
// reported as not found.
func (s *State) Post(viewer models.Viewer, id string) (models.Post, error) {
	s.mu.Lock()
	p, err := s.posts.Get(id)
	s.mu.Unlock()
	if err != nil {
		return models.Post{}, err
	}
	if !feed.CanSee(viewer, p) {
		return models.Post{}, fmt.Errorf("%w: post %s", feed.ErrNotFound, id)
	}
	return p, nil
}

// ShareText renders the share summary of a visible post.
func (s *State) ShareText(viewer models.Viewer, id, title string) (string, error) {
	p, err := s.Post(viewer, id)
	if err != nil {
		return "", err
	}
	return feed.ShareText(title, p), nil
}
