package feed

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MCIKIDS/mci.kids/pkg/models"
)

// PostStore owns the ordered post collection. New posts are prepended, so
// the slice is newest-inserted first. It is not safe for concurrent use;
// callers serialize access.
type PostStore struct {
	posts       []models.Post
	now         func() time.Time
	newID       func() string
	visitorName string
}

// Option configures a PostStore.
type Option func(*PostStore)

// WithClock overrides the creation timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *PostStore) { s.now = now }
}

// WithIDGenerator overrides post id generation.
func WithIDGenerator(gen func() string) Option {
	return func(s *PostStore) { s.newID = gen }
}

// WithVisitorName sets the comment author used for anonymous viewers.
func WithVisitorName(name string) Option {
	return func(s *PostStore) { s.visitorName = name }
}

func NewPostStore(opts ...Option) *PostStore {
	s := &PostStore{
		posts:       []models.Post{},
		now:         time.Now,
		newID:       uuid.NewString,
		visitorName: DefaultVisitorName,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Create validates and prepends a new post.
func (s *PostStore) Create(author models.Viewer, body string, category models.Category, public bool, mentionsRaw string) (models.Post, error) {
	if !author.Resolved() {
		return models.Post{}, ErrUnauthenticated
	}
	text := strings.TrimSpace(body)
	if text == "" {
		return models.Post{}, fmt.Errorf("%w: post body is empty", ErrInvalidInput)
	}
	cat, ok := models.ParseCategory(string(category))
	if !ok {
		return models.Post{}, fmt.Errorf("%w: unknown category %q", ErrInvalidInput, category)
	}
	p := models.Post{
		ID:                s.newID(),
		Body:              text,
		Category:          cat,
		Public:            public,
		Mentions:          ParseMentions(mentionsRaw),
		Author:            strings.TrimSpace(author.Name),
		CreatedAt:         s.now().UTC(),
		ReactionCounts:    models.NewReactionCounts(),
		ReactionsByViewer: map[string]models.Reaction{},
		Comments:          []models.Comment{},
	}
	s.posts = append([]models.Post{p}, s.posts...)
	return p.Clone(), nil
}

// Delete removes a post when the requester is a coordinator or its author.
func (s *PostStore) Delete(id string, requester models.Viewer) error {
	if !requester.Resolved() {
		return ErrUnauthenticated
	}
	i := s.index(id)
	if i < 0 {
		return fmt.Errorf("%w: post %s", ErrNotFound, id)
	}
	if !requester.IsCoordinator() && !models.SameIdentity(s.posts[i].Author, requester.Name) {
		return fmt.Errorf("%w: %s may not delete post %s", ErrUnauthorized, requester.Name, id)
	}
	s.posts = append(s.posts[:i:i], s.posts[i+1:]...)
	return nil
}

// React toggles the viewer's reaction on a post.
func (s *PostStore) React(id string, viewer models.Viewer, r models.Reaction) (models.Post, ReactionOutcome, error) {
	if !viewer.Resolved() {
		return models.Post{}, "", ErrUnauthenticated
	}
	i := s.index(id)
	if i < 0 {
		return models.Post{}, "", fmt.Errorf("%w: post %s", ErrNotFound, id)
	}
	next := s.posts[i].Clone()
	outcome, err := applyReaction(&next, viewer, r)
	if err != nil {
		return models.Post{}, "", err
	}
	s.posts[i] = next
	return next.Clone(), outcome, nil
}

// Comment appends a comment; anonymous viewers comment as the visitor name.
func (s *PostStore) Comment(id string, viewer models.Viewer, text string) (models.Post, error) {
	i := s.index(id)
	if i < 0 {
		return models.Post{}, fmt.Errorf("%w: post %s", ErrNotFound, id)
	}
	next := s.posts[i].Clone()
	if _, err := appendComment(&next, viewer, text, s.visitorName); err != nil {
		return models.Post{}, err
	}
	s.posts[i] = next
	return next.Clone(), nil
}

// Get returns a copy of the post with the given id.
func (s *PostStore) Get(id string) (models.Post, error) {
	i := s.index(id)
	if i < 0 {
		return models.Post{}, fmt.Errorf("%w: post %s", ErrNotFound, id)
	}
	return s.posts[i].Clone(), nil
}

// List returns copies of every post in insertion order.
func (s *PostStore) List() []models.Post {
	out := make([]models.Post, len(s.posts))
	for i, p := range s.posts {
		out[i] = p.Clone()
	}
	return out
}

// Replace swaps the collection, typically with a restored snapshot.
// Reaction state is normalised so counts always match the per-viewer map.
func (s *PostStore) Replace(posts []models.Post) {
	s.posts = make([]models.Post, 0, len(posts))
	for _, p := range posts {
		c := p.Clone()
		normalizeReactions(&c)
		s.posts = append(s.posts, c)
	}
}

func (s *PostStore) Len() int { return len(s.posts) }

func (s *PostStore) index(id string) int {
	for i := range s.posts {
		if s.posts[i].ID == id {
			return i
		}
	}
	return -1
}
