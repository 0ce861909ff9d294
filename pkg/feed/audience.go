package feed

import (
	"sort"

	"github.com/MCIKIDS/mci.kids/pkg/models"
)

// CanSee evaluates the audience rules for a single post.
func CanSee(viewer models.Viewer, p models.Post) bool {
	if viewer.IsCoordinator() {
		return true
	}
	if p.Public {
		return true
	}
	if !viewer.Resolved() {
		return false
	}
	if models.SameIdentity(p.Author, viewer.Name) {
		return true
	}
	for _, m := range p.Mentions {
		if models.SameIdentity(m, viewer.Name) {
			return true
		}
	}
	return false
}

// VisibleTo returns the posts the viewer may see, newest first.
func VisibleTo(viewer models.Viewer, posts []models.Post) []models.Post {
	out := make([]models.Post, 0, len(posts))
	for _, p := range posts {
		if CanSee(viewer, p) {
			out = append(out, p)
		}
	}
	sortNewestFirst(out)
	return out
}

// PublicFeed returns only public posts, newest first, regardless of viewer.
func PublicFeed(posts []models.Post) []models.Post {
	out := make([]models.Post, 0, len(posts))
	for _, p := range posts {
		if p.Public {
			out = append(out, p)
		}
	}
	sortNewestFirst(out)
	return out
}

// ProfileFeed narrows the feed to one author. Coordinators see the author's
// whole history; everyone else stays subject to VisibleTo.
func ProfileFeed(viewer models.Viewer, posts []models.Post, author string) []models.Post {
	out := make([]models.Post, 0)
	for _, p := range VisibleTo(viewer, posts) {
		if models.SameIdentity(p.Author, author) {
			out = append(out, p)
		}
	}
	return out
}

func sortNewestFirst(posts []models.Post) {
	sort.SliceStable(posts, func(i, j int) bool {
		return posts[i].CreatedAt.After(posts[j].CreatedAt)
	})
}
