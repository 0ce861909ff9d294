package feed

import (
	"fmt"
	"sort"

	"github.com/MCIKIDS/mci.kids/pkg/models"
)

// ReactionOutcome describes what a react call did to the viewer's entry.
type ReactionOutcome string

const (
	ReactionAdded   ReactionOutcome = "added"
	ReactionRemoved ReactionOutcome = "removed"
	ReactionMoved   ReactionOutcome = "moved"
)

// applyReaction toggles the viewer's reaction on p in place.
// Counts never drop below zero and each viewer holds at most one reaction.
func applyReaction(p *models.Post, viewer models.Viewer, r models.Reaction) (ReactionOutcome, error) {
	if !viewer.Resolved() {
		return "", ErrUnauthenticated
	}
	canon, ok := models.ParseReaction(string(r))
	if !ok {
		return "", fmt.Errorf("%w: unknown reaction %q", ErrInvalidInput, r)
	}
	r = canon
	if p.ReactionCounts == nil {
		p.ReactionCounts = models.NewReactionCounts()
	}
	if p.ReactionsByViewer == nil {
		p.ReactionsByViewer = map[string]models.Reaction{}
	}

	key := viewer.Key()
	prev, had := p.ReactionsByViewer[key]
	switch {
	case had && prev == r:
		decrement(p.ReactionCounts, r)
		delete(p.ReactionsByViewer, key)
		return ReactionRemoved, nil
	case had:
		decrement(p.ReactionCounts, prev)
		p.ReactionCounts[r]++
		p.ReactionsByViewer[key] = r
		return ReactionMoved, nil
	default:
		p.ReactionCounts[r]++
		p.ReactionsByViewer[key] = r
		return ReactionAdded, nil
	}
}

func decrement(counts map[models.Reaction]int, r models.Reaction) {
	if counts[r] > 0 {
		counts[r]--
	}
}

func canonical(r models.Reaction) bool {
	c, ok := models.ParseReaction(string(r))
	return ok && c == r
}

// CountsConsistent reports whether the post's counts match its per-viewer
// map and only the three canonical reactions appear in either.
func CountsConsistent(p models.Post) bool {
	tally := map[models.Reaction]int{}
	for k, r := range p.ReactionsByViewer {
		if !canonical(r) || k != models.IdentityKey(k) {
			return false
		}
		tally[r]++
	}
	for r := range p.ReactionCounts {
		if !canonical(r) {
			return false
		}
	}
	for _, r := range models.Reactions {
		if p.ReactionCounts[r] != tally[r] {
			return false
		}
	}
	return true
}

// normalizeReactions rekeys the per-viewer map by identity, drops unknown
// reactions and recomputes the counts. When two stored keys fold to the same
// identity the lexically first one wins.
func normalizeReactions(p *models.Post) {
	keys := make([]string, 0, len(p.ReactionsByViewer))
	for k := range p.ReactionsByViewer {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	byViewer := make(map[string]models.Reaction, len(keys))
	for _, k := range keys {
		id := models.IdentityKey(k)
		r, ok := models.ParseReaction(string(p.ReactionsByViewer[k]))
		if id == "" || !ok {
			continue
		}
		if _, dup := byViewer[id]; dup {
			continue
		}
		byViewer[id] = r
	}
	counts := models.NewReactionCounts()
	for _, r := range byViewer {
		counts[r]++
	}
	p.ReactionsByViewer = byViewer
	p.ReactionCounts = counts
}
