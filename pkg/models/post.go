package models

import (
	"strings"
	"time"
)

// Category is the closed set of post kinds shown in the feed.
type Category string

const (
	CategoryNotice     Category = "notice"
	CategoryEvent      Category = "event"
	CategoryDutyRoster Category = "duty-roster"
)

// Categories lists every valid category in display order.
var Categories = []Category{CategoryNotice, CategoryEvent, CategoryDutyRoster}

// ParseCategory accepts a category name case-insensitively.
func ParseCategory(s string) (Category, bool) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	switch c {
	case CategoryNotice, CategoryEvent, CategoryDutyRoster:
		return c, true
	}
	return "", false
}

// Reaction is one of the three reactions a viewer may attach to a post.
type Reaction string

const (
	ReactionLike  Reaction = "like"
	ReactionHeart Reaction = "heart"
	ReactionParty Reaction = "party"
)

// Reactions lists every reaction; ReactionHeart is the affection reaction
// fired by a double tap.
var Reactions = []Reaction{ReactionLike, ReactionHeart, ReactionParty}

// ParseReaction accepts a reaction name case-insensitively.
func ParseReaction(s string) (Reaction, bool) {
	r := Reaction(strings.ToLower(strings.TrimSpace(s)))
	switch r {
	case ReactionLike, ReactionHeart, ReactionParty:
		return r, true
	}
	return "", false
}

// Comment is an append-only entry on a post.
type Comment struct {
	Author   string `json:"author"`
	Text     string `json:"text"`
	Approved bool   `json:"approved"`
}

// Post is a feed entry together with its engagement state.
//
// ReactionsByViewer is keyed by IdentityKey(viewer name); ReactionCounts
// always equals the per-reaction tally of that map.
type Post struct {
	ID                string              `json:"id"`
	Body              string              `json:"body"`
	Category          Category            `json:"category"`
	Public            bool                `json:"public"`
	Mentions          []string            `json:"mentions"`
	Author            string              `json:"author"`
	CreatedAt         time.Time           `json:"created_at"`
	ReactionCounts    map[Reaction]int    `json:"reaction_counts"`
	ReactionsByViewer map[string]Reaction `json:"reactions_by_viewer"`
	Comments          []Comment           `json:"comments"`
}

// NewReactionCounts returns a count map with every reaction at zero.
func NewReactionCounts() map[Reaction]int {
	m := make(map[Reaction]int, len(Reactions))
	for _, r := range Reactions {
		m[r] = 0
	}
	return m
}

// Clone returns a deep copy so callers can mutate without aliasing.
func (p Post) Clone() Post {
	out := p
	out.Mentions = append(make([]string, 0, len(p.Mentions)), p.Mentions...)
	out.Comments = append(make([]Comment, 0, len(p.Comments)), p.Comments...)
	out.ReactionCounts = make(map[Reaction]int, len(p.ReactionCounts))
	for k, v := range p.ReactionCounts {
		out.ReactionCounts[k] = v
	}
	out.ReactionsByViewer = make(map[string]Reaction, len(p.ReactionsByViewer))
	for k, v := range p.ReactionsByViewer {
		out.ReactionsByViewer[k] = v
	}
	return out
}

// ReactionOf returns the viewer's active reaction, if any.
func (p Post) ReactionOf(name string) (Reaction, bool) {
	r, ok := p.ReactionsByViewer[IdentityKey(name)]
	return r, ok
}
