package feed

import (
	"fmt"
	"strings"

	"github.com/MCIKIDS/mci.kids/pkg/models"
)

// DefaultVisitorName is used as comment author for anonymous viewers.
const DefaultVisitorName = "Visitor"

func appendComment(p *models.Post, viewer models.Viewer, text, visitorName string) (models.Comment, error) {
	body := strings.TrimSpace(text)
	if body == "" {
		return models.Comment{}, fmt.Errorf("%w: comment text is empty", ErrInvalidInput)
	}
	if visitorName == "" {
		visitorName = DefaultVisitorName
	}
	c := models.Comment{
		Author:   viewer.DisplayName(visitorName),
		Text:     body,
		Approved: true,
	}
	p.Comments = append(p.Comments, c)
	return c, nil
}
