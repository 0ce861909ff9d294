package feed

import (
	"context"
	"errors"
	"strings"

	"github.com/MCIKIDS/mci.kids/pkg/models"
)

// DefaultShareTitle prefixes shared post summaries.
const DefaultShareTitle = "MCI Kids"

// ErrShareUnavailable is returned by a NativeSharer that cannot share.
var ErrShareUnavailable = errors.New("native share unavailable")

// NativeSharer hands text to the platform share sheet.
type NativeSharer interface {
	Share(ctx context.Context, text string) error
}

// Clipboard receives the text when native sharing is unavailable.
type Clipboard interface {
	Copy(ctx context.Context, text string) error
}

// ShareText renders the plain-text summary of a post.
func ShareText(title string, p models.Post) string {
	if title == "" {
		title = DefaultShareTitle
	}
	return title + " - " + strings.ToUpper(string(p.Category)) + "\n\n" + p.Body
}

// Share tries the native sharer first and falls back to the clipboard.
// It reports which channel received the text.
func Share(ctx context.Context, text string, native NativeSharer, clip Clipboard) (string, error) {
	if native != nil {
		err := native.Share(ctx, text)
		if err == nil {
			return "native", nil
		}
		if !errors.Is(err, ErrShareUnavailable) {
			return "", err
		}
	}
	if clip == nil {
		return "", ErrShareUnavailable
	}
	if err := clip.Copy(ctx, text); err != nil {
		return "", err
	}
	return "clipboard", nil
}
