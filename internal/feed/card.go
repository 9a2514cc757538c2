package feed

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/dustin/go-humanize"

	"github.com/Dhrumilshah777/imageDrop/internal/model"
)

// Card is one rendered gallery entry.
type Card struct {
	Image    model.Image `json:"image"`
	Age      string      `json:"age"`      // "3 minutes ago"
	Initials string      `json:"initials"` // avatar fallback
}

// Cards renders images relative to now, keeping their order.
func Cards(images []model.Image, now time.Time) []Card {
	cards := make([]Card, len(images))
	for i, img := range images {
		cards[i] = Card{
			Image:    img,
			Age:      RelativeTime(img.CreatedAt, now),
			Initials: Initials(img.UserName),
		}
	}
	return cards
}

// RelativeTime describes t relative to now. Timestamps slightly in the
// future (clock skew) read as "now".
func RelativeTime(t, now time.Time) string {
	if t.After(now) {
		t = now
	}
	return humanize.RelTime(t, now, "ago", "from now")
}

// Initials returns up to two upper-cased initials of name, or "U" when the
// name is empty.
func Initials(name string) string {
	var b strings.Builder
	for _, part := range strings.Fields(name) {
		r, _ := utf8.DecodeRuneInString(part)
		b.WriteRune(unicode.ToUpper(r))
		if utf8.RuneCountInString(b.String()) == 2 {
			break
		}
	}
	if b.Len() == 0 {
		return "U"
	}
	return b.String()
}

// View is State rendered for display.
type View struct {
	Status       Status `json:"status"`
	Cards        []Card `json:"cards"`
	Error        string `json:"error,omitempty"`
	Placeholders int    `json:"placeholders,omitempty"`
}

// View renders s relative to now.
func (s State) View(now time.Time) View {
	return View{
		Status:       s.Status,
		Cards:        Cards(s.Images, now),
		Error:        s.Error,
		Placeholders: s.Placeholders,
	}
}
