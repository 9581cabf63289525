package guestentries

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/duncanmcclean/guest-entries/internal/common"
	"github.com/duncanmcclean/guest-entries/internal/server/models"
	"github.com/duncanmcclean/guest-entries/internal/tplx"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MaxSlugAttempts bounds the numeric suffix search.
const MaxSlugAttempts = 1000

var nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lower-kebab-cases s, folding accented letters to ASCII.
func Slugify(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	folded = strings.ToLower(folded)
	folded = strings.ReplaceAll(folded, "'", "")
	folded = strings.ReplaceAll(folded, "&", " and ")
	return strings.Trim(nonSlugChars.ReplaceAllString(folded, "-"), "-")
}

// RenderTitleFormat renders a collection title format against data.
// Missing or non-scalar values render empty, and a format that does not
// parse yields no title.
func RenderTitleFormat(format string, data map[string]any) string {
	out, err := tplx.Render(format, data)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(out)
}

// EntryTitle is the title field value, or the collection title format
// rendered from the entry data.
func EntryTitle(c *models.Collection, e *models.Entry) string {
	if t := strings.TrimSpace(e.Title()); t != "" {
		return t
	}
	if c != nil && c.TitleFormat != "" {
		return RenderTitleFormat(c.TitleFormat, e.Data)
	}
	return ""
}

// SlugResolver picks a free slug for a new entry.
type SlugResolver struct {
	store EntryStore
}

func NewSlugResolver(store EntryStore) *SlugResolver {
	return &SlugResolver{store: store}
}

// Resolve returns explicit verbatim when given. Otherwise the slug comes
// from the title with -1, -2, ... appended until no sibling uses it, and
// falls back to the entry id when there is no title. The check is best
// effort; the store's unique index settles races.
func (r *SlugResolver) Resolve(ctx context.Context, c *models.Collection, e *models.Entry, explicit string, hasExplicit bool) (string, error) {
	if hasExplicit {
		return explicit, nil
	}

	base := Slugify(EntryTitle(c, e))
	if base == "" {
		return e.ID, nil
	}

	for i := 0; i < MaxSlugAttempts; i++ {
		candidate := base
		if i > 0 {
			candidate = fmt.Sprintf("%s-%d", base, i)
		}
		taken, err := r.store.SlugExists(ctx, e.Collection, e.Site, e.ParentID, candidate)
		if err != nil {
			return "", fmt.Errorf("%w: %w", common.ErrPersistence, err)
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: no free slug for %q after %d attempts", common.ErrPersistence, base, MaxSlugAttempts)
}
