package state

import (
	"slices"
	"strings"
	"time"

	"github.com/photodiary/server/internal/models"
)

// Date formats used for grouping and for matching search terms against a
// photo's day.
const (
	DateKeyLayout   = "2006-01-02"
	DateLabelLayout = "Monday, January 2, 2006"
)

// DateGroup is one calendar day of photos
type DateGroup struct {
	Date   string         `json:"date"`
	Label  string         `json:"label"`
	Photos []models.Photo `json:"photos"`
}

// FilterPhotos returns the photos matching term and, when favoritesOnly is
// set, only favorites. The term is matched case-insensitively against the
// description, any tag, and the photo's day in loc rendered with either date
// layout. An empty term matches everything. photos is not modified.
func FilterPhotos(photos []models.Photo, term string, favoritesOnly bool, loc *time.Location) []models.Photo {
	if loc == nil {
		loc = time.UTC
	}
	term = strings.ToLower(strings.TrimSpace(term))

	out := make([]models.Photo, 0, len(photos))
	for _, p := range photos {
		if favoritesOnly && !p.IsFavorite {
			continue
		}
		if term != "" && !matches(p, term, loc) {
			continue
		}
		out = append(out, p.Clone())
	}
	return out
}

func matches(p models.Photo, term string, loc *time.Location) bool {
	if strings.Contains(strings.ToLower(p.Description), term) {
		return true
	}
	for _, tag := range p.Tags {
		if strings.Contains(strings.ToLower(tag), term) {
			return true
		}
	}
	day := p.CreatedAt.In(loc)
	if strings.Contains(day.Format(DateKeyLayout), term) {
		return true
	}
	return strings.Contains(strings.ToLower(day.Format(DateLabelLayout)), term)
}

// GroupByDate buckets photos by calendar day in loc. Groups are ordered
// newest day first; photos keep their relative order inside a group.
func GroupByDate(photos []models.Photo, loc *time.Location) []DateGroup {
	if loc == nil {
		loc = time.UTC
	}

	index := make(map[string]int)
	var groups []DateGroup
	for _, p := range photos {
		day := p.CreatedAt.In(loc)
		key := day.Format(DateKeyLayout)
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, DateGroup{Date: key, Label: day.Format(DateLabelLayout)})
		}
		groups[i].Photos = append(groups[i].Photos, p.Clone())
	}

	// Keys are ISO dates so lexical order is chronological
	slices.SortStableFunc(groups, func(a, b DateGroup) int {
		return strings.Compare(b.Date, a.Date)
	})
	return groups
}
