package models

import "time"

// UserAuthor is the label used for comments written by the local user
const UserAuthor = "You"

// Comment belongs to a single photo's thread
type Comment struct {
	ID            string    `json:"id"`
	PhotoID       string    `json:"photoId"`
	Text          string    `json:"text"`
	Username      string    `json:"username"`
	IsUserComment bool      `json:"isUserComment"`
	CreatedAt     time.Time `json:"createdAt"`

	// ParentCount is the parent photo's comment count once this comment was
	// stored. Only set on comments returned by an add.
	ParentCount int `json:"-"`
}

// UserFirst reorders comments so user-authored ones come before AI-authored
// ones. Relative order inside each group is preserved.
func UserFirst(comments []Comment) []Comment {
	out := make([]Comment, 0, len(comments))
	for _, c := range comments {
		if c.IsUserComment {
			out = append(out, c)
		}
	}
	for _, c := range comments {
		if !c.IsUserComment {
			out = append(out, c)
		}
	}
	return out
}
