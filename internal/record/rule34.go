package record

import "time"

// Entity kinds within the Rule34 source.
const (
	Rule34EntityComment = 1
)

// Rule34Comment is the state of one comment on Rule34.
//
// The Rule34 API does not distinguish deleted comments from ones that never
// existed, so the state set is absent/present only.
type Rule34Comment struct {
	ID    int64              `json:"id"`
	State Rule34CommentState `json:"state"`
}

type Rule34CommentState struct {
	Kind    StateKind          `json:"kind"`
	Present *Rule34CommentData `json:"present,omitempty"`
}

type Rule34CommentData struct {
	PostID int64 `json:"post_id"`
	// AuthorID is provided in API responses but not on the website.
	AuthorID   *int64 `json:"author_id,omitempty"`
	AuthorName string `json:"author_name"`
	// CreatedAt as reported by the listing. The API serves it at minute
	// precision.
	CreatedAt time.Time `json:"created_at"`
	Body      string    `json:"body"`
	// Score and IsReported are only visible on the website, not in API
	// responses.
	Score      *int64 `json:"score,omitempty"`
	IsReported *bool  `json:"is_reported,omitempty"`
}

func (Rule34Comment) TypeID() TypeID    { return TypeRule34 }
func (Rule34Comment) EntityType() int   { return Rule34EntityComment }
func (c Rule34Comment) EntityID() int64 { return c.ID }

func (Rule34Comment) sourceKind() (string, string) { return "rule34", "comment" }
