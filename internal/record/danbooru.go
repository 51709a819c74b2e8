package record

import "time"

// Entity kinds within the Danbooru source.
const (
	DanbooruEntityComment = 1
	DanbooruEntityPost    = 2
	DanbooruEntityTag     = 3
)

// DanbooruComment is the state of one comment on Danbooru.
type DanbooruComment struct {
	// ID is the comment's ID on the Danbooru site.
	ID    int64                `json:"id"`
	State DanbooruCommentState `json:"state"`
}

type DanbooruCommentState struct {
	Kind    StateKind                 `json:"kind"`
	Present *DanbooruCommentData      `json:"present,omitempty"`
	Deleted *DanbooruCommentTombstone `json:"deleted,omitempty"`
}

// DanbooruCommentData is the payload of an existing comment.
type DanbooruCommentData struct {
	PostID    int64     `json:"post_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	CreatorID int64     `json:"creator_id"`
	UpdaterID int64     `json:"updater_id"`
	Body      string    `json:"body"`
	// Score is the combined up/down vote total. Changes to it do not
	// count as updates, so score drift never moves the poll watermark.
	Score         int64 `json:"score"`
	DoNotBumpPost bool  `json:"do_not_bump_post"`
	IsSticky      bool  `json:"is_sticky"`
}

// DanbooruCommentTombstone records a deleted comment. The updater is the
// deleting user; if it differs from the creator the deletion was moderation.
type DanbooruCommentTombstone struct {
	PostID    int64     `json:"post_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	CreatorID int64     `json:"creator_id"`
	UpdaterID int64     `json:"updater_id"`
}

func (DanbooruComment) TypeID() TypeID    { return TypeDanbooru }
func (DanbooruComment) EntityType() int   { return DanbooruEntityComment }
func (c DanbooruComment) EntityID() int64 { return c.ID }

func (DanbooruComment) sourceKind() (string, string) { return "danbooru", "comment" }

// DanbooruPost is the state of one post on Danbooru.
type DanbooruPost struct {
	ID    int64             `json:"id"`
	State DanbooruPostState `json:"state"`
}

type DanbooruPostState struct {
	Kind    StateKind              `json:"kind"`
	Present *DanbooruPostData      `json:"present,omitempty"`
	Deleted *DanbooruPostTombstone `json:"deleted,omitempty"`
}

// DanbooruPostData is the payload of an existing post.
type DanbooruPostData struct {
	UploaderID int64     `json:"uploader_id"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	Score      int64     `json:"score"`
	Rating     string    `json:"rating"`
	// TagString is the space-separated tag list as served by the API.
	TagString string `json:"tag_string"`
	// FileURL locates the post's media asset; it is resolved through the
	// media store before the record is persisted.
	FileURL  string `json:"file_url"`
	MD5      string `json:"md5"`
	FileExt  string `json:"file_ext"`
	FileSize int64  `json:"file_size"`
}

type DanbooruPostTombstone struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (DanbooruPost) TypeID() TypeID    { return TypeDanbooru }
func (DanbooruPost) EntityType() int   { return DanbooruEntityPost }
func (p DanbooruPost) EntityID() int64 { return p.ID }

func (DanbooruPost) sourceKind() (string, string) { return "danbooru", "post" }

// DanbooruTag is the state of one tag on Danbooru. Tags are never deleted
// upstream, so the state set is absent/present only.
type DanbooruTag struct {
	ID    int64            `json:"id"`
	State DanbooruTagState `json:"state"`
}

type DanbooruTagState struct {
	Kind    StateKind        `json:"kind"`
	Present *DanbooruTagData `json:"present,omitempty"`
}

type DanbooruTagData struct {
	Name      string    `json:"name"`
	Category  int       `json:"category"`
	PostCount int64     `json:"post_count"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (DanbooruTag) TypeID() TypeID    { return TypeDanbooru }
func (DanbooruTag) EntityType() int   { return DanbooruEntityTag }
func (t DanbooruTag) EntityID() int64 { return t.ID }

func (DanbooruTag) sourceKind() (string, string) { return "danbooru", "tag" }
