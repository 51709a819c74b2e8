package danbooru

import "time"

// apiComment is a comment as served by /comments.json.
type apiComment struct {
	ID            int64     `json:"id"`
	CreatedAt     time.Time `json:"created_at"`
	PostID        int64     `json:"post_id"`
	CreatorID     int64     `json:"creator_id"`
	Body          string    `json:"body"`
	Score         int64     `json:"score"`
	UpdatedAt     time.Time `json:"updated_at"`
	UpdaterID     int64     `json:"updater_id"`
	DoNotBumpPost bool      `json:"do_not_bump_post"`
	IsDeleted     bool      `json:"is_deleted"`
	IsSticky      bool      `json:"is_sticky"`
}

// apiDeletedComment is the trimmed shape served when querying deleted
// comments with an only= field list. Deleted comments hide their body and
// expose creator/updater as nested id objects.
type apiDeletedComment struct {
	ID        int64     `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	PostID    int64     `json:"post_id"`
	UpdatedAt time.Time `json:"updated_at"`
	IsDeleted bool      `json:"is_deleted"`
	Creator   idHolder  `json:"creator"`
	Updater   idHolder  `json:"updater"`
}

type idHolder struct {
	ID int64 `json:"id"`
}

// apiPost is a post as served by /posts.json. Posts hidden from the API
// (banned or restricted) come without a file_url.
type apiPost struct {
	ID         int64     `json:"id"`
	UploaderID int64     `json:"uploader_id"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	Score      int64     `json:"score"`
	Rating     string    `json:"rating"`
	TagString  string    `json:"tag_string"`
	FileURL    string    `json:"file_url"`
	MD5        string    `json:"md5"`
	FileExt    string    `json:"file_ext"`
	FileSize   int64     `json:"file_size"`
}

// apiTag is a tag as served by /tags.json.
type apiTag struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Category  int       `json:"category"`
	PostCount int64     `json:"post_count"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
