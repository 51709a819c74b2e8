package record

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danya02/multibooru-mirror/internal/snowflake"
)

func ptr[T any](v T) *T { return &v }

func sampleRecords() []Record {
	now := time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)
	return []Record{
		{ID: snowflake.FromInt64(1111111), Data: DanbooruComment{
			ID: 42,
			State: DanbooruCommentState{
				Kind: StatePresent,
				Present: &DanbooruCommentData{
					PostID:    7,
					CreatedAt: now,
					UpdatedAt: now,
					CreatorID: 100,
					UpdaterID: 100,
					Body:      "nice",
					Score:     3,
				},
			},
		}},
		{ID: snowflake.FromInt64(2222222), Data: DanbooruComment{
			ID: 43,
			State: DanbooruCommentState{
				Kind: StateDeleted,
				Deleted: &DanbooruCommentTombstone{
					PostID:    7,
					CreatedAt: now,
					UpdatedAt: now.Add(time.Hour),
					CreatorID: 100,
					UpdaterID: 1,
				},
			},
		}},
		{ID: snowflake.FromInt64(3333333), Data: DanbooruPost{
			ID: 9000,
			State: DanbooruPostState{
				Kind: StatePresent,
				Present: &DanbooruPostData{
					UploaderID: 5,
					CreatedAt:  now,
					UpdatedAt:  now,
					Rating:     "g",
					TagString:  "landscape sky",
					FileURL:    "https://cdn.example/orig.png",
					MD5:        "d41d8cd98f00b204e9800998ecf8427e",
					FileExt:    "png",
					FileSize:   12345,
				},
			},
		}},
		{ID: snowflake.FromInt64(4444444), Data: DanbooruTag{
			ID: 17,
			State: DanbooruTagState{
				Kind:    StatePresent,
				Present: &DanbooruTagData{Name: "sky", Category: 0, PostCount: 999, CreatedAt: now, UpdatedAt: now},
			},
		}},
		{ID: snowflake.FromInt64(5555555), Data: Rule34Comment{
			ID: 314,
			State: Rule34CommentState{
				Kind: StatePresent,
				Present: &Rule34CommentData{
					PostID:     13,
					AuthorID:   ptr(int64(88)),
					AuthorName: "someone",
					CreatedAt:  now,
					Body:       "hello",
				},
			},
		}},
		{ID: snowflake.FromInt64(6666666), Data: Media{
			Locator: "https://cdn.example/orig.png",
			State:   MediaState{Kind: MediaPresent, MediaRef: "ab/cd/abcd.png"},
		}},
		{ID: snowflake.FromInt64(7777777), Data: Media{
			Locator: "https://cdn.example/gone.png",
			State:   MediaState{Kind: MediaDownloadError, Error: "status 404"},
		}},
	}
}

func TestRoundTrip_AllVariants(t *testing.T) {
	for _, rec := range sampleRecords() {
		source, kind := rec.Data.sourceKind()
		t.Run(source+"/"+kind, func(t *testing.T) {
			encoded, err := Encode(rec)
			require.NoError(t, err)

			decoded, err := Decode(encoded)
			require.NoError(t, err)
			assert.Equal(t, rec, decoded)

			// encode(decode(x)) == x.
			reEncoded, err := Encode(decoded)
			require.NoError(t, err)
			assert.JSONEq(t, string(encoded), string(reEncoded))
		})
	}
}

func TestDecode_UnknownVariant(t *testing.T) {
	_, err := Decode([]byte(`{"id":1,"source":"gelbooru","kind":"comment","data":{}}`))
	assert.ErrorContains(t, err, "unknown record variant")
}

func TestDecode_Garbage(t *testing.T) {
	_, err := Decode([]byte(`not json at all`))
	assert.Error(t, err)
}

func TestKey_Projections(t *testing.T) {
	for _, tc := range []struct {
		name string
		data Data
		want Key
	}{
		{"danbooru comment", DanbooruComment{ID: 42}, Key{TypeDanbooru, DanbooruEntityComment, 42}},
		{"danbooru post", DanbooruPost{ID: 9000}, Key{TypeDanbooru, DanbooruEntityPost, 9000}},
		{"danbooru tag", DanbooruTag{ID: 17}, Key{TypeDanbooru, DanbooruEntityTag, 17}},
		{"rule34 comment", Rule34Comment{ID: 314}, Key{TypeRule34, Rule34EntityComment, 314}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Record{Data: tc.data}.Key())
		})
	}
}

func TestMedia_EntityTypeFollowsState(t *testing.T) {
	m := Media{Locator: "https://x/y.png"}
	m.State.Kind = MediaNotDownloaded
	assert.Equal(t, MediaStateNotDownloaded, m.EntityType())
	m.State.Kind = MediaDownloadError
	assert.Equal(t, MediaStateDownloadError, m.EntityType())
	m.State.Kind = MediaPresent
	assert.Equal(t, MediaStatePresent, m.EntityType())
}

func TestMedia_EntityIDStableAcrossStates(t *testing.T) {
	a := Media{Locator: "https://x/y.png", State: MediaState{Kind: MediaNotDownloaded}}
	b := Media{Locator: "https://x/y.png", State: MediaState{Kind: MediaPresent, MediaRef: "aa/bb/aabb.png"}}
	assert.Equal(t, a.EntityID(), b.EntityID())

	other := Media{Locator: "https://x/z.png"}
	assert.NotEqual(t, a.EntityID(), other.EntityID())
}

func TestEnvelope_TagsOnWire(t *testing.T) {
	rec := Record{ID: snowflake.FromInt64(99), Data: DanbooruComment{ID: 1, State: DanbooruCommentState{Kind: StateAbsent}}}
	encoded, err := Encode(rec)
	require.NoError(t, err)

	var env map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(encoded, &env))
	assert.JSONEq(t, `"danbooru"`, string(env["source"]))
	assert.JSONEq(t, `"comment"`, string(env["kind"]))
	assert.JSONEq(t, `99`, string(env["id"]))
}
