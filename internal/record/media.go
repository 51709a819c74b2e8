package record

import "hash/fnv"

// MediaState values double as the record's EntityType, so they are stable.
const (
	MediaStateNotDownloaded = 0
	MediaStateDownloadError = 1
	MediaStatePresent       = 2
)

// MediaStateKind discriminates the media download states.
type MediaStateKind string

const (
	MediaNotDownloaded MediaStateKind = "not_downloaded_yet"
	MediaDownloadError MediaStateKind = "download_error"
	MediaPresent       MediaStateKind = "present"
)

// Media describes the mirror's knowledge about one remote media asset.
//
// Media entities are keyed by their resource locator rather than an upstream
// numeric ID, so EntityID is a stable digest of the locator.
type Media struct {
	// Locator is the canonical URL of the asset on the upstream.
	Locator string     `json:"locator"`
	State   MediaState `json:"state"`
}

type MediaState struct {
	Kind MediaStateKind `json:"kind"`
	// Error holds the failure text when Kind is download_error.
	Error string `json:"error,omitempty"`
	// MediaRef is a reference into the media store (the content-addressed
	// relative path) when Kind is present. If a media entity is observed
	// more than once, the latest reference replaces earlier ones.
	MediaRef string `json:"media_ref,omitempty"`
}

func (Media) TypeID() TypeID { return TypeMedia }

func (m Media) EntityType() int {
	switch m.State.Kind {
	case MediaDownloadError:
		return MediaStateDownloadError
	case MediaPresent:
		return MediaStatePresent
	}
	return MediaStateNotDownloaded
}

// EntityID derives a stable 64-bit key from the locator.
func (m Media) EntityID() int64 {
	return LocatorID(m.Locator)
}

func (Media) sourceKind() (string, string) { return "media", "media" }

// LocatorID is the FNV-64a digest of a resource locator, reinterpreted as a
// signed integer for storage.
func LocatorID(locator string) int64 {
	h := fnv.New64a()
	h.Write([]byte(locator))
	return int64(h.Sum64())
}
