// Package media implements the content-addressed, deduplicating store for
// binary assets referenced by records.
//
// Assets are identified by the SHA-256 hash of their bytes. Upstream media
// never changes once uploaded, so equal hashes mean equal content; two
// entries with equal hash and different sizes would mean the hash function
// is broken, which is treated as fatal rather than recoverable.
package media

import (
	"encoding/hex"
	"path/filepath"
	"strings"
)

// Type is the media type of an asset, derived from the resource's file
// extension. The set is closed: an extension outside the table yields
// TypeUnknown, which is expected to be corrected in code as soon as a new
// format shows up, never silently dropped.
type Type string

const (
	TypeUnknown Type = "unknown"
	TypeJPEG    Type = "jpeg"
	TypePNG     Type = "png"
	TypeGIF     Type = "gif"
	TypeWebP    Type = "webp"
	TypeMP4     Type = "mp4"
	TypeWebM    Type = "webm"
)

var typeByExtension = map[string]Type{
	"jpg":  TypeJPEG,
	"jpeg": TypeJPEG,
	"png":  TypePNG,
	"gif":  TypeGIF,
	"webp": TypeWebP,
	"mp4":  TypeMP4,
	"webm": TypeWebM,
}

// TypeFromExtension derives the media type from a file extension (without
// the leading dot, any case).
func TypeFromExtension(ext string) Type {
	if t, ok := typeByExtension[strings.ToLower(ext)]; ok {
		return t
	}
	return TypeUnknown
}

// Extension returns the canonical file extension for this type. Unknown
// assets are stored with a .bin extension.
func (t Type) Extension() string {
	switch t {
	case TypeJPEG:
		return "jpg"
	case TypePNG:
		return "png"
	case TypeGIF:
		return "gif"
	case TypeWebP:
		return "webp"
	case TypeMP4:
		return "mp4"
	case TypeWebM:
		return "webm"
	}
	return "bin"
}

// Asset describes one stored media asset.
type Asset struct {
	// Hash is the SHA-256 digest of the asset's bytes.
	Hash [32]byte
	// Size in bytes. Assets larger than 4 GiB are rejected at download
	// time, so a uint32 always suffices.
	Size uint32
	Type Type
}

// Path returns the asset's location relative to the media root: two levels
// of hash-prefix sharding, then the full hash with the type's extension,
// e.g. ab/cd/abcdef....jpg.
func (a Asset) Path() string {
	hexHash := hex.EncodeToString(a.Hash[:])
	return filepath.Join(hexHash[0:2], hexHash[2:4], hexHash+"."+a.Type.Extension())
}
