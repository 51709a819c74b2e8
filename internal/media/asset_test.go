package media

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTypeFromExtension(t *testing.T) {
	for _, tc := range []struct {
		ext  string
		want Type
	}{
		{"jpg", TypeJPEG},
		{"jpeg", TypeJPEG},
		{"JPG", TypeJPEG},
		{"png", TypePNG},
		{"gif", TypeGIF},
		{"webp", TypeWebP},
		{"mp4", TypeMP4},
		{"webm", TypeWebM},
		{"exe", TypeUnknown},
		{"", TypeUnknown},
	} {
		assert.Equal(t, tc.want, TypeFromExtension(tc.ext), "extension %q", tc.ext)
	}
}

func TestTypeExtension_RoundTrips(t *testing.T) {
	for _, typ := range []Type{TypeJPEG, TypePNG, TypeGIF, TypeWebP, TypeMP4, TypeWebM} {
		assert.Equal(t, typ, TypeFromExtension(typ.Extension()))
	}
	assert.Equal(t, "bin", TypeUnknown.Extension())
}

func TestAssetPath_Sharding(t *testing.T) {
	var hash [32]byte
	for i := range hash {
		hash[i] = byte(i)
	}
	asset := Asset{Hash: hash, Type: TypeJPEG}

	hexHash := hex.EncodeToString(hash[:])
	assert.Equal(t, "00/01/"+hexHash+".jpg", asset.Path())
}

func TestAssetPath_MatchesContentHash(t *testing.T) {
	content := []byte("hello media")
	asset := Asset{Hash: sha256.Sum256(content), Type: TypePNG}
	hexHash := hex.EncodeToString(asset.Hash[:])
	assert.Equal(t, hexHash[0:2]+"/"+hexHash[2:4]+"/"+hexHash+".png", asset.Path())
}
