package blobmap

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRemapExactMatch(t *testing.T) {
	buffered := []Buffered{{Field: "avatar", Filename: "photo.jpg", Bytes: []byte("x")}}
	server := map[string]any{"avatar": "photo.jpg"}

	mapped := Remap(buffered, server)

	require := assert.New(t)
	require.Len(mapped, 1)
	require.Equal("photo.jpg", mapped[0].ServerFilename)
}

func TestRemapServerRenamedFallsBackToStemPrefix(t *testing.T) {
	buffered := []Buffered{{Field: "avatar", Filename: "photo.jpg", Bytes: []byte("x")}}
	server := map[string]any{"avatar": "photo_a1b2c3.jpg"}

	mapped := Remap(buffered, server)

	assert.Len(t, mapped, 1)
	assert.Equal(t, "photo_a1b2c3.jpg", mapped[0].ServerFilename)
}

func TestRemapMultiValuedField(t *testing.T) {
	buffered := []Buffered{
		{Field: "gallery", Filename: "a.png", Bytes: []byte("1")},
		{Field: "gallery", Filename: "b.png", Bytes: []byte("2")},
	}
	server := map[string]any{"gallery": []any{"a_xyz.png", "b.png"}}

	mapped := Remap(buffered, server)

	assert.Len(t, mapped, 2)
	assert.Equal(t, "a_xyz.png", mapped[0].ServerFilename)
	assert.Equal(t, "b.png", mapped[1].ServerFilename)
}

func TestRemapMatchesAcrossUnicodeNormalizationForms(t *testing.T) {
	// Same filename in two Unicode normalization forms: "e" followed by a
	// combining acute accent (NFD) versus the precomposed "\u00e9" (NFC).
	decomposed := "cafe\u0301.jpg"
	precomposed := "caf\u00e9.jpg"

	buffered := []Buffered{{Field: "avatar", Filename: decomposed, Bytes: []byte("x")}}
	server := map[string]any{"avatar": precomposed}

	mapped := Remap(buffered, server)

	assert.Len(t, mapped, 1)
	assert.Equal(t, precomposed, mapped[0].ServerFilename)
}

func TestRemapNoMatchOmitted(t *testing.T) {
	buffered := []Buffered{{Field: "avatar", Filename: "photo.jpg", Bytes: []byte("x")}}
	server := map[string]any{"avatar": "totally-different.png"}

	mapped := Remap(buffered, server)

	assert.Empty(t, mapped)
}
