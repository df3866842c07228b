// Package classify decides how each texture is treated: its asset kind from
// filename conventions and its upscale factor from a size heuristic.
package classify

import (
	"path/filepath"
	"strings"
)

// Kind distinguishes color textures from normal maps.
type Kind string

const (
	KindColor  Kind = "color"
	KindNormal Kind = "normal"
)

// NormalMarkers are the filename suffixes, immediately preceding the
// extension separator, that mark a texture as a normal map. Exported so tests
// can enumerate the set exhaustively.
var NormalMarkers = []string{"_n.", "_nm.", "_normal.", "_norm."}

// ClassifyKind reports the asset kind for a file name or path. Matching is
// case-insensitive and considers only the trailing marker before the
// extension of the final path element.
func ClassifyKind(name string) Kind {
	base := strings.ToLower(filepath.Base(name))
	ext := filepath.Ext(base)
	if ext == "" {
		return KindColor
	}
	stem := strings.TrimSuffix(base, ext)
	for _, marker := range NormalMarkers {
		if strings.HasSuffix(stem+".", marker) {
			return KindNormal
		}
	}
	return KindColor
}

// ChooseScale picks the upscale factor from the texture's largest dimension.
// Anything at or above maxDim stays at 1; boundary ties resolve to the
// smaller scale.
func ChooseScale(width, height uint32, maxDim int) int {
	m := max(width, height)
	if maxDim > 0 && m >= uint32(maxDim) {
		return 1
	}
	switch {
	case m < 700:
		return 4
	case m < 1400:
		return 2
	default:
		return 1
	}
}

// ScaleFor applies the kind override: normal maps are never upscaled, so
// directional data is copied rather than resampled.
func ScaleFor(kind Kind, width, height uint32, maxDim int) int {
	if kind == KindNormal {
		return 1
	}
	return ChooseScale(width, height, maxDim)
}
