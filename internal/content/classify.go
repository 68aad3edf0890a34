package content

import (
	"strings"
)

// File name patterns used by the game's loader.
const (
	// ArchiveExt is the extension of the game's package format.
	ArchiveExt = "forge"
	// DepGraphExt is the extension of dependency-graph files shipped next to archives.
	DepGraphExt = "depgraphbin"

	texturesToken = "textures"
	eventsToken   = "events"

	// VideosDir is the optional video subdirectory.
	VideosDir = "videos"
	// SentinelFile is rewritten after every shear.
	SentinelFile = "streaminginstall.ini"
)

// splitName returns the stem and extension of a file name. The extension is
// the text after the last dot; a leading dot alone does not start an extension.
func splitName(name string) (stem, ext string) {
	i := strings.LastIndexByte(name, '.')
	if i <= 0 {
		return name, ""
	}
	return name[:i], name[i+1:]
}

// IsArchive reports whether name has the archive extension, ignoring case.
func IsArchive(name string) bool {
	_, ext := splitName(name)
	return strings.EqualFold(ext, ArchiveExt)
}

// TextureTier classifies an archive file name. The stem must contain
// "textures" immediately followed by a digit 0-4. ok is false when the name
// is not an archive or does not match.
func TextureTier(name string) (Tier, bool) {
	stem, ext := splitName(name)
	if !strings.EqualFold(ext, ArchiveExt) {
		return 0, false
	}
	_, suffix, found := strings.Cut(stem, texturesToken)
	if !found || suffix == "" {
		return 0, false
	}
	c := suffix[0]
	if c < '0' || c > '9' {
		return 0, false
	}
	return TierFromInt(int(c - '0'))
}

// IsEventFile reports whether name is an archive or dependency graph whose
// stem contains "events".
func IsEventFile(name string) bool {
	stem, ext := splitName(name)
	if !strings.EqualFold(ext, ArchiveExt) && !strings.EqualFold(ext, DepGraphExt) {
		return false
	}
	return strings.Contains(stem, eventsToken)
}
