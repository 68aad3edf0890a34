package content

import (
	"os"
	"path/filepath"

	"github.com/sydlexius/shears/internal/filesystem"
)

// Bucket is the aggregate size of one category of optional content.
// Present is true exactly when Bytes is non-zero.
type Bucket struct {
	Present bool   `json:"present"`
	Bytes   uint64 `json:"bytes"`
}

func newBucket(n uint64) Bucket {
	return Bucket{Present: n > 0, Bytes: n}
}

// FeatureAvailability is a snapshot of the removable content in one
// installation directory. It is a plain value; rescan to refresh it.
type FeatureAvailability struct {
	HasInstallationMarker bool              `json:"has_installation_marker"`
	Textures              [TierCount]Bucket `json:"textures"`
	Videos                Bucket            `json:"videos"`
	Events                Bucket            `json:"events"`
}

// Texture returns the bucket for tier t. Out-of-range tiers yield an empty bucket.
func (fa FeatureAvailability) Texture(t Tier) Bucket {
	if !t.Valid() {
		return Bucket{}
	}
	return fa.Textures[t]
}

// TotalBytes sums every bucket in the snapshot.
func (fa FeatureAvailability) TotalBytes() uint64 {
	total := fa.Videos.Bytes + fa.Events.Bytes
	for _, b := range fa.Textures {
		total += b.Bytes
	}
	return total
}

// Scan inspects dir (non-recursively, except for the videos subdirectory)
// and reports which optional content is present. A directory that cannot be
// listed yields the zero snapshot.
func Scan(dir string) FeatureAvailability {
	var fa FeatureAvailability

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fa
	}

	var textures [TierCount]uint64
	var events uint64
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if IsArchive(name) {
			fa.HasInstallationMarker = true
			if t, ok := TextureTier(name); ok {
				textures[t] += entrySize(dir, e)
			}
		}
		if IsEventFile(name) {
			events += entrySize(dir, e)
		}
	}

	for t, n := range textures {
		fa.Textures[t] = newBucket(n)
	}
	fa.Events = newBucket(events)

	videos, err := filesystem.DirSize(filepath.Join(dir, VideosDir))
	if err == nil {
		fa.Videos = newBucket(videos)
	}

	return fa
}

// entrySize returns the byte length of a directory entry, or 0 if it cannot
// be stat'ed. Symlinks report the size of their target.
func entrySize(dir string, e os.DirEntry) uint64 {
	var info os.FileInfo
	var err error
	if e.Type()&os.ModeSymlink != 0 {
		info, err = os.Stat(filepath.Join(dir, e.Name()))
	} else {
		info, err = e.Info()
	}
	if err != nil || !info.Mode().IsRegular() {
		return 0
	}
	return uint64(info.Size())
}
