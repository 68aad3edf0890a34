package content

// Selection records which optional content the user wants to keep.
// Keep is indexed by Tier.
type Selection struct {
	Keep       [TierCount]bool `json:"keep"`
	KeepVideos bool            `json:"keep_videos"`
	KeepEvents bool            `json:"keep_events"`
}

// DefaultSelection keeps everything present in fa. Low textures are always kept.
func DefaultSelection(fa FeatureAvailability) Selection {
	var s Selection
	for _, t := range AllTiers() {
		s.Keep[t] = fa.Textures[t].Present
	}
	s.KeepVideos = fa.Videos.Present
	s.KeepEvents = fa.Events.Present
	s.Keep[Low] = true
	return s
}

// SelectionForMinimum keeps every tier up to and including highest and drops the rest.
func SelectionForMinimum(highest Tier, keepVideos, keepEvents bool) Selection {
	s := Selection{KeepVideos: keepVideos, KeepEvents: keepEvents}
	for _, t := range AllTiers() {
		s.Keep[t] = t <= highest
	}
	s.Keep[Low] = true
	return s
}

// Toggle flips tier t and re-establishes the ordering rule: keeping a tier
// keeps every lower tier, dropping a tier drops every higher one. Low cannot
// be toggled.
func (s Selection) Toggle(t Tier) Selection {
	if t == Low || !t.Valid() {
		return s
	}
	s.Keep[t] = !s.Keep[t]
	for higher := t + 1; higher <= Ultra; higher++ {
		s.Keep[higher] = false
	}
	if s.Keep[t] {
		for lower := Medium; lower < t; lower++ {
			s.Keep[lower] = true
		}
	}
	return s
}

// MinimumTierToKeep returns the highest kept tier, searching Ultra down to
// Medium, or Low when nothing above Low is kept.
func (s Selection) MinimumTierToKeep() Tier {
	for t := Ultra; t >= Medium; t-- {
		if s.Keep[t] {
			return t
		}
	}
	return Low
}

// Reclaimable estimates the bytes freed by shearing with this selection.
// Low is never counted.
func (s Selection) Reclaimable(fa FeatureAvailability) uint64 {
	var n uint64
	for t := Medium; t <= Ultra; t++ {
		if !s.Keep[t] {
			n += fa.Textures[t].Bytes
		}
	}
	if !s.KeepVideos {
		n += fa.Videos.Bytes
	}
	if !s.KeepEvents {
		n += fa.Events.Bytes
	}
	return n
}
