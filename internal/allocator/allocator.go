// Package allocator assigns video clips to physical tracks so that no two
// clips sharing a track overlap in time, using the minimum number of tracks.
package allocator

import (
	"sort"

	"github.com/heimdex/reelcut/internal/mediatime"
	"github.com/heimdex/reelcut/internal/timeline"
)

// AllocatedClip relates a clip to its 0-based physical track.
type AllocatedClip struct {
	Clip       timeline.Clip `json:"clip"`
	TrackIndex int           `json:"track_index"`
}

// Result is the output of Allocate. Allocations are ordered by timeline start
// with ties kept in input order.
type Result struct {
	Allocations []AllocatedClip `json:"allocations"`
	TrackCount  int             `json:"track_count"`
}

// Allocate performs greedy interval colouring: clips are visited by start
// time and each takes the lowest-indexed track whose previous clip ends at or
// before its start. Touching endpoints share a track. Processing in start
// order makes the greedy choice optimal, so TrackCount equals the maximum
// number of clips overlapping at any instant.
func Allocate(clips []timeline.Clip) Result {
	order := make([]int, len(clips))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return clips[order[a]].TimelinePosition.Before(clips[order[b]].TimelinePosition)
	})

	var trackEnds []mediatime.Time
	allocations := make([]AllocatedClip, 0, len(clips))

	for _, idx := range order {
		clip := clips[idx]
		r := clip.TimelineRange()

		track := -1
		for i, end := range trackEnds {
			if end.Compare(r.Start) <= 0 {
				track = i
				break
			}
		}
		if track == -1 {
			trackEnds = append(trackEnds, r.End())
			track = len(trackEnds) - 1
		} else {
			trackEnds[track] = r.End()
		}

		allocations = append(allocations, AllocatedClip{Clip: clip, TrackIndex: track})
	}

	return Result{Allocations: allocations, TrackCount: len(trackEnds)}
}

// Track returns the clips assigned to track i in timeline order.
func (r Result) Track(i int) []timeline.Clip {
	var clips []timeline.Clip
	for _, a := range r.Allocations {
		if a.TrackIndex == i {
			clips = append(clips, a.Clip)
		}
	}
	return clips
}

// TrackOf returns the track assigned to the clip with the given ID.
func (r Result) TrackOf(clipID string) (int, bool) {
	for _, a := range r.Allocations {
		if a.Clip.ID == clipID {
			return a.TrackIndex, true
		}
	}
	return 0, false
}
