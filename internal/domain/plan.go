package domain

import "math"

// clipLeadIn is how far before the midpoint of a track an unpinned clip
// begins, which usually lands on a chorus rather than an intro.
const clipLeadIn = 10.0

// PlanClip picks the clip window for a question. A pinned ClipStart is used
// as-is and left to ClipSpec validation; otherwise the window starts shortly
// before the midpoint of the media and is pulled back so that it fits.
func PlanClip(q Question, media MediaReference, clipSeconds float64, format string) ClipSpec {
	spec := ClipSpec{
		Media:           media,
		DurationSeconds: clipSeconds,
		Format:          format,
	}
	if q.ClipStart != nil {
		spec.StartOffsetSeconds = *q.ClipStart
		return spec
	}
	if media.DurationSeconds > 0 && media.DurationSeconds < clipSeconds {
		spec.DurationSeconds = media.DurationSeconds
		return spec
	}
	start := math.Max(0, math.Floor(media.DurationSeconds/2)-clipLeadIn)
	if start+clipSeconds > media.DurationSeconds {
		start = math.Max(0, media.DurationSeconds-clipSeconds)
	}
	spec.StartOffsetSeconds = start
	return spec
}
