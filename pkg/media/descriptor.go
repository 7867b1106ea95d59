// Package media normalizes the platform's many payload shapes into flat
// media descriptors the fetch and download layers can work with.
package media

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Kind is the type of a media item. Video items keep KindVideo whatever
// their source; the remaining kinds record where an image item came from.
type Kind string

const (
	KindImage        Kind = "image"
	KindVideo        Kind = "video"
	KindCarouselItem Kind = "carousel-item"
	KindStory        Kind = "story"
	KindHighlight    Kind = "highlight"
	KindReel         Kind = "reel"
)

// Descriptor is a normalized media item: one downloadable URL plus the
// metadata needed to name and attribute it.
type Descriptor struct {
	// URL is the direct URL of the best available variant.
	URL string

	// Kind classifies the item; see the Kind constants.
	Kind Kind

	// Caption is the text attached to the item, if any.
	Caption string

	// ContentID identifies the item's source: the shortcode for posts and
	// carousels, the story pk for stories, and a synthesized reel-scoped
	// id for highlight items. ContentID and SequenceIndex together form
	// the item's identity.
	ContentID string

	// Username is the owner of the item.
	Username string

	// SequenceIndex is the one-based position within a carousel or story
	// reel. Standalone items carry zero.
	SequenceIndex int

	// TakenAt is when the item was created, if known.
	TakenAt time.Time
}

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Filename derives a stable local filename from the item's identity.
// Sequenced items carry their position as a suffix; highlight content ids
// already embed it.
func (d *Descriptor) Filename() string {
	base := d.ContentID
	if base == "" {
		base = fmt.Sprintf("%s_%d", d.Username, d.TakenAt.Unix())
	}
	if d.SequenceIndex > 0 {
		suffix := fmt.Sprintf("_%d", d.SequenceIndex)
		if !strings.HasSuffix(base, suffix) {
			base += suffix
		}
	}
	base = unsafeFilenameChars.ReplaceAllString(base, "_")
	base = strings.Trim(base, "._")
	if base == "" {
		base = "media"
	}
	return base + "." + d.Extension()
}

// Extension returns the file extension for the media kind.
func (d *Descriptor) Extension() string {
	if d.Kind == KindVideo || d.Kind == KindReel {
		return "mp4"
	}
	return "jpg"
}
