package media

import (
	"fmt"
	"strconv"
	"time"
)

// StoryCandidate is one rendition of a story asset.
type StoryCandidate struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// StoryItem is the wire shape of a single story or highlight item.
type StoryItem struct {
	PK        int64 `json:"pk"`
	MediaType int   `json:"media_type"`
	TakenAt   int64 `json:"taken_at"`

	ImageVersions2 struct {
		Candidates []StoryCandidate `json:"candidates"`
	} `json:"image_versions2"`

	VideoVersions []StoryCandidate `json:"video_versions"`

	// VideoDuration is only present on video items. Some payload shapes
	// omit media_type, so its presence is the fallback video signal.
	VideoDuration *float64 `json:"video_duration"`
}

const (
	storyTypeImage = 1
	storyTypeVideo = 2
)

// kind classifies the item. The media_type code wins when recognized;
// otherwise a non-null video_duration marks a video.
func (it *StoryItem) kind() Kind {
	switch it.MediaType {
	case storyTypeVideo:
		return KindVideo
	case storyTypeImage:
		return KindImage
	}
	if it.VideoDuration != nil {
		return KindVideo
	}
	return KindImage
}

// bestURL returns the tallest rendition for the item's kind. Ties keep the
// first occurrence.
func (it *StoryItem) bestURL(kind Kind) string {
	candidates := it.ImageVersions2.Candidates
	if kind == KindVideo {
		candidates = it.VideoVersions
	}
	best := ""
	bestHeight := -1
	for _, c := range candidates {
		if c.URL == "" {
			continue
		}
		if c.Height > bestHeight {
			best = c.URL
			bestHeight = c.Height
		}
	}
	return best
}

// FromStoryItems converts a user's story tray items to descriptors in feed
// order. Items without a downloadable URL are skipped. Image frames are
// tagged as stories; video frames stay videos.
func FromStoryItems(items []StoryItem, username string) []Descriptor {
	descriptors := make([]Descriptor, 0, len(items))
	for i, item := range items {
		kind := item.kind()
		url := item.bestURL(kind)
		if url == "" {
			continue
		}
		if kind == KindImage {
			kind = KindStory
		}
		descriptors = append(descriptors, Descriptor{
			URL:           url,
			Kind:          kind,
			ContentID:     strconv.FormatInt(item.PK, 10),
			Username:      username,
			SequenceIndex: i + 1,
			TakenAt:       time.Unix(item.TakenAt, 0),
		})
	}
	return descriptors
}

// FromHighlightItems converts a highlight reel's items to descriptors. The
// content id is scoped to the reel so items from different highlights with
// colliding pks cannot overwrite each other.
func FromHighlightItems(highlightID string, items []StoryItem, username string) []Descriptor {
	descriptors := make([]Descriptor, 0, len(items))
	for i, item := range items {
		kind := item.kind()
		url := item.bestURL(kind)
		if url == "" {
			continue
		}
		if kind == KindImage {
			kind = KindHighlight
		}
		descriptors = append(descriptors, Descriptor{
			URL:           url,
			Kind:          kind,
			ContentID:     fmt.Sprintf("%s_%d", highlightID, i+1),
			Username:      username,
			SequenceIndex: i + 1,
			TakenAt:       time.Unix(item.TakenAt, 0),
		})
	}
	return descriptors
}
