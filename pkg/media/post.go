package media

import (
	"encoding/json"
	"time"

	"igclient/pkg/errors"
)

// Variant is one rendition of a media item at a specific resolution.
type Variant struct {
	Src    string `json:"src"`
	Width  int    `json:"config_width"`
	Height int    `json:"config_height"`
}

// postNode is the wire shape of a single post or carousel child.
type postNode struct {
	Typename         string    `json:"__typename"`
	ID               string    `json:"id"`
	Shortcode        string    `json:"shortcode"`
	ProductType      string    `json:"product_type"`
	IsVideo          bool      `json:"is_video"`
	VideoURL         string    `json:"video_url"`
	DisplayURL       string    `json:"display_url"`
	DisplayResources []Variant `json:"display_resources"`
	TakenAtTimestamp int64     `json:"taken_at_timestamp"`

	Owner struct {
		Username string `json:"username"`
	} `json:"owner"`

	EdgeMediaToCaption struct {
		Edges []struct {
			Node struct {
				Text string `json:"text"`
			} `json:"node"`
		} `json:"edges"`
	} `json:"edge_media_to_caption"`

	EdgeSidecarToChildren struct {
		Edges []struct {
			Node postNode `json:"node"`
		} `json:"edges"`
	} `json:"edge_sidecar_to_children"`
}

// postPayload is the data section of a post query. Newer doc_ids nest the
// media under xdt_shortcode_media, older ones under shortcode_media.
type postPayload struct {
	XDTShortcodeMedia *postNode `json:"xdt_shortcode_media"`
	ShortcodeMedia    *postNode `json:"shortcode_media"`
}

// FromPostPayload extracts descriptors from a post query's data section.
// A carousel yields one descriptor per child in display order. A payload
// without the media container is malformed; a payload whose container is
// null means the candidate answered but found nothing.
func FromPostPayload(data json.RawMessage) ([]Descriptor, error) {
	var payload postPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, errors.Newf(errors.ErrorTypeMalformedPayload, "failed to parse post payload: %v", err)
	}

	node := payload.XDTShortcodeMedia
	if node == nil {
		node = payload.ShortcodeMedia
	}
	if node == nil {
		return nil, errors.New(errors.ErrorTypeMalformedPayload, "post payload missing media container")
	}

	caption := ""
	if edges := node.EdgeMediaToCaption.Edges; len(edges) > 0 {
		caption = edges[0].Node.Text
	}
	takenAt := time.Unix(node.TakenAtTimestamp, 0)
	username := node.Owner.Username

	children := node.EdgeSidecarToChildren.Edges
	if len(children) == 0 {
		d, ok := descriptorFromNode(node, node.Shortcode, caption, username, takenAt, 0)
		if !ok {
			return nil, errors.New(errors.ErrorTypeMalformedPayload, "post has no downloadable variant")
		}
		return []Descriptor{d}, nil
	}

	// Carousel children share the post's shortcode; the one-based index
	// distinguishes them.
	descriptors := make([]Descriptor, 0, len(children))
	for i, edge := range children {
		d, ok := descriptorFromNode(&edge.Node, node.Shortcode, caption, username, takenAt, i+1)
		if !ok {
			continue
		}
		descriptors = append(descriptors, d)
	}
	if len(descriptors) == 0 {
		return nil, errors.New(errors.ErrorTypeMalformedPayload, "carousel has no downloadable items")
	}
	return descriptors, nil
}

// descriptorFromNode builds a descriptor from one post node, or reports
// false when the node carries no usable URL. An index above zero marks a
// carousel child.
func descriptorFromNode(node *postNode, contentID, caption, username string, takenAt time.Time, index int) (Descriptor, bool) {
	d := Descriptor{
		Caption:       caption,
		ContentID:     contentID,
		Username:      username,
		SequenceIndex: index,
		TakenAt:       takenAt,
	}

	if node.IsVideo && node.VideoURL != "" {
		d.Kind = KindVideo
		if node.ProductType == "clips" {
			d.Kind = KindReel
		}
		d.URL = node.VideoURL
		return d, true
	}

	d.Kind = KindImage
	if index > 0 {
		d.Kind = KindCarouselItem
	}
	d.URL = bestVariant(node.DisplayResources)
	if d.URL == "" {
		d.URL = node.DisplayURL
	}
	return d, d.URL != ""
}

// bestVariant returns the URL of the tallest variant. Ties keep the first
// occurrence.
func bestVariant(variants []Variant) string {
	best := ""
	bestHeight := -1
	for _, v := range variants {
		if v.Src == "" {
			continue
		}
		if v.Height > bestHeight {
			best = v.Src
			bestHeight = v.Height
		}
	}
	return best
}
