package media

import (
	"encoding/json"
	"time"

	"igclient/pkg/errors"
)

// TimelinePage is one page of a user's post timeline.
type TimelinePage struct {
	Descriptors []Descriptor
	Shortcodes  []string
	EndCursor   string
	HasNextPage bool
}

type timelinePayload struct {
	User *struct {
		EdgeOwnerToTimelineMedia struct {
			Edges []struct {
				Node postNode `json:"node"`
			} `json:"edges"`
			PageInfo struct {
				HasNextPage bool   `json:"has_next_page"`
				EndCursor   string `json:"end_cursor"`
			} `json:"page_info"`
		} `json:"edge_owner_to_timeline_media"`
	} `json:"user"`
}

// FromTimelinePayload extracts one timeline page from a user posts query's
// data section. Carousel posts contribute one descriptor per child.
func FromTimelinePayload(data json.RawMessage) (*TimelinePage, error) {
	var payload timelinePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, errors.Newf(errors.ErrorTypeMalformedPayload, "failed to parse timeline payload: %v", err)
	}
	if payload.User == nil {
		return nil, errors.New(errors.ErrorTypeMalformedPayload, "timeline payload missing user container")
	}

	timeline := payload.User.EdgeOwnerToTimelineMedia
	page := &TimelinePage{
		EndCursor:   timeline.PageInfo.EndCursor,
		HasNextPage: timeline.PageInfo.HasNextPage,
	}

	for _, edge := range timeline.Edges {
		node := edge.Node
		page.Shortcodes = append(page.Shortcodes, node.Shortcode)

		caption := ""
		if edges := node.EdgeMediaToCaption.Edges; len(edges) > 0 {
			caption = edges[0].Node.Text
		}
		takenAt := time.Unix(node.TakenAtTimestamp, 0)
		username := node.Owner.Username

		children := node.EdgeSidecarToChildren.Edges
		if len(children) == 0 {
			if d, ok := descriptorFromNode(&node, node.Shortcode, caption, username, takenAt, 0); ok {
				page.Descriptors = append(page.Descriptors, d)
			}
			continue
		}
		for i, child := range children {
			if d, ok := descriptorFromNode(&child.Node, node.Shortcode, caption, username, takenAt, i+1); ok {
				page.Descriptors = append(page.Descriptors, d)
			}
		}
	}
	return page, nil
}
