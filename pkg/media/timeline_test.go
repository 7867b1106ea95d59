package media

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"igclient/pkg/errors"
)

func TestFromTimelinePayload(t *testing.T) {
	payload := json.RawMessage(`{
		"user": {
			"edge_owner_to_timeline_media": {
				"edges": [
					{"node": {"shortcode": "P1", "display_url": "https://cdn/p1.jpg", "owner": {"username": "alice"}}},
					{"node": {"shortcode": "P2", "owner": {"username": "alice"},
						"edge_sidecar_to_children": {"edges": [
							{"node": {"display_url": "https://cdn/p2a.jpg"}},
							{"node": {"is_video": true, "video_url": "https://cdn/p2b.mp4"}}
						]}}}
				],
				"page_info": {"has_next_page": true, "end_cursor": "cursor-1"}
			}
		}
	}`)

	page, err := FromTimelinePayload(payload)
	require.NoError(t, err)

	assert.Equal(t, []string{"P1", "P2"}, page.Shortcodes)
	assert.True(t, page.HasNextPage)
	assert.Equal(t, "cursor-1", page.EndCursor)

	require.Len(t, page.Descriptors, 3)
	assert.Equal(t, "P1", page.Descriptors[0].ContentID)
	assert.Equal(t, "P2", page.Descriptors[1].ContentID)
	assert.Equal(t, "P2", page.Descriptors[2].ContentID)
	assert.Equal(t, 1, page.Descriptors[1].SequenceIndex)
	assert.Equal(t, 2, page.Descriptors[2].SequenceIndex)
	assert.Equal(t, KindCarouselItem, page.Descriptors[1].Kind)
	assert.Equal(t, KindVideo, page.Descriptors[2].Kind)
	assert.Equal(t, "P2_2.mp4", page.Descriptors[2].Filename())
}

func TestFromTimelinePayloadMissingUser(t *testing.T) {
	_, err := FromTimelinePayload(json.RawMessage(`{"user": null}`))
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeMalformedPayload, errors.TypeOf(err))
}

func TestFromTimelinePayloadEmptyPage(t *testing.T) {
	payload := json.RawMessage(`{
		"user": {
			"edge_owner_to_timeline_media": {
				"edges": [],
				"page_info": {"has_next_page": false, "end_cursor": ""}
			}
		}
	}`)

	page, err := FromTimelinePayload(payload)
	require.NoError(t, err)
	assert.Empty(t, page.Descriptors)
	assert.False(t, page.HasNextPage)
}
