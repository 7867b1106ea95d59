package media

import (
	"encoding/json"

	"igclient/pkg/errors"
)

// ReelID accepts both id shapes on the wire: a number for user story
// trays and a "highlight:<id>" string for highlight reels.
type ReelID string

func (r *ReelID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*r = ReelID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*r = ReelID(n.String())
	return nil
}

func (r ReelID) String() string { return string(r) }

// Reel is one story reel: a user's story tray or a highlight reel.
type Reel struct {
	ID   ReelID `json:"id"`
	User struct {
		Username string `json:"username"`
	} `json:"user"`
	Items []StoryItem `json:"items"`
}

type reelsPayload struct {
	XDTReelsMedia *struct {
		ReelsMedia []Reel `json:"reels_media"`
	} `json:"xdt_api__v1__feed__reels_media"`
	ReelsMedia []Reel `json:"reels_media"`
}

// FromReelsPayload extracts the reels from a story feed query's data
// section. Both the GraphQL and the REST wrapping are accepted.
func FromReelsPayload(data json.RawMessage) ([]Reel, error) {
	var payload reelsPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, errors.Newf(errors.ErrorTypeMalformedPayload, "failed to parse reels payload: %v", err)
	}
	if payload.XDTReelsMedia != nil {
		return payload.XDTReelsMedia.ReelsMedia, nil
	}
	if payload.ReelsMedia != nil {
		return payload.ReelsMedia, nil
	}
	return nil, errors.New(errors.ErrorTypeMalformedPayload, "reels payload missing media container")
}

// IDFromPostPayload extracts the numeric media id from a post query's data
// section. Publish and comment endpoints address media by this id rather
// than the shortcode.
func IDFromPostPayload(data json.RawMessage) (string, error) {
	var payload postPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return "", errors.Newf(errors.ErrorTypeMalformedPayload, "failed to parse post payload: %v", err)
	}
	node := payload.XDTShortcodeMedia
	if node == nil {
		node = payload.ShortcodeMedia
	}
	if node == nil || node.ID == "" {
		return "", errors.New(errors.ErrorTypeMalformedPayload, "post payload missing media id")
	}
	return node.ID, nil
}
