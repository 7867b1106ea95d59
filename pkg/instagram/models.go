package instagram

import "encoding/json"

// StatusEnvelope is the common wrapper around private API responses.
type StatusEnvelope struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// OK reports whether the response carries a logical success status.
func (s *StatusEnvelope) OK() bool {
	return s.Status == "ok"
}

// LoginResponse is the payload of the web login endpoint.
type LoginResponse struct {
	Authenticated   bool   `json:"authenticated"`
	User            bool   `json:"user"`
	UserID          string `json:"userId"`
	Status          string `json:"status"`
	Message         string `json:"message"`
	CheckpointURL   string `json:"checkpoint_url"`
	TwoFactorNeeded bool   `json:"two_factor_required"`
}

// GraphQLEnvelope is the outer wrapper of a GraphQL query response. Data is
// kept raw because its shape depends on the doc_id that was queried.
type GraphQLEnvelope struct {
	Data   json.RawMessage `json:"data"`
	Status string          `json:"status"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// UserProfile is the subset of web_profile_info used by the fetch pipeline.
type UserProfile struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	FullName      string `json:"full_name"`
	Biography     string `json:"biography"`
	IsPrivate     bool   `json:"is_private"`
	IsVerified    bool   `json:"is_verified"`
	FollowerCount int64  `json:"follower_count"`
	ProfilePicURL string `json:"profile_pic_url_hd"`
	MediaCount    int64  `json:"media_count"`
}

// webProfileResponse is the wire shape of the web_profile_info endpoint.
type webProfileResponse struct {
	Data struct {
		User *struct {
			ID         string `json:"id"`
			Username   string `json:"username"`
			FullName   string `json:"full_name"`
			Biography  string `json:"biography"`
			IsPrivate  bool   `json:"is_private"`
			IsVerified bool   `json:"is_verified"`
			EdgeFollow struct {
				Count int64 `json:"count"`
			} `json:"edge_followed_by"`
			ProfilePicURLHD string `json:"profile_pic_url_hd"`
			EdgeMedia       struct {
				Count int64 `json:"count"`
			} `json:"edge_owner_to_timeline_media"`
		} `json:"user"`
	} `json:"data"`
	Status string `json:"status"`
}
