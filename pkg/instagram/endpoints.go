package instagram

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"igclient/pkg/errors"
)

const (
	// BaseURL is the Instagram web base URL.
	BaseURL = "https://www.instagram.com"

	// GraphQLURL is the endpoint for doc_id based GraphQL queries.
	GraphQLURL = BaseURL + "/graphql/query"

	// LoginURL is the web login endpoint.
	LoginURL = BaseURL + "/api/v1/web/accounts/login/ajax/"

	// UploadBaseURL hosts the binary asset upload endpoints.
	UploadBaseURL = "https://i.instagram.com"

	// ConfigurePhotoURL commits an uploaded photo asset as a post.
	ConfigurePhotoURL = BaseURL + "/api/v1/web/create/configure/"

	// ConfigureClipsURL commits an uploaded video asset as a reel.
	ConfigureClipsURL = BaseURL + "/api/v1/media/configure_to_clips/"
)

var (
	shortcodeRegex = regexp.MustCompile(`https?://www\.instagram\.com/(?:p|reel|reels)/([^/?#]+)/?`)
	usernameRegex  = regexp.MustCompile(`https?://www\.instagram\.com/([A-Za-z0-9._]+)/?`)
	storyRegex     = regexp.MustCompile(`https?://www\.instagram\.com/stories/([^/?#]+)(?:/(\d+))?`)
)

// ExtractShortcode extracts the media shortcode from a post or reel URL.
func ExtractShortcode(postURL string) (string, error) {
	matches := shortcodeRegex.FindStringSubmatch(postURL)
	if len(matches) < 2 {
		return "", errors.Newf(errors.ErrorTypeUnknown, "invalid post URL: %s", postURL)
	}
	return matches[1], nil
}

// ExtractUsername extracts the username from a profile URL. A bare username
// is accepted as-is.
func ExtractUsername(input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", errors.New(errors.ErrorTypeUnknown, "empty username")
	}
	if !strings.Contains(input, "instagram.com") {
		return strings.Trim(input, "/@"), nil
	}
	matches := usernameRegex.FindStringSubmatch(input)
	if len(matches) < 2 {
		return "", errors.Newf(errors.ErrorTypeUnknown, "invalid profile URL: %s", input)
	}
	switch matches[1] {
	case "p", "reel", "reels", "stories", "explore":
		return "", errors.Newf(errors.ErrorTypeUnknown, "not a profile URL: %s", input)
	}
	return matches[1], nil
}

// ExtractStoryTarget extracts the username and optional story pk from a
// story URL. The pk is empty when the URL names only the user's story tray.
func ExtractStoryTarget(storyURL string) (username, pk string, err error) {
	matches := storyRegex.FindStringSubmatch(storyURL)
	if len(matches) < 2 {
		return "", "", errors.Newf(errors.ErrorTypeUnknown, "invalid story URL: %s", storyURL)
	}
	return matches[1], matches[2], nil
}

// WebProfileURL returns the profile info endpoint for a username.
func WebProfileURL(username string) string {
	return fmt.Sprintf("%s/api/v1/users/web_profile_info/?username=%s", BaseURL, url.QueryEscape(username))
}

// ReelsMediaURL returns the story feed endpoint for one or more reel ids.
// A reel id is a user id for the user's story tray or a "highlight:<id>"
// value for a highlight reel.
func ReelsMediaURL(reelIDs ...string) string {
	escaped := make([]string, len(reelIDs))
	for i, id := range reelIDs {
		escaped[i] = url.QueryEscape(id)
	}
	return fmt.Sprintf("%s/api/v1/feed/reels_media/?reel_ids=%s", BaseURL, strings.Join(escaped, "&reel_ids="))
}

// MediaInfoURL returns the media info endpoint for a numeric media id.
func MediaInfoURL(mediaID string) string {
	return fmt.Sprintf("%s/api/v1/media/%s/info/", BaseURL, mediaID)
}

// CommentAddURL returns the comment creation endpoint for a media id.
func CommentAddURL(mediaID string) string {
	return fmt.Sprintf("%s/api/v1/web/comments/%s/add/", BaseURL, mediaID)
}

// RuploadPhotoURL returns the binary upload endpoint for a photo asset.
func RuploadPhotoURL(uploadID string) string {
	return fmt.Sprintf("%s/rupload_igphoto/fb_uploader_%s", UploadBaseURL, uploadID)
}

// RuploadVideoURL returns the binary upload endpoint for a video asset.
func RuploadVideoURL(uploadID string) string {
	return fmt.Sprintf("%s/rupload_igvideo/fb_uploader_%s", UploadBaseURL, uploadID)
}

// PostPageURL returns the canonical page URL for a shortcode.
func PostPageURL(shortcode string) string {
	return fmt.Sprintf("%s/p/%s/", BaseURL, shortcode)
}

// ProfilePageURL returns the canonical page URL for a username.
func ProfilePageURL(username string) string {
	return fmt.Sprintf("%s/%s/", BaseURL, username)
}
