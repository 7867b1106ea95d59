package instagram

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractShortcode(t *testing.T) {
	cases := map[string]string{
		"https://www.instagram.com/p/Cxyz123/":          "Cxyz123",
		"https://www.instagram.com/p/Cxyz123":           "Cxyz123",
		"https://www.instagram.com/reel/Dq-_456/":       "Dq-_456",
		"https://www.instagram.com/reels/AbC/?utm=x":    "AbC",
		"http://www.instagram.com/p/Short/?igshid=meow": "Short",
	}
	for input, want := range cases {
		got, err := ExtractShortcode(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got, input)
	}
}

func TestExtractShortcodeInvalid(t *testing.T) {
	for _, input := range []string{
		"https://www.instagram.com/alice/",
		"https://example.com/p/ABC/",
		"not a url",
	} {
		_, err := ExtractShortcode(input)
		assert.Error(t, err, input)
	}
}

func TestExtractUsername(t *testing.T) {
	cases := map[string]string{
		"https://www.instagram.com/alice/":  "alice",
		"https://www.instagram.com/bob.x_1": "bob.x_1",
		"alice":                             "alice",
		"@alice":                            "alice",
		" alice/ ":                          "alice",
	}
	for input, want := range cases {
		got, err := ExtractUsername(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got, input)
	}

	_, err := ExtractUsername("https://www.instagram.com/p/ABC/")
	assert.Error(t, err, "post URLs are not profiles")
	_, err = ExtractUsername("")
	assert.Error(t, err)
}

func TestExtractStoryTarget(t *testing.T) {
	username, pk, err := ExtractStoryTarget("https://www.instagram.com/stories/alice/3141592653589793/")
	require.NoError(t, err)
	assert.Equal(t, "alice", username)
	assert.Equal(t, "3141592653589793", pk)

	username, pk, err = ExtractStoryTarget("https://www.instagram.com/stories/alice/")
	require.NoError(t, err)
	assert.Equal(t, "alice", username)
	assert.Empty(t, pk, "tray URLs carry no story pk")

	_, _, err = ExtractStoryTarget("https://www.instagram.com/alice/")
	assert.Error(t, err)
}

func TestURLBuilders(t *testing.T) {
	assert.Equal(t,
		"https://www.instagram.com/api/v1/users/web_profile_info/?username=alice",
		WebProfileURL("alice"))
	assert.Equal(t,
		"https://www.instagram.com/api/v1/feed/reels_media/?reel_ids=highlight%3A123",
		ReelsMediaURL("highlight:123"))
	assert.Equal(t,
		"https://www.instagram.com/api/v1/web/comments/317/add/",
		CommentAddURL("317"))
	assert.Equal(t,
		"https://i.instagram.com/rupload_igphoto/fb_uploader_1700000000000",
		RuploadPhotoURL("1700000000000"))
	assert.Equal(t,
		"https://i.instagram.com/rupload_igvideo/fb_uploader_1700000000000",
		RuploadVideoURL("1700000000000"))
	assert.Equal(t, "https://www.instagram.com/p/ABC/", PostPageURL("ABC"))
}
