// Package fetch implements the read pipeline: posts, timelines, stories and
// highlights, resolved through candidate doc_id chains and normalized into
// media descriptors.
package fetch

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"igclient/pkg/config"
	"igclient/pkg/errors"
	"igclient/pkg/instagram"
	"igclient/pkg/logger"
	"igclient/pkg/media"
	"igclient/pkg/ratelimit"
	"igclient/pkg/resolver"
)

// pageSize is how many posts one timeline page requests.
const pageSize = 12

// Pipeline fetches and normalizes media. All calls are sequential; the
// pipeline paces itself between pages with jittered delays.
type Pipeline struct {
	session *instagram.Session
	chains  *config.ChainsConfig
	log     logger.Logger

	pageDelayMin time.Duration
	pageDelayMax time.Duration

	// sleep is replaced in tests to avoid real delays.
	sleep func(ctx context.Context, min, max time.Duration) error
}

// New creates a fetch pipeline over an authenticated session.
func New(session *instagram.Session, cfg *config.Config, log logger.Logger) *Pipeline {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Pipeline{
		session:      session,
		chains:       &cfg.Chains,
		log:          log,
		pageDelayMin: cfg.RateLimit.PageDelayMin,
		pageDelayMax: cfg.RateLimit.PageDelayMax,
		sleep:        ratelimit.Sleep,
	}
}

// Highlight is one highlight reel with its normalized items.
type Highlight struct {
	ID    string
	Title string
	Items []media.Descriptor
}

// Post fetches a single post by URL and returns its descriptors in display
// order. Carousels yield one descriptor per child.
func (p *Pipeline) Post(ctx context.Context, postURL string) ([]media.Descriptor, error) {
	shortcode, err := instagram.ExtractShortcode(postURL)
	if err != nil {
		return nil, err
	}

	descriptors, docID, err := resolver.Resolve(ctx, p.chains.Post,
		func(ctx context.Context, docID string) ([]media.Descriptor, bool, error) {
			data, err := p.query(ctx, docID, map[string]interface{}{"shortcode": shortcode})
			if err != nil {
				return nil, false, err
			}
			descs, err := media.FromPostPayload(data)
			if err != nil {
				return nil, false, nil
			}
			return descs, true, nil
		}, p.log)
	if err != nil {
		return nil, err
	}

	p.log.DebugWithFields("fetched post", map[string]interface{}{
		"shortcode": shortcode,
		"doc_id":    docID,
		"items":     len(descriptors),
	})
	return descriptors, nil
}

// MediaID resolves a post URL to the numeric media id used by the comment
// and publish endpoints.
func (p *Pipeline) MediaID(ctx context.Context, postURL string) (string, error) {
	shortcode, err := instagram.ExtractShortcode(postURL)
	if err != nil {
		return "", err
	}

	id, _, err := resolver.Resolve(ctx, p.chains.Post,
		func(ctx context.Context, docID string) (string, bool, error) {
			data, err := p.query(ctx, docID, map[string]interface{}{"shortcode": shortcode})
			if err != nil {
				return "", false, err
			}
			id, err := media.IDFromPostPayload(data)
			if err != nil {
				return "", false, nil
			}
			return id, true, nil
		}, p.log)
	return id, err
}

// UserPosts fetches a user's timeline, newest first. limit caps the number
// of posts; zero means all, and a page crossing the limit is truncated.
// Pagination stops when a page makes no progress.
func (p *Pipeline) UserPosts(ctx context.Context, username string, limit int) ([]media.Descriptor, error) {
	profile, err := p.profile(ctx, username)
	if err != nil {
		return nil, err
	}

	var (
		descriptors []media.Descriptor
		posts       int
		cursor      string
		docID       string
	)

	for {
		var page *media.TimelinePage
		if docID == "" {
			// First page resolves the doc_id; later pages reuse it.
			page, docID, err = resolver.Resolve(ctx, p.chains.UserPosts,
				p.timelineProbe(profile.ID, cursor), p.log)
		} else {
			page, _, err = p.timelineProbe(profile.ID, cursor)(ctx, docID)
			if err == nil && page == nil {
				err = errors.New(errors.ErrorTypeMalformedPayload, "timeline page became unreadable")
			}
		}
		if err != nil {
			return nil, err
		}

		if len(page.Shortcodes) == 0 {
			if cursor != "" {
				p.log.WithField("username", username).Warn("timeline page made no progress, stopping")
			}
			break
		}

		// Only posts under the limit contribute descriptors; a carousel
		// belonging to a kept post is kept whole.
		pagePosts := page.Shortcodes
		if limit > 0 && posts+len(pagePosts) > limit {
			pagePosts = pagePosts[:limit-posts]
		}
		kept := make(map[string]bool, len(pagePosts))
		for _, shortcode := range pagePosts {
			kept[shortcode] = true
		}

		for _, d := range page.Descriptors {
			if !kept[d.ContentID] {
				continue
			}
			if d.Username == "" {
				d.Username = username
			}
			descriptors = append(descriptors, d)
		}
		posts += len(pagePosts)

		if limit > 0 && posts >= limit {
			break
		}
		if !page.HasNextPage || page.EndCursor == "" || page.EndCursor == cursor {
			break
		}
		cursor = page.EndCursor

		if err := p.sleep(ctx, p.pageDelayMin, p.pageDelayMax); err != nil {
			return nil, err
		}
	}

	p.log.InfoWithFields("fetched user timeline", map[string]interface{}{
		"username": username,
		"posts":    posts,
		"items":    len(descriptors),
	})
	return descriptors, nil
}

// timelineProbe builds a probe for one timeline page.
func (p *Pipeline) timelineProbe(userID, cursor string) resolver.ProbeFunc[*media.TimelinePage] {
	return func(ctx context.Context, docID string) (*media.TimelinePage, bool, error) {
		variables := map[string]interface{}{
			"id":    userID,
			"first": pageSize,
		}
		if cursor != "" {
			variables["after"] = cursor
		}
		data, err := p.query(ctx, docID, variables)
		if err != nil {
			return nil, false, err
		}
		page, err := media.FromTimelinePayload(data)
		if err != nil {
			return nil, false, nil
		}
		return page, true, nil
	}
}

// Stories fetches a user's active stories. When the URL names a specific
// story pk only that item is returned; a pk that is not in the feed is an
// error rather than a silent fallback to the whole tray.
func (p *Pipeline) Stories(ctx context.Context, storyURL string) ([]media.Descriptor, error) {
	username, pk, err := instagram.ExtractStoryTarget(storyURL)
	if err != nil {
		return nil, err
	}

	profile, err := p.profile(ctx, username)
	if err != nil {
		return nil, err
	}

	reels, err := p.fetchReels(ctx, p.chains.Stories, profile.ID)
	if err != nil {
		return nil, err
	}

	var items []media.StoryItem
	for _, reel := range reels {
		if reel.ID.String() == profile.ID || reel.User.Username == username {
			items = reel.Items
			break
		}
	}
	if len(items) == 0 {
		return nil, errors.Newf(errors.ErrorTypeNotFound, "no active stories for %q", username)
	}

	descriptors := media.FromStoryItems(items, username)
	if pk == "" {
		return descriptors, nil
	}

	for _, d := range descriptors {
		if d.ContentID == pk {
			return []media.Descriptor{d}, nil
		}
	}
	return nil, errors.Newf(errors.ErrorTypeNotFound, "story %s not found in %q's feed", pk, username)
}

// Highlights fetches all highlight reels of a user with their items.
func (p *Pipeline) Highlights(ctx context.Context, username string) ([]Highlight, error) {
	profile, err := p.profile(ctx, username)
	if err != nil {
		return nil, err
	}

	tray, _, err := resolver.Resolve(ctx, p.chains.Highlights,
		func(ctx context.Context, docID string) ([]highlightEntry, bool, error) {
			data, err := p.query(ctx, docID, map[string]interface{}{
				"user_id": profile.ID,
				"first":   50,
			})
			if err != nil {
				return nil, false, err
			}
			entries, err := parseHighlightTray(data)
			if err != nil {
				return nil, false, nil
			}
			return entries, true, nil
		}, p.log)
	if err != nil {
		return nil, err
	}

	highlights := make([]Highlight, 0, len(tray))
	for i, entry := range tray {
		if i > 0 {
			if err := p.sleep(ctx, p.pageDelayMin, p.pageDelayMax); err != nil {
				return nil, err
			}
		}

		reels, err := p.fetchReels(ctx, p.chains.HighlightItems, entry.ID)
		if err != nil {
			p.log.WithError(err).WithField("highlight", entry.ID).Warn("skipping unreadable highlight")
			continue
		}

		shortID := strings.TrimPrefix(entry.ID, "highlight:")
		h := Highlight{ID: shortID, Title: entry.Title}
		for _, reel := range reels {
			h.Items = append(h.Items, media.FromHighlightItems(shortID, reel.Items, username)...)
		}
		highlights = append(highlights, h)
	}

	p.log.InfoWithFields("fetched highlights", map[string]interface{}{
		"username":   username,
		"highlights": len(highlights),
	})
	return highlights, nil
}

// Profile returns the user's profile info.
func (p *Pipeline) Profile(ctx context.Context, username string) (*instagram.UserProfile, error) {
	return p.session.WebProfile(ctx, username)
}

// ProfilePicture returns a descriptor for the user's HD profile picture.
func (p *Pipeline) ProfilePicture(ctx context.Context, username string) (media.Descriptor, error) {
	profile, err := p.session.WebProfile(ctx, username)
	if err != nil {
		return media.Descriptor{}, err
	}
	if profile.ProfilePicURL == "" {
		return media.Descriptor{}, errors.Newf(errors.ErrorTypeNotFound, "no profile picture for %q", username)
	}
	return media.Descriptor{
		URL:       profile.ProfilePicURL,
		Kind:      media.KindImage,
		ContentID: username + "_profile_pic",
		Username:  username,
	}, nil
}

// LatestPostURL returns the page URL of the user's most recent post.
func (p *Pipeline) LatestPostURL(ctx context.Context, username string) (string, error) {
	profile, err := p.profile(ctx, username)
	if err != nil {
		return "", err
	}

	page, _, err := resolver.Resolve(ctx, p.chains.UserPosts,
		p.timelineProbe(profile.ID, ""), p.log)
	if err != nil {
		return "", err
	}
	if len(page.Shortcodes) == 0 {
		return "", errors.Newf(errors.ErrorTypeNotFound, "%q has no posts", username)
	}
	return instagram.PostPageURL(page.Shortcodes[0]), nil
}

// profile fetches the profile and enforces the private-account rule: a
// private profile without an authenticated session fails before any media
// request is attempted.
func (p *Pipeline) profile(ctx context.Context, username string) (*instagram.UserProfile, error) {
	profile, err := p.session.WebProfile(ctx, username)
	if err != nil {
		return nil, err
	}
	if profile.IsPrivate && !p.session.HasSessionCookie() {
		return nil, errors.Newf(errors.ErrorTypePrivateAccount,
			"%q is private and no session is available", username)
	}
	return profile, nil
}

// fetchReels resolves a reels_media query for one reel id over a chain.
func (p *Pipeline) fetchReels(ctx context.Context, chain []string, reelID string) ([]media.Reel, error) {
	reels, _, err := resolver.Resolve(ctx, chain,
		func(ctx context.Context, docID string) ([]media.Reel, bool, error) {
			data, err := p.query(ctx, docID, map[string]interface{}{
				"reel_ids_arr": []string{reelID},
			})
			if err != nil {
				return nil, false, err
			}
			reels, err := media.FromReelsPayload(data)
			if err != nil {
				return nil, false, nil
			}
			return reels, true, nil
		}, p.log)
	return reels, err
}

// query runs one GraphQL query and returns its data section. An empty data
// section is reported as malformed so chain probes treat it as answered.
func (p *Pipeline) query(ctx context.Context, docID string, variables map[string]interface{}) (json.RawMessage, error) {
	envelope, err := p.session.GraphQL(ctx, docID, variables)
	if err != nil {
		return nil, err
	}
	if len(envelope.Data) == 0 || string(envelope.Data) == "null" {
		return nil, errors.New(errors.ErrorTypeMalformedPayload, "empty data section")
	}
	return envelope.Data, nil
}

// highlightEntry is one entry in the highlight tray listing.
type highlightEntry struct {
	ID    string
	Title string
}

type highlightTrayPayload struct {
	Highlights *struct {
		Edges []struct {
			Node struct {
				ID    string `json:"id"`
				Title string `json:"title"`
			} `json:"node"`
		} `json:"edges"`
	} `json:"highlights"`
}

func parseHighlightTray(data json.RawMessage) ([]highlightEntry, error) {
	var payload highlightTrayPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, errors.Newf(errors.ErrorTypeMalformedPayload, "failed to parse highlight tray: %v", err)
	}
	if payload.Highlights == nil {
		return nil, errors.New(errors.ErrorTypeMalformedPayload, "highlight tray missing container")
	}
	entries := make([]highlightEntry, 0, len(payload.Highlights.Edges))
	for _, edge := range payload.Highlights.Edges {
		if edge.Node.ID == "" {
			continue
		}
		entries = append(entries, highlightEntry{ID: edge.Node.ID, Title: edge.Node.Title})
	}
	return entries, nil
}
