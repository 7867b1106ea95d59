// Package publish implements the write pipeline: two-phase media uploads,
// comments with a duplicate guard, and like toggles.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"

	"igclient/pkg/config"
	"igclient/pkg/errors"
	"igclient/pkg/inspect"
	"igclient/pkg/instagram"
	"igclient/pkg/logger"
	"igclient/pkg/media"
	"igclient/pkg/resolver"
)

// MediaResolver turns post URLs and usernames into addressable media ids.
// The fetch pipeline implements it.
type MediaResolver interface {
	MediaID(ctx context.Context, postURL string) (string, error)
	LatestPostURL(ctx context.Context, username string) (string, error)
}

// Phase tracks how far an upload has progressed. An upload that fails
// after the asset phase has an orphaned asset server-side; the phase tells
// the caller which cleanup, if any, is worth attempting.
type Phase string

const (
	PhaseCreated     Phase = "created"
	PhaseAssetSent   Phase = "asset_sent"
	PhaseConfiguring Phase = "configuring"
	PhaseCommitted   Phase = "committed"
	PhaseFailed      Phase = "failed"
)

// UploadSession describes one two-phase upload.
type UploadSession struct {
	ID         string
	Kind       media.Kind
	BytesTotal int64
	Phase      Phase
}

// Pipeline performs writes against the platform. All operations are
// sequential; publishes are never auto-retried past the asset phase.
type Pipeline struct {
	session   *instagram.Session
	inspector inspect.Inspector
	resolver  MediaResolver
	guard     *commentGuard
	chains    *config.ChainsConfig
	log       logger.Logger

	uploadTimeout time.Duration

	// now is replaced in tests for deterministic upload ids and guard
	// windows.
	now func() time.Time
}

// New creates a publish pipeline over an authenticated session.
func New(session *instagram.Session, inspector inspect.Inspector, mediaResolver MediaResolver, cfg *config.Config, log logger.Logger) *Pipeline {
	if log == nil {
		log = logger.GetLogger()
	}
	guard := newCommentGuard(cfg.Publish.CommentCooldown, cfg.Publish.GuardCapacity)
	return &Pipeline{
		session:       session,
		inspector:     inspector,
		resolver:      mediaResolver,
		guard:         guard,
		chains:        &cfg.Chains,
		log:           log,
		uploadTimeout: cfg.Publish.UploadTimeout,
		now:           time.Now,
	}
}

// UploadPhoto publishes a local image as a feed post. The returned session
// reports the phase reached even when an error is returned.
func (p *Pipeline) UploadPhoto(ctx context.Context, path, caption string) (*UploadSession, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Newf(errors.ErrorTypeUnknown, "failed to read photo: %v", err)
	}

	dims := p.inspector.Probe(ctx, path)
	upload := &UploadSession{
		ID:         p.newUploadID(),
		Kind:       media.KindImage,
		BytesTotal: int64(len(data)),
		Phase:      PhaseCreated,
	}

	ctx, cancel := p.uploadContext(ctx)
	defer cancel()

	if err := p.sendPhotoAsset(ctx, upload.ID, data, dims, false); err != nil {
		upload.Phase = PhaseFailed
		return upload, err
	}
	upload.Phase = PhaseAssetSent

	upload.Phase = PhaseConfiguring
	form := url.Values{}
	form.Set("upload_id", upload.ID)
	form.Set("caption", caption)
	form.Set("source_type", "library")
	form.Set("usertags", "")
	form.Set("custom_accessibility_caption", "")

	if err := p.configure(ctx, instagram.ConfigurePhotoURL, form); err != nil {
		upload.Phase = PhaseFailed
		return upload, err
	}

	upload.Phase = PhaseCommitted
	p.log.InfoWithFields("photo published", map[string]interface{}{
		"upload_id": upload.ID,
		"bytes":     upload.BytesTotal,
	})
	return upload, nil
}

// UploadReel publishes a local video as a reel. When thumbnailPath is empty
// a cover frame is extracted from the video; extracted covers are always
// removed afterwards, publish outcome notwithstanding.
func (p *Pipeline) UploadReel(ctx context.Context, videoPath, caption, thumbnailPath string) (*UploadSession, error) {
	data, err := os.ReadFile(videoPath)
	if err != nil {
		return nil, errors.Newf(errors.ErrorTypeUnknown, "failed to read video: %v", err)
	}

	dims := p.inspector.Probe(ctx, videoPath)
	upload := &UploadSession{
		ID:         p.newUploadID(),
		Kind:       media.KindReel,
		BytesTotal: int64(len(data)),
		Phase:      PhaseCreated,
	}

	ctx, cancel := p.uploadContext(ctx)
	defer cancel()

	if thumbnailPath == "" {
		extracted := filepath.Join(os.TempDir(), fmt.Sprintf("igclient_cover_%s.jpg", uuid.NewString()))
		// Cleanup covers partial files from a failed extraction too.
		defer os.Remove(extracted)
		if err := p.inspector.ExtractThumbnail(ctx, videoPath, extracted); err != nil {
			upload.Phase = PhaseFailed
			return upload, err
		}
		thumbnailPath = extracted
	}

	if err := p.sendVideoAsset(ctx, upload.ID, data, dims); err != nil {
		upload.Phase = PhaseFailed
		return upload, err
	}

	cover, err := os.ReadFile(thumbnailPath)
	if err != nil {
		upload.Phase = PhaseFailed
		return upload, errors.Newf(errors.ErrorTypeUnknown, "failed to read thumbnail: %v", err)
	}
	if err := p.sendPhotoAsset(ctx, upload.ID, cover, dims, true); err != nil {
		upload.Phase = PhaseFailed
		return upload, err
	}
	upload.Phase = PhaseAssetSent

	upload.Phase = PhaseConfiguring
	form := url.Values{}
	form.Set("upload_id", upload.ID)
	form.Set("caption", caption)
	form.Set("source_type", "library")
	form.Set("clips_share_preview_to_feed", "1")
	form.Set("video_result", "")

	if err := p.configure(ctx, instagram.ConfigureClipsURL, form); err != nil {
		upload.Phase = PhaseFailed
		return upload, err
	}

	upload.Phase = PhaseCommitted
	p.log.InfoWithFields("reel published", map[string]interface{}{
		"upload_id": upload.ID,
		"bytes":     upload.BytesTotal,
		"duration":  dims.Duration,
	})
	return upload, nil
}

// Comment posts a comment on a post. An identical comment on the same media
// inside the cooldown window is rejected locally before any network call;
// a failed post releases the guard entry so it can be retried.
func (p *Pipeline) Comment(ctx context.Context, postURL, text string) error {
	mediaID, err := p.resolver.MediaID(ctx, postURL)
	if err != nil {
		return err
	}

	if err := p.guard.acquire(mediaID, text); err != nil {
		return err
	}

	form := url.Values{}
	form.Set("comment_text", text)

	resp, err := p.session.PostForm(ctx, instagram.CommentAddURL(mediaID), form)
	if err != nil {
		p.guard.release(mediaID, text)
		return err
	}
	if err := checkEnvelope(resp); err != nil {
		p.guard.release(mediaID, text)
		return err
	}

	p.log.WithField("media_id", mediaID).Info("comment posted")
	return nil
}

// CommentOnLatest posts a comment on the user's most recent post.
func (p *Pipeline) CommentOnLatest(ctx context.Context, username, text string) error {
	postURL, err := p.resolver.LatestPostURL(ctx, username)
	if err != nil {
		return err
	}
	return p.Comment(ctx, postURL, text)
}

// Like likes a post.
func (p *Pipeline) Like(ctx context.Context, postURL string) error {
	return p.toggleLike(ctx, postURL, p.chains.Like, "like")
}

// Unlike removes a like from a post.
func (p *Pipeline) Unlike(ctx context.Context, postURL string) error {
	return p.toggleLike(ctx, postURL, p.chains.Unlike, "unlike")
}

func (p *Pipeline) toggleLike(ctx context.Context, postURL string, chain []string, action string) error {
	mediaID, err := p.resolver.MediaID(ctx, postURL)
	if err != nil {
		return err
	}

	_, docID, err := resolver.Resolve(ctx, chain,
		func(ctx context.Context, docID string) (struct{}, bool, error) {
			envelope, err := p.session.GraphQL(ctx, docID, map[string]interface{}{
				"media_id": mediaID,
			})
			if err != nil {
				return struct{}{}, false, err
			}
			if envelope.Status != "ok" || len(envelope.Errors) > 0 {
				return struct{}{}, false, nil
			}
			return struct{}{}, true, nil
		}, p.log)
	if err != nil {
		return err
	}

	p.log.DebugWithFields(action+" applied", map[string]interface{}{
		"media_id": mediaID,
		"doc_id":   docID,
	})
	return nil
}

// sendPhotoAsset uploads image bytes under an upload id. isClipsCover marks
// the image as the cover frame of a reel sharing the same id.
func (p *Pipeline) sendPhotoAsset(ctx context.Context, uploadID string, data []byte, dims inspect.Dimensions, isClipsCover bool) error {
	params := map[string]interface{}{
		"media_type":          "1",
		"upload_id":           uploadID,
		"upload_media_width":  dims.Width,
		"upload_media_height": dims.Height,
		"xsharing_user_ids":   "[]",
		"image_compression":   `{"lib_name":"moz","lib_version":"3.1.m","quality":"80"}`,
	}
	if isClipsCover {
		params["is_clips_cover"] = true
	}
	return p.sendAsset(ctx, instagram.RuploadPhotoURL(uploadID), uploadID, "image/jpeg", data, params)
}

// sendVideoAsset uploads video bytes under an upload id.
func (p *Pipeline) sendVideoAsset(ctx context.Context, uploadID string, data []byte, dims inspect.Dimensions) error {
	params := map[string]interface{}{
		"media_type":               "2",
		"upload_id":                uploadID,
		"upload_media_width":       dims.Width,
		"upload_media_height":      dims.Height,
		"upload_media_duration_ms": int64(dims.Duration * 1000),
		"xsharing_user_ids":        "[]",
		"is_clips_video":           "1",
	}
	return p.sendAsset(ctx, instagram.RuploadVideoURL(uploadID), uploadID, "video/mp4", data, params)
}

func (p *Pipeline) sendAsset(ctx context.Context, uploadURL, uploadID, entityType string, data []byte, params map[string]interface{}) error {
	ruploadParams, err := encodeParams(params)
	if err != nil {
		return errors.Newf(errors.ErrorTypeUnknown, "failed to encode upload params: %v", err)
	}

	header := http.Header{}
	header.Set("Content-Type", "application/octet-stream")
	header.Set("X-Entity-Name", "fb_uploader_"+uploadID)
	header.Set("X-Entity-Length", strconv.Itoa(len(data)))
	header.Set("X-Entity-Type", entityType)
	header.Set("Offset", "0")
	header.Set("X-Instagram-Rupload-Params", ruploadParams)

	resp, err := p.session.Do(ctx, http.MethodPost, uploadURL, data, header)
	if err != nil {
		return err
	}
	return checkEnvelope(resp)
}

// configure commits an uploaded asset. A logical rejection is terminal and
// never auto-retried.
func (p *Pipeline) configure(ctx context.Context, configureURL string, form url.Values) error {
	resp, err := p.session.PostForm(ctx, configureURL, form)
	if err != nil {
		return err
	}

	var envelope instagram.StatusEnvelope
	if err := resp.DecodeJSON(&envelope); err != nil {
		return err
	}
	if !envelope.OK() || envelope.Message == "media_needs_reupload" {
		msg := envelope.Message
		if msg == "" {
			msg = envelope.Status
		}
		return errors.WithCode(errors.ErrorTypePublishRejected, resp.StatusCode,
			fmt.Sprintf("configure rejected: %s", msg))
	}
	return nil
}

// newUploadID returns a millisecond timestamp, the id format the upload
// endpoints expect.
func (p *Pipeline) newUploadID() string {
	return strconv.FormatInt(p.now().UnixMilli(), 10)
}

func (p *Pipeline) uploadContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.uploadTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, p.uploadTimeout)
}

// checkEnvelope validates both the HTTP status and the logical status of a
// write response.
func checkEnvelope(resp *instagram.Response) error {
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.WithCode(errors.ErrorTypePublishRejected, resp.StatusCode,
			fmt.Sprintf("request rejected with status %d", resp.StatusCode))
	}
	var envelope instagram.StatusEnvelope
	if err := resp.DecodeJSON(&envelope); err != nil {
		return err
	}
	if !envelope.OK() {
		msg := envelope.Message
		if msg == "" {
			msg = envelope.Status
		}
		return errors.WithCode(errors.ErrorTypePublishRejected, resp.StatusCode,
			fmt.Sprintf("request rejected: %s", msg))
	}
	return nil
}

func encodeParams(params map[string]interface{}) (string, error) {
	data, err := json.Marshal(params)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
