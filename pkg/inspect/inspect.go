// Package inspect extracts dimensions and thumbnails from local media files
// using ffprobe and ffmpeg.
package inspect

import (
	"context"
	"encoding/json"
	"os/exec"
	"strconv"

	"igclient/pkg/errors"
	"igclient/pkg/logger"
)

// Fallback dimensions used when probing fails. Portrait 9:16 is what the
// publish endpoints expect for stories and reels.
const (
	fallbackWidth  = 720
	fallbackHeight = 1280
)

// Dimensions describes a media file.
type Dimensions struct {
	Width    int
	Height   int
	Duration float64
}

// Inspector probes local media files.
type Inspector interface {
	// Probe returns the file's dimensions. It never fails: when the
	// probe tool is missing or errors, portrait fallback dimensions are
	// returned so an upload can still proceed.
	Probe(ctx context.Context, path string) Dimensions

	// ExtractThumbnail writes the first frame of a video as a JPEG.
	ExtractThumbnail(ctx context.Context, videoPath, outPath string) error
}

// FFProbe inspects media by shelling out to ffprobe and ffmpeg.
type FFProbe struct {
	ffprobePath string
	ffmpegPath  string
	log         logger.Logger
}

// NewFFProbe creates an inspector using the ffprobe and ffmpeg binaries
// found on PATH.
func NewFFProbe(log logger.Logger) *FFProbe {
	if log == nil {
		log = logger.GetLogger()
	}
	return &FFProbe{ffprobePath: "ffprobe", ffmpegPath: "ffmpeg", log: log}
}

// ffprobeOutput is the JSON shape of "ffprobe -show_entries stream=...".
type ffprobeOutput struct {
	Streams []struct {
		Width    int    `json:"width"`
		Height   int    `json:"height"`
		Duration string `json:"duration"`
	} `json:"streams"`
}

func (f *FFProbe) Probe(ctx context.Context, path string) Dimensions {
	fallback := Dimensions{Width: fallbackWidth, Height: fallbackHeight}

	cmd := exec.CommandContext(ctx, f.ffprobePath,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height,duration",
		"-of", "json",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		f.log.WithError(err).WithField("path", path).Warn("ffprobe failed, using fallback dimensions")
		return fallback
	}

	var probed ffprobeOutput
	if err := json.Unmarshal(out, &probed); err != nil || len(probed.Streams) == 0 {
		f.log.WithField("path", path).Warn("unreadable ffprobe output, using fallback dimensions")
		return fallback
	}

	stream := probed.Streams[0]
	if stream.Width <= 0 || stream.Height <= 0 {
		return fallback
	}

	dims := Dimensions{Width: stream.Width, Height: stream.Height}
	if stream.Duration != "" {
		if d, err := strconv.ParseFloat(stream.Duration, 64); err == nil {
			dims.Duration = d
		}
	}
	return dims
}

func (f *FFProbe) ExtractThumbnail(ctx context.Context, videoPath, outPath string) error {
	cmd := exec.CommandContext(ctx, f.ffmpegPath,
		"-y",
		"-i", videoPath,
		"-vframes", "1",
		"-q:v", "2",
		outPath,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		return errors.Newf(errors.ErrorTypeUnknown, "thumbnail extraction failed: %v: %s", err, out)
	}
	return nil
}
