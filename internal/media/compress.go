package media

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"os"
	"os/exec"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"
	"golang.org/x/image/draw"

	"github.com/hyperifyio/xmirror/internal/post"
)

// DefaultVideoTimeout bounds a single ffmpeg run.
const DefaultVideoTimeout = 2 * time.Minute

// SizeCeiling re-encodes files above a byte ceiling. Photos are
// re-encoded as JPEG at falling quality and scale. Videos go through
// ffmpeg when it is installed and are otherwise left alone.
type SizeCeiling struct {
	Dir *TempDir
	// FFmpeg is the binary name or path; "ffmpeg" when empty.
	FFmpeg string
	// VideoTimeout defaults to DefaultVideoTimeout.
	VideoTimeout time.Duration
}

type photoStep struct {
	quality int
	scale   float64
}

var photoSteps = []photoStep{
	{85, 1}, {70, 1}, {70, 0.75}, {60, 0.5}, {50, 0.35}, {40, 0.25},
}

var videoCRFs = []int{28, 34}

func (c *SizeCeiling) Compress(ctx context.Context, path string, kind post.MediaKind, maxBytes int64) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if maxBytes <= 0 || info.Size() <= maxBytes {
		return path, nil
	}
	log.Debug().Str("file", path).Str("size", humanize.Bytes(uint64(info.Size()))).
		Str("ceiling", humanize.Bytes(uint64(maxBytes))).Msg("compressing media")
	if kind == post.Video {
		return c.video(ctx, path, info.Size(), maxBytes)
	}
	return c.photo(ctx, path, maxBytes)
}

func (c *SizeCeiling) photo(ctx context.Context, path string, maxBytes int64) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	img, _, err := image.Decode(f)
	_ = f.Close()
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", path, err)
	}
	for _, step := range photoSteps {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		out, err := c.Dir.Create(".jpg")
		if err != nil {
			return "", err
		}
		err = jpeg.Encode(out, scale(img, step.scale), &jpeg.Options{Quality: step.quality})
		if cerr := out.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			_ = os.Remove(out.Name())
			return "", fmt.Errorf("encode jpeg: %w", err)
		}
		if st, err := os.Stat(out.Name()); err == nil && st.Size() <= maxBytes {
			return out.Name(), nil
		}
		_ = os.Remove(out.Name())
	}
	return "", fmt.Errorf("photo %s does not fit %s", path, humanize.Bytes(uint64(maxBytes)))
}

// scale resizes with bilinear sampling.
func scale(src image.Image, factor float64) image.Image {
	if factor >= 1 {
		return src
	}
	b := src.Bounds()
	w := int(float64(b.Dx()) * factor)
	h := int(float64(b.Dy()) * factor)
	if w < 1 || h < 1 {
		return src
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	return dst
}

func (c *SizeCeiling) video(ctx context.Context, path string, size, maxBytes int64) (string, error) {
	bin := c.FFmpeg
	if bin == "" {
		bin = "ffmpeg"
	}
	ffmpeg, err := exec.LookPath(bin)
	if err != nil {
		log.Info().Str("file", path).Msg("ffmpeg not available, sending original video")
		return path, nil
	}
	timeout := c.VideoTimeout
	if timeout <= 0 {
		timeout = DefaultVideoTimeout
	}
	for _, crf := range videoCRFs {
		out, err := c.Dir.Create(".mp4")
		if err != nil {
			return "", err
		}
		_ = out.Close()
		runCtx, cancel := context.WithTimeout(ctx, timeout)
		cmd := exec.CommandContext(runCtx, ffmpeg,
			"-y", "-loglevel", "error", "-i", path,
			"-vcodec", "libx264", "-crf", fmt.Sprint(crf), "-preset", "veryfast",
			"-vf", "scale=-2:'min(720,ih)'",
			"-acodec", "aac", "-b:a", "96k",
			out.Name())
		runErr := cmd.Run()
		cancel()
		if runErr != nil {
			_ = os.Remove(out.Name())
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			return "", fmt.Errorf("ffmpeg: %w", runErr)
		}
		st, err := os.Stat(out.Name())
		if err == nil && st.Size() <= maxBytes {
			return out.Name(), nil
		}
		_ = os.Remove(out.Name())
	}
	log.Warn().Str("file", path).Str("size", humanize.Bytes(uint64(size))).Msg("video still above ceiling, sending original")
	return path, nil
}
