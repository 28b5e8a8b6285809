package extract

import (
	"net/url"
	"path"
	"strings"

	"github.com/hyperifyio/xmirror/internal/post"
)

var videoThumbMarkers = []string{"ext_tw_video_thumb", "amplify_video_thumb", "tweet_video_thumb"}

var mosaicFormats = map[string]bool{"jpeg": true, "jpg": true, "png": true, "webp": true}

func isVideoThumb(u string) bool {
	for _, m := range videoThumbMarkers {
		if strings.Contains(u, m) {
			return true
		}
	}
	return false
}

func isProfileImage(u string) bool {
	return strings.Contains(u, "profile_images") || strings.Contains(u, "profile_banners")
}

// ExpandMosaic rewrites a combined preview image
// (https://mosaic.<host>/<format>/<postid>/<id1>/<id2>...) into one original
// image URL per id. It returns nil for anything else.
func ExpandMosaic(raw string) []string {
	u, err := url.Parse(raw)
	if err != nil {
		return nil
	}
	segs := strings.FieldsFunc(u.Path, func(r rune) bool { return r == '/' })
	switch {
	case strings.HasPrefix(strings.ToLower(u.Hostname()), "mosaic."):
	case len(segs) > 0 && segs[0] == "mosaic":
		segs = segs[1:]
	default:
		return nil
	}
	if len(segs) > 0 && mosaicFormats[strings.ToLower(segs[0])] {
		segs = segs[1:]
	}
	if len(segs) > 0 && isDigits(segs[0]) {
		segs = segs[1:]
	}
	if len(segs) < 2 {
		return nil
	}
	out := make([]string, 0, len(segs))
	for _, id := range segs {
		id = strings.TrimSuffix(id, path.Ext(id))
		if id == "" {
			continue
		}
		out = append(out, "https://pbs.twimg.com/media/"+url.PathEscape(id)+"?format=jpg&name=orig")
	}
	if len(out) < 2 {
		return nil
	}
	return out
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// dedupeMedia drops repeated URLs, profile images and, when a video is
// present, video thumbnails.
func dedupeMedia(items []post.MediaItem) []post.MediaItem {
	if len(items) == 0 {
		return items
	}
	video := hasVideo(items)
	seen := make(map[string]bool, len(items))
	out := make([]post.MediaItem, 0, len(items))
	for _, it := range items {
		it.URL = strings.TrimSpace(it.URL)
		if it.URL == "" || seen[it.URL] || isProfileImage(it.URL) {
			continue
		}
		if video && it.Kind == post.Photo && isVideoThumb(it.URL) {
			continue
		}
		seen[it.URL] = true
		out = append(out, it)
	}
	return out
}
