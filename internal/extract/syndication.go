package extract

import (
	"context"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"

	"github.com/hyperifyio/xmirror/internal/post"
)

// DefaultSyndicationBase is the public embed endpoint.
const DefaultSyndicationBase = "https://cdn.syndication.twimg.com"

// JSONGetter fetches a JSON document. *fetch.Client satisfies it.
type JSONGetter interface {
	GetJSON(ctx context.Context, rawURL string) ([]byte, error)
}

var syndicationFields = fieldMap{
	text:       []string{"full_text", "text", "quoted_text"},
	name:       []string{"user.name", "name"},
	handle:     []string{"user.screen_name", "user.username", "screen_name"},
	created:    []string{"created_at", "createdAt", "date"},
	id:         []string{"id_str", "id"},
	replies:    []string{"reply_count", "replyCount", "conversation_count"},
	reposts:    []string{"retweet_count", "repost_count", "repostCount"},
	likes:      []string{"favorite_count", "like_count", "likeCount"},
	views:      []string{"view_count", "views"},
	poll:       []string{"poll"},
	quoted:     []string{"quoted_tweet", "quotedTweet", "quoted_status"},
	translated: []string{"translation.text"},
	sourceLang: []string{"translation.source_lang_en", "translation.source_lang"},
	media:      syndicationMedia,
}

// Syndication queries the embed endpoint by post id. It ignores the page
// and is only consulted when the structured strategy came up short.
type Syndication struct {
	Client JSONGetter
	// BaseURL defaults to DefaultSyndicationBase.
	BaseURL string
	// Lang defaults to "en".
	Lang string
}

func (s *Syndication) Name() string { return "syndication" }

// URL returns <base>/tweet-result?id=<id>&lang=<lang>.
func (s *Syndication) URL(id string) string {
	base := s.BaseURL
	if base == "" {
		base = DefaultSyndicationBase
	}
	lang := s.Lang
	if lang == "" {
		lang = "en"
	}
	q := url.Values{}
	q.Set("id", id)
	q.Set("lang", lang)
	return strings.TrimRight(base, "/") + "/tweet-result?" + q.Encode()
}

func (s *Syndication) Extract(ctx context.Context, _ *Document, loc post.Locator) *post.Post {
	if s.Client == nil || loc.ID == "" {
		return nil
	}
	u := s.URL(loc.ID)
	body, err := s.Client.GetJSON(ctx, u)
	if err != nil {
		log.Debug().Err(err).Str("url", u).Msg("syndication lookup failed")
		return nil
	}
	r := gjson.ParseBytes(body)
	if !r.IsObject() || r.Get("__typename").String() == "TweetTombstone" {
		return nil
	}
	p := mapPost(syndicationFields, r, 0)
	if p.Text == "" && p.DisplayName == "" && len(p.Media) == 0 {
		return nil
	}
	return p
}

func syndicationMedia(r gjson.Result) []post.MediaItem {
	var items []post.MediaItem
	r.Get("mediaDetails").ForEach(func(_, v gjson.Result) bool {
		if it, ok := mediaFromJSON(v); ok {
			items = append(items, it)
		}
		return true
	})
	r.Get("photos").ForEach(func(_, v gjson.Result) bool {
		if it, ok := mediaFromJSON(v); ok {
			it.Kind = post.Photo
			items = append(items, it)
		}
		return true
	})
	if !hasVideo(items) {
		if u := bestVariant(r.Get("video.variants")); u != "" {
			items = append(items, post.MediaItem{URL: u, Kind: post.Video})
		}
	}
	return items
}

func hasVideo(items []post.MediaItem) bool {
	for _, it := range items {
		if it.Kind == post.Video {
			return true
		}
	}
	return false
}
