package extract

import (
	"context"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/hyperifyio/xmirror/internal/post"
)

// fieldMap lists, per post field, the JSON paths tried in order.
type fieldMap struct {
	text, name, handle, created, url, id []string
	replies, reposts, likes, views       []string
	poll, quoted                         []string
	translated, sourceLang               []string
	media                                func(gjson.Result) []post.MediaItem
}

var structuredFields = fieldMap{
	text:    []string{"full_text", "text", "legacy.full_text", "raw_text.text"},
	name:    []string{"user.name", "author.name", "core.user_results.result.legacy.name"},
	handle:  []string{"user.screen_name", "user.username", "author.screen_name", "author.username", "core.user_results.result.legacy.screen_name"},
	created: []string{"created_at", "createdAt", "date", "created_timestamp", "legacy.created_at"},
	url:     []string{"url"},
	id:      []string{"id_str", "rest_id", "id"},
	replies: []string{"reply_count", "replies", "replyCount", "legacy.reply_count"},
	reposts: []string{"retweet_count", "retweets", "reposts", "repostCount", "legacy.retweet_count"},
	likes:   []string{"favorite_count", "likes", "likeCount", "legacy.favorite_count"},
	views:   []string{"views.count", "view_count", "views", "viewCount"},
	poll:    []string{"poll", "pollData"},
	quoted: []string{
		"quoted_status_result.result.tweet", "quoted_status_result.result",
		"quoted_status", "quotedStatus", "quotedTweet", "quoted_tweet", "quote",
	},
	translated: []string{"translation.text"},
	sourceLang: []string{"translation.source_lang_en", "translation.source_lang"},
	media:      structuredMedia,
}

var textKeys = []string{"full_text", "text"}
var timestampKeys = []string{"created_at", "createdAt", "date", "created_timestamp"}

// Structured reads JSON embedded in the page (or the page itself when it is
// JSON). The first object in depth-first order carrying both a text and a
// timestamp key is the post.
type Structured struct{}

func (Structured) Name() string { return "structured" }

func (Structured) Extract(_ context.Context, doc *Document, _ post.Locator) *post.Post {
	for _, payload := range doc.Payloads() {
		if cand, ok := findCandidate(payload); ok {
			return mapPost(structuredFields, cand, 0)
		}
	}
	return nil
}

func isCandidate(r gjson.Result) bool {
	hasText := false
	for _, k := range textKeys {
		if r.Get(k).Type == gjson.String {
			hasText = true
			break
		}
	}
	if !hasText {
		return false
	}
	for _, k := range timestampKeys {
		if v := r.Get(k); v.Type == gjson.String || v.Type == gjson.Number {
			return true
		}
	}
	return false
}

func findCandidate(r gjson.Result) (gjson.Result, bool) {
	var found gjson.Result
	ok := false
	var dfs func(gjson.Result)
	dfs = func(cur gjson.Result) {
		if ok {
			return
		}
		if cur.IsObject() && isCandidate(cur) {
			found, ok = cur, true
			return
		}
		if cur.IsObject() || cur.IsArray() {
			cur.ForEach(func(_, v gjson.Result) bool {
				dfs(v)
				return !ok
			})
		}
	}
	dfs(r)
	return found, ok
}

func mapPost(fm fieldMap, r gjson.Result, depth int) *post.Post {
	p := &post.Post{
		Text:           normalizeWhitespace(firstString(r, fm.text...)),
		DisplayName:    strings.TrimSpace(firstString(r, fm.name...)),
		Handle:         strings.TrimPrefix(strings.TrimSpace(firstString(r, fm.handle...)), "@"),
		CreatedAt:      parseTimeJSON(firstValue(r, fm.created...)),
		Replies:        firstCount(r, fm.replies...),
		Reposts:        firstCount(r, fm.reposts...),
		Likes:          firstCount(r, fm.likes...),
		Views:          firstCount(r, fm.views...),
		TranslatedText: normalizeWhitespace(firstString(r, fm.translated...)),
		SourceLanguage: firstString(r, fm.sourceLang...),
	}
	if u := firstString(r, fm.url...); strings.Contains(u, "/status/") {
		p.URL = u
	} else if id := firstString(r, fm.id...); id != "" && p.Handle != "" {
		p.URL = "https://x.com/" + p.Handle + "/status/" + id
	}
	if fm.media != nil {
		p.Media = fm.media(r)
	}
	if poll := firstValue(r, fm.poll...); poll.IsObject() {
		p.Poll = pollFromJSON(poll)
	}
	if depth == 0 {
		if q := firstValue(r, fm.quoted...); q.IsObject() {
			p.Quoted = mapPost(fm, q, depth+1)
		}
	}
	return p
}

func firstValue(r gjson.Result, paths ...string) gjson.Result {
	for _, path := range paths {
		if v := r.Get(path); v.Exists() && v.Type != gjson.Null {
			return v
		}
	}
	return gjson.Result{}
}

// firstString skips objects, arrays and empty strings.
func firstString(r gjson.Result, paths ...string) string {
	for _, path := range paths {
		v := r.Get(path)
		switch v.Type {
		case gjson.String:
			if s := strings.TrimSpace(v.String()); s != "" {
				return s
			}
		case gjson.Number:
			return v.Raw
		}
	}
	return ""
}

func firstCount(r gjson.Result, paths ...string) *int64 {
	for _, path := range paths {
		v := r.Get(path)
		switch v.Type {
		case gjson.Number:
			return post.Int64(v.Int())
		case gjson.String:
			if n, ok := parseCount(v.String()); ok {
				return post.Int64(n)
			}
		}
	}
	return nil
}

func firstFloat(r gjson.Result, paths ...string) *float64 {
	for _, path := range paths {
		v := r.Get(path)
		switch v.Type {
		case gjson.Number:
			return post.Float64(v.Float())
		case gjson.String:
			s := strings.TrimSuffix(strings.TrimSpace(v.String()), "%")
			if f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64); err == nil {
				return post.Float64(f)
			}
		}
	}
	return nil
}

func structuredMedia(r gjson.Result) []post.MediaItem {
	var items []post.MediaItem
	add := func(list gjson.Result) {
		list.ForEach(func(_, v gjson.Result) bool {
			if it, ok := mediaFromJSON(v); ok {
				items = append(items, it)
			}
			return true
		})
	}
	m := r.Get("media")
	switch {
	case m.IsArray():
		add(m)
	case m.IsObject():
		if all := m.Get("all"); all.IsArray() {
			add(all)
		} else {
			add(m.Get("photos"))
			add(m.Get("videos"))
		}
	}
	if len(items) == 0 {
		add(firstValue(r, "extended_entities.media", "legacy.extended_entities.media", "entities.media"))
	}
	return items
}

// mediaFromJSON accepts a bare URL string or a media object. Videos resolve
// to their best mp4 variant when variants are listed.
func mediaFromJSON(v gjson.Result) (post.MediaItem, bool) {
	if v.Type == gjson.String {
		u := strings.TrimSpace(v.String())
		return post.MediaItem{URL: u, Kind: post.Photo}, u != ""
	}
	if !v.IsObject() {
		return post.MediaItem{}, false
	}
	kind := strings.ToLower(v.Get("type").String())
	if kind == "video" || kind == "gif" || kind == "animated_gif" {
		u := bestVariant(firstValue(v, "video_info.variants", "variants"))
		if u == "" {
			u = firstString(v, "url", "src")
		}
		return post.MediaItem{URL: u, Kind: post.Video}, u != ""
	}
	u := firstString(v, "media_url_https", "media_url", "url", "src")
	return post.MediaItem{URL: u, Kind: post.Photo}, u != ""
}

// bestVariant picks the mp4 with the highest bitrate, falling back to the
// first variant with a URL.
func bestVariant(variants gjson.Result) string {
	best, first := "", ""
	bestRate := int64(-1)
	variants.ForEach(func(_, v gjson.Result) bool {
		u := firstString(v, "url", "src")
		if u == "" {
			return true
		}
		if first == "" {
			first = u
		}
		ct := firstString(v, "content_type", "type")
		if ct != "" && ct != "video/mp4" {
			return true
		}
		if rate := v.Get("bitrate").Int(); rate > bestRate {
			best, bestRate = u, rate
		}
		return true
	})
	if best != "" {
		return best
	}
	return first
}

func pollFromJSON(r gjson.Result) *post.Poll {
	p := &post.Poll{
		Question:   firstString(r, "question", "title"),
		TotalVotes: firstCount(r, "totalVotes", "total_votes"),
		TimeLeft:   firstString(r, "timeLeft", "time_left", "time_left_en"),
	}
	firstValue(r, "options", "choices").ForEach(func(_, o gjson.Result) bool {
		opt := post.PollOption{
			Text:    firstString(o, "label", "text"),
			Percent: firstFloat(o, "percentage", "percent"),
			Votes:   firstCount(o, "votes", "count"),
		}
		if opt.Text != "" {
			p.Options = append(p.Options, opt)
		}
		return true
	})
	if len(p.Options) == 0 {
		return nil
	}
	fillPercentages(p)
	status := strings.ToLower(firstString(r, "status", "state"))
	switch {
	case status == "ended" || status == "closed" || status == "final":
		p.Status = post.PollEnded
	case p.TimeLeft != "":
		p.Status, _ = classifyPollStatus(p.TimeLeft)
		if p.Status == post.PollActive {
			p.Status = post.PollTimeRemaining
		}
	default:
		p.Status = post.PollActive
	}
	return p
}

// fillPercentages derives missing percentages from vote counts.
func fillPercentages(p *post.Poll) {
	var total int64
	if p.TotalVotes != nil {
		total = *p.TotalVotes
	} else {
		for _, o := range p.Options {
			if o.Votes != nil {
				total += *o.Votes
			}
		}
	}
	if total <= 0 {
		return
	}
	for i, o := range p.Options {
		if o.Percent == nil && o.Votes != nil {
			p.Options[i].Percent = post.Float64(float64(*o.Votes) * 100 / float64(total))
		}
	}
}
