package render

import (
	"context"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/hyperifyio/xmirror/internal/extract"
	"github.com/hyperifyio/xmirror/internal/fetch"
	"github.com/hyperifyio/xmirror/internal/post"
)

func TestAbbreviate(t *testing.T) {
	cases := []struct {
		in   int64
		want string
	}{
		{0, "0"},
		{500, "500"},
		{999, "999"},
		{1000, "1K"},
		{1500, "1.5K"},
		{999_950, "1M"},
		{1_000_000, "1M"},
		{1_234_567, "1.2M"},
	}
	for _, c := range cases {
		if got := Abbreviate(c.in); got != c.want {
			t.Fatalf("Abbreviate(%d): expected %q, got %q", c.in, c.want, got)
		}
	}
}

func TestBar(t *testing.T) {
	cases := []struct {
		percent        float64
		filled, length int
	}{
		{50, 5, 10},
		{100, 10, 10},
		{0, 0, 10},
		{34, 3, 10},
		{36, 4, 10},
		{150, 10, 10},
		{-5, 0, 10},
	}
	for _, c := range cases {
		bar := Bar(c.percent, c.length)
		if n := strings.Count(bar, barFilled); n != c.filled {
			t.Fatalf("Bar(%v): expected %d filled, got %d", c.percent, c.filled, n)
		}
		if n := strings.Count(bar, barFilled) + strings.Count(bar, barEmpty); n != c.length {
			t.Fatalf("Bar(%v): expected width %d, got %d", c.percent, c.length, n)
		}
	}
}

func TestLength_UTF16(t *testing.T) {
	if Length("abc") != 3 || Length("яз") != 2 || Length("😀") != 2 {
		t.Fatalf("unexpected utf-16 lengths")
	}
}

func TestSplit_SinglePart(t *testing.T) {
	parts := Split([]string{"a", "", "b"}, 100)
	if len(parts) != 1 || parts[0] != "a\n\nb" {
		t.Fatalf("unexpected parts %q", parts)
	}
	if Split(nil, 10) != nil {
		t.Fatalf("expected no parts for no blocks")
	}
}

func TestSplit_LongBody(t *testing.T) {
	const ceiling = 50
	body := strings.Repeat("abcdefghij", 3*ceiling/10)
	blocks := []string{"<b>head</b>", body, "tail"}
	parts := Split(blocks, ceiling)
	if len(parts) < 3 {
		t.Fatalf("expected at least 3 parts, got %d", len(parts))
	}
	for i, p := range parts {
		if Length(p) > ceiling {
			t.Fatalf("part %d exceeds ceiling: %d", i, Length(p))
		}
	}
	joined := strings.ReplaceAll(strings.Join(parts, ""), Separator, "")
	if joined != strings.Join(blocks, "") {
		t.Fatalf("content not preserved:\n%q\n%q", joined, strings.Join(blocks, ""))
	}
}

func TestSplit_PacksGreedily(t *testing.T) {
	parts := Split([]string{"aaaa", "bbbb", "cccc"}, 10)
	if len(parts) != 2 || parts[0] != "aaaa\n\nbbbb" || parts[1] != "cccc" {
		t.Fatalf("unexpected parts %q", parts)
	}
}

func TestSplit_DoesNotCutEntityOrRune(t *testing.T) {
	parts := Split([]string{"abcdefg&amp;hij"}, 9)
	for _, p := range parts {
		if strings.Contains(p, "&") && !strings.Contains(p, "&amp;") {
			t.Fatalf("entity was cut: %q", parts)
		}
	}
	parts = Split([]string{strings.Repeat("😀", 5)}, 3)
	for _, p := range parts {
		if Length(p) > 3 || !strings.HasPrefix(p, "😀") {
			t.Fatalf("rune was cut: %q", parts)
		}
	}
}

var tagRE = regexp.MustCompile(`<(/?)([a-z-]+)[^>]*>`)

func balanced(part string) bool {
	var stack []string
	for _, m := range tagRE.FindAllStringSubmatch(part, -1) {
		if m[1] == "" {
			stack = append(stack, m[2])
			continue
		}
		if len(stack) == 0 || stack[len(stack)-1] != m[2] {
			return false
		}
		stack = stack[:len(stack)-1]
	}
	return len(stack) == 0
}

func TestSplit_KeepsTagsBalanced(t *testing.T) {
	cases := []struct {
		block   string
		ceiling int
	}{
		{"<i>" + strings.Repeat("a", 150) + "</i>", 100},
		{`<b>x <a href="https://e.test/p">` + strings.Repeat("link ", 40) + "</a> tail</b>", 60},
		{"<code>" + strings.Repeat("ab&amp;", 30) + "</code>", 40},
	}
	for _, c := range cases {
		parts := Split([]string{c.block}, c.ceiling)
		if len(parts) < 2 {
			t.Fatalf("expected several parts for %q, got %d", c.block, len(parts))
		}
		var text strings.Builder
		for i, p := range parts {
			if Length(p) > c.ceiling {
				t.Fatalf("part %d exceeds ceiling %d: %d", i, c.ceiling, Length(p))
			}
			if !balanced(p) {
				t.Fatalf("part %d has unbalanced tags: %q", i, p)
			}
			text.WriteString(tagRE.ReplaceAllString(p, ""))
		}
		if want := tagRE.ReplaceAllString(c.block, ""); text.String() != want {
			t.Fatalf("text not preserved:\n%q\n%q", text.String(), want)
		}
	}
}

func TestRender_EndToEndStructured(t *testing.T) {
	page := `<html><script>{"full_text":"A","created_at":"Wed Oct 10 20:19:24 +0000 2018","user":{"name":"B","screen_name":"c"}}</script></html>`
	loc := post.Locator{Handle: "c", ID: "1", CanonicalURL: "https://x.com/c/status/1"}
	p := extract.New(nil).Extract(context.Background(), &fetch.Result{Body: []byte(page)}, loc).Post
	if p.Text != "A" || p.DisplayName != "B" || p.Handle != "c" || len(p.Media) != 0 {
		t.Fatalf("unexpected extraction %+v", p)
	}

	out := New().Render(p, Options{})
	if len(out.Parts) != 1 {
		t.Fatalf("expected one part, got %d", len(out.Parts))
	}
	card := out.Parts[0]
	for _, want := range []string{"A", "<b>B</b>", "@c", "10.10.2018, 20:19", "💬 —  🔁 —  ❤️ —  👁 —"} {
		if !strings.Contains(card, want) {
			t.Fatalf("expected %q in card:\n%s", want, card)
		}
	}
	if len(out.Media) != 0 || out.Truncated != 0 {
		t.Fatalf("expected no media")
	}
}

func TestRender_TranslationQuotePoll(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 0, 0, time.UTC)
	p := &post.Post{
		DisplayName:    "Ann <3",
		Handle:         "ann",
		URL:            "https://x.com/ann/status/1",
		CreatedAt:      &ts,
		Text:           "Hola",
		TranslatedText: "Hello",
		SourceLanguage: "Spanish",
		Quoted:         &post.Post{DisplayName: "Bob", Handle: "bob", Text: "line1\nline2"},
		Poll: &post.Poll{
			Question:   "Tea?",
			Options:    []post.PollOption{{Text: "Yes", Percent: post.Float64(50), Votes: post.Int64(1500)}, {Text: "No"}},
			TotalVotes: post.Int64(3000),
			Status:     post.PollEnded,
		},
		Likes: post.Int64(1234567),
	}
	card := strings.Join(New().Render(p, Options{IncludeTranslation: true, Comment: "look"}).Parts, "\n")
	for _, want := range []string{
		"<i>look</i>",
		"<b>Ann &lt;3</b>",
		`<a href="https://x.com/ann/status/1">@ann</a>`,
		"02.01.2024, 03:04",
		"<i>Translated from Spanish</i>\nHello",
		"<i>Original:</i>\nHola",
		"<b>Quote from Bob</b> (@bob):\n│ line1\n│ line2",
		"<code>Yes  50%  █████░░░░░  (1.5K)</code>",
		"<code>No  —</code>",
		"3K votes · Final results",
		"❤️ 1.2M",
	} {
		if !strings.Contains(card, want) {
			t.Fatalf("expected %q in card:\n%s", want, card)
		}
	}
	if strings.Index(card, "Hello") > strings.Index(card, "Quote from") {
		t.Fatalf("body must precede the quote block")
	}

	plain := strings.Join(New().Render(p, Options{}).Parts, "\n")
	if strings.Contains(plain, "Hello") || !strings.Contains(plain, "Hola") {
		t.Fatalf("translation must be omitted when not requested:\n%s", plain)
	}
}

func TestRender_MediaCeiling(t *testing.T) {
	var own []post.MediaItem
	for i := 0; i < 9; i++ {
		own = append(own, post.MediaItem{URL: "https://m/" + string(rune('a'+i)), Kind: post.Photo})
	}
	p := &post.Post{
		Text:   "x",
		Media:  own,
		Quoted: &post.Post{Media: []post.MediaItem{{URL: "q1"}, {URL: "q2"}, {URL: "q3"}}},
	}
	r := New()
	out := r.Render(p, Options{})
	if len(out.Media) != 9 || out.Truncated != 0 {
		t.Fatalf("expected own media only, got %d (+%d)", len(out.Media), out.Truncated)
	}
	out = r.Render(p, Options{IncludeQuotedMedia: true})
	if len(out.Media) != 10 || out.Truncated != 2 || out.Media[9].URL != "q1" {
		t.Fatalf("expected 10 items with 2 truncated, got %d (+%d)", len(out.Media), out.Truncated)
	}
}

func TestCaption(t *testing.T) {
	if c, ok := Caption([]string{"short"}, 10); !ok || c != "short" {
		t.Fatalf("expected caption")
	}
	if _, ok := Caption([]string{"too long for it"}, 10); ok {
		t.Fatalf("expected no caption over the limit")
	}
	if _, ok := Caption([]string{"a", "b"}, 10); ok {
		t.Fatalf("expected no caption for several parts")
	}
}

func TestRender_RussianLabels(t *testing.T) {
	r := New()
	r.Labels = &RussianLabels
	card := strings.Join(r.Render(&post.Post{Text: "x", URL: "https://x.com/a/status/1"}, Options{}).Parts, "\n")
	if !strings.Contains(card, "открыть пост") {
		t.Fatalf("expected russian footer:\n%s", card)
	}
}
