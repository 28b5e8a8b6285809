package post

import (
	"testing"
	"time"
)

func TestComplete(t *testing.T) {
	cases := []struct {
		p    *Post
		want bool
	}{
		{nil, false},
		{&Post{}, false},
		{&Post{DisplayName: "a"}, false},
		{&Post{Text: "b"}, false},
		{&Post{DisplayName: "a", Text: "b"}, true},
	}
	for i, c := range cases {
		if got := c.p.Complete(); got != c.want {
			t.Fatalf("case %d: expected %v, got %v", i, c.want, got)
		}
	}
}

func TestClone_Independent(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 0, 0, time.UTC)
	p := &Post{
		Text:      "a",
		CreatedAt: &ts,
		Media:     []MediaItem{{URL: "m1", Kind: Photo}},
		Poll:      &Poll{Options: []PollOption{{Text: "yes"}}},
		Quoted:    &Post{Text: "q", Media: []MediaItem{{URL: "q1"}}},
	}
	c := p.Clone()
	c.Media[0].URL = "changed"
	c.Poll.Options[0].Text = "changed"
	c.Quoted.Media[0].URL = "changed"
	*c.CreatedAt = c.CreatedAt.Add(time.Hour)

	if p.Media[0].URL != "m1" || p.Poll.Options[0].Text != "yes" || p.Quoted.Media[0].URL != "q1" {
		t.Fatalf("expected original untouched, got %+v", p)
	}
	if !p.CreatedAt.Equal(ts) {
		t.Fatalf("expected original timestamp, got %v", p.CreatedAt)
	}
	if (*Post)(nil).Clone() != nil {
		t.Fatalf("expected nil clone of nil")
	}
}

func TestFillMissing(t *testing.T) {
	p := &Post{Text: "mine", Likes: Int64(0)}
	p.FillMissing(&Post{
		DisplayName: "Ann",
		Handle:      "ann",
		Text:        "theirs",
		Likes:       Int64(5),
		Views:       Int64(9),
		Media:       []MediaItem{{URL: "m"}},
	})
	if p.Text != "mine" {
		t.Fatalf("expected own text kept, got %q", p.Text)
	}
	if *p.Likes != 0 {
		t.Fatalf("expected known zero count kept, got %d", *p.Likes)
	}
	if p.DisplayName != "Ann" || p.Handle != "ann" || p.Views == nil || *p.Views != 9 || len(p.Media) != 1 {
		t.Fatalf("expected gaps filled, got %+v", p)
	}
	p.FillMissing(nil)
}
