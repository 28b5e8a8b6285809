package app

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/dustin/go-humanize"

	"github.com/hyperifyio/xmirror/internal/pipeline"
	"github.com/hyperifyio/xmirror/internal/render"
)

// WriterSender is a pipeline.Sender that prints deliveries as plain text.
// It backs the CLI and is handy for inspecting what a chat would receive.
type WriterSender struct {
	W  io.Writer
	mu sync.Mutex
}

// Send prints every part followed by the media list.
func (s *WriterSender) Send(_ context.Context, d pipeline.Delivery) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := fmt.Fprintf(s.W, "=== %s\n", d.Locator.CanonicalURL); err != nil {
		return err
	}
	for i, part := range d.Parts {
		if _, err := fmt.Fprintf(s.W, "--- part %d/%d (%d chars)\n%s\n", i+1, len(d.Parts), render.Length(part), part); err != nil {
			return err
		}
	}
	if d.Caption != "" {
		fmt.Fprintln(s.W, "--- caption: part 1")
	}
	for _, f := range d.Files {
		fmt.Fprintf(s.W, "--- %s %s (%s) from %s\n", f.Kind, f.Path, humanize.Bytes(uint64(f.Size)), f.SourceURL)
	}
	if len(d.Files) == 0 {
		for _, m := range d.Media {
			fmt.Fprintf(s.W, "--- %s %s\n", m.Kind, m.URL)
		}
	}
	if d.Truncated > 0 {
		fmt.Fprintf(s.W, "--- %d more media item(s) omitted\n", d.Truncated)
	}
	return nil
}

// Notify prints a notice line.
func (s *WriterSender) Notify(_ context.Context, _ int64, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := fmt.Fprintf(s.W, "!!! %s\n", text)
	return err
}
