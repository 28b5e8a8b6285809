// Package media downloads post media into temp files and shrinks them to
// the transport's upload ceiling.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"regexp"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/hyperifyio/xmirror/internal/post"
)

// ErrDownloadFailed marks a media item that could not be fetched. It is
// logged and the item skipped.
var ErrDownloadFailed = errors.New("media download failed")

// DefaultDownloadLimit caps a single download before compression.
const DefaultDownloadLimit int64 = 200 << 20

// Downloader is satisfied by *fetch.Client.
type Downloader interface {
	Download(ctx context.Context, rawURL string, dst io.Writer, limit int64) (int64, error)
}

// Compressor shrinks a file to at most maxBytes. It returns the path of the
// result, which is the input path when nothing had to change.
type Compressor interface {
	Compress(ctx context.Context, path string, kind post.MediaKind, maxBytes int64) (string, error)
}

// File is one materialized media item.
type File struct {
	Path      string
	Kind      post.MediaKind
	Size      int64
	SourceURL string
}

// Batch holds the files of one post. Close removes them.
type Batch struct {
	Files []File

	mu      sync.Mutex
	created []string
	closed  bool
}

func (b *Batch) track(p string) {
	b.mu.Lock()
	b.created = append(b.created, p)
	b.mu.Unlock()
}

// Close removes every file the batch created, including intermediate
// compressor outputs. It is safe to call more than once.
func (b *Batch) Close() error {
	if b == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	var errs []error
	for _, p := range b.created {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	b.created = nil
	return errors.Join(errs...)
}

// Materializer turns media items into local files.
type Materializer struct {
	Client     Downloader
	Dir        *TempDir
	Compressor Compressor
	// MaxBytes is the upload ceiling handed to the compressor; zero disables
	// compression.
	MaxBytes int64
	// DownloadLimit defaults to DefaultDownloadLimit.
	DownloadLimit int64
	// Concurrency bounds parallel downloads; defaults to 3.
	Concurrency int
}

// Materialize downloads items in parallel and compresses them one by one.
// Failed items are skipped. On cancellation every file created so far is
// removed and the context error returned.
func (m *Materializer) Materialize(ctx context.Context, items []post.MediaItem) (*Batch, error) {
	batch := &Batch{}
	if len(items) == 0 {
		return batch, nil
	}
	if err := m.Dir.Ensure(); err != nil {
		return nil, fmt.Errorf("media dir: %w", err)
	}

	slots := make([]*File, len(items))
	g, gctx := errgroup.WithContext(ctx)
	limit := m.Concurrency
	if limit <= 0 {
		limit = 3
	}
	g.SetLimit(limit)
	for i, it := range items {
		i, it := i, it
		g.Go(func() error {
			f, err := m.download(gctx, batch, it)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				log.Warn().Err(err).Str("url", it.URL).Msg("media skipped")
				return nil
			}
			slots[i] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		_ = batch.Close()
		return nil, err
	}

	for _, f := range slots {
		if f == nil {
			continue
		}
		if err := ctx.Err(); err != nil {
			_ = batch.Close()
			return nil, err
		}
		m.compress(ctx, batch, f)
		batch.Files = append(batch.Files, *f)
	}
	if err := ctx.Err(); err != nil {
		_ = batch.Close()
		return nil, err
	}
	return batch, nil
}

func (m *Materializer) download(ctx context.Context, batch *Batch, it post.MediaItem) (*File, error) {
	out, err := m.Dir.Create(extensionFor(it))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	batch.track(out.Name())
	limit := m.DownloadLimit
	if limit <= 0 {
		limit = DefaultDownloadLimit
	}
	n, err := m.Client.Download(ctx, it.URL, out, limit)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(out.Name())
		return nil, fmt.Errorf("%w: %s: %v", ErrDownloadFailed, it.URL, err)
	}
	log.Debug().Str("url", it.URL).Str("size", humanize.Bytes(uint64(n))).Msg("media downloaded")
	return &File{Path: out.Name(), Kind: it.Kind, Size: n, SourceURL: it.URL}, nil
}

func (m *Materializer) compress(ctx context.Context, batch *Batch, f *File) {
	if m.Compressor == nil || m.MaxBytes <= 0 || f.Size <= m.MaxBytes {
		return
	}
	p, err := m.Compressor.Compress(ctx, f.Path, f.Kind, m.MaxBytes)
	if err != nil {
		log.Warn().Err(err).Str("file", f.Path).Msg("compression failed, sending original")
		return
	}
	if p == f.Path {
		return
	}
	if !m.Dir.Owns(p) {
		log.Warn().Str("file", p).Msg("compressor output outside the temp dir, sending original")
		return
	}
	batch.track(p)
	info, err := os.Stat(p)
	if err != nil {
		return
	}
	log.Debug().
		Str("from", humanize.Bytes(uint64(f.Size))).
		Str("to", humanize.Bytes(uint64(info.Size()))).
		Str("ceiling", humanize.Bytes(uint64(m.MaxBytes))).
		Msg("media compressed")
	f.Path, f.Size = p, info.Size()
}

var extRE = regexp.MustCompile(`^\.[a-z0-9]{1,4}$`)

// extensionFor prefers the URL's own extension, then a format query
// parameter, then a default per kind.
func extensionFor(it post.MediaItem) string {
	if u, err := url.Parse(it.URL); err == nil {
		if ext := strings.ToLower(path.Ext(u.Path)); extRE.MatchString(ext) {
			return ext
		}
		if f := "." + strings.ToLower(u.Query().Get("format")); extRE.MatchString(f) {
			return f
		}
	}
	if it.Kind == post.Video {
		return ".mp4"
	}
	return ".jpg"
}
