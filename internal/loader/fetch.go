package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"strings"

	"GopherScene/internal/resource"
)

// Fetcher opens asset URLs.
type Fetcher interface {
	Open(ctx context.Context, url string) (io.ReadCloser, error)
}

// FSFetcher resolves URLs as slash separated paths inside an fs.FS.
type FSFetcher struct {
	FS fs.FS
}

// DirFetcher serves files below root.
func DirFetcher(root string) FSFetcher {
	return FSFetcher{FS: os.DirFS(root)}
}

func (f FSFetcher) Open(ctx context.Context, url string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name := CleanPath(url)
	file, err := f.FS.Open(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", url, resource.ErrNotFound)
		}
		return nil, err
	}
	return file, nil
}

// CleanPath turns a URL into an fs.FS path.
func CleanPath(url string) string {
	p := path.Clean("/" + strings.ReplaceAll(url, "\\", "/"))
	return strings.TrimPrefix(p, "/")
}

// Source is a fetched file ready for a decoder.
type Source struct {
	URL     string
	Kind    Kind
	Data    []byte
	Fetcher Fetcher
}

// ReadSource fetches url and detects its kind. Procedural URLs are not fetched.
func ReadSource(ctx context.Context, f Fetcher, url string) (Source, error) {
	if IsProcedural(url) {
		kind, err := DetectKind(url, nil)
		return Source{URL: url, Kind: kind, Fetcher: f}, err
	}
	if f == nil {
		return Source{}, fmt.Errorf("%s: no fetcher configured: %w", url, resource.ErrInvalidEnvironment)
	}

	r, err := f.Open(ctx, url)
	if err != nil {
		return Source{}, err
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return Source{}, fmt.Errorf("read %s: %w", url, err)
	}

	kind, err := DetectKind(url, data)
	if err != nil {
		return Source{}, err
	}
	return Source{URL: url, Kind: kind, Data: data, Fetcher: f}, nil
}

// Resolve returns the URL of name relative to the source file.
func (s Source) Resolve(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	if path.IsAbs(name) {
		return name
	}
	return path.Join(path.Dir(s.URL), name)
}

// Related reads a file referenced by the source, such as an OBJ mtllib.
func (s Source) Related(ctx context.Context, name string) ([]byte, error) {
	if s.Fetcher == nil {
		return nil, fmt.Errorf("%s: no fetcher for %s: %w", s.URL, name, resource.ErrInvalidEnvironment)
	}
	r, err := s.Fetcher.Open(ctx, s.Resolve(name))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}
