// Package resources implements the resource-reading half of C9:
// resolving a ResourceDescriptor's URI by scheme and returning its
// content and MIME type.
package resources

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"strings"
	"time"
)

// Content is a resolved resource's bytes plus its declared MIME type.
type Content struct {
	URI      string
	MIMEType string
	Data     []byte
}

// Resolver reads resources from the file scheme off of an fs.FS root
// and from http(s) over the network; the internal scheme is served
// from an in-process registry of named blobs (dashboard-exposed
// introspection documents, for example).
type Resolver struct {
	fsys     fs.FS
	internal map[string]Content
	client   http.Client
}

func New(fsys fs.FS) *Resolver {
	return &Resolver{fsys: fsys, internal: make(map[string]Content), client: http.Client{Timeout: 30 * time.Second}}
}

// RegisterInternal adds a resource served under the internal:// scheme,
// used for dashboard-exposed documents rather than filesystem content.
func (r *Resolver) RegisterInternal(name string, c Content) {
	r.internal[name] = c
}

func (r *Resolver) Resolve(ctx context.Context, uri string) (Content, error) {
	scheme, rest, ok := strings.Cut(uri, "://")
	if !ok {
		return Content{}, fmt.Errorf("resource uri %q missing scheme", uri)
	}

	switch scheme {
	case "file":
		return r.resolveFile(uri, rest)
	case "http", "https":
		return r.resolveHTTP(ctx, uri)
	case "internal":
		c, ok := r.internal[rest]
		if !ok {
			return Content{}, fmt.Errorf("unknown internal resource %q", rest)
		}
		return c, nil
	default:
		return Content{}, fmt.Errorf("unsupported resource scheme %q", scheme)
	}
}

func (r *Resolver) resolveFile(uri, path string) (Content, error) {
	path = strings.TrimPrefix(path, "/")
	data, err := fs.ReadFile(r.fsys, path)
	if err != nil {
		return Content{}, fmt.Errorf("reading file resource %s: %w", uri, err)
	}
	return Content{URI: uri, MIMEType: sniffMIME(path), Data: data}, nil
}

func (r *Resolver) resolveHTTP(ctx context.Context, uri string) (Content, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return Content{}, fmt.Errorf("building request for %s: %w", uri, err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return Content{}, fmt.Errorf("fetching %s: %w", uri, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return Content{}, fmt.Errorf("fetching %s: status %d", uri, resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Content{}, fmt.Errorf("reading body from %s: %w", uri, err)
	}
	return Content{URI: uri, MIMEType: resp.Header.Get("Content-Type"), Data: data}, nil
}

func sniffMIME(path string) string {
	switch {
	case strings.HasSuffix(path, ".json"):
		return "application/json"
	case strings.HasSuffix(path, ".yaml"), strings.HasSuffix(path, ".yml"):
		return "application/yaml"
	case strings.HasSuffix(path, ".md"):
		return "text/markdown"
	case strings.HasSuffix(path, ".txt"):
		return "text/plain"
	default:
		return "application/octet-stream"
	}
}
