package photostore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"
	"time"
)

var ErrObjectNotFound = errors.New("photo object not found")

// Object is one stored photo file.
type Object struct {
	Name        string
	Size        int64
	ContentType string
	Created     time.Time
}

type SortBy int

const (
	SortByName SortBy = iota
	SortByCreated
)

type ListOptions struct {
	// Limit caps the number of objects returned; zero means no cap.
	Limit  int
	SortBy SortBy
	Desc   bool
}

type PhotoStore interface {
	List(ctx context.Context, prefix string, opts ListOptions) ([]Object, error)
	Open(ctx context.Context, name string) (io.ReadCloser, string, error)
	PublicURL(name string) string
	// ObjectName maps a public URL produced by PublicURL back to its object.
	ObjectName(publicURL string) (string, bool)
}

// Apply sorts objs in place per opts and truncates to the limit. Ties on the
// created time fall back to name order so listings are repeatable.
func Apply(objs []Object, opts ListOptions) []Object {
	less := func(i, j int) bool { return objs[i].Name < objs[j].Name }
	if opts.SortBy == SortByCreated {
		less = func(i, j int) bool {
			if objs[i].Created.Equal(objs[j].Created) {
				return objs[i].Name < objs[j].Name
			}
			return objs[i].Created.Before(objs[j].Created)
		}
	}
	if opts.Desc {
		asc := less
		less = func(i, j int) bool { return asc(j, i) }
	}
	sort.SliceStable(objs, less)

	if opts.Limit > 0 && len(objs) > opts.Limit {
		objs = objs[:opts.Limit]
	}
	return objs
}

// JoinURL builds the public URL of name under base, escaping each segment.
func JoinURL(base, name string) string {
	u, err := url.JoinPath(base, strings.Split(name, "/")...)
	if err != nil {
		return strings.TrimRight(base, "/") + "/" + name
	}
	return u
}

// TrimURL is the inverse of JoinURL.
func TrimURL(base, publicURL string) (string, bool) {
	b, err := url.Parse(base)
	if err != nil {
		return "", false
	}
	u, err := url.Parse(publicURL)
	if err != nil {
		return "", false
	}
	if u.Scheme != b.Scheme || u.Host != b.Host {
		return "", false
	}
	prefix := strings.TrimRight(b.Path, "/") + "/"
	if !strings.HasPrefix(u.Path, prefix) {
		return "", false
	}
	name := strings.TrimPrefix(u.Path, prefix)
	if name == "" {
		return "", false
	}
	return name, true
}

// ParseSortBy maps "name" or "created" to a SortBy.
func ParseSortBy(s string) (SortBy, error) {
	switch strings.ToLower(s) {
	case "", "name":
		return SortByName, nil
	case "created", "created_at":
		return SortByCreated, nil
	default:
		return SortByName, fmt.Errorf("unknown sort order %q", s)
	}
}
