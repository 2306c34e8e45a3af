// Package roots implements the roots half of C9: filesystem root
// discovery and permission-aware answers to roots/list.
package roots

import (
	"context"
	"fmt"
	"os"

	"github.com/tunnelgate/gateway/internal/obslog"
)

// Listing is one root as returned over the wire; the gateway server
// (C1) maps these into whatever shape its transport's roots/list
// response needs.
type Listing struct {
	URI  string `json:"uri"`
	Name string `json:"name"`
}

// Permission is a closed set of capabilities granted over a root.
type Permission string

const (
	PermRead  Permission = "read"
	PermWrite Permission = "write"
)

// Root is a configured filesystem root plus the permission set a
// requesting identity must hold to see it.
type Root struct {
	URI         string
	Path        string
	Permissions []Permission
}

// Service answers roots/list, filtering by the caller's granted
// permissions — the original_source-derived supplement noted in
// SPEC_FULL.md's roots/list permission filtering.
type Service struct {
	roots []Root
}

func New(roots []Root) (*Service, error) {
	for _, r := range roots {
		if _, err := os.Stat(r.Path); err != nil {
			return nil, fmt.Errorf("root %s: %w", r.URI, err)
		}
	}
	return &Service{roots: roots}, nil
}

// List returns every configured root whose permission set is a subset
// of granted (a caller only sees roots it's cleared for).
func (s *Service) List(ctx context.Context, granted map[Permission]bool) []Listing {
	out := make([]Listing, 0, len(s.roots))
	for _, r := range s.roots {
		if !hasAll(r.Permissions, granted) {
			obslog.Debug("roots", "filtering root %s: missing required permission", r.URI)
			continue
		}
		out = append(out, Listing{URI: r.URI, Name: r.Path})
	}
	return out
}

func hasAll(required []Permission, granted map[Permission]bool) bool {
	for _, p := range required {
		if !granted[p] {
			return false
		}
	}
	return true
}
