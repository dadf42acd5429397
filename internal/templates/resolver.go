// Package templates resolves prompt templates: placeholder substitution from
// a parameter map, backed by an explicit TTL cache over the template store.
package templates

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/jonathan/dialogue-forge/internal/types"
)

// Store fetches template bodies. Implemented by the relational store.
type Store interface {
	GetTemplateBody(ctx context.Context, id uuid.UUID) (string, error)
}

// placeholderPattern matches {{name}} placeholders, allowing inner whitespace
var placeholderPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_.-]+)\s*\}\}`)

// Resolver substitutes work-item parameters into stored templates.
// The cache is injected, not module-level, so lifetimes are explicit.
type Resolver struct {
	store Store
	cache *Cache
	group singleflight.Group
}

// NewResolver creates a resolver. cache may be nil to disable caching.
func NewResolver(store Store, cache *Cache) *Resolver {
	return &Resolver{store: store, cache: cache}
}

// Resolve fetches the template and substitutes every placeholder from params.
// A placeholder with no matching parameter is an error: a prompt with holes
// must never reach the provider.
func (r *Resolver) Resolve(ctx context.Context, templateID uuid.UUID, params types.Params) (string, error) {
	body, err := r.fetch(ctx, templateID)
	if err != nil {
		return "", fmt.Errorf("failed to load template %s: %w", templateID, err)
	}
	return Substitute(body, params)
}

// fetch returns the template body, consulting the cache first. Concurrent
// cold-cache fetches of the same template are collapsed into one store call.
func (r *Resolver) fetch(ctx context.Context, templateID uuid.UUID) (string, error) {
	key := templateID.String()
	if r.cache != nil {
		if body, ok := r.cache.Get(key); ok {
			return body, nil
		}
	}

	body, err, _ := r.group.Do(key, func() (any, error) {
		fetched, err := r.store.GetTemplateBody(ctx, templateID)
		if err != nil {
			return "", err
		}
		if r.cache != nil {
			r.cache.Set(key, fetched)
		}
		return fetched, nil
	})
	if err != nil {
		return "", err
	}
	return body.(string), nil
}

// Placeholders returns the distinct placeholder names in body, in order of
// first appearance
func Placeholders(body string) []string {
	seen := make(map[string]bool)
	var names []string
	for _, match := range placeholderPattern.FindAllStringSubmatch(body, -1) {
		name := match[1]
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	return names
}

// Substitute replaces {{placeholder}} markers in body with parameter values.
// Returns an error naming the first unresolved placeholder.
func Substitute(body string, params types.Params) (string, error) {
	var missing []string
	out := placeholderPattern.ReplaceAllStringFunc(body, func(match string) string {
		name := strings.TrimSpace(strings.Trim(match, "{}"))
		value, ok := params[name]
		if !ok {
			missing = append(missing, name)
			return match
		}
		return value.String()
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("unresolved template placeholders: %s", strings.Join(missing, ", "))
	}
	return out, nil
}
