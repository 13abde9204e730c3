package router

import (
	"strings"
	"sync"

	"github.com/nitrohttp/nitro/internal/util"
)

// DefaultCacheSize is the default capacity of the match result cache.
const DefaultCacheSize = 1000

// Table is the compiled route table, generic over the registered value
// (typically a handler reference).
//
// Lookups take the read side of the lock; registration and Clear take
// the write side. The result cache in front of the matcher has its own
// synchronization.
type Table[T any] struct {
	mu     sync.RWMutex
	static map[string]*route[T]
	param  map[string][]*route[T]
	shapes map[string]string
	cache  *lruCache[T]
}

// route is a single compiled route.
type route[T any] struct {
	method   string
	pattern  string
	segments []segment
	value    T
}

// segment is one compiled pattern segment.
type segment struct {
	literal   string
	isParam   bool
	paramName string
}

// Option is a functional option for configuring the table.
type Option func(*tableConfig)

type tableConfig struct {
	cacheSize int
}

// WithCacheSize sets the capacity of the match result cache.
func WithCacheSize(n int) Option {
	return func(c *tableConfig) {
		c.cacheSize = n
	}
}

// New creates an empty route table.
func New[T any](opts ...Option) *Table[T] {
	cfg := tableConfig{cacheSize: DefaultCacheSize}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Table[T]{
		static: make(map[string]*route[T]),
		param:  make(map[string][]*route[T]),
		shapes: make(map[string]string),
		cache:  newLRUCache[T](cfg.cacheSize),
	}
}

// Register adds a route for the given method and pattern. The pattern
// must start with "/" and may contain :name capture segments. A pattern
// that duplicates, or is ambiguous with, an already registered pattern
// for the same method is rejected.
func (t *Table[T]) Register(method, pattern string, value T) error {
	segments, err := compilePattern(pattern)
	if err != nil {
		return err
	}

	normalized := normalizePath(pattern)

	t.mu.Lock()
	defer t.mu.Unlock()

	// Two patterns that differ only in capture names would both match
	// the same concrete paths, so they are treated as duplicates.
	shape := patternShape(method, segments)
	if _, ok := t.shapes[shape]; ok {
		return util.NewDuplicateRouteError(method, normalized)
	}

	r := &route[T]{
		method:   method,
		pattern:  normalized,
		segments: segments,
		value:    value,
	}

	if isStatic(segments) {
		t.static[routeKey(method, normalized)] = r
	} else {
		t.param[method] = append(t.param[method], r)
	}
	t.shapes[shape] = normalized

	// Any cached result may now be stale.
	t.cache.clear()

	return nil
}

// Match resolves a concrete request path to the registered value and
// the extracted path parameters. A miss returns a
// util.RouteNotFoundError; it is the expected outcome for unknown
// paths, not a fault.
func (t *Table[T]) Match(method, path string) (T, map[string]string, error) {
	normalized := normalizePath(path)
	key := routeKey(method, normalized)

	if value, params, ok := t.cache.get(key); ok {
		return value, params, nil
	}

	t.mu.RLock()
	r, params := t.lookup(method, normalized)
	if r != nil {
		// Only successful matches are cached; caching misses would let
		// an attacker churn the cache with unroutable paths. The insert
		// happens under the read lock so it cannot land after a
		// Register/Clear already invalidated the cache.
		t.cache.put(key, r.value, params)
	}
	t.mu.RUnlock()

	if r == nil {
		var zero T
		return zero, nil, util.NewRouteNotFoundError(method, path)
	}

	return r.value, params, nil
}

// Pattern returns the registered pattern that a concrete path resolves
// to, for logging and metric labels. Falls back to the path itself on a
// miss.
func (t *Table[T]) Pattern(method, path string) string {
	normalized := normalizePath(path)

	t.mu.RLock()
	r, _ := t.lookup(method, normalized)
	t.mu.RUnlock()

	if r == nil {
		return path
	}
	return r.pattern
}

// lookup runs the uncached match. Static routes win over parameterized
// routes; among parameterized routes registration order decides.
func (t *Table[T]) lookup(method, normalized string) (*route[T], map[string]string) {
	if r, ok := t.static[routeKey(method, normalized)]; ok {
		return r, map[string]string{}
	}

	parts := splitPath(normalized)
	for _, r := range t.param[method] {
		if params, ok := matchSegments(r.segments, parts); ok {
			return r, params
		}
	}

	return nil, nil
}

// Len returns the number of registered routes.
func (t *Table[T]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.shapes)
}

// Clear removes all routes and invalidates the cache.
func (t *Table[T]) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.static = make(map[string]*route[T])
	t.param = make(map[string][]*route[T])
	t.shapes = make(map[string]string)
	t.cache.clear()
}

// compilePattern parses a route pattern into segments.
func compilePattern(pattern string) ([]segment, error) {
	if pattern == "" || pattern[0] != '/' {
		return nil, util.NewInvalidPatternError(pattern, "must start with /")
	}

	parts := splitPath(normalizePath(pattern))
	segments := make([]segment, 0, len(parts))
	seen := make(map[string]bool)

	for _, part := range parts {
		if part == "" {
			return nil, util.NewInvalidPatternError(pattern, "empty path segment")
		}

		if strings.HasPrefix(part, ":") {
			name := part[1:]
			if name == "" {
				return nil, util.NewInvalidPatternError(pattern, "capture segment without a name")
			}
			if seen[name] {
				return nil, util.NewInvalidPatternError(pattern, "duplicate capture name "+name)
			}
			seen[name] = true
			segments = append(segments, segment{isParam: true, paramName: name})
			continue
		}

		if strings.ContainsAny(part, ":*") {
			return nil, util.NewInvalidPatternError(pattern, "captures must span a whole segment")
		}

		segments = append(segments, segment{literal: part})
	}

	return segments, nil
}

// matchSegments checks a concrete path, pre-split into parts, against
// compiled segments and extracts captures.
func matchSegments(segments []segment, parts []string) (map[string]string, bool) {
	if len(segments) != len(parts) {
		return nil, false
	}

	var params map[string]string
	for i, seg := range segments {
		if seg.isParam {
			if params == nil {
				params = make(map[string]string, 2)
			}
			params[seg.paramName] = parts[i]
			continue
		}
		if seg.literal != parts[i] {
			return nil, false
		}
	}

	if params == nil {
		params = map[string]string{}
	}
	return params, true
}

// isStatic reports whether a compiled pattern has no captures.
func isStatic(segments []segment) bool {
	for _, seg := range segments {
		if seg.isParam {
			return false
		}
	}
	return true
}

// patternShape builds the ambiguity key for a pattern: capture names
// are erased so /users/:id and /users/:name collide.
func patternShape(method string, segments []segment) string {
	var b strings.Builder
	b.WriteString(method)
	for _, seg := range segments {
		b.WriteByte('/')
		if seg.isParam {
			b.WriteByte(':')
		} else {
			b.WriteString(seg.literal)
		}
	}
	if len(segments) == 0 {
		b.WriteByte('/')
	}
	return b.String()
}

// normalizePath strips a trailing slash so /users and /users/ are the
// same route. The root path is left untouched.
func normalizePath(path string) string {
	if len(path) > 1 && strings.HasSuffix(path, "/") {
		return strings.TrimRight(path, "/")
	}
	if path == "" {
		return "/"
	}
	return path
}

// splitPath splits a normalized path into segments. The root path has
// no segments.
func splitPath(path string) []string {
	if path == "/" {
		return nil
	}
	return strings.Split(strings.TrimPrefix(path, "/"), "/")
}

// routeKey builds the cache and static lookup key.
func routeKey(method, path string) string {
	return method + " " + path
}
