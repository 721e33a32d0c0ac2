// Package deeplink resolves inbound URLs against configured prefixes and
// parameterized route templates. Templates use :name segments for path
// parameters and match on equal segment counts only; there is no wildcard or
// variable-length matching.
package deeplink

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/navkit-dev/navkit/observability"
)

// Match is the structured result of one template hit. It lives for the
// duration of the synchronous redirect call and is not persisted.
type Match struct {
	// Template is the matched template's path portion, query string cut off.
	Template string
	// PathParams maps :name captures to their URL-decoded segment values.
	PathParams map[string]string
	// QueryParams holds the URL's query parameters, first value per key.
	QueryParams map[string]string
}

// Binding pairs a list of path templates with the redirect callback invoked
// on a match. Bindings are registered at construction and immutable after.
type Binding struct {
	Templates []string
	OnMatch   func(Match)
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithObserver overrides the default NoOpObserver.
func WithObserver(obs observability.Observer) Option {
	return func(r *Resolver) { r.observer = obs }
}

// WithContextCheck sets the probe consulted before invoking redirect
// callbacks. When it reports false the callback is skipped and logged
// instead of being invoked without a navigation context.
func WithContextCheck(check func() bool) Option {
	return func(r *Resolver) { r.contextCheck = check }
}

// Resolver matches URLs against registered bindings. Immutable after
// construction and safe for concurrent use.
type Resolver struct {
	prefixes     []string
	bindings     []Binding
	observer     observability.Observer
	contextCheck func() bool
}

// NewResolver validates the bindings and builds a Resolver. Every template
// string must be unique across all bindings; the first duplicate found makes
// construction fail with ErrDuplicateTemplate, since duplicate templates
// would make redirect resolution ambiguous.
func NewResolver(prefixes []string, bindings []Binding, opts ...Option) (*Resolver, error) {
	seen := make(map[string]struct{})
	for _, b := range bindings {
		for _, tmpl := range b.Templates {
			if _, dup := seen[tmpl]; dup {
				return nil, fmt.Errorf("%w: %s", ErrDuplicateTemplate, tmpl)
			}
			seen[tmpl] = struct{}{}
		}
	}

	r := &Resolver{
		prefixes: prefixes,
		bindings: bindings,
		observer: observability.NoOpObserver{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// resolution pairs a public Match with the binding callback that produced it.
type resolution struct {
	match   Match
	onMatch func(Match)
}

// Resolve matches rawURL against all bindings and returns every hit, in
// binding then template registration order. Matching does not short-circuit:
// a single URL may produce multiple matches. Returns ErrNoPrefix when
// prefixes are configured and none applies, and ErrBadURL when rawURL does
// not parse.
func (r *Resolver) Resolve(rawURL string) ([]Match, error) {
	resolutions, err := r.resolve(rawURL)
	if err != nil {
		return nil, err
	}

	matches := make([]Match, len(resolutions))
	for i, res := range resolutions {
		matches[i] = res.match
	}
	return matches, nil
}

// Open resolves rawURL and invokes each matching binding's redirect callback
// in order. Resolution failures and missing navigation context are logged,
// never returned; the returned matches describe what was found either way.
func (r *Resolver) Open(ctx context.Context, rawURL string) []Match {
	r.observer.OnEvent(ctx, observability.Event{
		Type:   EventOpen,
		Level:  observability.LevelVerbose,
		Time:   time.Now(),
		Scope:  "deeplink.Resolver",
		Fields: map[string]any{"url": rawURL},
	})

	resolutions, err := r.resolve(rawURL)
	if err != nil {
		r.observer.OnEvent(ctx, observability.Event{
			Type:  EventMiss,
			Level: observability.LevelWarning,
			Time:  time.Now(),
			Scope: "deeplink.Resolver",
			Fields: map[string]any{
				"url":   rawURL,
				"error": err.Error(),
			},
		})
		return nil
	}

	matches := make([]Match, 0, len(resolutions))
	for _, res := range resolutions {
		matches = append(matches, res.match)

		if r.contextCheck != nil && !r.contextCheck() {
			r.observer.OnEvent(ctx, observability.Event{
				Type:  EventSkip,
				Level: observability.LevelWarning,
				Time:  time.Now(),
				Scope: "deeplink.Resolver",
				Fields: map[string]any{
					"url":      rawURL,
					"template": res.match.Template,
				},
			})
			continue
		}

		r.observer.OnEvent(ctx, observability.Event{
			Type:  EventMatch,
			Level: observability.LevelVerbose,
			Time:  time.Now(),
			Scope: "deeplink.Resolver",
			Fields: map[string]any{
				"url":      rawURL,
				"template": res.match.Template,
			},
		})
		if res.onMatch != nil {
			res.onMatch(res.match)
		}
	}
	return matches
}

func (r *Resolver) resolve(rawURL string) ([]resolution, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadURL, err)
	}

	effective, query, err := r.effectivePath(rawURL, parsed)
	if err != nil {
		return nil, err
	}

	segments := splitSegments(effective)
	queryParams := firstValues(query)

	var resolutions []resolution
	for _, b := range r.bindings {
		for _, tmpl := range b.Templates {
			tmplPath, _, _ := strings.Cut(tmpl, "?")
			params, ok := matchTemplate(tmplPath, segments)
			if !ok {
				continue
			}
			resolutions = append(resolutions, resolution{
				match: Match{
					Template:    tmplPath,
					PathParams:  params,
					QueryParams: queryParams,
				},
				onMatch: b.OnMatch,
			})
		}
	}
	return resolutions, nil
}

// effectivePath determines the path to tokenize. With no prefixes configured
// the URL's own path is used directly. Otherwise prefixes are scanned in
// registration order: a prefix matching the raw URL string wins first (the
// scheme-style form, e.g. "myapp://"), then a prefix of the URL's path
// component (the path-style form). The first match wins; no match fails the
// resolution. Paths stay in escaped form so that literal segments compare
// as written and parameter captures decode exactly once.
func (r *Resolver) effectivePath(rawURL string, parsed *url.URL) (string, url.Values, error) {
	if len(r.prefixes) == 0 {
		return parsed.EscapedPath(), parsed.Query(), nil
	}

	for _, prefix := range r.prefixes {
		if strings.HasPrefix(rawURL, prefix) {
			rest, err := url.Parse(strings.TrimPrefix(rawURL, prefix))
			if err != nil {
				return "", nil, fmt.Errorf("%w: %v", ErrBadURL, err)
			}
			return rest.EscapedPath(), rest.Query(), nil
		}
		if path := parsed.EscapedPath(); strings.HasPrefix(path, prefix) {
			return strings.TrimPrefix(path, prefix), parsed.Query(), nil
		}
	}
	return "", nil, fmt.Errorf("%w: %s", ErrNoPrefix, rawURL)
}

// matchTemplate compares a template path against the input segments.
// Templates whose segment count differs never match. A :name segment always
// matches and captures the decoded input segment; literal segments compare
// raw and case-sensitive.
func matchTemplate(tmplPath string, segments []string) (map[string]string, bool) {
	tmplSegments := splitSegments(tmplPath)
	if len(tmplSegments) != len(segments) {
		return nil, false
	}

	params := make(map[string]string)
	for i, ts := range tmplSegments {
		if name, isParam := strings.CutPrefix(ts, ":"); isParam {
			params[name] = decodeSegment(segments[i])
			continue
		}
		if ts != segments[i] {
			return nil, false
		}
	}
	return params, true
}

// splitSegments tokenizes a path into its non-empty /-separated segments.
func splitSegments(path string) []string {
	parts := strings.Split(path, "/")
	segments := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			segments = append(segments, p)
		}
	}
	return segments
}

// decodeSegment unescapes a path segment, falling back to the raw value when
// the escaping is malformed.
func decodeSegment(seg string) string {
	decoded, err := url.PathUnescape(seg)
	if err != nil {
		return seg
	}
	return decoded
}

// firstValues flattens url.Values to its first value per key.
func firstValues(values url.Values) map[string]string {
	params := make(map[string]string, len(values))
	for k, vs := range values {
		if len(vs) > 0 {
			params[k] = vs[0]
		}
	}
	return params
}
