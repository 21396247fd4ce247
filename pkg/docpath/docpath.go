// Package docpath provides compiled path expressions for reading and writing
// nested map/slice documents. Paths are parsed once at configuration load so
// the per-call cost of Get/Set is a plain walk over pre-split segments.
//
// Grammar: dot-separated bare keys (`loan.amount`), zero-based numeric
// indices in brackets (`borrowers[0].name`), and quoted bracket keys for
// characters that are illegal in a bare identifier (`meta['loan:id']`).
package docpath

import (
	"fmt"
	"strconv"
	"strings"
)

type segmentKind int

const (
	segmentKey segmentKind = iota
	segmentIndex
)

type segment struct {
	kind  segmentKind
	key   string
	index int
}

// Path is a compiled path expression. The zero value is an empty path; use
// Parse to construct one. Path values are immutable and safe to share.
type Path struct {
	raw      string
	segments []segment
}

// Parse compiles a path expression. A malformed expression is a configuration
// error and should abort loading; Parse is never called on the hot path.
func Parse(expr string) (Path, error) {
	trimmed := strings.TrimSpace(expr)
	if trimmed == "" {
		return Path{}, fmt.Errorf("docpath: empty path expression")
	}

	var segments []segment
	i := 0
	expectKey := true

	for i < len(trimmed) {
		ch := trimmed[i]
		switch {
		case ch == '.':
			if expectKey {
				return Path{}, fmt.Errorf("docpath: %q: unexpected '.' at offset %d", trimmed, i)
			}
			i++
			expectKey = true
		case ch == '[':
			seg, next, err := parseBracket(trimmed, i)
			if err != nil {
				return Path{}, err
			}
			segments = append(segments, seg)
			i = next
			expectKey = false
		default:
			start := i
			for i < len(trimmed) && trimmed[i] != '.' && trimmed[i] != '[' {
				i++
			}
			key := trimmed[start:i]
			if key == "" {
				return Path{}, fmt.Errorf("docpath: %q: empty segment at offset %d", trimmed, start)
			}
			segments = append(segments, segment{kind: segmentKey, key: key})
			expectKey = false
		}
	}
	if expectKey {
		return Path{}, fmt.Errorf("docpath: %q: trailing '.'", trimmed)
	}
	if len(segments) == 0 {
		return Path{}, fmt.Errorf("docpath: %q: no segments", trimmed)
	}

	return Path{raw: trimmed, segments: segments}, nil
}

// MustParse is a Parse that panics, intended for tests and package literals.
func MustParse(expr string) Path {
	p, err := Parse(expr)
	if err != nil {
		panic(err)
	}
	return p
}

func parseBracket(expr string, start int) (segment, int, error) {
	// start points at '['
	i := start + 1
	if i >= len(expr) {
		return segment{}, 0, fmt.Errorf("docpath: %q: unterminated '['", expr)
	}

	if expr[i] == '\'' || expr[i] == '"' {
		quote := expr[i]
		i++
		keyStart := i
		for i < len(expr) && expr[i] != quote {
			i++
		}
		if i >= len(expr) {
			return segment{}, 0, fmt.Errorf("docpath: %q: unterminated quoted key", expr)
		}
		key := expr[keyStart:i]
		i++ // closing quote
		if i >= len(expr) || expr[i] != ']' {
			return segment{}, 0, fmt.Errorf("docpath: %q: expected ']' after quoted key", expr)
		}
		if key == "" {
			return segment{}, 0, fmt.Errorf("docpath: %q: empty quoted key", expr)
		}
		return segment{kind: segmentKey, key: key}, i + 1, nil
	}

	keyStart := i
	for i < len(expr) && expr[i] != ']' {
		i++
	}
	if i >= len(expr) {
		return segment{}, 0, fmt.Errorf("docpath: %q: unterminated '['", expr)
	}
	raw := expr[keyStart:i]
	index, err := strconv.Atoi(raw)
	if err != nil || index < 0 {
		return segment{}, 0, fmt.Errorf("docpath: %q: invalid index %q", expr, raw)
	}
	return segment{kind: segmentIndex, index: index}, i + 1, nil
}

// String returns the original expression.
func (p Path) String() string { return p.raw }

// IsZero reports whether the path was never parsed.
func (p Path) IsZero() bool { return len(p.segments) == 0 }

// Get resolves the path against doc. The second return is false when any
// intermediate node is missing or has an incompatible shape; callers must
// treat that as a normal "absent" outcome, never as an error.
func (p Path) Get(doc any) (any, bool) {
	if p.IsZero() {
		return nil, false
	}
	current := doc
	for _, seg := range p.segments {
		switch seg.kind {
		case segmentKey:
			m, ok := asMap(current)
			if !ok {
				return nil, false
			}
			next, ok := m[seg.key]
			if !ok {
				return nil, false
			}
			current = next
		case segmentIndex:
			s, ok := current.([]any)
			if !ok {
				return nil, false
			}
			if seg.index >= len(s) {
				return nil, false
			}
			current = s[seg.index]
		}
	}
	return current, true
}

// Set writes value at the path inside root, creating intermediate maps, or
// slices when the next segment is a numeric index. Slices grow as needed;
// gaps are filled with nil. Set fails only when an existing intermediate node
// has a shape the path cannot descend into.
func (p Path) Set(root map[string]any, value any) error {
	if p.IsZero() {
		return fmt.Errorf("docpath: Set on zero path")
	}
	if root == nil {
		return fmt.Errorf("docpath: %q: nil root document", p.raw)
	}

	first := p.segments[0]
	if first.kind != segmentKey {
		return fmt.Errorf("docpath: %q: root segment must be a key", p.raw)
	}
	if len(p.segments) == 1 {
		root[first.key] = value
		return nil
	}

	child, err := descend(root[first.key], p.segments[1], p.raw)
	if err != nil {
		return err
	}
	root[first.key] = child
	return setInto(child, p.segments[1:], value, p.raw)
}

func setInto(container any, segs []segment, value any, raw string) error {
	seg := segs[0]

	if len(segs) == 1 {
		return assign(container, seg, value, raw)
	}

	next, err := child(container, seg, raw)
	if err != nil {
		return err
	}
	grown, err := descend(next, segs[1], raw)
	if err != nil {
		return err
	}
	if err := assign(container, seg, grown, raw); err != nil {
		return err
	}
	return setInto(grown, segs[1:], value, raw)
}

// descend returns an existing container compatible with the upcoming segment,
// or a fresh one when the node is absent. Growing a slice allocates a new
// backing array, so the returned value must be re-assigned into the parent.
func descend(existing any, upcoming segment, raw string) (any, error) {
	switch upcoming.kind {
	case segmentIndex:
		s, ok := existing.([]any)
		if existing != nil && !ok {
			return nil, fmt.Errorf("docpath: %q: cannot index into %T", raw, existing)
		}
		for len(s) <= upcoming.index {
			s = append(s, nil)
		}
		return s, nil
	default:
		if existing == nil {
			return map[string]any{}, nil
		}
		m, ok := asMap(existing)
		if !ok {
			return nil, fmt.Errorf("docpath: %q: cannot key into %T", raw, existing)
		}
		return m, nil
	}
}

func child(container any, seg segment, raw string) (any, error) {
	switch seg.kind {
	case segmentKey:
		m, ok := asMap(container)
		if !ok {
			return nil, fmt.Errorf("docpath: %q: cannot key into %T", raw, container)
		}
		return m[seg.key], nil
	default:
		s, ok := container.([]any)
		if !ok {
			return nil, fmt.Errorf("docpath: %q: cannot index into %T", raw, container)
		}
		if seg.index >= len(s) {
			return nil, nil
		}
		return s[seg.index], nil
	}
}

func assign(container any, seg segment, value any, raw string) error {
	switch seg.kind {
	case segmentKey:
		m, ok := asMap(container)
		if !ok {
			return fmt.Errorf("docpath: %q: cannot key into %T", raw, container)
		}
		m[seg.key] = value
		return nil
	default:
		s, ok := container.([]any)
		if !ok {
			return fmt.Errorf("docpath: %q: cannot index into %T", raw, container)
		}
		if seg.index >= len(s) {
			return fmt.Errorf("docpath: %q: index %d out of range", raw, seg.index)
		}
		s[seg.index] = value
		return nil
	}
}

func asMap(value any) (map[string]any, bool) {
	switch typed := value.(type) {
	case map[string]any:
		return typed, true
	default:
		return nil, false
	}
}
