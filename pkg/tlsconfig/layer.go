package tlsconfig

import (
	"strings"
)

// Mode selects which side of the handshake a context serves.
type Mode string

// Supported modes.
const (
	ModeClient Mode = "client"
	ModeServer Mode = "server"
)

// Layer is one tier of TLS options. Values may be scalars, lists, or
// nested groups (map[string]any). Later layers overwrite earlier ones
// key by key; nested groups merge recursively rather than replacing
// wholesale.
type Layer map[string]any

// merge applies overlay onto base key by key. Group values merge
// recursively; overlay values are cloned so source layers are never
// aliased by the merged result.
func merge(base Layer, overlay Layer) {
	for key, value := range overlay {
		if group, ok := asGroup(value); ok {
			if existing, ok := asGroup(base[key]); ok {
				merged := cloneGroup(existing)
				mergeGroup(merged, group)
				base[key] = merged
				continue
			}
			base[key] = cloneGroup(group)
			continue
		}
		base[key] = cloneValue(value)
	}
}

func mergeGroup(base, overlay map[string]any) {
	for key, value := range overlay {
		if group, ok := asGroup(value); ok {
			if existing, ok := asGroup(base[key]); ok {
				merged := cloneGroup(existing)
				mergeGroup(merged, group)
				base[key] = merged
				continue
			}
			base[key] = cloneGroup(group)
			continue
		}
		base[key] = cloneValue(value)
	}
}

func asGroup(v any) (map[string]any, bool) {
	switch g := v.(type) {
	case map[string]any:
		return g, true
	case Layer:
		return map[string]any(g), true
	default:
		return nil, false
	}
}

func cloneGroup(g map[string]any) map[string]any {
	out := make(map[string]any, len(g))
	for k, v := range g {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return cloneGroup(val)
	case Layer:
		return cloneGroup(val)
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = cloneValue(e)
		}
		return out
	case []string:
		out := make([]string, len(val))
		copy(out, val)
		return out
	default:
		return v
	}
}

// ResolvedConfig is the fully merged configuration a context was built
// from, after path resolution. It is returned alongside the context
// (and alongside failures) so callers can inspect exactly what was
// applied.
type ResolvedConfig struct {
	// Host is the identity the context was built for.
	Host string

	// Mode is the handshake side.
	Mode Mode

	// Options holds the merged option map. Unknown keys are carried
	// here untouched even though the standard provider ignores them.
	Options Layer
}

// String returns the value for key when it is a string.
func (rc *ResolvedConfig) String(key string) (string, bool) {
	s, ok := rc.Options[key].(string)
	return s, ok
}

// Int returns the value for key when it is an integer.
func (rc *ResolvedConfig) Int(key string) (int, bool) {
	switch v := rc.Options[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

// Group returns the nested group for key, or nil.
func (rc *ResolvedConfig) Group(key string) map[string]any {
	g, _ := asGroup(rc.Options[key])
	return g
}

// StringList returns the value for key as a list of strings. A single
// string splits on ":" so OpenSSL-style colon-joined cipher strings
// work unchanged.
func (rc *ResolvedConfig) StringList(key string) []string {
	switch v := rc.Options[key].(type) {
	case string:
		return splitColonList(v)
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// VerifyFlags parses the "verify" option into a flag set. The value
// may be a single string or a list ("none", "peer", "client_once",
// "fail_if_no_peer_cert").
func (rc *ResolvedConfig) VerifyFlags() map[string]bool {
	flags := make(map[string]bool)
	for _, flag := range rc.StringList("verify") {
		flags[strings.ToLower(flag)] = true
	}
	return flags
}

// Password returns the configured key password. The value may be a
// literal string or a callback supplying one.
func (rc *ResolvedConfig) Password() string {
	switch v := rc.Options["password"].(type) {
	case string:
		return v
	case func() string:
		return v()
	default:
		return ""
	}
}

func splitColonList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ":")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
