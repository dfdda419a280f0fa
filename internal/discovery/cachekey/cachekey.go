// Package cachekey derives stable, collision-resistant cache keys from
// query shapes. Derivation is a total function: same logical query, same
// key, regardless of field order or numeric vs string representation.
package cachekey

import (
	"fmt"
	"hash/fnv"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Deriver builds namespaced cache keys under a fixed root prefix.
type Deriver struct {
	prefix string
}

// New creates a Deriver. The prefix becomes the first key segment, e.g.
// "heurekka:search:anon:1a2b3c4d".
func New(prefix string) *Deriver {
	return &Deriver{prefix: prefix}
}

// Prefix returns the root key prefix.
func (d *Deriver) Prefix() string {
	return d.prefix
}

// Namespace returns the key prefix for a whole namespace, used for bulk
// invalidation.
func (d *Deriver) Namespace(namespace string) string {
	return d.prefix + ":" + namespace
}

// Derive maps a query shape to a bounded key. identityClass is the
// auth/anon tag for namespaces where caller identity affects results;
// pass "" for identity-independent namespaces (clusters, autocomplete).
// Never returns an error: any value it cannot canonicalize degrades to
// its string form.
func (d *Deriver) Derive(namespace, identityClass string, shape map[string]interface{}) string {
	segments := []string{d.prefix, namespace}
	if identityClass != "" {
		segments = append(segments, identityClass)
	}
	segments = append(segments, hash(canonicalize(shape)))
	return strings.Join(segments, ":")
}

// RoundCoord rounds a coordinate to 3 decimal places (~110m) so
// near-duplicate viewports collapse to one cache entry.
func RoundCoord(v float64) float64 {
	return math.Round(v*1000) / 1000
}

// FloorZoom floors a fractional zoom level to an integer before it
// enters a key.
func FloorZoom(zoom float64) int {
	return int(math.Floor(zoom))
}

// hash applies a 32-bit FNV-1a over the canonical string to bound the
// key length.
func hash(canonical string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(canonical))
	return strconv.FormatUint(uint64(h.Sum32()), 16)
}

// canonicalize serializes a value deterministically: object keys sorted
// alphabetically, array elements sorted by their own canonical form,
// numbers and numeric strings collapsed to one representation.
func canonicalize(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case bool:
		if val {
			return "true"
		}
		return "false"
	case string:
		// Type stability: "3" and 3 are the same logical value.
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return formatNumber(f)
		}
		return val
	case int:
		return formatNumber(float64(val))
	case int32:
		return formatNumber(float64(val))
	case int64:
		return formatNumber(float64(val))
	case float32:
		return formatNumber(float64(val))
	case float64:
		return formatNumber(val)
	case []interface{}:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			parts = append(parts, canonicalize(item))
		}
		sort.Strings(parts)
		return "[" + strings.Join(parts, ",") + "]"
	case []string:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			parts = append(parts, canonicalize(item))
		}
		sort.Strings(parts)
		return "[" + strings.Join(parts, ",") + "]"
	case []int:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			parts = append(parts, canonicalize(item))
		}
		sort.Strings(parts)
		return "[" + strings.Join(parts, ",") + "]"
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+"="+canonicalize(val[k]))
		}
		return "{" + strings.Join(parts, ",") + "}"
	default:
		// Unknown types keep their Go rendering so distinct values never
		// collapse into one key.
		return fmt.Sprintf("%v", val)
	}
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
