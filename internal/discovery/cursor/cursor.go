// Package cursor encodes and decodes the opaque pagination marker used
// by the filtered-search strategy. The position is a row offset; decode
// is best-effort and never fails, so stale or tampered cursors restart
// pagination instead of breaking it.
package cursor

import "strconv"

// maxCursorLen bounds accepted cursors. Anything longer is treated as
// invalid rather than parsed.
const maxCursorLen = 100

// Encode returns the cursor for a row offset. Negative offsets clamp to 0.
func Encode(offset int) string {
	if offset < 0 {
		offset = 0
	}
	return strconv.Itoa(offset)
}

// Decode returns the row offset a cursor points at. Empty, oversized,
// non-numeric, or negative cursors all decode to offset 0.
func Decode(cursor string) int {
	if cursor == "" || len(cursor) > maxCursorLen {
		return 0
	}
	offset, err := strconv.Atoi(cursor)
	if err != nil || offset < 0 {
		return 0
	}
	return offset
}
