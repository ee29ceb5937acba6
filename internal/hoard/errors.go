package hoard

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrConflict is returned by Store.Insert when the content hash is already
// recorded. A coordinator that loses a concurrent insert race receives this
// and falls back to the duplicate path instead of failing the request.
var ErrConflict = errors.New("content hash already recorded")

// PlacementError reports link buckets that could not be written during index
// placement. It is a degraded outcome, not a fatal one: the StoredFile record
// remains valid and a repair re-run of Place can complete the missing links.
type PlacementError struct {
	Failures map[string]error // link path -> cause
}

func (e *PlacementError) Error() string {
	paths := make([]string, 0, len(e.Failures))
	for p := range e.Failures {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return fmt.Sprintf("index placement failed for %d link(s): %s",
		len(paths), strings.Join(paths, ", "))
}
