// Package spotlight implements the windowed grid engine: it pages sample
// metadata in from an external data source, lays visible items out into
// aspect-ratio packed rows, and manages renderer lifecycle (create, reuse,
// disable, destroy) as cells scroll through the viewport.
package spotlight

import (
	"context"
	"fmt"

	"github.com/gridlook/gridlook/label"
)

// Item is one grid entry. The engine treats ID as the stable identity and
// never mutates the attached sample.
type Item struct {
	ID          string
	AspectRatio float64
	Sample      *label.Sample
	URLs        map[string]string
}

// Page is one fetched slice of the collection. Next and Previous are opaque
// continuation tokens; an empty Next marks the end of the collection.
type Page struct {
	Items    []Item
	Next     string
	Previous string
}

// DataSource is the external pagination collaborator.
type DataSource interface {
	Get(ctx context.Context, token string) (*Page, error)
}

// FetchError wraps a failed page fetch. The already-resident window stays
// visible when a fetch fails.
type FetchError struct {
	Token string
	Err   error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("spotlight: fetch page %q: %v", e.Token, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }
