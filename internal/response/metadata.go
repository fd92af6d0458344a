// Package response assembles outward-facing metadata and paging.
package response

import (
	"time"

	"github.com/rpggio/interview/internal/sources"
)

// Attempt is a tier's outcome as reported to callers.
type Attempt struct {
	Source  string `json:"source"`
	Outcome string `json:"outcome"`
	Reason  string `json:"reason,omitempty"`
}

// Metadata describes where an answer came from and what it cost.
type Metadata struct {
	Source         string    `json:"source"`
	FreshnessAgeMs int64     `json:"freshness_age_ms"`
	Truncated      bool      `json:"truncated"`
	NextPageToken  string    `json:"next_page_token,omitempty"`
	CostUnits      int       `json:"cost_units"`
	Degraded       bool      `json:"degraded"`
	Attempts       []Attempt `json:"attempts,omitempty"`
}

// Page describes the slice of results returned.
type Page struct {
	// Offset is the index of the first returned result.
	Offset int
	// Returned is the number of results returned.
	Returned int
	// More is set when results exist past this page.
	More bool
	// Capped is set when the source stopped scanning early.
	Capped bool
}

// Assemble builds metadata for a resolution. now stamps the continuation cursor.
func Assemble(res *sources.Resolution, page Page, now time.Time) Metadata {
	md := Metadata{
		Source:         string(res.Source),
		FreshnessAgeMs: res.Staleness.Milliseconds(),
		Truncated:      page.More || page.Capped,
		CostUnits:      res.CostUnits,
		Degraded:       res.Degraded,
		Attempts:       attempts(res.Attempts),
	}
	if md.FreshnessAgeMs < 0 {
		md.FreshnessAgeMs = 0
	}
	if page.More && res.Source.SupportsContinuation() {
		md.NextPageToken = EncodeCursor(Cursor{
			Tier:   string(res.Source),
			Offset: page.Offset + page.Returned,
			AsOf:   now.Add(-res.Staleness).UnixMilli(),
		})
	}
	return md
}

func attempts(in []sources.Attempt) []Attempt {
	if len(in) == 0 {
		return nil
	}
	out := make([]Attempt, len(in))
	for i, a := range in {
		out[i] = Attempt{Source: string(a.Tier), Outcome: string(a.Outcome), Reason: a.Reason}
	}
	return out
}

// Paginate returns items[offset:offset+limit] and whether more remain.
func Paginate[T any](items []T, offset, limit int) ([]T, Page) {
	if offset < 0 {
		offset = 0
	}
	if offset > len(items) {
		offset = len(items)
	}
	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	page := items[offset:end]
	return page, Page{Offset: offset, Returned: len(page), More: end < len(items)}
}
