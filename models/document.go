package models

import "time"

// RawDocument is one fetched page. It lives only for the duration of a
// single extraction attempt.
type RawDocument struct {
	URL            string    `json:"url"`
	RequestedURL   string    `json:"requested_url"`
	Source         string    `json:"source"`
	Body           string    `json:"-"`
	CollectionHint bool      `json:"collection_hint"`
	FetchedAt      time.Time `json:"fetched_at"`
}
