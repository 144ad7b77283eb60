package model

import "time"

// Credential is a shared streaming-service login handed out to many
// subscribers. PublishedAt is the only input to credential aging and is
// never recomputed after creation.
type Credential struct {
	ID          string
	Service     string
	AccountID   string
	Secret      string
	PublishedAt time.Time
	Visible     bool
}
