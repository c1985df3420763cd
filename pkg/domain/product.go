package domain

import "time"

// Product is a reference entity feedback items belong to
type Product struct {
	ID          int64
	Name        string
	Description string
	CreatedAt   time.Time
}

// Source describes where a feedback item came from (webhook channel, manual
// entry, bulk load). Webhook sources carry a shared-secret token.
type Source struct {
	ID        int64
	ProductID int64
	Type      string
	Name      string
	Token     string
	Enabled   bool
	CreatedAt time.Time
}
