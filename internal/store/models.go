package store

import "time"

// Access policies for a greeting.
const (
	AccessPublic  = "public"
	AccessPrivate = "private"
)

type User struct {
	ID          string
	DisplayName string
	Email       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Greeting is the persisted authored unit. Markup and Text together
// form the content pair and are always written together.
type Greeting struct {
	ID                string
	Title             string
	Markup            string
	Text              string
	AuthorID          string
	AccessType        string
	AccessCode        string // set iff AccessType == private
	NotificationEmail string // set iff AccessType == private
	CreatedAt         time.Time
	UpdatedAt         time.Time

	// Joined for view responses; empty means no display name set.
	AuthorName string
}

// GreetingPolicy is the access metadata fetched before any content.
type GreetingPolicy struct {
	ID         string
	AccessType string
}

// MediaRef records ownership of an uploaded blob. GreetingID is nil
// until the owning greeting's markup first references the URL.
type MediaRef struct {
	ID         string
	AuthorID   string
	GreetingID *string
	Kind       string // image | video
	ObjectPath string
	URL        string
	CreatedAt  time.Time
}

// ViewGrant marks a viewer session as having passed the access gate
// for one greeting.
type ViewGrant struct {
	Token      string
	GreetingID string
	ExpiresAt  time.Time
}
