package listing

import (
	"fmt"
	"time"
)

// Listing is a marketplace item: seller metadata, an image reference and a
// description. Listings are never updated or deleted once created.
type Listing struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Size        string `json:"size"`
	AgeGroup    string `json:"age_group"`
	Condition   string `json:"condition"`
	Notes       string `json:"notes"`
	Description string `json:"description"`
	ImageURL    string `json:"image_url"`
	// CreatedAt is a textual timestamp (RFC 3339, UTC).
	CreatedAt string `json:"created_at,omitempty"`
	Seeded    bool   `json:"seeded,omitempty"`
}

// FormatTimestamp renders t the way CreatedAt is exposed to clients.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// FallbackDescription is the templated description used whenever no manual
// or generated text is available.
func FallbackDescription(title, size, notes string) string {
	return fmt.Sprintf("%s — Size %s. %s", title, size, notes)
}

// DescriptionPrompt builds the generation prompt for a kids clothing item.
func DescriptionPrompt(title, size, ageGroup, condition, notes string) string {
	return fmt.Sprintf(
		"Write a 1-2 sentence friendly marketplace listing description for a kids clothing item. "+
			"Title: %s. Size: %s. Age group: %s. Seller condition: %s. Notes: %s.",
		title, size, ageGroup, condition, notes,
	)
}
