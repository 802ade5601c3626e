package settings

import "fmt"

// Warning reasons reported by the sanitizer.
const (
	ReasonInvalidColor = "invalid_color"
	ReasonInvalidURL   = "invalid_url"
	ReasonInvalidSlug  = "invalid_slug"
	ReasonSlugModified = "slug_modified"
	ReasonInvalidID    = "invalid_id"
	ReasonInvalidImage = "invalid_image"
	ReasonRequired     = "required"
	ReasonUnknownField = "unknown_field"
)

// FieldWarning is a non-fatal notice that a submitted field was not stored
// as submitted.
type FieldWarning struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
	// Fallback is the value stored instead, when one was substituted.
	Fallback string `json:"fallback,omitempty"`
	// Original and Final are set for renumbered slugs and dropped entries.
	Original string `json:"original,omitempty"`
	Final    string `json:"final,omitempty"`
}

// String renders the warning as "reason:field".
func (w FieldWarning) String() string {
	return w.Reason + ":" + w.Field
}

// Message is the admin-facing text of the warning.
func (w FieldWarning) Message() string {
	switch w.Reason {
	case ReasonInvalidColor:
		return fmt.Sprintf("Invalid color format for %s. Reset to default.", w.Field)
	case ReasonSlugModified:
		return fmt.Sprintf("URL slug %q was already taken. Modified to %q.", w.Original, w.Final)
	case ReasonInvalidSlug:
		return fmt.Sprintf("URL slug for %s was empty after cleanup. Reset to %q.", w.Field, w.Fallback)
	case ReasonInvalidURL:
		return fmt.Sprintf("Invalid URL %q in %s. The entry was dropped.", w.Original, w.Field)
	case ReasonInvalidID:
		return fmt.Sprintf("Ignored ids in %s that do not reference existing content: %s.", w.Field, w.Original)
	case ReasonInvalidImage:
		return fmt.Sprintf("Image %s for %s does not exist. Cleared.", w.Original, w.Field)
	case ReasonRequired:
		return fmt.Sprintf("%s cannot be empty. Reset to default.", w.Field)
	case ReasonUnknownField:
		return fmt.Sprintf("Unknown setting %s was ignored.", w.Field)
	}
	return w.String()
}
