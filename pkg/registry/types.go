package registry

import (
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// AuthorityRecord represents an immutable authority assertion in the registry.
// Records are the fundamental unit of state in Lodge - every claim of topic
// ownership and every supersede is represented as a record with complete
// provenance. Records for one topic form a version chain; the highest version
// is the topic's current head.
type AuthorityRecord struct {
	ID              string   `json:"id"`               // UUID - unique identifier for this record
	Topic           string   `json:"topic"`            // Topic slug this record asserts authority over
	Category        string   `json:"category"`         // Knowledge tree grouping (e.g. "general", "market")
	Version         int      `json:"version"`          // Incrementing version number per topic (starts at 1)
	Producer        string   `json:"producer"`         // Producer identity from lodge.yml
	Path            string   `json:"path"`             // Authoritative artifact path, relative to the knowledge root
	Description     string   `json:"description"`      // Scope description, input to overlap scoring on consults
	Supersedes      string   `json:"supersedes"`       // UUID of the prior head this record replaced ("" for version 1)
	SupersededPaths []string `json:"superseded_paths"` // Artifact paths replaced by this record (empty for plain claims)
	Reason          string   `json:"reason"`           // Free-text supersede rationale ("" for plain claims)
	CreatedAtMs     int64    `json:"created_at_ms"`    // Unix timestamp in milliseconds when record was created
}

// Directive is the outcome of a consultation. It tells the producer how to
// proceed with a proposed piece of work on a topic.
type Directive string

const (
	// DirectiveProceed indicates no coordination is needed; the producer may create new work
	DirectiveProceed Directive = "proceed"

	// DirectiveCoordinateRequired indicates another producer owns the topic; coordination is mandatory before writing
	DirectiveCoordinateRequired Directive = "coordinate_required"

	// DirectiveAvoidDuplication indicates the proposed scope is already covered; reference the existing artifact instead
	DirectiveAvoidDuplication Directive = "avoid_duplication"

	// DirectiveUpdateExisting indicates the producer already owns overlapping work and should version it forward
	DirectiveUpdateExisting Directive = "update_existing"
)

// DefaultCategory is used when a claim does not name a knowledge tree grouping.
const DefaultCategory = "general"

// slugPattern matches DNS-label style identifiers: lowercase alphanumeric and
// hyphens, no leading or trailing hyphen. Shared by topics, categories and
// producer names.
var slugPattern = regexp.MustCompile(`^[a-z0-9]([-a-z0-9]*[a-z0-9])?$`)

// maxSlugLength bounds topic, category and producer identifiers.
const maxSlugLength = 63

// ValidateSlug checks that s is a valid lodge identifier (topic, category or
// producer name).
func ValidateSlug(s string) error {
	if s == "" {
		return fmt.Errorf("identifier cannot be empty")
	}
	if len(s) > maxSlugLength {
		return fmt.Errorf("identifier too long: %d characters (max %d)", len(s), maxSlugLength)
	}
	if !slugPattern.MatchString(s) {
		return fmt.Errorf("invalid identifier %q: must be lowercase alphanumeric with hyphens, starting and ending with an alphanumeric character", s)
	}
	return nil
}

// ValidateRelPath checks that p is a safe artifact path: relative,
// forward-slash separated, already clean, and unable to escape the knowledge
// root.
func ValidateRelPath(p string) error {
	if p == "" {
		return fmt.Errorf("path cannot be empty")
	}
	if strings.Contains(p, "\\") {
		return fmt.Errorf("path %q must use forward slashes", p)
	}
	if path.IsAbs(p) {
		return fmt.Errorf("path %q must be relative to the knowledge root", p)
	}
	if cleaned := path.Clean(p); cleaned != p {
		return fmt.Errorf("path %q is not clean (did you mean %q?)", p, cleaned)
	}
	for _, segment := range strings.Split(p, "/") {
		if segment == ".." {
			return fmt.Errorf("path %q escapes the knowledge root", p)
		}
	}
	return nil
}

// Validate checks if the AuthorityRecord has valid field values.
// Returns an error if any validation fails.
func (r *AuthorityRecord) Validate() error {
	if !isValidUUID(r.ID) {
		return fmt.Errorf("invalid record ID: not a valid UUID")
	}

	if err := ValidateSlug(r.Topic); err != nil {
		return fmt.Errorf("invalid topic: %w", err)
	}

	if err := ValidateSlug(r.Category); err != nil {
		return fmt.Errorf("invalid category: %w", err)
	}

	if r.Version < 1 {
		return fmt.Errorf("invalid version: must be >= 1, got %d", r.Version)
	}

	if err := ValidateSlug(r.Producer); err != nil {
		return fmt.Errorf("invalid producer: %w", err)
	}

	if err := ValidateRelPath(r.Path); err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}

	if r.Description == "" {
		return fmt.Errorf("description cannot be empty")
	}

	// The chain invariant: version 1 starts a chain, every later version
	// must point at the record it replaced.
	if r.Version == 1 && r.Supersedes != "" {
		return fmt.Errorf("version 1 record cannot supersede another record")
	}
	if r.Version > 1 && !isValidUUID(r.Supersedes) {
		return fmt.Errorf("invalid supersedes: version %d record must reference a prior record UUID", r.Version)
	}

	for i, old := range r.SupersededPaths {
		if err := ValidateRelPath(old); err != nil {
			return fmt.Errorf("invalid superseded path at index %d: %w", i, err)
		}
	}

	return nil
}

// Validate checks if the Directive is a valid enum value.
func (d Directive) Validate() error {
	switch d {
	case DirectiveProceed, DirectiveCoordinateRequired,
		DirectiveAvoidDuplication, DirectiveUpdateExisting:
		return nil
	default:
		return fmt.Errorf("unknown directive: %q", d)
	}
}

// GrantsWrite reports whether a consultation outcome authorizes a later
// cross-producer claim or supersede on the consulted topic.
func (d Directive) GrantsWrite() bool {
	return d == DirectiveCoordinateRequired || d == DirectiveUpdateExisting
}

// isValidUUID checks if a string is a valid UUID format.
func isValidUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
