// Package secure implements the primitives behind unguessable certificate
// file paths: URL-safe slugs, cryptographically random tokens, the
// structured storage-path format, and the externally-facing access URLs.
package secure

import (
	"regexp"
	"strings"
)

// MaxSlugLength is the maximum length of a generated slug.
const MaxSlugLength = 50

var (
	slugStripPattern     = regexp.MustCompile(`[^a-z0-9\s-]`)
	slugSpacePattern     = regexp.MustCompile(`\s+`)
	slugHyphenRunPattern = regexp.MustCompile(`-+`)
)

// Slugify converts free-form text (organization names, certificate titles,
// recipient names) into a filesystem-safe slug. Anything outside
// [a-z0-9-] is stripped or collapsed, so traversal sequences, markup, and
// shell metacharacters never survive into a path.
//
// Example:
//
//	Slugify("Test Organization")  => "test-organization"
//	Slugify("../../../etc/passwd") => "etcpasswd"
//
// The result always matches ^[a-z0-9-]*$ and is at most MaxSlugLength
// characters.
func Slugify(text string) string {
	s := strings.ToLower(text)
	s = slugStripPattern.ReplaceAllString(s, "")
	s = slugSpacePattern.ReplaceAllString(s, "-")
	s = slugHyphenRunPattern.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")

	if len(s) > MaxSlugLength {
		s = s[:MaxSlugLength]
	}

	return s
}
