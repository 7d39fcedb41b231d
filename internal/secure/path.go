package secure

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"unicode/utf8"
)

// File extensions a certificate can be rendered to.
const (
	ExtPDF  = "pdf"
	ExtPNG  = "png"
	ExtHTML = "html"
)

// maxNameLength bounds the free-form name inputs to the path builder,
// counted in runes so multibyte names get the full budget.
const maxNameLength = 255

// ErrInvalidParams indicates a path-builder input failed validation.
// The wrapped message names the offending field.
var ErrInvalidParams = errors.New("invalid secure path parameters")

// filePathPattern is the single authoritative grammar for secure file
// paths. It must stay byte-for-byte consistent with BuildFilePath's
// output format; any drift between the two breaks every existing link.
var filePathPattern = regexp.MustCompile(`^(.+)-org(\d+)/certificate-(.+)-cert(\d+)-([a-f0-9]+)\.(pdf|png|html)$`)

// FilePathParams carries the identity fields a secure file path is built
// from. All fields are required.
type FilePathParams struct {
	OrganizationID   int64
	OrganizationName string
	CertificateID    int64
	CertificateTitle string
	RecipientID      int64
	RecipientName    string
	FileExtension    string
}

// Validate checks every field and reports the first violation. Name
// fields must survive slugification with at least one character left;
// a path built around an empty slug would not parse back.
func (p FilePathParams) Validate() error {
	if p.OrganizationID <= 0 {
		return fmt.Errorf("%w: organization_id must be a positive integer", ErrInvalidParams)
	}
	if err := validateName("organization_name", p.OrganizationName); err != nil {
		return err
	}
	if p.CertificateID <= 0 {
		return fmt.Errorf("%w: certificate_id must be a positive integer", ErrInvalidParams)
	}
	if err := validateName("certificate_title", p.CertificateTitle); err != nil {
		return err
	}
	if p.RecipientID <= 0 {
		return fmt.Errorf("%w: recipient_id must be a positive integer", ErrInvalidParams)
	}
	if err := validateName("recipient_name", p.RecipientName); err != nil {
		return err
	}
	if !IsAllowedExtension(p.FileExtension) {
		return fmt.Errorf("%w: file_extension must be one of pdf, png, html", ErrInvalidParams)
	}
	return nil
}

func validateName(field, value string) error {
	if value == "" || utf8.RuneCountInString(value) > maxNameLength {
		return fmt.Errorf("%w: %s must be 1-%d characters", ErrInvalidParams, field, maxNameLength)
	}
	if Slugify(value) == "" {
		return fmt.Errorf("%w: %s must contain at least one letter or digit", ErrInvalidParams, field)
	}
	return nil
}

// IsAllowedExtension reports whether ext is a supported certificate
// file extension.
func IsAllowedExtension(ext string) bool {
	switch ext {
	case ExtPDF, ExtPNG, ExtHTML:
		return true
	}
	return false
}

// PathComponents is the identity recovered from a secure file path.
type PathComponents struct {
	OrganizationSlug string
	OrganizationID   int64
	RecipientPart    string
	CertificateID    int64
	SecureToken      string
	FileExtension    string
}

// OrgFolder returns the organization directory name for a fixed
// organization identity. It is stable across calls for the same
// organization, which is what keeps all of an organization's files under
// one directory.
func OrgFolder(organizationID int64, organizationName string) string {
	return fmt.Sprintf("%s-org%d", Slugify(organizationName), organizationID)
}

// OrgFolderSuffix returns the suffix that identifies an organization's
// folder regardless of the slug it was created with. Lookups must match
// on this suffix alone: if an organization is renamed, folders minted
// under the old name keep the old slug, and re-deriving the slug from
// the current name would miss them.
func OrgFolderSuffix(organizationID int64) string {
	return fmt.Sprintf("-org%d", organizationID)
}

// BuildFilePath mints a fresh secure storage path for one certificate
// file:
//
//	{orgSlug}-org{orgID}/certificate-{recipientSlug}-{certSlug}-cert{certID}-{token}.{ext}
//
// The embedded token is freshly random on every call, so two calls with
// identical inputs produce different paths; only the organization folder
// is stable. The result contains no traversal sequences and no character
// outside [a-z0-9./-].
func BuildFilePath(p FilePathParams) (string, error) {
	if err := p.Validate(); err != nil {
		return "", err
	}

	token, err := GeneratePathToken()
	if err != nil {
		return "", err
	}

	fileName := fmt.Sprintf("certificate-%s-%s-cert%d-%s.%s",
		Slugify(p.RecipientName), Slugify(p.CertificateTitle), p.CertificateID, token, p.FileExtension)

	return OrgFolder(p.OrganizationID, p.OrganizationName) + "/" + fileName, nil
}

// BuildFilePathWithToken composes a secure path around an existing
// token instead of minting a fresh one. On-demand regeneration uses it
// so the rebuilt file lands where the already-issued URL's token will
// find it.
func BuildFilePathWithToken(p FilePathParams, token string) (string, error) {
	if err := p.Validate(); err != nil {
		return "", err
	}
	if !IsValidToken(token) {
		return "", fmt.Errorf("%w: secure_token must be %d lowercase hex characters", ErrInvalidParams, PathTokenHexLength)
	}

	fileName := fmt.Sprintf("certificate-%s-%s-cert%d-%s.%s",
		Slugify(p.RecipientName), Slugify(p.CertificateTitle), p.CertificateID, token, p.FileExtension)

	return OrgFolder(p.OrganizationID, p.OrganizationName) + "/" + fileName, nil
}

// CertificatePaths holds one secure path per supported rendering of a
// certificate.
type CertificatePaths struct {
	PDF  string
	PNG  string
	HTML string
}

// BuildCertificatePaths builds paths for all three renderings of a
// certificate. The organization folder is shared; each file gets an
// independent random token, so guessing one file's token grants no
// advantage for the others.
func BuildCertificatePaths(p FilePathParams) (*CertificatePaths, error) {
	paths := &CertificatePaths{}
	for _, target := range []struct {
		ext  string
		dest *string
	}{
		{ExtPDF, &paths.PDF},
		{ExtPNG, &paths.PNG},
		{ExtHTML, &paths.HTML},
	} {
		p.FileExtension = target.ext
		path, err := BuildFilePath(p)
		if err != nil {
			return nil, err
		}
		*target.dest = path
	}
	return paths, nil
}

// ParseFilePath recovers the identity fields embedded in a secure file
// path. It returns nil on any deviation from the path grammar: missing
// org suffix, missing token, unknown extension. Parsing is the inverse
// of BuildFilePath; a built path always parses back to the identity it
// was built from.
func ParseFilePath(path string) *PathComponents {
	m := filePathPattern.FindStringSubmatch(path)
	if m == nil {
		return nil
	}

	orgID, err := strconv.ParseInt(m[2], 10, 64)
	if err != nil {
		return nil
	}
	certID, err := strconv.ParseInt(m[4], 10, 64)
	if err != nil {
		return nil
	}

	return &PathComponents{
		OrganizationSlug: m[1],
		OrganizationID:   orgID,
		RecipientPart:    m[3],
		CertificateID:    certID,
		SecureToken:      m[5],
		FileExtension:    m[6],
	}
}
