package domain

import "time"

// Certificate is a certificate record as read from the data layer.
// The secure-access service only consumes these fields; the full
// relational model lives with the content platform.
type Certificate struct {
	// ID is the unique certificate identifier.
	ID int64

	// OrganizationID is the owning organization.
	OrganizationID int64

	// Title is the certificate title shown on the rendered document.
	Title string

	// Description is the free-form body text.
	Description string

	// IssuedDate is the date printed on the certificate.
	IssuedDate time.Time

	// IssuedFrom names the issuing body.
	IssuedFrom string

	// TemplateID selects the rendering template.
	TemplateID int64

	// Recipients are the people this certificate was issued to.
	Recipients []Recipient
}

// Recipient is a single certificate recipient.
type Recipient struct {
	// ID is the unique recipient identifier.
	ID int64

	// CertificateID is the certificate this recipient belongs to.
	CertificateID int64

	// Name is the recipient's display name.
	Name string

	// Email is the delivery address, if any.
	Email string
}

// Organization is the owning entity for certificates and their files.
type Organization struct {
	// ID is the unique organization identifier.
	ID int64

	// Name is the organization's display name. Folder slugs are derived
	// from it at generation time only; lookups key on ID alone.
	Name string
}

// Recipient returns the recipient with the given ID, or nil if the
// certificate was not issued to them.
func (c *Certificate) Recipient(recipientID int64) *Recipient {
	for i := range c.Recipients {
		if c.Recipients[i].ID == recipientID {
			return &c.Recipients[i]
		}
	}
	return nil
}
