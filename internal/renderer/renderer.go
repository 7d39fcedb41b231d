// Package renderer defines the contract with the external certificate
// renderer and builds the HTML documents it is invoked with.
package renderer

import (
	"context"
	"fmt"
	"html/template"
	"strings"

	"github.com/waynedevilliers/my-culture-app-enhanced-sub000/internal/domain"
)

// Renderer converts a certificate HTML document into the requested
// binary format (pdf or png). The rendering engine is an external
// collaborator; implementations wrap whatever backend the deployment
// uses.
type Renderer interface {
	Render(ctx context.Context, html string, format string) ([]byte, error)
}

// certificateTemplate is the default document layout. The platform's
// template catalog is out of scope here; on-demand regeneration only
// needs a well-formed document carrying the certificate fields.
var certificateTemplate = template.Must(template.New("certificate").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body>
  <div class="certificate">
    <h1>{{.Title}}</h1>
    <p class="recipient">{{.RecipientName}}</p>
    <p class="description">{{.Description}}</p>
    <p class="issued">Issued {{.IssuedDate}} by {{.IssuedFrom}}</p>
  </div>
</body>
</html>
`))

// BuildHTML fills the certificate template for one recipient. Template
// execution escapes every field, so recipient- or organization-supplied
// text cannot inject markup.
func BuildHTML(cert *domain.Certificate, recipient *domain.Recipient) (string, error) {
	data := struct {
		Title         string
		RecipientName string
		Description   string
		IssuedDate    string
		IssuedFrom    string
	}{
		Title:         cert.Title,
		RecipientName: recipient.Name,
		Description:   cert.Description,
		IssuedDate:    cert.IssuedDate.Format("2 January 2006"),
		IssuedFrom:    cert.IssuedFrom,
	}

	var sb strings.Builder
	if err := certificateTemplate.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrRenderFailed, err)
	}

	return sb.String(), nil
}
