package onboarding

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/url"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/medimart/platform/pkg/logger"
	"github.com/medimart/platform/pkg/types"
)

// AcknowledgmentGenerator renders the acceptance document handed to a lab
// after its application is registered.
type AcknowledgmentGenerator interface {
	Generate(ctx context.Context, app *types.LabApplication) ([]byte, error)
}

// ChromePDFGenerator renders the acknowledgment HTML in headless Chrome and
// prints it to PDF.
type ChromePDFGenerator struct {
	tmpl   *template.Template
	logger *logger.Logger
}

// NewChromePDFGenerator creates the generator with the built-in template.
func NewChromePDFGenerator(log *logger.Logger) (*ChromePDFGenerator, error) {
	tmpl, err := template.New("acknowledgment").Parse(acknowledgmentHTML)
	if err != nil {
		return nil, fmt.Errorf("failed to parse acknowledgment template: %w", err)
	}
	return &ChromePDFGenerator{tmpl: tmpl, logger: log}, nil
}

// Generate renders the application into a PDF acknowledgment.
func (g *ChromePDFGenerator) Generate(ctx context.Context, app *types.LabApplication) ([]byte, error) {
	var html bytes.Buffer
	if err := g.tmpl.Execute(&html, acknowledgmentData(app)); err != nil {
		return nil, fmt.Errorf("failed to render acknowledgment: %w", err)
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx,
		append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-gpu", true),
		)...,
	)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	browserCtx, cancelTimeout := context.WithTimeout(browserCtx, 30*time.Second)
	defer cancelTimeout()

	var pdf []byte
	start := time.Now()
	err := chromedp.Run(browserCtx,
		chromedp.Navigate("data:text/html,"+url.PathEscape(html.String())),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			pdf, _, err = page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(8.27).
				WithPaperHeight(11.69).
				Do(ctx)
			return err
		}),
	)
	g.logger.ExternalCall("chrome", "print_to_pdf", err == nil, time.Since(start).Milliseconds())
	if err != nil {
		return nil, fmt.Errorf("failed to print acknowledgment pdf: %w", err)
	}
	return pdf, nil
}

type acknowledgmentView struct {
	ApplicationID string
	LabName       string
	OwnerName     string
	LicenseNumber string
	Email         string
	Phone         string
	Address       string
	Services      []types.ServiceItem
	SubmittedAt   string
}

func acknowledgmentData(app *types.LabApplication) acknowledgmentView {
	return acknowledgmentView{
		ApplicationID: app.ID,
		LabName:       app.LabName,
		OwnerName:     app.OwnerName,
		LicenseNumber: app.LicenseNumber,
		Email:         app.Email,
		Phone:         app.Phone,
		Address:       app.Address,
		Services:      app.Services,
		SubmittedAt:   app.CreatedAt.Format("02 Jan 2006 15:04 MST"),
	}
}

const acknowledgmentHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<style>
  body { font-family: Arial, sans-serif; margin: 40px; color: #222; }
  h1 { font-size: 20px; border-bottom: 2px solid #0a7; padding-bottom: 8px; }
  .ref { color: #555; font-size: 12px; margin-bottom: 24px; }
  table { width: 100%; border-collapse: collapse; margin-top: 16px; }
  th, td { text-align: left; padding: 6px 8px; border-bottom: 1px solid #ddd; font-size: 13px; }
  th { background: #f5f5f5; }
  .footer { margin-top: 40px; font-size: 11px; color: #777; }
</style>
</head>
<body>
  <h1>Lab Registration Acknowledgment</h1>
  <div class="ref">Application ID: {{.ApplicationID}} &middot; Submitted: {{.SubmittedAt}}</div>
  <table>
    <tr><th>Lab Name</th><td>{{.LabName}}</td></tr>
    <tr><th>Owner</th><td>{{.OwnerName}}</td></tr>
    <tr><th>License Number</th><td>{{.LicenseNumber}}</td></tr>
    <tr><th>Email</th><td>{{.Email}}</td></tr>
    <tr><th>Phone</th><td>{{.Phone}}</td></tr>
    <tr><th>Address</th><td>{{.Address}}</td></tr>
  </table>
  {{if .Services}}
  <table>
    <tr><th>Service</th><th>Price</th></tr>
    {{range .Services}}<tr><td>{{.Name}}</td><td>{{printf "%.2f" .Price}}</td></tr>{{end}}
  </table>
  {{end}}
  <div class="footer">
    This acknowledgment confirms receipt of your application. Our team will
    review the submitted documents and contact you on the registered email.
  </div>
</body>
</html>`
