// internal/services/pdf_service.go
package services

import (
	"fmt"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/code"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/page"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	mcfg "github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"

	"github.com/soundhaus/label-backend/internal/config"
	"github.com/soundhaus/label-backend/internal/models"
)

// PDFService renders license documents and ticket bundles. Layout is
// deterministic and QR generation is local; nothing here touches the network.
type PDFService struct {
	config *config.Config
}

const ticketTerms = "This ticket admits one person and is valid only for the event printed above. " +
	"Entry is granted on first scan of the QR code; duplicated or resold codes will be refused. " +
	"No re-entry after validation. The organizer may refuse entry for safety reasons."

func NewPDFService(cfg *config.Config) *PDFService {
	return &PDFService{config: cfg}
}

// RenderLicensePDF produces the legal document for an issued license. The
// QR encodes the public verification URL; the hash fragment lets a reader
// check the record by hand.
func (s *PDFService) RenderLicensePDF(license *models.IssuedLicense) ([]byte, error) {
	cfg := mcfg.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(14,
		text.NewCol(12, "BEAT LICENSE AGREEMENT", props.Text{
			Size:  18,
			Style: fontstyle.Bold,
			Align: align.Center,
		}),
	)

	m.AddRow(10,
		text.NewCol(12, fmt.Sprintf("License %s  ·  Tier: %s", license.LicenseNumber, license.Tier), props.Text{
			Size:  11,
			Align: align.Center,
		}),
	)

	// Parties
	m.AddRow(26,
		col.New(6).Add(
			text.New("Licensor (Producer)", props.Text{Style: fontstyle.Bold, Size: 10}),
			text.New(s.config.License.PlatformName, props.Text{Top: 5, Size: 10}),
		),
		col.New(6).Add(
			text.New("Licensee", props.Text{Style: fontstyle.Bold, Size: 10}),
			text.New(license.BuyerName, props.Text{Top: 5, Size: 10}),
			text.New(license.BuyerEmail, props.Text{Top: 10, Size: 10}),
		),
	)

	m.AddRow(18,
		col.New(12).Add(
			text.New("Licensed Work", props.Text{Style: fontstyle.Bold, Size: 10}),
			text.New(fmt.Sprintf("\"%s\"  ·  %d BPM  ·  Key of %s",
				license.BeatTitle, license.BeatBPM, license.BeatKey), props.Text{Top: 5, Size: 10}),
			text.New(fmt.Sprintf("Issued %s for %s",
				license.IssuedAt.Format("January 2, 2006"),
				formatAmount(license.AmountTotal, license.Currency)), props.Text{Top: 10, Size: 9}),
		),
	)

	m.AddRow(16,
		text.NewCol(12, "1. Ownership. The Producer retains full ownership of the underlying composition "+
			"and master recording. This agreement grants usage rights only; no copyright is transferred.",
			props.Text{Size: 9}),
	)

	m.AddRow(16,
		text.NewCol(12, "2. Grant of Rights. Subject to the limits below, the Licensee may record, distribute "+
			"and publicly perform one new work incorporating the Licensed Work.",
			props.Text{Size: 9}),
	)

	// Limits table
	m.AddRow(8,
		text.NewCol(8, "Usage Limit", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(4, "Granted", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)

	limits := license.LimitsSnapshot
	m.AddRow(7,
		text.NewCol(8, "Audio streams", props.Text{Size: 9}),
		text.NewCol(4, formatCap(limits, "stream_cap"), props.Text{Size: 9, Align: align.Right}),
	)
	m.AddRow(7,
		text.NewCol(8, "Music videos", props.Text{Size: 9}),
		text.NewCol(4, formatCap(limits, "video_cap"), props.Text{Size: 9, Align: align.Right}),
	)
	m.AddRow(7,
		text.NewCol(8, "Physical copies", props.Text{Size: 9}),
		text.NewCol(4, formatCap(limits, "physical_copy_cap"), props.Text{Size: 9, Align: align.Right}),
	)
	m.AddRow(7,
		text.NewCol(8, "Content ID registration", props.Text{Size: 9}),
		text.NewCol(4, formatBool(limits, "content_id_allowed"), props.Text{Size: 9, Align: align.Right}),
	)
	m.AddRow(7,
		text.NewCol(8, "Live performance rights", props.Text{Size: 9}),
		text.NewCol(4, formatBool(limits, "performance_rights"), props.Text{Size: 9, Align: align.Right}),
	)
	m.AddRow(7,
		text.NewCol(8, "Radio/TV broadcast rights", props.Text{Size: 9}),
		text.NewCol(4, formatBool(limits, "broadcast_rights"), props.Text{Size: 9, Align: align.Right}),
	)

	m.AddRow(14,
		text.NewCol(12, fmt.Sprintf("3. Publishing Split. Producer %s%% / Licensee %s%% of publishing royalties on the new work.",
			snapshotString(limits, "producer_split"), snapshotString(limits, "licensee_split")),
			props.Text{Size: 9}),
	)

	m.AddRow(14,
		text.NewCol(12, fmt.Sprintf("4. Credit. All releases must credit the producer as: %s.",
			snapshotString(limits, "credit_line")), props.Text{Size: 9}),
	)

	m.AddRow(14,
		text.NewCol(12, fmt.Sprintf("5. Jurisdiction. This agreement is governed by the laws of %s.",
			snapshotString(limits, "jurisdiction")), props.Text{Size: 9}),
	)

	// Verification block
	verifyURL := fmt.Sprintf("%s/verify-license/%s", s.config.Frontend.BaseURL, license.ID)
	m.AddRow(34,
		code.NewQrCol(3, verifyURL, props.Rect{Center: true, Percent: 90}),
		col.New(9).Add(
			text.New("Verification", props.Text{Style: fontstyle.Bold, Size: 9}),
			text.New(verifyURL, props.Text{Top: 5, Size: 8}),
			text.New("Document fingerprint (SHA-256):", props.Text{Top: 11, Size: 8}),
			text.New(license.DocumentHash, props.Text{Top: 15, Size: 7}),
		),
	)

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRenderFailed, err)
	}

	return doc.GetBytes(), nil
}

// RenderTicketPDF renders a single ticket for on-demand re-download.
func (s *PDFService) RenderTicketPDF(ticket *models.Ticket, event *models.Event) ([]byte, error) {
	return s.renderTicketPages([]*models.Ticket{ticket}, event)
}

// RenderCombinedTicketsPDF renders the whole order, one page per seat.
func (s *PDFService) RenderCombinedTicketsPDF(tickets []*models.Ticket, event *models.Event) ([]byte, error) {
	if len(tickets) == 0 {
		return nil, fmt.Errorf("%w: no tickets to render", ErrRenderFailed)
	}
	return s.renderTicketPages(tickets, event)
}

func (s *PDFService) renderTicketPages(tickets []*models.Ticket, event *models.Event) ([]byte, error) {
	cfg := mcfg.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Ticket {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	for _, ticket := range tickets {
		p := page.New()

		p.Add(
			row.New(14).Add(
				text.NewCol(12, event.Name, props.Text{
					Size:  18,
					Style: fontstyle.Bold,
					Align: align.Center,
				}),
			),
			row.New(10).Add(
				text.NewCol(12, fmt.Sprintf("%s · %s", event.Venue, event.City), props.Text{
					Size:  11,
					Align: align.Center,
				}),
			),
			row.New(10).Add(
				text.NewCol(12, event.StartsAt.Format("Monday, January 2, 2006 at 15:04"), props.Text{
					Size:  11,
					Align: align.Center,
				}),
			),
			row.New(60).Add(
				col.New(3),
				code.NewQrCol(6, s.validationURL(ticket), props.Rect{Center: true, Percent: 85}),
				col.New(3),
			),
			row.New(10).Add(
				text.NewCol(12, "Ticket Code: "+ticket.TicketCode, props.Text{
					Size:  13,
					Style: fontstyle.Bold,
					Align: align.Center,
				}),
			),
			row.New(8).Add(
				text.NewCol(12, "Validation ID: "+ticket.ValidationCode, props.Text{
					Size:  8,
					Align: align.Center,
				}),
			),
			row.New(16).Add(
				col.New(6).Add(
					text.New("Ticket holder", props.Text{Style: fontstyle.Bold, Size: 9}),
					text.New(ticket.CustomerName, props.Text{Top: 5, Size: 9}),
					text.New(ticket.CustomerEmail, props.Text{Top: 10, Size: 9}),
				),
				col.New(6).Add(
					text.New("Order", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
					text.New(fmt.Sprintf("Seat %d of %d", ticket.TicketNumber, ticket.PurchaseQuantity),
						props.Text{Top: 5, Size: 9, Align: align.Right}),
					text.New("Order total: "+formatAmount(ticket.TotalAmount, ticket.Currency),
						props.Text{Top: 10, Size: 9, Align: align.Right}),
				),
			),
			row.New(20).Add(
				text.NewCol(12, ticketTerms, props.Text{Size: 7}),
			),
		)

		m.AddPages(p)
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRenderFailed, err)
	}

	return doc.GetBytes(), nil
}

func (s *PDFService) validationURL(ticket *models.Ticket) string {
	return fmt.Sprintf("%s/ticket/%s", s.config.Frontend.BaseURL, ticket.ValidationCode)
}

func formatAmount(minor int64, currency string) string {
	return fmt.Sprintf("%.2f %s", float64(minor)/100, currency)
}

// Snapshot values come back from JSONB as float64 or bool.
func formatCap(limits models.JSONB, key string) string {
	value, ok := limits[key]
	if !ok {
		return "—"
	}

	var limit int64
	switch v := value.(type) {
	case float64:
		limit = int64(v)
	case int64:
		limit = v
	case int:
		limit = int64(v)
	default:
		return fmt.Sprintf("%v", v)
	}

	if limit == 0 {
		return "Unlimited"
	}
	return fmt.Sprintf("%d", limit)
}

func formatBool(limits models.JSONB, key string) string {
	if granted, ok := limits[key].(bool); ok && granted {
		return "Yes"
	}
	return "No"
}

func snapshotString(limits models.JSONB, key string) string {
	value, ok := limits[key]
	if !ok {
		return ""
	}
	if f, ok := value.(float64); ok {
		return fmt.Sprintf("%.0f", f)
	}
	return fmt.Sprintf("%v", value)
}
