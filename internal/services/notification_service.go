// internal/services/notification_service.go
package services

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"html/template"
	"mime"
	"net/smtp"

	"github.com/sirupsen/logrus"

	"github.com/soundhaus/label-backend/internal/config"
	"github.com/soundhaus/label-backend/internal/models"
)

// NotificationService is the delivery adapter. The fulfillment pipeline
// treats it as best-effort: a failed send is logged and alerted on, never
// fatal to an already-paid order.
type NotificationService struct {
	config *config.Config
}

type EmailAttachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

type EmailTemplate struct {
	Subject string
	Body    string
}

func NewNotificationService(cfg *config.Config) *NotificationService {
	return &NotificationService{config: cfg}
}

// SendLicenseDelivery mails the license PDF plus time-limited download links
// for the purchased audio files.
func (s *NotificationService) SendLicenseDelivery(license *models.IssuedLicense, pdf []byte, downloadLinks map[string]string) error {
	tmpl := s.getEmailTemplate("license_delivery")

	data := map[string]interface{}{
		"BuyerName":     license.BuyerName,
		"BeatTitle":     license.BeatTitle,
		"LicenseNumber": license.LicenseNumber,
		"Tier":          license.Tier,
		"VerifyURL":     fmt.Sprintf("%s/verify-license/%s", s.config.Frontend.BaseURL, license.ID),
		"DownloadLinks": downloadLinks,
		"PlatformName":  s.config.License.PlatformName,
	}

	body, err := s.renderTemplate(tmpl.Body, data)
	if err != nil {
		return fmt.Errorf("failed to render email template: %w", err)
	}

	subject := fmt.Sprintf("Your %s license for \"%s\"", license.Tier, license.BeatTitle)
	attachments := []EmailAttachment{
		{
			Filename:    license.LicenseNumber + ".pdf",
			ContentType: "application/pdf",
			Data:        pdf,
		},
	}

	return s.sendEmail(license.BuyerEmail, subject, body, attachments)
}

// SendTicketDelivery mails one email per order with the combined PDF for all
// seats attached.
func (s *NotificationService) SendTicketDelivery(tickets []*models.Ticket, event *models.Event, pdf []byte) error {
	if len(tickets) == 0 {
		return fmt.Errorf("no tickets to deliver")
	}
	first := tickets[0]

	codes := make([]string, 0, len(tickets))
	for _, ticket := range tickets {
		codes = append(codes, ticket.TicketCode)
	}

	tmpl := s.getEmailTemplate("ticket_delivery")
	data := map[string]interface{}{
		"CustomerName": first.CustomerName,
		"EventName":    event.Name,
		"EventVenue":   event.Venue,
		"EventDate":    event.StartsAt.Format("Monday, January 2, 2006 at 15:04"),
		"Quantity":     len(tickets),
		"TicketCodes":  codes,
		"PlatformName": s.config.License.PlatformName,
	}

	body, err := s.renderTemplate(tmpl.Body, data)
	if err != nil {
		return fmt.Errorf("failed to render email template: %w", err)
	}

	subject := fmt.Sprintf("Your tickets for %s", event.Name)
	attachments := []EmailAttachment{
		{
			Filename:    "tickets.pdf",
			ContentType: "application/pdf",
			Data:        pdf,
		},
	}

	return s.sendEmail(first.CustomerEmail, subject, body, attachments)
}

// Helper methods

func (s *NotificationService) sendEmail(to, subject, body string, attachments []EmailAttachment) error {
	if s.config.Email.SMTPHost == "" {
		// Email not configured, just log
		logrus.WithFields(logrus.Fields{
			"to":          to,
			"subject":     subject,
			"attachments": len(attachments),
		}).Info("Email transport not configured, skipping delivery")
		return nil
	}

	msg, err := buildMIMEMessage(s.config.Email.FromName, s.config.Email.FromEmail, to, subject, body, attachments)
	if err != nil {
		return fmt.Errorf("failed to compose email: %w", err)
	}

	auth := smtp.PlainAuth("", s.config.Email.SMTPUsername, s.config.Email.SMTPPassword, s.config.Email.SMTPHost)
	addr := fmt.Sprintf("%s:%s", s.config.Email.SMTPHost, s.config.Email.SMTPPort)
	return smtp.SendMail(addr, auth, s.config.Email.FromEmail, []string{to}, msg)
}

func buildMIMEMessage(fromName, fromEmail, to, subject, htmlBody string, attachments []EmailAttachment) ([]byte, error) {
	const boundary = "soundhaus-mail-boundary"

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s <%s>\r\n", mime.QEncoding.Encode("utf-8", fromName), fromEmail)
	fmt.Fprintf(&buf, "To: %s\r\n", to)
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	buf.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=%q\r\n\r\n", boundary)

	// HTML part
	fmt.Fprintf(&buf, "--%s\r\n", boundary)
	buf.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n\r\n")
	buf.WriteString(htmlBody)
	buf.WriteString("\r\n")

	// Attachments, base64 in 76-char lines
	for _, attachment := range attachments {
		fmt.Fprintf(&buf, "--%s\r\n", boundary)
		fmt.Fprintf(&buf, "Content-Type: %s\r\n", attachment.ContentType)
		buf.WriteString("Content-Transfer-Encoding: base64\r\n")
		fmt.Fprintf(&buf, "Content-Disposition: attachment; filename=%q\r\n\r\n", attachment.Filename)

		encoded := base64.StdEncoding.EncodeToString(attachment.Data)
		for len(encoded) > 76 {
			buf.WriteString(encoded[:76])
			buf.WriteString("\r\n")
			encoded = encoded[76:]
		}
		buf.WriteString(encoded)
		buf.WriteString("\r\n")
	}

	fmt.Fprintf(&buf, "--%s--\r\n", boundary)
	return buf.Bytes(), nil
}

func (s *NotificationService) renderTemplate(templateStr string, data interface{}) (string, error) {
	tmpl, err := template.New("email").Parse(templateStr)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}

	return buf.String(), nil
}

func (s *NotificationService) getEmailTemplate(templateType string) EmailTemplate {
	templates := map[string]EmailTemplate{
		"license_delivery": {
			Subject: "Your beat license",
			Body: `
<!DOCTYPE html>
<html>
<body>
	<h2>Thank you for your purchase, {{.BuyerName}}!</h2>
	<p>Your <strong>{{.Tier}}</strong> license for "{{.BeatTitle}}" has been issued.</p>
	<p>License number: <strong>{{.LicenseNumber}}</strong></p>
	<p>Your signed license agreement is attached. Your files:</p>
	<ul>
	{{range $format, $url := .DownloadLinks}}
		<li><a href="{{$url}}">Download {{$format}}</a></li>
	{{end}}
	</ul>
	<p>Download links expire after 7 days; you can re-request them at any time.</p>
	<p>Verify this license at any time: <a href="{{.VerifyURL}}">{{.VerifyURL}}</a></p>
	<p>Best regards,<br>{{.PlatformName}}</p>
</body>
</html>`,
		},
		"ticket_delivery": {
			Subject: "Your tickets",
			Body: `
<!DOCTYPE html>
<html>
<body>
	<h2>See you there, {{.CustomerName}}!</h2>
	<p>Your {{.Quantity}} ticket(s) for <strong>{{.EventName}}</strong> are attached.</p>
	<p>{{.EventVenue}} · {{.EventDate}}</p>
	<ul>
	{{range .TicketCodes}}
		<li>{{.}}</li>
	{{end}}
	</ul>
	<p>Each ticket has its own QR code and is valid for one entry.</p>
	<p>Best regards,<br>{{.PlatformName}}</p>
</body>
</html>`,
		},
	}

	if tmpl, exists := templates[templateType]; exists {
		return tmpl
	}

	// Default template
	return EmailTemplate{
		Subject: "Notification",
		Body:    "<p>{{.Message}}</p>",
	}
}
