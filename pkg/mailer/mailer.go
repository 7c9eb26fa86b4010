package mailer

import (
	"fmt"
	"strings"

	"golang-stock-digest/internal/digest/dto"
	"golang-stock-digest/pkg/logger"

	"gopkg.in/gomail.v2"
)

// Config holds the SMTP relay configuration.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

// Mailer delivers digest emails. Delivery is attempted at most once; a
// failure is reported as false, never as an error.
type Mailer interface {
	SendDigestEmail(toAddress string, content *dto.DigestContent, dateLabel string) bool
}

type smtpMailer struct {
	cfg    Config
	logger *logger.Logger
}

// New creates an SMTP-backed Mailer.
func New(cfg Config, log *logger.Logger) Mailer {
	return &smtpMailer{cfg: cfg, logger: log}
}

// SendDigestEmail renders the digest as a plain-text body and sends it.
// Missing credentials or an SMTP error are logged and reported as false.
func (m *smtpMailer) SendDigestEmail(toAddress string, content *dto.DigestContent, dateLabel string) bool {
	if m.cfg.User == "" || m.cfg.Password == "" {
		m.logger.Warn("SMTP credentials not configured, skipping email delivery",
			logger.StringField("to", toAddress))
		return false
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.cfg.From)
	msg.SetHeader("To", toAddress)
	msg.SetHeader("Subject", fmt.Sprintf("📈 您的每日美股新闻摘要 - %s", dateLabel))
	msg.SetBody("text/plain; charset=UTF-8", renderBody(content, dateLabel))

	dialer := gomail.NewDialer(m.cfg.Host, m.cfg.Port, m.cfg.User, m.cfg.Password)
	if err := dialer.DialAndSend(msg); err != nil {
		m.logger.Error("Failed to send digest email",
			logger.ErrorField(err), logger.StringField("to", toAddress))
		return false
	}

	m.logger.Info("Digest email sent", logger.StringField("to", toAddress))
	return true
}

func renderBody(content *dto.DigestContent, dateLabel string) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("StockDaily Digest — %s\n\n", dateLabel))

	for ticker, summaries := range content.CompanyNews {
		if len(summaries) == 0 {
			continue
		}
		summary := summaries[0]

		b.WriteString(fmt.Sprintf("== %s ==\n%s\n", ticker, summary.Summary))

		refs := dto.CitedIndices(summary.Summary, len(summary.Items))
		if len(refs) == 0 && len(summary.Items) > 0 {
			// Nothing cited, show the first few items instead.
			for n := 1; n <= len(summary.Items) && n <= 3; n++ {
				refs = append(refs, n)
			}
		}
		if len(refs) > 0 {
			b.WriteString("References:\n")
			for _, n := range refs {
				item := summary.Items[n-1]
				b.WriteString(fmt.Sprintf("  [%d] %s (%s) %s\n", n, item.Title, item.Source, item.URL))
			}
		}
		b.WriteString("\n")
	}

	if len(content.CompanyNews) == 0 {
		b.WriteString("暂无公司新闻\n")
	}

	return b.String()
}
