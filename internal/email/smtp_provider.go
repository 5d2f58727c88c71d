package email

import (
	"crypto/tls"
	"errors"
	"fmt"

	"gopkg.in/gomail.v2"
)

var ErrNotConfigured = errors.New("smtp provider is not configured")

// SMTPProvider отправляет письма через gomail
type SMTPProvider struct {
	config    *SMTPConfig
	templates TemplateRenderer
	dialer    *gomail.Dialer
}

func NewSMTPProvider(config *SMTPConfig, templates TemplateRenderer) (*SMTPProvider, error) {
	if config == nil {
		config = DefaultConfig()
	}
	p := &SMTPProvider{config: config, templates: templates}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	d := gomail.NewDialer(config.Host, config.Port, config.Username, config.Password)
	if !config.UseTLS {
		d.TLSConfig = &tls.Config{ServerName: config.Host, InsecureSkipVerify: true}
	}
	p.dialer = d
	return p, nil
}

func (p *SMTPProvider) Send(email *Email) error {
	if email == nil || len(email.To) == 0 {
		return errors.New("email has no recipients")
	}

	m := gomail.NewMessage()
	from := email.From
	if from == "" {
		from = p.config.FromEmail
	}
	if p.config.FromName != "" {
		m.SetAddressHeader("From", from, p.config.FromName)
	} else {
		m.SetHeader("From", from)
	}
	m.SetHeader("To", email.To...)
	m.SetHeader("Subject", email.Subject)

	switch {
	case email.HTMLBody != "" && email.Body != "":
		m.SetBody("text/plain", email.Body)
		m.AddAlternative("text/html", email.HTMLBody)
	case email.HTMLBody != "":
		m.SetBody("text/html", email.HTMLBody)
	default:
		m.SetBody("text/plain", email.Body)
	}

	if err := p.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

func (p *SMTPProvider) SendTemplate(to []string, subject string, templateName string, data TemplateData) error {
	if p.templates == nil {
		return fmt.Errorf("template renderer is not configured")
	}
	body, err := p.templates.Render(templateName, data)
	if err != nil {
		return err
	}
	return p.Send(&Email{To: to, Subject: subject, HTMLBody: body})
}

func (p *SMTPProvider) Validate() error {
	if p.config.Host == "" || p.config.Port == 0 {
		return ErrNotConfigured
	}
	if p.config.FromEmail == "" {
		return fmt.Errorf("from email is required")
	}
	return nil
}

func (p *SMTPProvider) Close() error { return nil }

// NoopProvider используется когда SMTP не настроен
type NoopProvider struct{}

func NewNoopProvider() *NoopProvider { return &NoopProvider{} }

func (NoopProvider) Send(*Email) error                                          { return nil }
func (NoopProvider) SendTemplate([]string, string, string, TemplateData) error { return nil }
func (NoopProvider) Validate() error                                            { return nil }
func (NoopProvider) Close() error                                               { return nil }
