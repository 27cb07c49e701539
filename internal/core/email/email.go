package email

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var ErrNoProvider = errors.New("no email provider configured")

// Provider defines the interface for email providers
type Provider interface {
	SendEmail(ctx context.Context, to, subject, htmlBody string) error
	GetProviderName() string
}

// Options configures a provider built by NewProvider
type Options struct {
	APIKey    string
	FromEmail string
	FromName  string
	BaseURL   string
}

// NewProvider builds the provider registered under name ("brevo" or "resend")
func NewProvider(name string, opts Options) (Provider, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("%w: missing api key for %q", ErrNoProvider, name)
	}
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "brevo":
		return NewBrevoProvider(opts.APIKey, opts.FromEmail, opts.FromName, opts.BaseURL), nil
	case "resend":
		return NewResendProvider(opts.APIKey, opts.FromEmail, opts.FromName, opts.BaseURL), nil
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrNoProvider, name)
	}
}

// Service wraps the email provider. It satisfies the send_email action's
// sender port.
type Service struct {
	provider Provider
}

// NewService creates a new email service with the specified provider.
// provider may be nil; sends then fail with ErrNoProvider.
func NewService(provider Provider) *Service {
	return &Service{
		provider: provider,
	}
}

// SendEmail sends body to a single recipient. Plain text bodies are wrapped
// in the notification layout.
func (s *Service) SendEmail(ctx context.Context, to, subject, body string) error {
	if s.provider == nil {
		return ErrNoProvider
	}
	if !looksLikeHTML(body) {
		body = buildHTMLFromTemplate(map[string]interface{}{
			"title":   subject,
			"message": body,
		})
	}
	return s.provider.SendEmail(ctx, to, subject, body)
}

// SendTemplateEmail sends an email rendered from template data
func (s *Service) SendTemplateEmail(ctx context.Context, to, subject string, templateData map[string]interface{}) error {
	if s.provider == nil {
		return ErrNoProvider
	}
	return s.provider.SendEmail(ctx, to, subject, buildHTMLFromTemplate(templateData))
}

// GetProviderName returns the name of the current provider
func (s *Service) GetProviderName() string {
	if s.provider == nil {
		return "none"
	}
	return s.provider.GetProviderName()
}

func looksLikeHTML(body string) bool {
	trimmed := strings.TrimSpace(body)
	return strings.HasPrefix(trimmed, "<") && strings.HasSuffix(trimmed, ">")
}
