package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const brevoDefaultURL = "https://api.brevo.com/v3/smtp/email"

// BrevoProvider implements email sending via Brevo (formerly Sendinblue)
type BrevoProvider struct {
	apiKey     string
	fromEmail  string
	fromName   string
	endpoint   string
	httpClient *http.Client
}

// NewBrevoProvider creates a new Brevo email provider. An empty endpoint
// uses the public API.
func NewBrevoProvider(apiKey, fromEmail, fromName, endpoint string) *BrevoProvider {
	if endpoint == "" {
		endpoint = brevoDefaultURL
	}
	return &BrevoProvider{
		apiKey:     apiKey,
		fromEmail:  fromEmail,
		fromName:   fromName,
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

type brevoEmailRequest struct {
	Sender      brevoContact   `json:"sender"`
	To          []brevoContact `json:"to"`
	Subject     string         `json:"subject"`
	HTMLContent string         `json:"htmlContent,omitempty"`
	TextContent string         `json:"textContent,omitempty"`
}

type brevoContact struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// SendEmail sends an email via Brevo API
func (p *BrevoProvider) SendEmail(ctx context.Context, to, subject, htmlBody string) error {
	reqBody := brevoEmailRequest{
		Sender: brevoContact{
			Email: p.fromEmail,
			Name:  p.fromName,
		},
		To: []brevoContact{
			{Email: to},
		},
		Subject:     subject,
		HTMLContent: htmlBody,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("brevo API error (status %d): %s", resp.StatusCode, string(body))
	}

	return nil
}

// GetProviderName returns the provider name
func (p *BrevoProvider) GetProviderName() string {
	return "brevo"
}
