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

const resendDefaultURL = "https://api.resend.com/emails"

// ResendProvider implements email sending via Resend API
type ResendProvider struct {
	apiKey     string
	fromEmail  string
	fromName   string
	endpoint   string
	httpClient *http.Client
}

// NewResendProvider creates a new Resend email provider. An empty endpoint
// uses the public API.
func NewResendProvider(apiKey, fromEmail, fromName, endpoint string) *ResendProvider {
	if endpoint == "" {
		endpoint = resendDefaultURL
	}
	return &ResendProvider{
		apiKey:     apiKey,
		fromEmail:  fromEmail,
		fromName:   fromName,
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

type resendEmailRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html,omitempty"`
	Text    string   `json:"text,omitempty"`
}

// SendEmail sends an email via Resend API
func (p *ResendProvider) SendEmail(ctx context.Context, to, subject, htmlBody string) error {
	fromAddress := p.fromEmail
	if p.fromName != "" {
		fromAddress = fmt.Sprintf("%s <%s>", p.fromName, p.fromEmail)
	}

	reqBody := resendEmailRequest{
		From:    fromAddress,
		To:      []string{to},
		Subject: subject,
		HTML:    htmlBody,
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
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("resend API error (status %d): %s", resp.StatusCode, string(body))
	}

	return nil
}

// GetProviderName returns the provider name
func (p *ResendProvider) GetProviderName() string {
	return "resend"
}
