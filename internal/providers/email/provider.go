package email

import "context"

type Provider interface {
	// Configured reports whether an outbound email channel is set up.
	Configured() bool
	Send(ctx context.Context, to []string, subject string, htmlBody string) error
}

// NoOpProvider drops every message. Used when no SMTP host is configured.
type NoOpProvider struct{}

func (p *NoOpProvider) Configured() bool { return false }

func (p *NoOpProvider) Send(ctx context.Context, to []string, subject string, htmlBody string) error {
	return nil
}
