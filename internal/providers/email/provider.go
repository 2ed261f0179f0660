package email

import "context"

const TemplateInviteMember = "invite_member"

type Provider interface {
	Send(ctx context.Context, to []string, subject string, htmlBody string) error
	SendTemplate(ctx context.Context, to []string, subject string, templateName string, data any) error
}

// InviteData fills the invite_member template.
type InviteData struct {
	Username       string
	InvitedBy      string
	InvitedByEmail string
	OrgName        string
	Role           string
	InviteLink     string
}

// NoOpProvider drops every message. It is used when SMTP is not configured.
type NoOpProvider struct{}

func (p *NoOpProvider) Send(ctx context.Context, to []string, subject string, htmlBody string) error {
	return nil
}

func (p *NoOpProvider) SendTemplate(ctx context.Context, to []string, subject string, templateName string, data any) error {
	return nil
}
