package email

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// InvitationData fills the invitation and direct-add templates.
type InvitationData struct {
	EntityName string
	EntityType string
	Role       string
	InviteURL  string
}

// SendInvitation renders and sends the invitation email with its accept link.
func SendInvitation(ctx context.Context, p Provider, to string, data InvitationData) error {
	subject := fmt.Sprintf("You're invited to join %s", data.EntityName)
	return sendTemplate(ctx, p, to, subject, "invitation.html", data)
}

// SendDirectAdd notifies a user that they were added to an entity directly.
func SendDirectAdd(ctx context.Context, p Provider, to string, data InvitationData) error {
	subject := fmt.Sprintf("You've been added to %s", data.EntityName)
	return sendTemplate(ctx, p, to, subject, "direct_add.html", data)
}

func sendTemplate(ctx context.Context, p Provider, to, subject, name string, data InvitationData) error {
	var body bytes.Buffer
	if err := templates.ExecuteTemplate(&body, name, data); err != nil {
		return fmt.Errorf("failed to execute template %s: %w", name, err)
	}
	return p.Send(ctx, []string{to}, subject, body.String())
}
