package email

import (
	"context"
	"net/smtp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender_InviteMember(t *testing.T) {
	body, err := Render(TemplateInviteMember, InviteData{
		Username:   "dana@example.com",
		InvitedBy:  "Alice Smith",
		OrgName:    "Acme",
		Role:       "EMPLOYEE",
		InviteLink: "http://localhost:3000/accept-invite?token=abc",
	})
	require.NoError(t, err)
	assert.Contains(t, body, "Alice Smith")
	assert.Contains(t, body, "<strong>Acme</strong>")
	assert.Contains(t, body, "accept-invite?token=abc")
}

func TestRender_UnknownTemplate(t *testing.T) {
	_, err := Render("missing", nil)
	assert.Error(t, err)
}

func TestSMTPProvider_SendTemplate(t *testing.T) {
	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte

	p := NewSMTP(Config{Host: "mail.local", Port: 2525, From: "no-reply@appraisal.local"})
	p.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		return nil
	}

	err := p.SendTemplate(context.Background(), []string{"dana@example.com"}, "Join Acme", TemplateInviteMember, InviteData{OrgName: "Acme"})
	require.NoError(t, err)
	assert.Equal(t, "mail.local:2525", gotAddr)
	assert.Equal(t, "no-reply@appraisal.local", gotFrom)
	assert.Equal(t, []string{"dana@example.com"}, gotTo)
	assert.Contains(t, string(gotMsg), "Subject: Join Acme\r\n")
}

func TestSMTPProvider_NoRecipients(t *testing.T) {
	p := NewSMTP(Config{Host: "mail.local", Port: 25})
	assert.ErrorIs(t, p.Send(context.Background(), nil, "s", "b"), ErrNoRecipients)
}
