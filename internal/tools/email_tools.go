package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/Lellalu/II1302-Ecco6-Button/internal/contacts"
	"github.com/Lellalu/II1302-Ecco6-Button/internal/email"
)

// unreadLimit bounds how many unread messages are read out.
const unreadLimit = 5

// SetMailbox adds the mail tools to the registry. Contacts may be nil,
// in which case recipients must be spoken as addresses.
func (r *Registry) SetMailbox(m Mailbox, c Contacts) {
	r.mailbox = m
	r.contacts = c
	r.registerEmailTools()
}

func (r *Registry) registerEmailTools() {
	if r.mailbox == nil {
		return
	}

	r.Register(&Tool{
		Name:        "get_unread_messages",
		Description: "Retrieve unread messages from the inbox.",
		Parameters:  object(nil),
		Handler: func(ctx context.Context, _ map[string]any) (string, error) {
			envs, err := r.mailbox.Unread(ctx, unreadLimit)
			if err != nil {
				return "", err
			}
			return email.FormatUnread(envs), nil
		},
	})

	r.Register(&Tool{
		Name: "send_email",
		Description: "Send an email. The recipient may be an e-mail address, a spoken address " +
			"such as 'john dot doe at example dot com', or the name of a contact.",
		Parameters: object([]string{"recipient", "subject", "body"},
			"recipient", "The recipient address or contact name.",
			"subject", "The subject of the email.",
			"body", "The body of the email. Markdown is allowed.",
		),
		Handler: r.handleSendEmail,
	})
}

// resolveRecipient turns what the user said into an address.
func (r *Registry) resolveRecipient(ctx context.Context, spoken string) (string, error) {
	addr := email.NormalizeSpoken(spoken)
	if email.IsAddress(addr) {
		return addr, nil
	}
	if r.contacts == nil {
		return "", fmt.Errorf("%q is not an e-mail address", spoken)
	}
	addr, err := r.contacts.ResolveEmail(ctx, spoken)
	if errors.Is(err, contacts.ErrNoMatch) {
		return "", fmt.Errorf("no contact named %q with an e-mail address", spoken)
	}
	return addr, err
}

func (r *Registry) handleSendEmail(ctx context.Context, args map[string]any) (string, error) {
	recipient, err := requireString(args, "recipient")
	if err != nil {
		return "", err
	}
	subject := stringArg(args, "subject")
	body := stringArg(args, "body")

	to, err := r.resolveRecipient(ctx, recipient)
	if err != nil {
		return "", err
	}
	if err := r.mailbox.Send(ctx, to, subject, body); err != nil {
		return "", err
	}
	r.logger.Info("email sent", "to", to)
	return "Email sent successfully!", nil
}
