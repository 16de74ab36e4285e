package notify

import (
	"context"
	"errors"
	"strings"

	mailjet "github.com/mailjet/mailjet-apiv3-go/v4"
)

// MailjetSender delivers messages through the Mailjet v3.1 send API.
type MailjetSender struct {
	client     *mailjet.Client
	sender     string
	senderName string
}

func NewMailjetSender(apiKey, apiSecret, sender, senderName string) (*MailjetSender, error) {
	if apiKey == "" || apiSecret == "" || sender == "" {
		return nil, errors.New("mailjet api key, secret and sender are required")
	}
	return &MailjetSender{
		client:     mailjet.NewMailjetClient(apiKey, apiSecret),
		sender:     sender,
		senderName: senderName,
	}, nil
}

func (m *MailjetSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	name := msg.ToName
	if name == "" {
		name, _, _ = strings.Cut(msg.To, "@")
	}
	messages := mailjet.MessagesV31{Info: []mailjet.InfoMessagesV31{{
		From: &mailjet.RecipientV31{
			Email: m.sender,
			Name:  m.senderName,
		},
		To: &mailjet.RecipientsV31{
			mailjet.RecipientV31{
				Email: msg.To,
				Name:  name,
			},
		},
		Subject:  msg.Subject,
		TextPart: msg.Body,
	}}}
	_, err := m.client.SendMailV31(&messages)
	return err
}
