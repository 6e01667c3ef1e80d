package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/smtp"
)

// Email mails the manifest to the recipient address through an SMTP relay
type Email struct {
	Addr     string
	From     string
	Username string
	Password string
	Host     string
}

func (e *Email) Send(ctx context.Context, pkg Package) (*Receipt, error) {
	if pkg.RecipientEmail == "" {
		return nil, errors.New("delivery has no recipient email")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	manifest, err := pkg.ManifestJSON()
	if err != nil {
		return nil, fmt.Errorf("encoding manifest: %w", err)
	}

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", e.From)
	fmt.Fprintf(&msg, "To: %s\r\n", pkg.RecipientEmail)
	fmt.Fprintf(&msg, "Subject: Delivery %s\r\n", pkg.Number)
	msg.WriteString("Content-Type: application/json; charset=utf-8\r\n\r\n")
	msg.Write(manifest)

	var auth smtp.Auth
	if e.Username != "" {
		auth = smtp.PlainAuth("", e.Username, e.Password, e.Host)
	}
	if err := smtp.SendMail(e.Addr, auth, e.From, []string{pkg.RecipientEmail}, msg.Bytes()); err != nil {
		return nil, fmt.Errorf("sending mail: %w", err)
	}
	return &Receipt{URL: "mailto:" + pkg.RecipientEmail}, nil
}
