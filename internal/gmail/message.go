package gmail

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	gmailv1 "google.golang.org/api/gmail/v1"

	"triageterm/internal/util"
)

// Mailbox is the slice of the Gmail API the importer reads from.
type Mailbox interface {
	Get(ctx context.Context, id string) (*gmailv1.Message, error)
	Recent(ctx context.Context, n int64) ([]string, error)
}

// ServiceMailbox reads the authenticated user's mailbox.
type ServiceMailbox struct {
	svc *gmailv1.Service
}

func NewServiceMailbox(svc *gmailv1.Service) *ServiceMailbox {
	return &ServiceMailbox{svc: svc}
}

func (m *ServiceMailbox) Get(ctx context.Context, id string) (*gmailv1.Message, error) {
	msg, err := m.svc.Users.Messages.Get("me", id).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("get message %s: %w", id, err)
	}
	return msg, nil
}

// Recent lists the ids of the newest n INBOX messages.
func (m *ServiceMailbox) Recent(ctx context.Context, n int64) ([]string, error) {
	resp, err := m.svc.Users.Messages.List("me").
		LabelIds("INBOX").
		MaxResults(n).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	ids := make([]string, 0, len(resp.Messages))
	for _, msg := range resp.Messages {
		ids = append(ids, msg.Id)
	}
	return ids, nil
}

// Message is a mailbox message reduced to what a submission needs.
type Message struct {
	ID      string
	From    string
	Subject string
	Date    time.Time
	Body    string
}

// FromGmail flattens an API message.
func FromGmail(msg *gmailv1.Message) Message {
	out := Message{ID: msg.Id, Body: messageText(msg)}
	if msg.Payload != nil {
		for _, h := range msg.Payload.Headers {
			switch strings.ToLower(h.Name) {
			case "from":
				out.From = h.Value
			case "subject":
				out.Subject = strings.TrimSpace(h.Value)
			case "date":
				if t, err := mail.ParseDate(h.Value); err == nil {
					out.Date = t.UTC()
				}
			}
		}
	}
	if out.Date.IsZero() && msg.InternalDate > 0 {
		out.Date = time.UnixMilli(msg.InternalDate).UTC()
	}
	return out
}

// Title is the subject, or a sender-based fallback for subject-less mail.
func (m Message) Title() string {
	if util.SignificantLen(m.Subject) >= 2 {
		return m.Subject
	}
	name, addr := util.ParseSender(m.From)
	switch {
	case name != "":
		return "Email from " + name
	case addr != "":
		return "Email from " + addr
	}
	return "Imported email " + m.ID
}
