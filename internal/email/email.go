// Package email reads the assistant's mailbox over IMAP and sends mail
// over SMTP. Outgoing bodies are markdown rendered to a
// multipart/alternative message.
package email

import (
	"io"
	"time"

	"github.com/emersion/go-imap/v2"
)

// drainLiteral reads and discards the contents of an IMAP literal reader.
// This prevents blocking the IMAP stream when a body section is fetched
// but not consumed. Nil readers are handled gracefully.
func drainLiteral(r imap.LiteralReader) {
	if r == nil {
		return
	}
	_, _ = io.Copy(io.Discard, r)
}

// Envelope is the summary of one message as read aloud to the user.
type Envelope struct {
	// UID is the IMAP unique identifier for this message within its folder.
	UID uint32

	// Date is the message's Date header.
	Date time.Time

	// From is the sender, formatted as "Name <addr>" or just the address.
	From string

	// Subject is the message subject line.
	Subject string

	// Snippet is the start of the plain-text body on one line.
	Snippet string
}

// ListOptions controls the behavior of email listing operations.
type ListOptions struct {
	// Folder is the mailbox to list from. Default: "INBOX".
	Folder string

	// Limit is the maximum number of messages to return. Default: 10.
	Limit int

	// Unseen restricts the listing to unseen messages only.
	Unseen bool
}
