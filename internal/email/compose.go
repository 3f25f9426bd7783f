package email

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// ErrNoRecipients is returned for a draft without a To address.
var ErrNoRecipients = errors.New("no recipients")

// Draft is an outgoing message. Body is markdown, which is how the
// model tends to write it.
type Draft struct {
	From    string // "Name <addr@host>" or a bare address
	To      []string
	Subject string
	Body    string
	Date    time.Time // zero means now
}

var markdown = goldmark.New()

const htmlEnvelope = `<!DOCTYPE html>
<html><head><meta charset="utf-8"></head>
<body style="font-family: sans-serif; font-size: 14px; line-height: 1.5;">
%s
</body></html>`

// Bytes renders the draft as an RFC 5322 message whose body is a
// multipart/alternative of text/plain and text/html.
func (d Draft) Bytes() ([]byte, error) {
	from, err := mail.ParseAddress(d.From)
	if err != nil {
		return nil, fmt.Errorf("parse from address %q: %w", d.From, err)
	}
	if len(d.To) == 0 {
		return nil, ErrNoRecipients
	}
	to := make([]*mail.Address, 0, len(d.To))
	for _, a := range d.To {
		addr, err := mail.ParseAddress(a)
		if err != nil {
			return nil, fmt.Errorf("parse to address %q: %w", a, err)
		}
		to = append(to, addr)
	}

	date := d.Date
	if date.IsZero() {
		date = time.Now()
	}

	var h mail.Header
	h.SetDate(date)
	if err := h.GenerateMessageID(); err != nil {
		return nil, fmt.Errorf("generate message-id: %w", err)
	}
	h.SetSubject(d.Subject)
	h.SetAddressList("From", []*mail.Address{from})
	h.SetAddressList("To", to)

	plain, html, err := render(d.Body)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	mw, err := mail.CreateWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("create mail writer: %w", err)
	}
	iw, err := mw.CreateInline()
	if err != nil {
		return nil, fmt.Errorf("create inline writer: %w", err)
	}
	if err := writePart(iw, "text/plain", plain); err != nil {
		return nil, err
	}
	if err := writePart(iw, "text/html", html); err != nil {
		return nil, err
	}
	if err := iw.Close(); err != nil {
		return nil, fmt.Errorf("close inline writer: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close mail writer: %w", err)
	}
	return buf.Bytes(), nil
}

func writePart(iw *mail.InlineWriter, contentType, body string) error {
	var h mail.InlineHeader
	h.Set("Content-Type", contentType+"; charset=utf-8")
	w, err := iw.CreatePart(h)
	if err != nil {
		return fmt.Errorf("create %s part: %w", contentType, err)
	}
	if _, err := io.WriteString(w, body); err != nil {
		w.Close()
		return fmt.Errorf("write %s part: %w", contentType, err)
	}
	return w.Close()
}

// render parses body once and returns its plain text and HTML forms.
func render(body string) (plain, html string, err error) {
	src := []byte(body)
	doc := markdown.Parser().Parse(text.NewReader(src))

	var out bytes.Buffer
	if err := markdown.Renderer().Render(&out, src, doc); err != nil {
		return "", "", fmt.Errorf("render markdown: %w", err)
	}
	return plainText(doc, src), fmt.Sprintf(htmlEnvelope, out.String()), nil
}

// plainText flattens a markdown tree: emphasis and code markers go,
// links keep their target in parentheses, list items get a dash.
func plainText(doc ast.Node, src []byte) string {
	var sb strings.Builder
	ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		switch n := n.(type) {
		case *ast.Text:
			if entering {
				sb.Write(n.Segment.Value(src))
				if n.SoftLineBreak() || n.HardLineBreak() {
					sb.WriteByte('\n')
				}
			}
		case *ast.String:
			if entering {
				sb.Write(n.Value)
			}
		case *ast.AutoLink:
			if entering {
				sb.Write(n.Label(src))
			}
		case *ast.Link:
			if !entering {
				fmt.Fprintf(&sb, " (%s)", n.Destination)
			}
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			if entering {
				lines := n.Lines()
				for i := 0; i < lines.Len(); i++ {
					seg := lines.At(i)
					sb.Write(seg.Value(src))
				}
				sb.WriteByte('\n')
			}
			return ast.WalkSkipChildren, nil
		case *ast.ListItem:
			if entering {
				sb.WriteString("- ")
			}
		case *ast.TextBlock:
			if !entering {
				sb.WriteByte('\n')
			}
		case *ast.Paragraph, *ast.Heading:
			if !entering {
				sb.WriteString("\n\n")
			}
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(sb.String())
}
