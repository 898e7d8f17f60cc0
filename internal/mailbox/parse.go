package mailbox

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset" // non-UTF-8 bodies and headers
	"github.com/emersion/go-message/mail"
)

// Message is the parsed subset of an email the poller stores.
type Message struct {
	Subject   string
	From      string // bare address when the header parses, raw header otherwise
	Date      string // Date header as received
	MessageID string // Message-ID header, empty when absent
	Text      string // first inline text/plain part
	HTML      string // first inline text/html part
}

// Body returns the plain-text body, falling back to text extracted from
// the HTML part.
func (m *Message) Body() string {
	if strings.TrimSpace(m.Text) != "" {
		return m.Text
	}
	if m.HTML == "" {
		return ""
	}
	return htmlToText(m.HTML)
}

// Parse decodes a raw RFC 822 message.
func Parse(raw []byte) (*Message, error) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if mr == nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	defer func() { _ = mr.Close() }()

	msg := &Message{
		Date:      strings.TrimSpace(mr.Header.Get("Date")),
		MessageID: strings.TrimSpace(mr.Header.Get("Message-Id")),
	}

	if subject, err := mr.Header.Subject(); err == nil {
		msg.Subject = subject
	} else {
		msg.Subject = mr.Header.Get("Subject")
	}

	if addrs, err := mr.Header.AddressList("From"); err == nil && len(addrs) > 0 {
		msg.From = addrs[0].Address
	} else {
		msg.From = strings.TrimSpace(mr.Header.Get("From"))
	}

	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil && !message.IsUnknownCharset(err) {
			return msg, fmt.Errorf("failed to read message part: %w", err)
		}
		if p == nil {
			continue
		}

		h, ok := p.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		contentType, _, _ := h.ContentType()
		switch contentType {
		case "text/plain":
			if msg.Text != "" {
				continue
			}
			b, err := io.ReadAll(p.Body)
			if err != nil {
				continue
			}
			msg.Text = string(b)
		case "text/html":
			if msg.HTML != "" {
				continue
			}
			b, err := io.ReadAll(p.Body)
			if err != nil {
				continue
			}
			msg.HTML = string(b)
		}
	}

	return msg, nil
}

// htmlToText extracts visible text from an HTML body.
func htmlToText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	doc.Find("script, style, head, noscript").Remove()
	// Keep block boundaries as line breaks so words do not run together
	doc.Find("p, div, br, li, tr, h1, h2, h3, h4, h5, h6").AppendHtml("\n")

	var b strings.Builder
	doc.Find("body").Each(func(_ int, s *goquery.Selection) {
		b.WriteString(s.Text())
	})
	if b.Len() == 0 {
		b.WriteString(doc.Text())
	}
	return strings.TrimSpace(b.String())
}
