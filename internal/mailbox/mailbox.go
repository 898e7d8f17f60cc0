// Package mailbox wraps the IMAP client used by the inbox poller.
package mailbox

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
)

// Session is one authenticated mailbox connection.
type Session interface {
	// Select opens a folder for reading.
	Select(folder string) error
	// SearchAll returns every message sequence number in the selected folder.
	SearchAll() ([]uint32, error)
	// FetchRaw returns the full RFC 822 message for a sequence number.
	FetchRaw(seq uint32) ([]byte, error)
	// Logout ends the session. Safe to call on a broken connection.
	Logout() error
}

// Dialer opens new sessions. The poller dials again after any failure.
type Dialer interface {
	Dial(ctx context.Context) (Session, error)
}

// IMAPDialer connects over implicit TLS and logs in.
type IMAPDialer struct {
	Addr     string
	Username string
	Password string
	Timeout  time.Duration
}

// Dial connects and authenticates.
func (d IMAPDialer) Dial(ctx context.Context) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c, err := client.DialTLS(d.Addr, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", d.Addr, err)
	}
	if d.Timeout > 0 {
		c.Timeout = d.Timeout
	}

	if err := c.Login(d.Username, d.Password); err != nil {
		_ = c.Logout()
		return nil, fmt.Errorf("failed to log in: %w", err)
	}

	return &imapSession{c: c}, nil
}

type imapSession struct {
	c *client.Client
}

func (s *imapSession) Select(folder string) error {
	if _, err := s.c.Select(folder, false); err != nil {
		return fmt.Errorf("failed to select %s: %w", folder, err)
	}
	return nil
}

func (s *imapSession) SearchAll() ([]uint32, error) {
	// Empty criteria is sent as ALL
	ids, err := s.c.Search(imap.NewSearchCriteria())
	if err != nil {
		return nil, fmt.Errorf("failed to search mailbox: %w", err)
	}
	return ids, nil
}

func (s *imapSession) FetchRaw(seq uint32) ([]byte, error) {
	seqset := new(imap.SeqSet)
	seqset.AddNum(seq)

	section := &imap.BodySectionName{}
	items := []imap.FetchItem{section.FetchItem()}

	messages := make(chan *imap.Message, 1)
	done := make(chan error, 1)
	go func() {
		done <- s.c.Fetch(seqset, items, messages)
	}()

	var raw []byte
	var readErr error
	for msg := range messages {
		if msg == nil || raw != nil {
			continue
		}
		body := msg.GetBody(section)
		if body == nil {
			continue
		}
		raw, readErr = io.ReadAll(body)
	}

	if err := <-done; err != nil {
		return nil, fmt.Errorf("failed to fetch message %d: %w", seq, err)
	}
	if readErr != nil {
		return nil, fmt.Errorf("failed to read message %d: %w", seq, readErr)
	}
	if raw == nil {
		return nil, fmt.Errorf("server returned no body for message %d", seq)
	}
	return raw, nil
}

func (s *imapSession) Logout() error {
	return s.c.Logout()
}
