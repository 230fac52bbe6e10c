package otp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message/mail"
	"go.uber.org/zap"
)

// ErrAuth means the IMAP login itself was rejected; retrying will not
// help (Gmail wants an app password, or IMAP access is disabled).
var ErrAuth = errors.New("imap authentication rejected")

// Fetcher polls a mailbox for a verification code.
type Fetcher struct {
	// Panel is the sender/subject keyword to match, e.g. "kerit".
	Panel string
	// PollInterval between inbox checks. Zero means 5s.
	PollInterval time.Duration
	// SearchWindow limits the search to recent mail. Zero means 5m.
	SearchWindow time.Duration

	Log *zap.Logger
}

func (f *Fetcher) pollInterval() time.Duration {
	if f.PollInterval > 0 {
		return f.PollInterval
	}
	return 5 * time.Second
}

func (f *Fetcher) searchWindow() time.Duration {
	if f.SearchWindow > 0 {
		return f.SearchWindow
	}
	return 5 * time.Minute
}

// Fetch polls the mailbox until a code arrives or maxWait elapses.
func (f *Fetcher) Fetch(ctx context.Context, addr, password string, maxWait time.Duration) (string, error) {
	server := ServerFor(addr)
	f.Log.Info("polling mailbox for verification code", zap.String("server", server))

	deadline := time.Now().Add(maxWait)
	for {
		code, err := f.checkOnce(server, addr, password)
		if err == nil && code != "" {
			return code, nil
		}
		if errors.Is(err, ErrAuth) {
			return "", err
		}
		if err != nil {
			f.Log.Warn("inbox check failed", zap.Error(err))
		} else {
			f.Log.Info("no verification code yet")
		}

		if time.Now().After(deadline) {
			return "", fmt.Errorf("no verification code within %s", maxWait)
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(f.pollInterval()):
		}
	}
}

// checkOnce opens a fresh IMAP session and scans candidate messages,
// newest first. Returns ("", nil) when no code was found this pass.
func (f *Fetcher) checkOnce(server, addr, password string) (string, error) {
	c, err := client.DialTLS(server, nil)
	if err != nil {
		return "", fmt.Errorf("dial %s: %w", server, err)
	}
	defer c.Logout()

	if err := c.Login(addr, password); err != nil {
		msg := strings.ToLower(err.Error())
		if strings.Contains(msg, "authentication") || strings.Contains(msg, "login") {
			return "", fmt.Errorf("%w: %v", ErrAuth, err)
		}
		return "", fmt.Errorf("login: %w", err)
	}

	mbox, err := c.Select("INBOX", true)
	if err != nil {
		return "", fmt.Errorf("select inbox: %w", err)
	}
	if mbox.Messages == 0 {
		return "", nil
	}

	seqset, err := f.candidateMessages(c, mbox)
	if err != nil {
		return "", err
	}
	if seqset == nil {
		return "", nil
	}

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{section.FetchItem(), imap.FetchEnvelope}

	messages := make(chan *imap.Message, 10)
	done := make(chan error, 1)
	go func() {
		done <- c.Fetch(seqset, items, messages)
	}()

	var code string
	for msg := range messages {
		if code != "" {
			continue // drain the channel
		}
		if c := f.codeFromMessage(msg, section); c != "" {
			code = c
		}
	}
	if err := <-done; err != nil {
		return "", fmt.Errorf("fetch: %w", err)
	}
	return code, nil
}

// candidateMessages searches recent mail, falling back to the last few
// messages of the mailbox when the search turns up nothing.
func (f *Fetcher) candidateMessages(c *client.Client, mbox *imap.MailboxStatus) (*imap.SeqSet, error) {
	criteria := imap.NewSearchCriteria()
	criteria.Since = time.Now().Add(-f.searchWindow())

	ids, err := c.Search(criteria)
	if err != nil {
		f.Log.Warn("imap search failed, scanning newest messages", zap.Error(err))
		ids = nil
	}

	seqset := new(imap.SeqSet)
	if len(ids) > 0 {
		if len(ids) > 10 {
			ids = ids[len(ids)-10:]
		}
		seqset.AddNum(ids...)
		return seqset, nil
	}

	from := uint32(1)
	if mbox.Messages > 5 {
		from = mbox.Messages - 4
	}
	seqset.AddRange(from, mbox.Messages)
	return seqset, nil
}

// codeFromMessage checks the envelope and, when it matches the panel,
// decodes the body parts and extracts the code.
func (f *Fetcher) codeFromMessage(msg *imap.Message, section *imap.BodySectionName) string {
	if msg == nil || msg.Envelope == nil {
		return ""
	}
	var from string
	if len(msg.Envelope.From) > 0 {
		from = msg.Envelope.From[0].Address()
	}
	if !MatchesSender(from, msg.Envelope.Subject, f.Panel) {
		return ""
	}

	r := msg.GetBody(section)
	if r == nil {
		return ""
	}
	mr, err := mail.CreateReader(r)
	if err != nil {
		f.Log.Warn("unparsable message", zap.Error(err))
		return ""
	}

	var body strings.Builder
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}
		if _, ok := p.Header.(*mail.InlineHeader); ok {
			b, err := io.ReadAll(p.Body)
			if err == nil {
				body.Write(b)
			}
		}
	}

	code, ok := Extract(body.String())
	if !ok {
		return ""
	}
	// Never log the code itself.
	f.Log.Info("verification code obtained", zap.String("from", from))
	return code
}
