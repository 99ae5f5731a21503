package discord

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/bwmarrin/discordgo"

	"github.com/jholhewres/replyclaw/pkg/replyclaw/channels"
	"github.com/jholhewres/replyclaw/pkg/replyclaw/ingest"
)

// responder posts into one channel.
type responder struct {
	s         messenger
	channelID string
}

func (r *responder) Send(ctx context.Context, text string) error {
	if r.s == nil {
		return ErrDisconnected
	}
	_, err := r.s.ChannelMessageSend(r.channelID, text, discordgo.WithContext(ctx))
	return err
}

func (r *responder) Placeholder(ctx context.Context, text string) (channels.Placeholder, error) {
	if r.s == nil {
		return nil, ErrDisconnected
	}
	msg, err := r.s.ChannelMessageSend(r.channelID, text, discordgo.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	return &placeholder{s: r.s, channelID: r.channelID, messageID: msg.ID}, nil
}

type placeholder struct {
	s         messenger
	channelID string
	messageID string
}

func (p *placeholder) Edit(ctx context.Context, text string) error {
	_, err := p.s.ChannelMessageEdit(p.channelID, p.messageID, text, discordgo.WithContext(ctx))
	return err
}

func (p *placeholder) Delete(ctx context.Context) error {
	return p.s.ChannelMessageDelete(p.channelID, p.messageID, discordgo.WithContext(ctx))
}

// attachment wraps a Discord upload as a lazily downloaded ingest attachment.
func (d *Discord) attachment(att *discordgo.MessageAttachment) ingest.Attachment {
	url := att.URL
	limit := d.cfg.MaxDownloadBytes
	return ingest.Attachment{
		Filename: att.Filename,
		Size:     int64(att.Size),
		Open: func(ctx context.Context) (io.ReadCloser, error) {
			return d.download(ctx, url, limit)
		},
	}
}

// download fetches url, failing once more than limit bytes arrive.
func (d *Discord) download(ctx context.Context, url string, limit int64) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("discord: download: %w", err)
	}
	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("discord: download: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("discord: download: status %d", resp.StatusCode)
	}
	if limit > 0 && resp.ContentLength > limit {
		resp.Body.Close()
		return nil, fmt.Errorf("discord: download: %d bytes exceeds limit of %d", resp.ContentLength, limit)
	}
	if limit <= 0 {
		return resp.Body, nil
	}
	return &boundedBody{rc: resp.Body, limit: limit, remaining: limit + 1}, nil
}

// boundedBody errors once more than limit bytes have been read.
type boundedBody struct {
	rc        io.ReadCloser
	limit     int64
	remaining int64
}

func (b *boundedBody) Read(p []byte) (int, error) {
	if b.remaining <= 0 {
		return 0, fmt.Errorf("discord: download exceeds limit of %d bytes", b.limit)
	}
	if int64(len(p)) > b.remaining {
		p = p[:b.remaining]
	}
	n, err := b.rc.Read(p)
	b.remaining -= int64(n)
	if b.remaining <= 0 {
		return n, fmt.Errorf("discord: download exceeds limit of %d bytes", b.limit)
	}
	return n, err
}

func (b *boundedBody) Close() error { return b.rc.Close() }

var _ channels.PlaceholderResponder = (*responder)(nil)
