package digest

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/bissquit/news-digest/internal/pkg/ctxlog"
)

// Outcome describes what happened to one digest.
type Outcome string

// Dispatch outcomes.
const (
	// OutcomeSkipped means there were no articles, so nothing was rendered.
	OutcomeSkipped Outcome = "skipped"
	// OutcomeDelivered means the provider accepted the message.
	OutcomeDelivered Outcome = "delivered"
	// OutcomeLogged means the digest was written to the log instead of sent.
	OutcomeLogged Outcome = "logged"
)

// Dispatcher renders digests and hands them to the configured provider.
// With no provider, or when the provider fails, the digest is written to
// the log. Send never returns an error.
type Dispatcher struct {
	renderer *Renderer
	sender   Sender
	now      func() time.Time
}

// NewDispatcher creates a dispatcher. A nil sender puts it in log-only mode.
func NewDispatcher(renderer *Renderer, sender Sender) *Dispatcher {
	if sender == nil {
		slog.Warn("no email provider configured, digests will be written to the log")
	} else {
		slog.Info("email provider configured", "provider", sender.Name())
	}

	return &Dispatcher{
		renderer: renderer,
		sender:   sender,
		now:      time.Now,
	}
}

// Send renders and delivers one digest.
func (d *Dispatcher) Send(ctx context.Context, dg Digest) Outcome {
	outcome := d.send(ctx, dg)
	recordOutcome(outcome)
	return outcome
}

func (d *Dispatcher) send(ctx context.Context, dg Digest) Outcome {
	logger := ctxlog.FromContext(ctx)

	if len(dg.Articles) == 0 {
		logger.Debug("no articles for digest, skipping", "to", dg.Recipient)
		return OutcomeSkipped
	}

	subject := d.renderer.Subject(d.now())

	html, err := d.renderer.Render(dg)
	if err != nil {
		logger.Error("failed to render digest", "to", dg.Recipient, "error", err)
		d.logDigest(logger, dg, subject, "render failed")
		return OutcomeLogged
	}

	if d.sender == nil {
		d.logDigest(logger, dg, subject, "no provider configured")
		return OutcomeLogged
	}

	start := time.Now()
	err = d.sender.Send(ctx, Message{To: dg.Recipient, Subject: subject, HTML: html})
	recordProviderDuration(d.sender.Name(), time.Since(start))
	if err != nil {
		logger.Warn("email provider failed, logging digest instead",
			"provider", d.sender.Name(),
			"to", dg.Recipient,
			"error", err,
		)
		d.logDigest(logger, dg, subject, "provider failed")
		return OutcomeLogged
	}

	logger.Info("digest delivered",
		"provider", d.sender.Name(),
		"to", dg.Recipient,
		"articles", len(dg.Articles),
	)
	return OutcomeDelivered
}

func (d *Dispatcher) logDigest(logger *slog.Logger, dg Digest, subject, reason string) {
	logger.Info("digest email (not sent)",
		"to", dg.Recipient,
		"subject", subject,
		"headlines", strings.Join(dg.Headlines(), " | "),
		"reason", reason,
	)
}
