package campaign

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"whatsapp-broadcaster/internal/models"
	"whatsapp-broadcaster/internal/store"

	"github.com/rs/zerolog/log"
)

// run is the broadcast loop. It terminates when no pending contacts remain,
// when the state leaves RUNNING/PAUSED, or when ctx is cancelled. Pause and
// resume are observed cooperatively at the top of each iteration.
func (c *Controller) run(ctx context.Context) {
	defer func() {
		c.mu.Lock()
		c.workerAlive = false
		c.state = StateStopped
		c.mu.Unlock()
	}()

	log.Info().Msg("broadcast started")

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		switch c.CurrentState() {
		case StatePaused:
			if !sleepCtx(ctx, c.opts.PausePoll) {
				return
			}
			continue
		case StateRunning:
		default:
			return
		}

		contacts, err := c.store.Load()
		if err != nil {
			log.Error().Err(err).Msg("broadcast: failed to read contact sheet")
			if !sleepCtx(ctx, c.opts.PausePoll) {
				return
			}
			continue
		}

		pending := store.Pending(contacts, c.opts.CountryPrefix)
		if len(pending) == 0 {
			c.closeRun()
			log.Info().Int("sent", c.sentCount()).Msg("broadcast finished")
			c.notifyAdmin(ctx, "🔥 Disparo finalizado.")
			return
		}

		contact := pending[rand.IntN(len(pending))]
		c.sendOne(ctx, contact, len(pending))

		if !sleepCtx(ctx, c.jitter()) {
			return
		}
	}
}

// sendOne delivers one message. The contact is marked SENT no matter how the
// send went: one attempt per contact per campaign, never two.
func (c *Controller) sendOne(ctx context.Context, contact store.Contact, pendingBefore int) {
	body := strings.ReplaceAll(c.currentTemplate(), "{nome}", contact.Name)

	rewritten := false
	if c.rewriter != nil {
		variant, err := c.rewriter.Rewrite(ctx, body)
		if err != nil || variant == "" {
			log.Warn().Err(err).Str("phone", contact.Phone).Msg("rewrite failed, sending original text")
		} else {
			body = variant
			rewritten = true
		}
	}

	sendErr := c.sender.SendText(ctx, contact.Phone, body)
	if sendErr != nil {
		log.Warn().Err(sendErr).Str("phone", contact.Phone).Msg("send failed, contact will not be retried")
	}

	// Persist the status change before anything else so a crash from here on
	// cannot produce a duplicate send on restart.
	if err := c.store.MarkSent(contact.Phone); err != nil {
		log.Error().Err(err).Str("phone", contact.Phone).Msg("failed to mark contact as sent")
	}

	c.mu.Lock()
	if sendErr != nil {
		c.failed++
	}
	c.sent++
	sent := c.sent
	runID := c.runID
	c.mu.Unlock()

	c.appendSendLog(runID, contact.Phone, body, rewritten, sendErr)

	total := sent + pendingBefore - 1
	c.notifyAdmin(ctx, fmt.Sprintf("📤 Enviado %d/%d", sent, total))
}

func (c *Controller) appendSendLog(runID uint, phone, body string, rewritten bool, sendErr error) {
	if c.db == nil {
		return
	}
	entry := models.SendLog{
		CampaignID: runID,
		Phone:      phone,
		Body:       body,
		Rewritten:  rewritten,
		Outcome:    "sent",
	}
	if sendErr != nil {
		entry.Outcome = "failed"
		entry.Error = sendErr.Error()
	}
	if err := c.db.Create(&entry).Error; err != nil {
		log.Warn().Err(err).Str("phone", phone).Msg("failed to append send log")
	}
}

func (c *Controller) sentCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sent
}

// jitter draws the inter-send delay uniformly from [DelayMin, DelayMax].
func (c *Controller) jitter() time.Duration {
	min, max := c.opts.DelayMin, c.opts.DelayMax
	if max <= min {
		return min
	}
	return min + rand.N(max-min)
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
