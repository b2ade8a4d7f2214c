package report

import (
	"context"

	"whatsapp-broadcaster/internal/campaign"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Reporter pushes the campaign status to the admin on a cron schedule, so
// long-running campaigns can be watched without polling /status.
type Reporter struct {
	cron *cron.Cron
}

func Start(ctx context.Context, spec string, controller *campaign.Controller, sender campaign.Sender, admin string) (*Reporter, error) {
	cr := cron.New()
	_, err := cr.AddFunc(spec, func() {
		if err := sender.SendText(ctx, admin, controller.Status()); err != nil {
			log.Warn().Err(err).Msg("failed to deliver status digest")
		}
	})
	if err != nil {
		return nil, err
	}
	cr.Start()
	log.Info().Str("spec", spec).Msg("status digest scheduled")
	return &Reporter{cron: cr}, nil
}

func (r *Reporter) Stop() {
	r.cron.Stop()
}
