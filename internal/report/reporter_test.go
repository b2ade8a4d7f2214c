package report

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"whatsapp-broadcaster/internal/campaign"
	"whatsapp-broadcaster/internal/store"
)

type nopSender struct{}

func (nopSender) SendText(context.Context, string, string) error { return nil }

func newController(t *testing.T) *campaign.Controller {
	t.Helper()
	st := store.New(filepath.Join(t.TempDir(), "sheet.csv"))
	return campaign.NewController(st, nopSender{}, nil, nil, campaign.Options{
		Admin:         "admin",
		CountryPrefix: "55",
		DelayMin:      time.Millisecond,
		DelayMax:      2 * time.Millisecond,
		PausePoll:     time.Millisecond,
	})
}

func TestStartRejectsInvalidSpec(t *testing.T) {
	t.Parallel()
	_, err := Start(context.Background(), "every once in a while", newController(t), nopSender{}, "admin")
	if err == nil {
		t.Fatal("expected error for invalid cron spec")
	}
}

func TestStartAndStop(t *testing.T) {
	t.Parallel()
	r, err := Start(context.Background(), "0 9 * * *", newController(t), nopSender{}, "admin")
	if err != nil {
		t.Fatalf("Start error: %v", err)
	}
	r.Stop()
}
