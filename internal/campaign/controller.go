package campaign

import (
	"context"
	"fmt"
	"sync"
	"time"

	"whatsapp-broadcaster/internal/models"
	"whatsapp-broadcaster/internal/store"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Sender delivers a text message to a phone number.
type Sender interface {
	SendText(ctx context.Context, phone, message string) error
}

// Rewriter produces a variation of a message. Optional: a nil Rewriter means
// messages go out exactly as templated.
type Rewriter interface {
	Rewrite(ctx context.Context, text string) (string, error)
}

type State int

const (
	StateStopped State = iota
	StateRunning
	StatePaused
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "▶ Rodando"
	case StatePaused:
		return "⏸ Pausado"
	default:
		return "⏹ Parado"
	}
}

type Options struct {
	Admin         string
	CountryPrefix string
	DelayMin      time.Duration
	DelayMax      time.Duration
	PausePoll     time.Duration
}

// Controller owns the campaign state machine. All transitions happen through
// its command methods; the broadcast worker only ever observes state through
// snapshot reads under the same mutex.
type Controller struct {
	mu          sync.Mutex
	state       State
	template    string
	workerAlive bool
	runID       uint
	sent        int
	failed      int

	store    *store.Store
	sender   Sender
	rewriter Rewriter
	db       *gorm.DB
	opts     Options
}

func NewController(st *store.Store, sender Sender, rewriter Rewriter, db *gorm.DB, opts Options) *Controller {
	if opts.PausePoll <= 0 {
		opts.PausePoll = 2 * time.Second
	}
	return &Controller{
		store:    st,
		sender:   sender,
		rewriter: rewriter,
		db:       db,
		opts:     opts,
	}
}

// SetMessage stores the campaign template. Allowed in any state.
func (c *Controller) SetMessage(text string) string {
	c.mu.Lock()
	c.template = text
	c.mu.Unlock()
	return "📝 Mensagem definida."
}

// Start transitions STOPPED -> RUNNING and spawns the broadcast worker. The
// check-and-set under the mutex guarantees a second Start never spawns a
// second worker.
func (c *Controller) Start(ctx context.Context) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.template == "" {
		return "⚠ Defina a mensagem antes com /mensagem."
	}
	if c.state != StateStopped || c.workerAlive {
		return "⚠ Disparo já em andamento."
	}

	c.state = StateRunning
	c.workerAlive = true
	c.sent = 0
	c.failed = 0
	c.runID = c.openRun(c.template)

	go c.run(ctx)
	return "🚀 Disparo iniciado."
}

// Pause suspends a running campaign. The worker observes the transition
// before its next send; an in-flight send always completes first.
func (c *Controller) Pause() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateRunning {
		return "⚠ Nenhum disparo em andamento."
	}
	c.state = StatePaused
	return "⏸ Pausando disparo..."
}

// Resume transitions PAUSED -> RUNNING.
func (c *Controller) Resume() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StatePaused {
		return "⚠ O disparo não está pausado."
	}
	c.state = StateRunning
	return "▶ Retomando disparo."
}

// Status reports the run state and the pending/sent tallies from the sheet.
func (c *Controller) Status() string {
	c.mu.Lock()
	state := c.state
	c.mu.Unlock()

	contacts, err := c.store.Load()
	if err != nil {
		log.Error().Err(err).Msg("status: failed to read contact sheet")
		return "⚠ Não foi possível ler a planilha de contatos."
	}
	pending, sent := store.Counts(contacts, c.opts.CountryPrefix)
	return fmt.Sprintf("📊 Status do disparo: %s\nPendentes: %d\nEnviados: %d", state, pending, sent)
}

// CurrentState returns the run state for reporting.
func (c *Controller) CurrentState() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) currentTemplate() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.template
}

// openRun records the new campaign in the audit log, marking any run left
// unfinished by an earlier process as superseded.
func (c *Controller) openRun(template string) uint {
	if c.db == nil {
		return 0
	}
	if err := c.db.Model(&models.CampaignRun{}).
		Where("finished_at IS NULL AND outcome = ''").
		Update("outcome", "superseded").Error; err != nil {
		log.Warn().Err(err).Msg("failed to supersede stale campaign runs")
	}
	run := models.CampaignRun{Template: template}
	if err := c.db.Create(&run).Error; err != nil {
		log.Warn().Err(err).Msg("failed to record campaign run")
		return 0
	}
	return run.ID
}

func (c *Controller) closeRun() {
	c.mu.Lock()
	runID, sent, failed := c.runID, c.sent, c.failed
	c.mu.Unlock()

	if c.db == nil || runID == 0 {
		return
	}
	now := time.Now()
	err := c.db.Model(&models.CampaignRun{}).Where("id = ?", runID).Updates(map[string]interface{}{
		"finished_at": &now,
		"sent":        sent,
		"failed":      failed,
		"outcome":     "completed",
	}).Error
	if err != nil {
		log.Warn().Err(err).Msg("failed to close campaign run")
	}
}

func (c *Controller) notifyAdmin(ctx context.Context, text string) {
	if c.opts.Admin == "" {
		return
	}
	if err := c.sender.SendText(ctx, c.opts.Admin, text); err != nil {
		log.Warn().Err(err).Msg("failed to notify admin")
	}
}
