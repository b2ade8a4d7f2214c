package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"whatsapp-broadcaster/internal/campaign"
	"whatsapp-broadcaster/internal/config"
	"whatsapp-broadcaster/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const helpText = "📌 *COMANDOS DISPONÍVEIS*\n\n" +
	"/mensagem <texto> → Define a mensagem do disparo\n" +
	"/enviar → Inicia o disparo\n" +
	"/pausar → Pausa o disparo\n" +
	"/continuar → Continua de onde parou\n" +
	"/status → Mostra o status atual\n" +
	"/ajuda → Lista todos os comandos\n\n" +
	"ℹ Use {nome} para personalizar a mensagem."

type Handler struct {
	Config     *config.Config
	Controller *campaign.Controller
	Store      *store.Store
	Sender     campaign.Sender

	// appCtx outlives individual requests; the broadcast worker and admin
	// replies run against it, not the request context.
	appCtx context.Context
}

func NewHandler(appCtx context.Context, cfg *config.Config, controller *campaign.Controller, st *store.Store, sender campaign.Sender) *Handler {
	return &Handler{
		Config:     cfg,
		Controller: controller,
		Store:      st,
		Sender:     sender,
		appCtx:     appCtx,
	}
}

// InboundEvent is the flat payload the gateway posts for every message. The
// text arrives either as a plain string or as an object carrying a "message"
// field; some gateway versions put the string under a top-level "message".
type InboundEvent struct {
	Phone      string          `json:"phone"`
	Text       json.RawMessage `json:"text"`
	Message    string          `json:"message"`
	SenderName string          `json:"senderName"`
}

func (e *InboundEvent) messageText() string {
	if len(e.Text) > 0 {
		var s string
		if err := json.Unmarshal(e.Text, &s); err == nil {
			return s
		}
		var obj struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(e.Text, &obj); err == nil && obj.Message != "" {
			return obj.Message
		}
	}
	return e.Message
}

// HandleMessage processes one inbound event. The gateway always gets a 200
// acknowledgement; nothing internal ever crosses this boundary.
func (h *Handler) HandleMessage(c *gin.Context) {
	var event InboundEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		log.Debug().Err(err).Msg("ignoring malformed webhook payload")
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}

	if event.Phone == "" {
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}

	// Auto-save contact. The admin is never registered, so broadcasts can
	// never target the admin's own number.
	if event.Phone != h.Config.Admin {
		if err := h.Store.UpsertNew(event.Phone, event.SenderName); err != nil {
			log.Error().Err(err).Str("phone", event.Phone).Msg("failed to register contact")
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}

	if reply := h.dispatch(event.messageText()); reply != "" {
		if err := h.Sender.SendText(h.appCtx, h.Config.Admin, reply); err != nil {
			log.Warn().Err(err).Msg("failed to reply to admin")
		}
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// dispatch maps an admin message onto a controller command and returns the
// reply text. Non-command chatter gets no reply.
func (h *Handler) dispatch(text string) string {
	text = strings.TrimSpace(text)

	switch {
	case text == "/ajuda" || text == "/help":
		return helpText

	case strings.HasPrefix(text, "/mensagem"):
		body := strings.TrimSpace(strings.TrimPrefix(text, "/mensagem"))
		if body == "" {
			return "⚠ Uso: /mensagem <texto>"
		}
		return h.Controller.SetMessage(body)

	case text == "/enviar" || text == "/iniciar":
		return h.Controller.Start(h.appCtx)

	case text == "/pausar":
		return h.Controller.Pause()

	case text == "/continuar" || text == "/retomar":
		return h.Controller.Resume()

	case text == "/status":
		return h.Controller.Status()

	case strings.HasPrefix(text, "/"):
		return "❓ Comando não reconhecido. Envie /ajuda para ver a lista."
	}
	return ""
}
