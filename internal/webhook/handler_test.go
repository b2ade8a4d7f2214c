package webhook

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"whatsapp-broadcaster/internal/campaign"
	"whatsapp-broadcaster/internal/config"
	"whatsapp-broadcaster/internal/store"

	"github.com/gin-gonic/gin"
)

const testAdmin = "5500admin"

type sentMessage struct {
	Phone string
	Body  string
}

type fakeSender struct {
	mu    sync.Mutex
	sends []sentMessage
}

func (f *fakeSender) SendText(_ context.Context, phone, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sends = append(f.sends, sentMessage{Phone: phone, Body: body})
	return nil
}

func (f *fakeSender) all() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMessage(nil), f.sends...)
}

func (f *fakeSender) lastTo(phone string) (sentMessage, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.sends) - 1; i >= 0; i-- {
		if f.sends[i].Phone == phone {
			return f.sends[i], true
		}
	}
	return sentMessage{}, false
}

func newTestRouter(t *testing.T) (*gin.Engine, *fakeSender, *store.Store, *campaign.Controller) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{Admin: testAdmin, CountryPrefix: "55"}
	st := store.New(filepath.Join(t.TempDir(), "sheet.csv"))
	sender := &fakeSender{}
	controller := campaign.NewController(st, sender, nil, nil, campaign.Options{
		Admin:         testAdmin,
		CountryPrefix: "55",
		DelayMin:      time.Millisecond,
		DelayMax:      2 * time.Millisecond,
		PausePoll:     5 * time.Millisecond,
	})

	h := NewHandler(context.Background(), cfg, controller, st, sender)
	r := gin.New()
	r.POST("/webhook", h.HandleMessage)
	return r, sender, st, controller
}

func post(t *testing.T, r *gin.Engine, body string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestMalformedPayloadAcknowledged(t *testing.T) {
	t.Parallel()
	r, sender, _, _ := newTestRouter(t)

	w := post(t, r, `{"phone": `)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 even for malformed payloads", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"ok":true`) {
		t.Fatalf("body = %q", w.Body.String())
	}
	if len(sender.all()) != 0 {
		t.Fatal("malformed payload must not trigger sends")
	}
}

func TestMissingPhoneIgnored(t *testing.T) {
	t.Parallel()
	r, _, st, _ := newTestRouter(t)

	if w := post(t, r, `{"text":"oi"}`); w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	contacts, err := st.Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(contacts) != 0 {
		t.Fatalf("no contact should be registered, got %+v", contacts)
	}
}

func TestContactRegistration(t *testing.T) {
	t.Parallel()
	r, sender, st, _ := newTestRouter(t)

	for i := 0; i < 2; i++ {
		if w := post(t, r, `{"phone":"5511999","senderName":"Ana","text":"oi, quero saber mais"}`); w.Code != http.StatusOK {
			t.Fatalf("status = %d", w.Code)
		}
	}

	contacts, err := st.Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(contacts) != 1 {
		t.Fatalf("expected 1 contact, got %d", len(contacts))
	}
	if contacts[0].Phone != "5511999" || contacts[0].Name != "Ana" || contacts[0].Status != store.StatusNew {
		t.Fatalf("unexpected contact: %+v", contacts[0])
	}
	// Non-admin senders get no reply and trigger no commands.
	if len(sender.all()) != 0 {
		t.Fatalf("unexpected sends: %+v", sender.all())
	}
}

func TestNonAdminCommandIgnored(t *testing.T) {
	t.Parallel()
	r, sender, _, controller := newTestRouter(t)

	post(t, r, `{"phone":"5511999","text":"/enviar"}`)
	if controller.CurrentState() != campaign.StateStopped {
		t.Fatal("non-admin sender must not start a campaign")
	}
	if len(sender.all()) != 0 {
		t.Fatalf("unexpected sends: %+v", sender.all())
	}
}

func TestTextPayloadForms(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		body string
	}{
		{name: "plain string", body: `{"phone":"5500admin","text":"/ajuda"}`},
		{name: "nested object", body: `{"phone":"5500admin","text":{"message":"/ajuda"}}`},
		{name: "top-level message", body: `{"phone":"5500admin","message":"/ajuda"}`},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r, sender, _, _ := newTestRouter(t)
			post(t, r, tt.body)

			reply, ok := sender.lastTo(testAdmin)
			if !ok {
				t.Fatal("admin got no reply")
			}
			if !strings.Contains(reply.Body, "COMANDOS") {
				t.Fatalf("reply = %q, want help text", reply.Body)
			}
		})
	}
}

func TestStartWithoutTemplate(t *testing.T) {
	t.Parallel()
	r, sender, _, controller := newTestRouter(t)

	post(t, r, `{"phone":"5500admin","text":"/enviar"}`)

	reply, ok := sender.lastTo(testAdmin)
	if !ok || !strings.Contains(reply.Body, "Defina a mensagem") {
		t.Fatalf("reply = %+v, want template-missing notice", reply)
	}
	if controller.CurrentState() != campaign.StateStopped {
		t.Fatalf("state = %v, want STOPPED", controller.CurrentState())
	}
}

func TestUnknownCommand(t *testing.T) {
	t.Parallel()
	r, sender, _, _ := newTestRouter(t)

	post(t, r, `{"phone":"5500admin","text":"/derrubar"}`)
	reply, ok := sender.lastTo(testAdmin)
	if !ok || !strings.Contains(reply.Body, "/ajuda") {
		t.Fatalf("reply = %+v, want unknown-command hint", reply)
	}
}

func TestAdminChatterGetsNoReply(t *testing.T) {
	t.Parallel()
	r, sender, _, _ := newTestRouter(t)

	post(t, r, `{"phone":"5500admin","text":"bom dia"}`)
	if len(sender.all()) != 0 {
		t.Fatalf("unexpected sends: %+v", sender.all())
	}
}

func TestFullCommandFlow(t *testing.T) {
	t.Parallel()
	r, sender, st, controller := newTestRouter(t)

	// A contact registers, then the admin configures and starts a campaign.
	post(t, r, `{"phone":"5511999","senderName":"Ana","text":"oi"}`)
	post(t, r, `{"phone":"5500admin","text":"/mensagem Olá {nome}!"}`)

	reply, _ := sender.lastTo(testAdmin)
	if !strings.Contains(reply.Body, "Mensagem definida") {
		t.Fatalf("set-message reply = %q", reply.Body)
	}

	post(t, r, `{"phone":"5500admin","text":"/enviar"}`)
	// The worker may already be pinging the admin, so scan every reply.
	var started bool
	for _, m := range sender.all() {
		if m.Phone == testAdmin && strings.Contains(m.Body, "Disparo iniciado") {
			started = true
		}
	}
	if !started {
		t.Fatalf("start confirmation missing in %+v", sender.all())
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && controller.CurrentState() != campaign.StateStopped {
		time.Sleep(5 * time.Millisecond)
	}
	if controller.CurrentState() != campaign.StateStopped {
		t.Fatal("campaign did not complete")
	}

	contactMsg, ok := sender.lastTo("5511999")
	if !ok {
		t.Fatal("contact got no message")
	}
	if contactMsg.Body != "Olá Ana!" {
		t.Fatalf("delivered body = %q, want substituted template", contactMsg.Body)
	}

	contacts, err := st.Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(contacts) != 1 || !contacts[0].Sent() {
		t.Fatalf("contact not marked sent: %+v", contacts)
	}

	post(t, r, `{"phone":"5500admin","text":"/status"}`)
	reply, _ = sender.lastTo(testAdmin)
	if !strings.Contains(reply.Body, "Enviados: 1") {
		t.Fatalf("status reply = %q", reply.Body)
	}
}
