package store

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Contact statuses. Sheets written by the legacy bot use an empty string for
// never-contacted rows and "ENVIADO" for delivered ones; both are honoured.
const (
	StatusNew     = "NEW"
	StatusPending = "PENDING"
	StatusSent    = "SENT"

	legacySent = "ENVIADO"
)

var header = []string{"phone", "display_name", "status"}

// Contact is one row of the sheet. Extra carries any columns beyond the
// canonical three so externally edited sheets survive a round trip.
type Contact struct {
	Phone  string
	Name   string
	Status string
	Extra  []string
}

// Sent reports whether this contact was already delivered to.
func (c Contact) Sent() bool {
	return c.Status == StatusSent || c.Status == legacySent
}

// Store persists contacts to a CSV sheet. Every operation re-reads the file
// and writes it back whole; the mutex serialises those read-modify-write
// sequences across the webhook handler and the broadcast worker.
type Store struct {
	mu          sync.Mutex
	path        string
	headerExtra []string
}

func New(path string) *Store {
	return &Store{path: path}
}

// Load returns all persisted contacts, creating an empty sheet on first use.
func (s *Store) Load() ([]Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Save replaces the whole sheet. The write goes to a temp file which is then
// renamed over the sheet, so a concurrent Load never observes a partial write.
func (s *Store) Save(contacts []Contact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(contacts)
}

// UpsertNew inserts a NEW contact unless the phone is already present.
func (s *Store) UpsertNew(phone, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	contacts, err := s.load()
	if err != nil {
		return err
	}
	for _, c := range contacts {
		if c.Phone == phone {
			return nil
		}
	}
	contacts = append(contacts, Contact{Phone: phone, Name: name, Status: StatusNew})
	return s.save(contacts)
}

// MarkSent sets the contact's status to SENT; unknown phones are a no-op.
func (s *Store) MarkSent(phone string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	contacts, err := s.load()
	if err != nil {
		return err
	}
	changed := false
	for i := range contacts {
		if contacts[i].Phone == phone {
			contacts[i].Status = StatusSent
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return s.save(contacts)
}

func (s *Store) load() ([]Contact, error) {
	f, err := os.Open(s.path)
	if os.IsNotExist(err) {
		if err := s.save(nil); err != nil {
			return nil, fmt.Errorf("initialize sheet: %w", err)
		}
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open sheet: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read sheet: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	if len(rows[0]) > len(header) {
		s.headerExtra = append([]string(nil), rows[0][len(header):]...)
	} else {
		s.headerExtra = nil
	}

	var contacts []Contact
	for _, row := range rows[1:] {
		c := Contact{}
		if len(row) > 0 {
			c.Phone = row[0]
		}
		if len(row) > 1 {
			c.Name = row[1]
		}
		if len(row) > 2 {
			c.Status = row[2]
		}
		if len(row) > 3 {
			c.Extra = append([]string(nil), row[3:]...)
		}
		if c.Phone == "" {
			continue
		}
		contacts = append(contacts, c)
	}
	return contacts, nil
}

func (s *Store) save(contacts []Contact) error {
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".sheet-*.csv")
	if err != nil {
		return fmt.Errorf("create temp sheet: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.Write(append(append([]string(nil), header...), s.headerExtra...)); err != nil {
		tmp.Close()
		return fmt.Errorf("write sheet header: %w", err)
	}
	for _, c := range contacts {
		row := append([]string{c.Phone, c.Name, c.Status}, c.Extra...)
		if err := w.Write(row); err != nil {
			tmp.Close()
			return fmt.Errorf("write sheet row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("flush sheet: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp sheet: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace sheet: %w", err)
	}
	return nil
}

// Broadcastable reports whether a phone may receive broadcasts: it must carry
// the target country prefix and must not identify a group chat.
func Broadcastable(phone, countryPrefix string) bool {
	if !strings.HasPrefix(phone, countryPrefix) {
		return false
	}
	lower := strings.ToLower(phone)
	if strings.Contains(lower, "group") || strings.HasSuffix(lower, "@g.us") {
		return false
	}
	return true
}

// Pending filters contacts down to those still awaiting a send.
func Pending(contacts []Contact, countryPrefix string) []Contact {
	var out []Contact
	for _, c := range contacts {
		if !c.Sent() && Broadcastable(c.Phone, countryPrefix) {
			out = append(out, c)
		}
	}
	return out
}

// Counts tallies pending and sent contacts for status reporting.
func Counts(contacts []Contact, countryPrefix string) (pending, sent int) {
	for _, c := range contacts {
		switch {
		case c.Sent():
			sent++
		case Broadcastable(c.Phone, countryPrefix):
			pending++
		}
	}
	return pending, sent
}
