package sessions

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/zapista/zapista/internal/providers"
)

func TestHistoryIsolation(t *testing.T) {
	m := NewManager("")

	m.AddMessage(Key("whatsapp", "111@c.us"), providers.Message{Role: "user", Content: "segredo do 111"})
	m.AddMessage(Key("whatsapp", "222@c.us"), providers.Message{Role: "user", Content: "oi"})

	for _, msg := range m.GetHistory(Key("whatsapp", "222@c.us")) {
		if msg.Content == "segredo do 111" {
			t.Fatal("message from another session leaked")
		}
	}
}

func TestHistoryCap(t *testing.T) {
	m := NewManager("")
	key := Key("whatsapp", "111@c.us")

	for i := 0; i < maxHistory+10; i++ {
		m.AddMessage(key, providers.Message{Role: "user", Content: "m"})
	}
	if got := len(m.GetHistory(key)); got != maxHistory {
		t.Errorf("history length = %d, want %d", got, maxHistory)
	}
}

func TestSaveAndReload(t *testing.T) {
	dir := t.TempDir()
	key := Key("whatsapp", "111@c.us")

	m := NewManager(dir)
	m.AddMessage(key, providers.Message{Role: "user", Content: "oi"})
	m.AddMessage(key, providers.Message{Role: "assistant", Content: "olá!"})
	if err := m.Save(key); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// No stray temp files after an atomic save.
	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".tmp" {
			t.Errorf("leftover temp file %s", e.Name())
		}
	}

	m2 := NewManager(dir)
	hist := m2.GetHistory(key)
	if len(hist) != 2 || hist[1].Content != "olá!" {
		t.Errorf("reloaded history = %+v", hist)
	}
}

func TestDelete(t *testing.T) {
	dir := t.TempDir()
	key := Key("whatsapp", "111@c.us")

	m := NewManager(dir)
	m.AddMessage(key, providers.Message{Role: "user", Content: "oi"})
	if err := m.Save(key); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := m.Delete(key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if got := m.GetHistory(key); got != nil {
		t.Errorf("history after delete = %v", got)
	}
}
