package store

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestChannelRepository_CreateGet(t *testing.T) {
	s := newTestStore(t)
	repo := s.Channels()

	ch := &Channel{
		ID:      "ch-1",
		Name:    "family-sms",
		Kind:    "twilio",
		Config:  json.RawMessage(`{"to":"+15550100"}`),
		Enabled: true,
	}
	if err := repo.Create(ch); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if ch.CreatedAt.IsZero() {
		t.Error("Create() should set CreatedAt")
	}

	got, err := repo.GetByID("ch-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Name != "family-sms" || got.Kind != "twilio" || !got.Enabled {
		t.Errorf("GetByID() = %+v", got)
	}
	if string(got.Config) != `{"to":"+15550100"}` {
		t.Errorf("Config = %s", got.Config)
	}
}

func TestChannelRepository_DefaultConfig(t *testing.T) {
	s := newTestStore(t)
	repo := s.Channels()

	if err := repo.Create(&Channel{ID: "ch-1", Name: "log", Kind: "log", Enabled: true}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := repo.GetByID("ch-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if string(got.Config) != "{}" {
		t.Errorf("Config = %s, want {}", got.Config)
	}
}

func TestChannelRepository_DuplicateName(t *testing.T) {
	s := newTestStore(t)
	repo := s.Channels()

	repo.Create(&Channel{ID: "ch-1", Name: "ops", Kind: "mqtt"})
	if err := repo.Create(&Channel{ID: "ch-2", Name: "ops", Kind: "kafka"}); err == nil {
		t.Error("Create() with duplicate name should fail")
	}
}

func TestChannelRepository_ListEnabled(t *testing.T) {
	s := newTestStore(t)
	repo := s.Channels()

	repo.Create(&Channel{ID: "ch-1", Name: "log", Kind: "log", Enabled: true})
	repo.Create(&Channel{ID: "ch-2", Name: "sms", Kind: "twilio", Enabled: false})
	repo.Create(&Channel{ID: "ch-3", Name: "bus", Kind: "kafka", Enabled: true})

	all, err := repo.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(all) != 3 {
		t.Errorf("List() returned %d channels, want 3", len(all))
	}

	enabled, err := repo.ListEnabled()
	if err != nil {
		t.Fatalf("ListEnabled() error = %v", err)
	}
	if len(enabled) != 2 {
		t.Fatalf("ListEnabled() returned %d channels, want 2", len(enabled))
	}
	for _, c := range enabled {
		if !c.Enabled {
			t.Errorf("ListEnabled() returned disabled channel %q", c.Name)
		}
	}
}

func TestChannelRepository_Update(t *testing.T) {
	s := newTestStore(t)
	repo := s.Channels()

	ch := &Channel{ID: "ch-1", Name: "sms", Kind: "twilio", Enabled: true}
	repo.Create(ch)

	ch.Enabled = false
	ch.Config = json.RawMessage(`{"to":"+15550199"}`)
	if err := repo.Update(ch); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	got, _ := repo.GetByID("ch-1")
	if got.Enabled {
		t.Error("Update() should disable the channel")
	}
	if string(got.Config) != `{"to":"+15550199"}` {
		t.Errorf("Config = %s", got.Config)
	}
}

func TestChannelRepository_NotFound(t *testing.T) {
	s := newTestStore(t)
	repo := s.Channels()

	if _, err := repo.GetByID("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID() error = %v, want ErrNotFound", err)
	}
	if err := repo.Update(&Channel{ID: "missing", Name: "x", Kind: "log"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("Update() error = %v, want ErrNotFound", err)
	}
	if err := repo.Delete("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete() error = %v, want ErrNotFound", err)
	}
}
