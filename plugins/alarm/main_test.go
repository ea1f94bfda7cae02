package main

import (
	"encoding/json"
	"testing"
)

func TestParseConfig(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want AlarmConfig
	}{
		{name: "defaults", raw: "", want: AlarmConfig{Volume: 100, Repeats: 3}},
		{name: "custom", raw: `{"volume":40,"sound":"/tmp/s.wav","repeats":2}`, want: AlarmConfig{Volume: 40, Sound: "/tmp/s.wav", Repeats: 2}},
		{name: "out of range", raw: `{"volume":250,"repeats":0}`, want: AlarmConfig{Volume: 100, Repeats: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseConfig(json.RawMessage(tt.raw))
			if err != nil {
				t.Fatalf("parseConfig() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("parseConfig() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseConfig_InvalidJSON(t *testing.T) {
	if _, err := parseConfig(json.RawMessage(`{"volume":"loud"}`)); err == nil {
		t.Error("expected error for a non-numeric volume")
	}
}

func TestActionHandlers(t *testing.T) {
	for _, action := range []string{"siren", "volume-max"} {
		if _, ok := actionHandlers[action]; !ok {
			t.Errorf("missing handler for %q", action)
		}
	}
}
