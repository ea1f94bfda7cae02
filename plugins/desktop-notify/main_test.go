package main

import (
	"encoding/json"
	"testing"
)

func TestParseConfig(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    NotifyConfig
		wantErr bool
	}{
		{name: "defaults", raw: "", want: NotifyConfig{Title: "SOS", Urgency: "critical"}},
		{name: "custom", raw: `{"title":"Help","urgency":"normal"}`, want: NotifyConfig{Title: "Help", Urgency: "normal"}},
		{name: "empty title", raw: `{"title":""}`, want: NotifyConfig{Title: "SOS", Urgency: "critical"}},
		{name: "bad urgency", raw: `{"urgency":"extreme"}`, wantErr: true},
		{name: "invalid json", raw: `{"title":5}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseConfig(json.RawMessage(tt.raw))
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("parseConfig() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestNotify_RejectsBadConfig(t *testing.T) {
	req := &Request{Action: "notify", Config: json.RawMessage(`{"urgency":"extreme"}`)}
	if err := notify(req); err == nil {
		t.Error("expected notify to reject an invalid urgency")
	}
}

func TestActionHandlers(t *testing.T) {
	for _, action := range []string{"notify", "beep"} {
		if _, ok := actionHandlers[action]; !ok {
			t.Errorf("missing handler for %q", action)
		}
	}
}
