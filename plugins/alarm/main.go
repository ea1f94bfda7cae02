// Package main provides a local alarm plugin.
// It raises the output volume and plays a siren sound so people nearby
// notice an SOS alert.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"runtime"
)

// Request represents the input from the plugin executor.
type Request struct {
	Action string          `json:"action"`
	Config json.RawMessage `json:"config"`
}

// Response represents the output to the plugin executor.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// AlarmConfig is the per-channel plugin configuration.
type AlarmConfig struct {
	Volume  int    `json:"volume"`  // percent, 0-100
	Sound   string `json:"sound"`   // sound file; a platform default when empty
	Repeats int    `json:"repeats"` // times the sound is played
}

// actionHandler defines a function type for handling specific actions.
type actionHandler func(cfg AlarmConfig) error

// actionHandlers maps action names to their handler functions.
var actionHandlers = map[string]actionHandler{
	"siren":      siren,
	"volume-max": raiseVolume,
}

func main() {
	// Read request from stdin
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeErrorResponse(fmt.Sprintf("failed to decode request: %v", err))
		return
	}

	// Look up the handler for the action
	handler, ok := actionHandlers[req.Action]
	if !ok {
		writeErrorResponse(fmt.Sprintf("unknown action: %s", req.Action))
		return
	}

	cfg, err := parseConfig(req.Config)
	if err != nil {
		writeErrorResponse(err.Error())
		return
	}

	if err := handler(cfg); err != nil {
		writeErrorResponse(fmt.Sprintf("action %s failed: %v", req.Action, err))
		return
	}

	writeSuccessResponse()
}

// writeErrorResponse writes an error response to stdout.
func writeErrorResponse(errMsg string) {
	json.NewEncoder(os.Stdout).Encode(Response{
		Success: false,
		Error:   errMsg,
	})
}

// writeSuccessResponse writes a success response to stdout.
func writeSuccessResponse() {
	json.NewEncoder(os.Stdout).Encode(Response{
		Success: true,
	})
}

func parseConfig(raw json.RawMessage) (AlarmConfig, error) {
	cfg := AlarmConfig{Volume: 100, Repeats: 3}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("invalid config: %w", err)
		}
	}
	if cfg.Volume < 0 || cfg.Volume > 100 {
		cfg.Volume = 100
	}
	if cfg.Repeats < 1 {
		cfg.Repeats = 1
	}
	return cfg, nil
}

// siren raises the volume and plays the alarm sound.
func siren(cfg AlarmConfig) error {
	if err := raiseVolume(cfg); err != nil {
		return err
	}
	for i := 0; i < cfg.Repeats; i++ {
		if err := playSound(cfg.Sound); err != nil {
			return err
		}
	}
	return nil
}

// raiseVolume sets the output volume to cfg.Volume percent.
func raiseVolume(cfg AlarmConfig) error {
	switch runtime.GOOS {
	case "darwin":
		// AppleScript volume is 0-7.
		level := cfg.Volume * 7 / 100
		return run("osascript", "-e", fmt.Sprintf("set volume %d", level))
	case "linux":
		return run("pactl", "set-sink-volume", "@DEFAULT_SINK@", fmt.Sprintf("%d%%", cfg.Volume))
	default:
		return fmt.Errorf("volume control not supported on %s", runtime.GOOS)
	}
}

func playSound(sound string) error {
	switch runtime.GOOS {
	case "darwin":
		if sound == "" {
			sound = "/System/Library/Sounds/Sosumi.aiff"
		}
		return run("afplay", sound)
	case "linux":
		if sound == "" {
			sound = "/usr/share/sounds/freedesktop/stereo/alarm-clock-elapsed.oga"
		}
		return run("paplay", sound)
	default:
		return fmt.Errorf("sound playback not supported on %s", runtime.GOOS)
	}
}

// run executes a command and returns its combined output on failure.
func run(name string, args ...string) error {
	output, err := exec.Command(name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, string(output))
	}
	return nil
}
