// Package main provides a desktop notification plugin.
// It raises a system notification for each alert via notify-send on Linux
// or AppleScript on macOS.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"time"
)

// Request represents the input from the plugin executor.
type Request struct {
	Action string          `json:"action"`
	Alert  Alert           `json:"alert"`
	Config json.RawMessage `json:"config"`
	Params json.RawMessage `json:"params"`
}

// Alert is the alert being delivered.
type Alert struct {
	ID          string    `json:"id"`
	TriggeredAt time.Time `json:"triggeredAt"`
	Count       int       `json:"count"`
	Message     string    `json:"message"`
}

// Response represents the output to the plugin executor.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// NotifyConfig is the per-channel plugin configuration.
type NotifyConfig struct {
	Title   string `json:"title"`
	Urgency string `json:"urgency"` // low, normal, critical (Linux only)
}

// actionHandler defines a function type for handling specific actions.
type actionHandler func(req *Request) error

// actionHandlers maps action names to their handler functions.
var actionHandlers = map[string]actionHandler{
	"notify": notify,
	"beep":   beep,
}

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeErrorResponse(fmt.Sprintf("failed to decode request: %v", err))
		return
	}

	handler, ok := actionHandlers[req.Action]
	if !ok {
		writeErrorResponse(fmt.Sprintf("unknown action: %s", req.Action))
		return
	}

	if err := handler(&req); err != nil {
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

func parseConfig(raw json.RawMessage) (NotifyConfig, error) {
	cfg := NotifyConfig{Title: "SOS", Urgency: "critical"}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("invalid config: %w", err)
		}
	}
	switch cfg.Urgency {
	case "":
		cfg.Urgency = "critical"
	case "low", "normal", "critical":
	default:
		return cfg, fmt.Errorf("invalid urgency %q", cfg.Urgency)
	}
	if cfg.Title == "" {
		cfg.Title = "SOS"
	}
	return cfg, nil
}

// notify shows a desktop notification with the alert message.
func notify(req *Request) error {
	cfg, err := parseConfig(req.Config)
	if err != nil {
		return err
	}

	body := req.Alert.Message
	if body == "" {
		body = "SOS detected!"
	}
	if !req.Alert.TriggeredAt.IsZero() {
		body = fmt.Sprintf("%s (%s)", body, req.Alert.TriggeredAt.Local().Format("15:04:05"))
	}

	switch runtime.GOOS {
	case "darwin":
		script := fmt.Sprintf(`display notification %q with title %q sound name "Sosumi"`, body, cfg.Title)
		return run("osascript", "-e", script)
	case "linux":
		return run("notify-send", "--urgency="+cfg.Urgency, cfg.Title, body)
	default:
		return fmt.Errorf("notifications not supported on %s", runtime.GOOS)
	}
}

// beep rings the terminal bell.
func beep(req *Request) error {
	tty, err := os.OpenFile("/dev/tty", os.O_WRONLY, 0)
	if err != nil {
		return err
	}
	defer tty.Close()
	_, err = tty.Write([]byte("\a"))
	return err
}

// run executes a command and returns its combined output on failure.
func run(name string, args ...string) error {
	output, err := exec.Command(name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, string(output))
	}
	return nil
}
