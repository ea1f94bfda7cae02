package alert

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ayusman/sosfinder/internal/plugin"
)

// PluginConfig selects a discovered plugin and the action to run.
type PluginConfig struct {
	Plugin string          `json:"plugin"`
	Action string          `json:"action"`
	Config json.RawMessage `json:"config,omitempty"`
}

// Validate checks a plugin is named.
func (c PluginConfig) Validate() error {
	if c.Plugin == "" {
		return errors.New("plugin: plugin name is required")
	}
	return nil
}

// PluginDispatcher runs an external plugin for each alert.
type PluginDispatcher struct {
	name     string
	cfg      PluginConfig
	plugins  *plugin.Manager
	executor *plugin.Executor
}

// NewPluginDispatcher creates a plugin channel. The plugin is resolved on
// each dispatch so a rescan picks up rebuilt plugins.
func NewPluginDispatcher(name string, cfg PluginConfig, plugins *plugin.Manager, executor *plugin.Executor) (*PluginDispatcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if plugins == nil || executor == nil {
		return nil, errors.New("plugin: plugin support is not configured")
	}
	if cfg.Action == "" {
		cfg.Action = "notify"
	}
	return &PluginDispatcher{name: name, cfg: cfg, plugins: plugins, executor: executor}, nil
}

func (d *PluginDispatcher) Name() string { return d.name }

func (d *PluginDispatcher) Dispatch(ctx context.Context, a Alert) error {
	p, err := d.plugins.Get(d.cfg.Plugin)
	if err != nil {
		return fmt.Errorf("plugin %s: %w", d.cfg.Plugin, err)
	}
	if !p.Supports(d.cfg.Action) {
		return fmt.Errorf("plugin %s does not support action %q", d.cfg.Plugin, d.cfg.Action)
	}

	req := &plugin.Request{
		Action: d.cfg.Action,
		Alert: plugin.AlertPayload{
			ID:          a.ID,
			TriggeredAt: a.TriggeredAt,
			Count:       a.Count,
			Message:     a.Message,
		},
		Config: d.cfg.Config,
	}

	resp, err := d.executor.Execute(ctx, p, req)
	if err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("plugin %s: %s", d.cfg.Plugin, resp.Error)
	}
	return nil
}
