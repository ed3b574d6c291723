// Package mitigation provides the production adapter of the mitigation
// capability: an operator-supplied block script.
package mitigation

import (
	"NetSentinel/internal/config"
	"bytes"
	"context"
	"fmt"
	"log"
	"os/exec"
	"strings"
	"time"
)

// ScriptMitigator runs a block script with the source address as its only
// argument, optionally through sudo.
type ScriptMitigator struct {
	script  string
	useSudo bool
	timeout time.Duration
}

// NewScriptMitigator creates a mitigator from the mitigation settings.
func NewScriptMitigator(cfg config.MitigationConfig) (*ScriptMitigator, error) {
	if cfg.Script == "" {
		return nil, fmt.Errorf("mitigation.script is not set")
	}
	return &ScriptMitigator{script: cfg.Script, useSudo: cfg.UseSudo, timeout: cfg.TimeoutDuration()}, nil
}

// Block runs the script once and reports its failure, including its output.
func (m *ScriptMitigator) Block(ctx context.Context, src string) error {
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	name, args := m.script, []string{src}
	if m.useSudo {
		name, args = "sudo", []string{"-n", m.script, src}
	}
	cmd := exec.CommandContext(ctx, name, args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	log.Printf("Mitigation: running %s %s", name, strings.Join(args, " "))
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %w (output: %s)", m.script, err, strings.TrimSpace(out.String()))
	}
	return nil
}
