package config

import (
	"os"
	"path/filepath"
)

const configTemplate = `# pair-trader configuration

[trading]
# Execution mode: "live" routes orders to the execution gateway,
# "sim" applies them to the in-memory simulated ledger.
mode = "sim"
initial_cash = 100000.0

[strategies]
# Each entry lists the instruments one pair strategy trades together.
pairs = [
    ["600000.SH", "600036.SH"],
]
# Fraction of total equity each strategy may hold. Leave budget_avg_mode
# enabled to split equity equally across strategies instead.
budget_avg_mode = true
budgets = []
# Strategy execution period.
period = "30s"

[reconciler]
# Minimum wait before reconciling a submitted order group, giving the
# gateway time to report fills.
grace_delay = "5s"
tick_interval = "1s"
# "cancel_all" cancels every leg of an imbalanced group.
# "rebalance" re-orders the lagging leg at an adjusted quote instead.
policy = "cancel_all"
sliding_point = 0.0005

[gateway]
address = ""
account_id = ""
timeout = "3s"
reconnect_attempts = 3

[logging]
level = "info"
console = true
file = true
`

// writeTemplateConfig writes a starter config.toml so a first run has
// something concrete to edit.
func writeTemplateConfig(configDir string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return err
	}
	path := filepath.Join(configDir, "config.toml")
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	return os.WriteFile(path, []byte(configTemplate), 0644)
}
