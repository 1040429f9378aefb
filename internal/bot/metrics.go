package bot

import "github.com/prometheus/client_golang/prometheus"

// Command outcomes used as metric labels.
const (
	outcomeOK           = "ok"
	outcomeUnauthorized = "unauthorized"
	outcomeError        = "error"
)

// commandsTotal counts dispatched commands by name and outcome. Only known
// command names are used as labels, so cardinality is bounded by the table.
var commandsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "tagbot_commands_total",
		Help: "Total number of bot commands handled.",
	},
	[]string{"command", "outcome"},
)

func init() {
	prometheus.MustRegister(commandsTotal)
}
