package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	turnsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quest_server_turns_processed_total",
			Help: "Total number of processed turns.",
		},
		[]string{"status"},
	)
	toolCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quest_server_tool_calls_total",
			Help: "Total number of executed tool calls by tool name.",
		},
		[]string{"tool"},
	)
	worldContextUpdateFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "quest_server_world_context_update_failures_total",
			Help: "Total number of failed world context extraction attempts.",
		},
	)
)
