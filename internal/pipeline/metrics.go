package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	messagesConsumed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fraudsight_pipeline_messages_consumed_total",
		Help: "Messages successfully decoded and processed",
	})

	messagesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fraudsight_pipeline_messages_dropped_total",
		Help: "Messages dropped because the body was not valid JSON",
	})

	messagesFlagged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fraudsight_pipeline_messages_flagged_total",
		Help: "Processed messages flagged as fraud by rules or model",
	})

	upsertFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fraudsight_pipeline_upsert_failures_total",
		Help: "Store upserts that failed and terminated the pipeline",
	})

	cachePushFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fraudsight_pipeline_cache_push_failures_total",
		Help: "Best-effort cache pushes that failed",
	})
)
