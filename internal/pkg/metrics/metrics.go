// Package metrics 集中注册 prometheus 指标，通过 /metrics 暴露。
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Transitions 按目标状态统计被接受的主状态变化。
	Transitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "order_transitions_total",
		Help: "Accepted order status transitions by target status.",
	}, []string{"to"})

	// Rejections 按操作和错误类别统计被拒绝的写操作。
	Rejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "order_command_rejections_total",
		Help: "Rejected order commands by operation and error class.",
	}, []string{"operation", "reason"})

	NotificationsDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notifications_dispatched_total",
		Help: "Notifications persisted by type.",
	}, []string{"type"})

	NotificationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notification_dispatch_failures_total",
		Help: "Notification dispatch attempts that were logged and discarded.",
	}, []string{"type"})

	FeedPublishFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feed_publish_failures_total",
		Help: "Change feed messages that could not be published.",
	}, []string{"kind"})

	LedgerCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_calls_total",
		Help: "Loyalty and refund ledger calls by event and outcome.",
	}, []string{"event", "outcome"})

	FeedConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "feed_gateway_connections",
		Help: "Open dashboard websocket connections.",
	})
)
