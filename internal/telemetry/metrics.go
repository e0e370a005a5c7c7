package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики моста. Экспортируются на /metrics каждого бинарника.
var (
	// TasksFetched — количество external tasks, полученных от движка.
	TasksFetched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bpmbridge_tasks_fetched_total",
		Help: "External tasks fetched and locked from the workflow engine.",
	})

	// TasksCompleted — задачи, успешно завершённые в движке.
	TasksCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bpmbridge_tasks_completed_total",
		Help: "External tasks reported as completed.",
	})

	// TasksFailed — задачи, по которым отправлен failure.
	// reason: broker_unavailable | system_error | publish_failed
	TasksFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bpmbridge_tasks_failed_total",
		Help: "External tasks reported as failed, by reason.",
	}, []string{"reason"})

	// TasksAbandoned — задачи, брошенные из-за потери lease.
	TasksAbandoned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bpmbridge_tasks_abandoned_total",
		Help: "External tasks abandoned after losing the lease.",
	})

	// PublishFailures — неудачные публикации в брокер.
	PublishFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bpmbridge_publish_failures_total",
		Help: "Broker publishes that failed or were nacked.",
	})

	// LeaseExtensions — продления lease, по результату (ok | expired | error).
	LeaseExtensions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bpmbridge_lease_extensions_total",
		Help: "Lock extension attempts, by result.",
	}, []string{"result"})

	// MessagesConsumed — сообщения, успешно обработанные consumer'ом.
	MessagesConsumed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bpmbridge_messages_consumed_total",
		Help: "Broker messages acknowledged by the consumer, by queue.",
	}, []string{"queue"})

	// MessagesDeadLettered — сообщения, отправленные в dead-letter.
	MessagesDeadLettered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bpmbridge_messages_dead_lettered_total",
		Help: "Broker messages nacked into the dead-letter queue, by queue.",
	}, []string{"queue"})
)
