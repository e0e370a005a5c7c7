package processor

import (
	"context"
	"log/slog"

	"github.com/amekhanov/bpmbridge/internal/mq"
)

// LoggingHandler — обработчик-заглушка: логирует сообщение и
// подтверждает его. Используется consumer-бинарником для очередей,
// у которых ещё нет прикладной интеграции.
func LoggingHandler(system string, logger *slog.Logger) Handler {
	return func(ctx context.Context, msg *mq.TaskMessage) error {
		logger.Info("task received",
			"system", system,
			"message_id", msg.ID,
			"task_id", msg.TaskID,
			"topic", msg.Topic,
			"business_key", msg.BusinessKey,
			"process_instance_id", msg.ProcessInstanceID,
			"variables", len(msg.Variables),
		)
		return nil
	}
}
