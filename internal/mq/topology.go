package mq

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/amekhanov/bpmbridge/internal/config"
)

// Exchange — тип для имени обменника.
type Exchange string

// Queue — тип для имени очереди.
type Queue string

// Exchanges — имена обменников.
const (
	// ExchangeTasks — основной topic exchange. Очереди систем
	// привязаны ключами "{system}.#".
	ExchangeTasks Exchange = "bpmbridge.tasks"

	// ExchangeUnrouted — alternate exchange основного обменника.
	// Сообщение, не совпавшее ни с одним binding, попадает сюда,
	// а не исчезает.
	ExchangeUnrouted Exchange = "bpmbridge.unrouted"

	// ExchangeDLX — dead-letter exchange для nack'нутых сообщений.
	ExchangeDLX Exchange = "bpmbridge.dlx"
)

// QueueUnrouted — очередь catch-all сообщений.
const QueueUnrouted Queue = "default.unrouted"

// DLQName возвращает имя dead-letter очереди для очереди системы.
func DLQName(queue string) string {
	return queue + ".dlq"
}

// SetupTopology объявляет всю топологию брокера по конфигурации
// маршрутизации. Вызывается один раз при старте; объявления
// идемпотентны.
func SetupTopology(conn *Connection, cfg config.Routing) error {
	ch := conn.Channel()
	if ch == nil {
		return ErrBrokerUnavailable
	}

	if err := declareExchanges(ch); err != nil {
		return err
	}

	if err := declareSystemQueues(ch, cfg); err != nil {
		return err
	}

	return declareUnroutedQueue(ch)
}

// declareExchanges создаёт обменники.
// Основной exchange объявляется с alternate-exchange: несовпавшие
// сообщения уходят в ExchangeUnrouted.
func declareExchanges(ch *amqp.Channel) error {
	err := ch.ExchangeDeclare(
		string(ExchangeUnrouted), // name
		"fanout",                 // type
		true,                     // durable
		false,                    // auto-deleted
		false,                    // internal
		false,                    // no-wait
		nil,                      // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange %s: %w", ExchangeUnrouted, err)
	}

	err = ch.ExchangeDeclare(
		string(ExchangeTasks),
		"topic",
		true,
		false,
		false,
		false,
		amqp.Table{
			"alternate-exchange": string(ExchangeUnrouted),
		},
	)
	if err != nil {
		return fmt.Errorf("declare exchange %s: %w", ExchangeTasks, err)
	}

	err = ch.ExchangeDeclare(
		string(ExchangeDLX),
		"direct",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare exchange %s: %w", ExchangeDLX, err)
	}

	return nil
}

// declareSystemQueues создаёт очередь и DLQ для каждой системы и
// привязывает очередь к основному обменнику ключом "{system}.#".
func declareSystemQueues(ch *amqp.Channel, cfg config.Routing) error {
	for system, queue := range cfg.Queues {
		dlq := DLQName(queue)

		_, err := ch.QueueDeclare(
			queue, // name
			true,  // durable
			false, // delete when unused
			false, // exclusive
			false, // no-wait
			amqp.Table{
				"x-dead-letter-exchange":    string(ExchangeDLX),
				"x-dead-letter-routing-key": queue,
			},
		)
		if err != nil {
			return fmt.Errorf("declare queue %s: %w", queue, err)
		}

		if _, err := ch.QueueDeclare(dlq, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare queue %s: %w", dlq, err)
		}

		// Все topic'и системы: routing key "{system}.{topic}"
		bindKey := system + ".#"
		if err := ch.QueueBind(queue, bindKey, string(ExchangeTasks), false, nil); err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", queue, ExchangeTasks, err)
		}

		if err := ch.QueueBind(dlq, queue, string(ExchangeDLX), false, nil); err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", dlq, ExchangeDLX, err)
		}
	}

	return nil
}

// declareUnroutedQueue создаёт очередь catch-all и привязывает её
// к alternate exchange.
func declareUnroutedQueue(ch *amqp.Channel) error {
	if _, err := ch.QueueDeclare(string(QueueUnrouted), true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", QueueUnrouted, err)
	}

	// Fanout: ключ привязки не важен
	if err := ch.QueueBind(string(QueueUnrouted), "", string(ExchangeUnrouted), false, nil); err != nil {
		return fmt.Errorf("bind queue %s to %s: %w", QueueUnrouted, ExchangeUnrouted, err)
	}

	return nil
}
