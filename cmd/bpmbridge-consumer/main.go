// bpmbridge Consumer — обработчик очередей целевых систем.
//
// Consumer:
//   - Потребляет сообщения из очередей систем (prefetch = конкурентность)
//   - Передаёт их зарегистрированным обработчикам
//   - Подтверждает успех ровно одним ack
//   - Отправляет ошибки в dead-letter без возврата в очередь
//
// Прикладные интеграции регистрируют свои обработчики в Registry;
// очереди без интеграции обслуживает логирующая заглушка.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/amekhanov/bpmbridge/internal/config"
	"github.com/amekhanov/bpmbridge/internal/mq"
	"github.com/amekhanov/bpmbridge/internal/processor"
	"github.com/amekhanov/bpmbridge/internal/telemetry"
)

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting bpmbridge-consumer")

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	routingCfg, err := config.LoadRouting()
	if err != nil {
		logger.Error("invalid routing configuration", "error", err)
		os.Exit(1)
	}

	amqpURL := os.Getenv("RABBITMQ_URL")
	if amqpURL == "" {
		amqpURL = mq.DefaultURL()
	}

	mqConn, err := mq.NewConnection(amqpURL, logger)
	if err != nil {
		logger.Error("failed to connect to RabbitMQ", "error", err)
		os.Exit(1)
	}
	defer mqConn.Close()
	logger.Info("RabbitMQ connected")

	// Топология объявляется и здесь: consumer может стартовать
	// раньше dispatcher'а
	if err := mq.SetupTopology(mqConn, routingCfg); err != nil {
		logger.Error("failed to setup topology", "error", err)
		os.Exit(1)
	}

	// Регистрируем обработчики: по заглушке на каждую систему
	registry := processor.NewRegistry()
	for system, queue := range routingCfg.Queues {
		if err := registry.Register(queue, processor.LoggingHandler(system, logger)); err != nil {
			logger.Error("failed to register handler", "queue", queue, "error", err)
			os.Exit(1)
		}
	}

	p := processor.New(processor.Config{
		Conn:        mqConn,
		Registry:    registry,
		Concurrency: getConcurrency(),
		Logger:      logger,
	})

	if err := p.Start(ctx); err != nil {
		logger.Error("failed to start processor", "error", err)
		os.Exit(1)
	}

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	port := ":8081"
	if v := os.Getenv("CONSUMER_PORT"); v != "" {
		port = ":" + v
	}

	go func() {
		logger.Info("listening", "addr", port)
		if err := http.ListenAndServe(port, mux); err != nil {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	// Ожидаем сигнал завершения
	<-ctx.Done()

	p.Stop()
	logger.Info("bpmbridge-consumer stopped")
}

func getConcurrency() int {
	if v := os.Getenv("CONSUMER_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return 0 // default задаёт processor
}
