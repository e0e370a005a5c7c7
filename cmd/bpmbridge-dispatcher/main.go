// bpmbridge Dispatcher — мост между движком процессов и брокером.
//
// Dispatcher:
//   - Забирает external tasks из движка через fetchAndLock (long-poll)
//   - Маршрутизирует topic → целевая система → очередь
//   - Публикует в RabbitMQ с подтверждением издателя
//   - Отчитывается движку: complete при успехе, fail с retry при ошибке
//   - Продлевает lock долгоживущих задач
//
// Инстансы dispatcher'а масштабируются горизонтально: движок раздаёт
// задачи по worker_id, дубликатов не возникает.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/amekhanov/bpmbridge/internal/api"
	"github.com/amekhanov/bpmbridge/internal/camunda"
	"github.com/amekhanov/bpmbridge/internal/config"
	"github.com/amekhanov/bpmbridge/internal/dispatcher"
	"github.com/amekhanov/bpmbridge/internal/health"
	"github.com/amekhanov/bpmbridge/internal/journal"
	"github.com/amekhanov/bpmbridge/internal/mq"
	"github.com/amekhanov/bpmbridge/internal/routing"
	"github.com/amekhanov/bpmbridge/internal/telemetry"
)

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting bpmbridge-dispatcher")

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// RabbitMQ: без брокера мост бесполезен
	mqConn, err := mq.NewConnection(cfg.AMQPURL, logger)
	if err != nil {
		logger.Error("failed to connect to RabbitMQ", "error", err)
		os.Exit(1)
	}
	defer mqConn.Close()
	logger.Info("RabbitMQ connected")

	if err := mq.SetupTopology(mqConn, cfg.Routing); err != nil {
		logger.Error("failed to setup topology", "error", err)
		os.Exit(1)
	}

	publisher := mq.NewPublisher(mqConn, logger)
	inspector := mq.NewInspector(mqConn, cfg.Routing)

	// Клиент движка
	engine := camunda.NewClient(camunda.Config{
		BaseURL:  cfg.EngineURL,
		WorkerID: cfg.WorkerID,
		User:     cfg.EngineUser,
		Password: cfg.EnginePassword,
		Token:    cfg.EngineToken,
		Logger:   logger,
	})

	// Таблица маршрутизации
	table := routing.NewTable(cfg.Routing)
	logger.Info("routing configured",
		"systems", cfg.Routing.Systems(),
		"default_system", cfg.Routing.DefaultSystem,
	)

	// Health monitor целевых систем
	monitor := health.New(inspector, cfg.Routing, cfg.HealthInterval, logger)
	if err := monitor.Start(ctx); err != nil {
		logger.Error("failed to start health monitor", "error", err)
		os.Exit(1)
	}

	// Журнал опционален: без БД мост работает, но не ведёт историю
	var rec dispatcher.Recorder
	var journalReader api.JournalReader
	j, err := journal.New(ctx, logger)
	if err != nil {
		logger.Warn("journal database not available, running without journal", "error", err)
	} else {
		defer j.Close()
		rec = j
		journalReader = j
		logger.Info("journal database connected")
	}

	// Dispatcher
	d := dispatcher.New(dispatcher.Config{
		Engine:       engine,
		Publisher:    publisher,
		Table:        table,
		Statuses:     monitor,
		Journal:      rec,
		Topics:       cfg.Topics,
		MaxTasks:     cfg.MaxTasks,
		LockDuration: cfg.LockDuration,
		FetchTimeout: cfg.FetchTimeout,
		MaxRetries:   cfg.MaxRetries,
		RetryBase:    cfg.RetryBase,
		Logger:       logger,
	})

	if err := d.Start(ctx); err != nil {
		logger.Error("failed to start dispatcher", "error", err)
		os.Exit(1)
	}

	// HTTP mux: /healthz + /metrics + admin API
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	api.NewHandler(api.Config{
		RoutingConfig: cfg.Routing,
		Table:         table,
		Queues:        inspector,
		Statuses:      monitor,
		Journal:       journalReader,
		Logger:        logger,
	}).RegisterRoutes(mux)

	port := ":8080"
	if v := os.Getenv("DISPATCHER_PORT"); v != "" {
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

	// Останавливаем: сначала dispatcher (ждёт in-flight задачи),
	// потом health monitor
	d.Stop()
	monitor.Stop()
	logger.Info("bpmbridge-dispatcher stopped")
}
