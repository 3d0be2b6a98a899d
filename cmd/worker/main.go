package main

import (
	"context"
	"log"
	"os"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/hibiken/asynq"
	"github.com/uma-arai/sbcntr-counseling/internal/common/config"
	"github.com/uma-arai/sbcntr-counseling/internal/common/database"
	"github.com/uma-arai/sbcntr-counseling/internal/common/logger"
	"github.com/uma-arai/sbcntr-counseling/internal/common/utils"
	"github.com/uma-arai/sbcntr-counseling/internal/repository"
	"github.com/uma-arai/sbcntr-counseling/internal/task"
	"go.uber.org/zap"
)

const (
	projectName = "sbcntr-counseling-worker"
	concurrency = 10
)

func main() {
	cfg, err := config.LoadConfig("")
	if err != nil {
		log.Fatalf("Failed to load config: %v", utils.GetStackWithError(err))
	}

	l := logger.Init(cfg.Env, cfg.LogLevel)
	defer logger.Sync()

	if cfg.Redis.Addr == "" {
		l.Fatal("REDIS_ADDR is required for the worker")
	}
	// 予約はAPIと共有する必要があるためPostgreSQLのみ対応
	if cfg.StoreDriver != config.StoreDriverPostgres {
		l.Fatal("worker requires STORE_DRIVER=postgres", zap.String("store", cfg.StoreDriver))
	}

	if cfg.EnableTracing {
		if err := xray.Configure(xray.Config{
			DaemonAddr:     "127.0.0.1:2000",
			ServiceVersion: "1.0.0",
		}); err != nil {
			l.Warn("Failed to configure X-Ray", zap.Error(err))
			if configErr := xray.Configure(xray.Config{}); configErr != nil {
				l.Fatal("Failed to configure default X-Ray settings", zap.Error(configErr))
			}
		}
		os.Setenv("AWS_XRAY_CONTEXT_MISSING", "LOG_ERROR")
	}

	db, err := database.NewDB(cfg.DB)
	if err != nil {
		l.Fatal("Failed to create database connection", zap.Error(err))
	}
	defer db.Close()

	repoDB := repository.NewDB(db)
	reminders := task.NewReminderHandler(
		repository.NewAppointmentRepository(repoDB),
		repository.NewNotificationRepository(repoDB),
	)

	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.QueueDB,
		},
		asynq.Config{
			Concurrency: concurrency,
			Logger:      l.Sugar(),
		},
	)

	mux := asynq.NewServeMux()
	if cfg.EnableTracing {
		mux.Use(tracingMiddleware)
	}
	mux.Use(loggingMiddleware(l))
	mux.Handle(task.TypeAppointmentReminder, reminders)

	l.Info("Starting worker", zap.Int("concurrency", concurrency))
	// SIGTERM/SIGINTを受け取るまでブロックする
	if err := srv.Run(mux); err != nil {
		l.Fatal("Worker stopped", zap.Error(err))
	}
}

// tracingMiddleware はタスクごとにX-Rayのセグメントを開始します
func tracingMiddleware(next asynq.Handler) asynq.Handler {
	return asynq.HandlerFunc(func(ctx context.Context, t *asynq.Task) error {
		ctx, seg := xray.BeginSegment(ctx, projectName)
		if err := seg.AddAnnotation("task_type", t.Type()); err != nil {
			logger.L().Warn("Failed to add task_type annotation", zap.Error(err))
		}
		err := next.ProcessTask(ctx, t)
		seg.Close(err)
		return err
	})
}

func loggingMiddleware(l *zap.Logger) asynq.MiddlewareFunc {
	return func(next asynq.Handler) asynq.Handler {
		return asynq.HandlerFunc(func(ctx context.Context, t *asynq.Task) error {
			err := next.ProcessTask(ctx, t)
			if err != nil {
				l.Error("task failed", zap.String("type", t.Type()), zap.Error(err))
			}
			return err
		})
	}
}
