package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/uma-arai/sbcntr-counseling/internal/common/config"
	"github.com/uma-arai/sbcntr-counseling/internal/common/logger"
	"github.com/uma-arai/sbcntr-counseling/internal/common/utils"
	"github.com/uma-arai/sbcntr-counseling/internal/service/batch"
	"go.uber.org/zap"
)

const (
	projectName = "sbcntr-counseling-notification"
)

func main() {
	timeout := flag.Duration("timeout", 5*time.Minute, "バッチ処理のタイムアウト時間")
	flag.Parse()

	// 最後の引数は完了バッチの出力（通知一覧のJSON）
	if flag.NArg() == 0 {
		log.Fatalf("Notification input is required")
	}
	input := flag.Arg(flag.NArg() - 1)

	cfg, err := config.LoadConfig("")
	if err != nil {
		log.Fatalf("Failed to load config: %v", utils.GetStackWithError(err))
	}

	l := logger.Init(cfg.Env, cfg.LogLevel)
	defer logger.Sync()

	// X-Ray設定
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

	notifications, err := batch.ParseNotificationInput(input)
	if err != nil {
		l.Fatal("Failed to parse notification input", zap.Error(err))
	}

	service, err := batch.NewNotificationBatchService(cfg)
	if err != nil {
		l.Fatal("Failed to create notification batch service", zap.Error(err))
	}
	defer service.Close()
	service.SetArgs(notifications)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.EnableTracing {
		var seg *xray.Segment
		ctx, seg = xray.BeginSegment(ctx, projectName)
		defer seg.Close(nil)

		if err := seg.AddMetadata("timeout", timeout.String()); err != nil {
			l.Warn("Failed to add timeout metadata", zap.Error(err))
		}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- utils.RunWithTimeout(ctx, *timeout, service.Run)
	}()

	select {
	case sig := <-sigChan:
		l.Info("Received signal", zap.String("signal", sig.String()))
		cancel()
	case err := <-errChan:
		if err != nil {
			l.Error("Batch process failed", zap.Error(err))
			logger.Sync()
			os.Exit(1)
		}
		l.Info("Batch process completed successfully")
	}
}
