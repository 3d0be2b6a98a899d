package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sfn"
	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/uma-arai/sbcntr-counseling/internal/common/config"
	"github.com/uma-arai/sbcntr-counseling/internal/common/logger"
	"github.com/uma-arai/sbcntr-counseling/internal/common/utils"
	"github.com/uma-arai/sbcntr-counseling/internal/service/batch"
	"go.uber.org/zap"
)

const (
	projectName = "sbcntr-counseling-completion"
)

func main() {
	// コマンドライン引数のパース
	timeout := flag.Duration("timeout", 5*time.Minute, "バッチ処理のタイムアウト時間")
	flag.Parse()

	// 最後の引数として渡されたタスクトークンを取得
	// ENV=LOCALの場合はタスクトークンを取得しない
	taskToken := "DUMMY_TASK_TOKEN"
	if os.Getenv("ENV") != "LOCAL" {
		if flag.NArg() == 0 {
			log.Fatalf("Task token is required")
		}
		taskToken = flag.Arg(flag.NArg() - 1)
	}

	// 設定の読み込み
	cfg, err := config.LoadConfig(taskToken)
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

	// Step Functionsクライアントの初期化
	var sfnClient *sfn.Client
	if !cfg.IsLocal() {
		awsCfg, err := awsconfig.LoadDefaultConfig(context.Background())
		if err != nil {
			l.Fatal("Failed to load AWS config", zap.Error(utils.GetStackWithError(err)))
		}
		sfnClient = sfn.NewFromConfig(awsCfg)
	}

	var batchSFN batch.SFNClient
	if sfnClient != nil {
		batchSFN = sfnClient
	}

	service, err := batch.NewCompletionBatchService(cfg, batchSFN)
	if err != nil {
		l.Fatal("Failed to create service", zap.Error(utils.GetStackWithError(err)))
	}
	defer service.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	// X-Rayセグメントの作成
	if cfg.EnableTracing {
		var seg *xray.Segment
		ctx, seg = xray.BeginSegment(ctx, projectName)
		defer seg.Close(nil)

		if err := seg.AddMetadata("timeout", timeout.String()); err != nil {
			l.Warn("Failed to add timeout metadata", zap.Error(err))
		}
	}

	// シグナルハンドリングの設定
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

			// ローカル環境以外の場合のみStep Functionsのエラー通知を行う
			if !cfg.IsLocal() && sfnClient != nil {
				input := &sfn.SendTaskFailureInput{
					TaskToken: aws.String(taskToken),
					Error:     aws.String("CompletionBatchFailed"),
					Cause:     aws.String(err.Error()),
				}
				if _, err := sfnClient.SendTaskFailure(context.Background(), input); err != nil {
					l.Error("Failed to send task failure", zap.Error(err))
				}
			}

			logger.Sync()
			os.Exit(1)
		}
		l.Info("Batch process completed successfully")
	}
}
