package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/uma-arai/sbcntr-counseling/internal/common/config"
	"github.com/uma-arai/sbcntr-counseling/internal/common/database"
	"github.com/uma-arai/sbcntr-counseling/internal/common/logger"
	"github.com/uma-arai/sbcntr-counseling/internal/common/utils"
	"github.com/uma-arai/sbcntr-counseling/internal/handler"
	"github.com/uma-arai/sbcntr-counseling/internal/repository"
	"github.com/uma-arai/sbcntr-counseling/internal/repository/memory"
	"github.com/uma-arai/sbcntr-counseling/internal/service/appointment"
	"github.com/uma-arai/sbcntr-counseling/internal/service/availability"
	"github.com/uma-arai/sbcntr-counseling/internal/service/directory"
	"github.com/uma-arai/sbcntr-counseling/internal/service/screening"
	"github.com/uma-arai/sbcntr-counseling/internal/task"
	"go.uber.org/zap"
)

const (
	projectName     = "sbcntr-counseling-api"
	shutdownTimeout = 10 * time.Second
)

// repositories はストアの実装に依存しないリポジトリの組です
type repositories struct {
	slots         repository.SlotRepository
	appointments  repository.AppointmentRepository
	counselors    repository.CounselorRepository
	users         repository.UserRepository
	screenings    repository.ScreeningRepository
	notifications repository.NotificationRepository
}

type resources struct {
	db        *database.DB
	redis     *redis.Client
	scheduler *task.Scheduler
}

func (r *resources) Close() error {
	var errs []error
	if r.scheduler != nil {
		errs = append(errs, r.scheduler.Close())
	}
	if r.redis != nil {
		errs = append(errs, r.redis.Close())
	}
	if r.db != nil {
		errs = append(errs, r.db.Close())
	}
	return utils.FirstError(errs...)
}

func (r *resources) health(ctx context.Context) error {
	if r.db != nil {
		if err := r.db.PingContext(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}
	if r.redis != nil {
		if err := r.redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	return nil
}

func main() {
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

	res := &resources{}
	defer func() {
		if err := res.Close(); err != nil {
			l.Error("Failed to close resources", zap.Error(err))
		}
	}()

	repos, err := openRepositories(cfg, res)
	if err != nil {
		l.Fatal("Failed to open store", zap.Error(err))
	}

	var apptOpts []appointment.Option
	apptOpts = append(apptOpts, appointment.WithProfessionalMonthlyLimit(cfg.Booking.ProfessionalMonthlyLimit))

	if cfg.Redis.Addr != "" {
		res.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.CacheDB,
		})
		repos.counselors = repository.NewCachedCounselorRepository(repos.counselors, res.redis, cfg.Redis.CounselorCacheTTL)

		// ワーカーは別プロセスのため、予約を共有できるPostgreSQLの場合のみリマインドを登録する
		if cfg.StoreDriver == config.StoreDriverPostgres {
			res.scheduler = task.NewScheduler(asynq.RedisClientOpt{
				Addr:     cfg.Redis.Addr,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.QueueDB,
			}, cfg.Booking.ReminderLead)
			apptOpts = append(apptOpts, appointment.WithReminderScheduler(res.scheduler))
		}
	}

	links := appointment.NanoIDLinkGenerator{BaseURL: cfg.Booking.MeetingBaseURL}

	router := &handler.Router{
		Availability: handler.NewAvailabilityController(
			availability.NewService(repos.slots, repos.counselors)),
		Appointments: handler.NewAppointmentController(
			appointment.NewService(repos.appointments, repos.counselors, repos.users, links, apptOpts...)),
		Screening: handler.NewScreeningController(
			screening.NewEvaluator(repos.screenings, repos.users, screening.NewKeywordClassifier(cfg.Screening))),
		Directory: handler.NewDirectoryController(
			directory.NewService(repos.users, repos.counselors, repos.notifications)),
		Logger: l,
		Health: res.health,
	}
	if cfg.RateLimitPerMin > 0 {
		router.RateLimiter = handler.NewIPRateLimiter(cfg.RateLimitPerMin)
	}
	if cfg.EnableTracing {
		router.TracingName = projectName
	}

	e := router.NewEcho()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		l.Info("Starting server",
			zap.String("port", cfg.AppPort),
			zap.String("store", cfg.StoreDriver),
			zap.Bool("cache", res.redis != nil),
			zap.Bool("reminders", res.scheduler != nil))
		if err := e.Start(":" + cfg.AppPort); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Error("Server stopped unexpectedly", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	l.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		l.Error("Failed to shutdown server", zap.Error(err))
	}
}

// openRepositories は設定に応じてメモリまたはPostgreSQLのリポジトリを作成します
func openRepositories(cfg *config.Config, res *resources) (*repositories, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		store := memory.NewStore()
		if cfg.StoreSeedFile != "" {
			fixtures, err := memory.LoadSeedFile(cfg.StoreSeedFile)
			if err != nil {
				return nil, err
			}
			if err := store.Seed(fixtures); err != nil {
				return nil, fmt.Errorf("failed to seed store: %w", err)
			}
		}
		return &repositories{
			slots:         store.Slots(),
			appointments:  store.Appointments(),
			counselors:    store.Counselors(),
			users:         store.Users(),
			screenings:    store.Screenings(),
			notifications: store.Notifications(),
		}, nil

	case config.StoreDriverPostgres:
		db, err := database.NewDB(cfg.DB)
		if err != nil {
			return nil, fmt.Errorf("failed to create database connection: %w", err)
		}
		res.db = db
		repoDB := repository.NewDB(db)
		return &repositories{
			slots:         repository.NewSlotRepository(repoDB),
			appointments:  repository.NewAppointmentRepository(repoDB),
			counselors:    repository.NewCounselorRepository(repoDB),
			users:         repository.NewUserRepository(repoDB),
			screenings:    repository.NewScreeningRepository(repoDB),
			notifications: repository.NewNotificationRepository(repoDB),
		}, nil
	}
	return nil, fmt.Errorf("unknown store driver: %q", cfg.StoreDriver)
}
