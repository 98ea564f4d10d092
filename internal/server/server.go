package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/victornm/quizroom/internal/api"
	"github.com/victornm/quizroom/internal/decay"
	"github.com/victornm/quizroom/internal/domain"
	"github.com/victornm/quizroom/internal/event"
	"github.com/victornm/quizroom/internal/notify"
	"github.com/victornm/quizroom/internal/quiz"
	"github.com/victornm/quizroom/internal/session"
	"github.com/victornm/quizroom/internal/telemetry"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

type Config struct {
	HTTP struct {
		Port int32
	}

	GRPC struct {
		Port int32
	}

	Redis struct {
		Pubsub struct {
			Addrs  []string
			Pass   string
			Prefix string
		}
	}

	Postgres struct {
		Quiz struct {
			Addr string
			User string
			Pass string
			Name string
		}
	}

	Quiz struct {
		// Store is either memory or postgres.
		Store                    string
		DefaultQuestionDuration  int
		DefaultAnsweringDuration int
	}

	Game struct {
		StartingScore  int64
		ScoreFloor     int64
		DecayStep      int64
		DecayInterval  time.Duration
		CodeDigits     int
		EndedRetention time.Duration
	}

	Webhook struct {
		URL     string
		Token   string
		Timeout time.Duration
	}

	CORS struct {
		AllowOrigins []string
	}
}

// DefaultConfig returns the configuration used for every key the config file and environment leave unset.
func DefaultConfig() Config {
	var c Config
	c.HTTP.Port = 8080
	c.GRPC.Port = 8081
	c.Redis.Pubsub.Addrs = []string{"localhost:6379"}
	c.Redis.Pubsub.Prefix = "quizroom"
	c.Postgres.Quiz.Addr = "localhost:5432"
	c.Quiz.Store = StoreMemory
	c.Quiz.DefaultQuestionDuration = 5
	c.Quiz.DefaultAnsweringDuration = 20
	c.Game.StartingScore = 1000
	c.Game.ScoreFloor = 100
	c.Game.DecayStep = 1
	c.Game.DecayInterval = 100 * time.Millisecond
	c.Game.CodeDigits = 5
	c.Game.EndedRetention = 10 * time.Minute
	c.Webhook.Timeout = 10 * time.Second
	c.CORS.AllowOrigins = []string{"*"}
	return c
}

type Server struct {
	c Config

	eb *event.Bus

	infra struct {
		redis struct {
			pubsub redis.UniversalClient
		}

		postgres struct {
			quiz *pgxpool.Pool
		}
	}

	service struct {
		quiz     *quiz.Service
		registry *session.Registry
		webhook  *notify.Webhook
	}

	health *health.Server
	http   *http.Server
	grpc   *grpc.Server
}

func Init(c Config) (*Server, error) {
	s := &Server{c: c}

	s.eb = event.NewBus()

	if err := s.initInfra(); err != nil {
		return nil, fmt.Errorf("server: init infra: %w", err)
	}

	if err := s.initService(); err != nil {
		return nil, fmt.Errorf("server: init service: %w", err)
	}

	s.initAPI()
	return s, nil
}

func (s *Server) initInfra() error {
	if err := s.initRedis(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}

	if s.c.Quiz.Store == StorePostgres {
		if err := s.initPostgres(); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
	}

	return nil
}

func (s *Server) initRedis() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	r := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    s.c.Redis.Pubsub.Addrs,
		Password: s.c.Redis.Pubsub.Pass,
	})

	if err := telemetry.MonitorRedis(r, "pubsub"); err != nil {
		return err
	}

	if err := r.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("pubsub: %w", err)
	}

	s.infra.redis.pubsub = r
	return nil
}

func (s *Server) initPostgres() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pc := s.c.Postgres.Quiz
	cc, err := pgxpool.ParseConfig(fmt.Sprintf("postgres://%s:%s@%s/%s", pc.User, pc.Pass, pc.Addr, pc.Name))
	if err != nil {
		return err
	}

	db, err := pgxpool.NewWithConfig(ctx, cc)
	if err != nil {
		return err
	}

	if err := db.Ping(ctx); err != nil {
		db.Close()
		return fmt.Errorf("quiz: %w", err)
	}

	s.infra.postgres.quiz = db
	return nil
}

func (s *Server) initService() error {
	store, err := s.quizStore()
	if err != nil {
		return err
	}

	s.service.quiz = quiz.NewService(quiz.Config{
		Store: store,
		DefaultTime: domain.Timing{
			QuestionDuration:  s.c.Quiz.DefaultQuestionDuration,
			AnsweringDuration: s.c.Quiz.DefaultAnsweringDuration,
		},
	})

	s.service.registry = session.NewRegistry(session.RegistryConfig{
		Session: session.Config{
			Quizzes:       s.service.quiz,
			EventBus:      s.eb,
			StartingScore: s.c.Game.StartingScore,
			Decay: decay.Config{
				Interval: s.c.Game.DecayInterval,
				Step:     s.c.Game.DecayStep,
				Floor:    s.c.Game.ScoreFloor,
			},
		},
		CodeDigits:     s.c.Game.CodeDigits,
		EndedRetention: s.c.Game.EndedRetention,
	})

	s.service.webhook, err = notify.NewWebhook(notify.Config{
		EventBus: s.eb,
		URL:      s.c.Webhook.URL,
		Token:    s.c.Webhook.Token,
		Timeout:  s.c.Webhook.Timeout,
	})
	if err != nil {
		return err
	}

	return nil
}

func (s *Server) quizStore() (quiz.Store, error) {
	switch s.c.Quiz.Store {
	case StoreMemory, "":
		return quiz.NewMemoryStore(), nil

	case StorePostgres:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		store := quiz.NewPostgresStore(s.infra.postgres.quiz)
		if err := store.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("quiz: migrate: %w", err)
		}
		return store, nil
	}

	return nil, fmt.Errorf("unknown quiz store: %q", s.c.Quiz.Store)
}

func (s *Server) initAPI() {
	e := gin.New()
	e.Use(gin.Recovery())
	e.GET("/metrics", gin.WrapH(promhttp.Handler()))
	pprof.Register(e, "/debug/pprof")

	api.New(api.Config{
		EventBus:     s.eb,
		Registry:     s.service.registry,
		Quiz:         s.service.quiz,
		Webhook:      s.service.webhook,
		Redis:        s.infra.redis.pubsub,
		PubsubPrefix: s.c.Redis.Pubsub.Prefix,
		AllowOrigins: s.c.CORS.AllowOrigins,
	}).Register(e)

	s.grpc = grpc.NewServer(telemetry.GRPCServerOptions(slog.Default())...)
	s.health = health.NewServer()
	grpc_health_v1.RegisterHealthServer(s.grpc, s.health)
	reflection.Register(s.grpc)

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.c.HTTP.Port),
		Handler:           e,
		ReadHeaderTimeout: 60 * time.Second,
	}
}

func (s *Server) Start() {
	ctx := context.TODO()

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.c.GRPC.Port))
	if err != nil {
		slog.ErrorContext(ctx, "grpc server: listen failed", "error", err)
		panic(err)
	}

	s.health.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)

	var eg errgroup.Group
	eg.Go(func() error {
		slog.InfoContext(ctx, fmt.Sprintf("server: gRPC listening on port %d", s.c.GRPC.Port))
		return s.grpc.Serve(lis)
	})

	eg.Go(func() error {
		slog.InfoContext(ctx, fmt.Sprintf("server: HTTP listening on port %d", s.c.HTTP.Port))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	err = eg.Wait()
	if err != nil {
		slog.ErrorContext(ctx, "server: shutdown with error", "error", err)
	}
}

func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.health.Shutdown()

	if err := s.http.Shutdown(ctx); err != nil {
		slog.ErrorContext(ctx, "server: shutdown HTTP failed", "error", err)
	}
	s.grpc.GracefulStop()

	s.service.registry.Close()
	s.eb.Stop()
	s.service.webhook.Wait()

	if err := s.closeInfra(); err != nil {
		slog.ErrorContext(ctx, "server: close infra failed", "error", err)
	}

	slog.InfoContext(ctx, "server: shutdown completed")
}

func (s *Server) closeInfra() error {
	var errs []error

	if s.infra.redis.pubsub != nil {
		if err := s.infra.redis.pubsub.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis: pubsub: %w", err))
		}
	}

	if s.infra.postgres.quiz != nil {
		s.infra.postgres.quiz.Close()
	}

	return errors.Join(errs...)
}
