package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"restaurant-system/internal/apiclient"
	"restaurant-system/internal/composer"
	"restaurant-system/internal/config"
	"restaurant-system/internal/database"
	"restaurant-system/internal/logger"
	"restaurant-system/internal/messaging"
	"restaurant-system/internal/models"
	"restaurant-system/internal/server"
	"restaurant-system/internal/services/auth"
	"restaurant-system/internal/services/board"
	"restaurant-system/internal/services/menu"
	"restaurant-system/internal/services/notification"
	"restaurant-system/internal/services/order"
	"restaurant-system/internal/services/waitress"
	"restaurant-system/internal/session"
	"restaurant-system/internal/telemetry"
)

func main() {
	var (
		mode          = flag.String("mode", "", "Service mode (order-service, terminal, notification-subscriber)")
		configPath    = flag.String("config", "config.yaml", "Path to the YAML config file")
		port          = flag.Int("port", 0, "HTTP port (overrides server.port)")
		maxConcurrent = flag.Int("max-concurrent", 50, "Maximum concurrent order creations")
		prefetch      = flag.Int("prefetch", 1, "RabbitMQ prefetch count")
		username      = flag.String("username", "", "Terminal login name (prompted when empty)")
		password      = flag.String("password", "", "Terminal password (prompted when empty)")
	)
	flag.Parse()

	if *mode == "" {
		fmt.Fprintf(os.Stderr, "Error: --mode flag is required\n")
		flag.Usage()
		os.Exit(1)
	}

	// .env is optional; real environment variables win
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}

	var log *logger.Logger
	if *mode == "terminal" {
		log = logger.NewStderr(*mode, zapcore.WarnLevel)
	} else {
		log = logger.New(*mode)
	}
	defer log.Sync()
	requestID := logger.GenerateRequestID()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("service_started", fmt.Sprintf("Starting %s", *mode), requestID, map[string]interface{}{
		"mode":          *mode,
		"port":          cfg.Server.Port,
		"events_driver": cfg.Events.Driver,
	})

	switch *mode {
	case "order-service":
		err = runOrderService(ctx, cfg, log, int64(*maxConcurrent))
	case "terminal":
		err = runTerminal(ctx, cfg, log, *username, *password)
	case "notification-subscriber":
		err = runNotificationSubscriber(ctx, cfg, log, *prefetch)
	default:
		err = fmt.Errorf("unknown mode: %s", *mode)
	}
	if err != nil {
		log.Error("service_failed", fmt.Sprintf("%s failed", *mode), requestID, err, nil)
		log.Sync()
		os.Exit(1)
	}

	log.Info("service_stopped", "Service stopped gracefully", requestID, nil)
}

func runOrderService(ctx context.Context, cfg *config.Config, log *logger.Logger, maxConcurrent int64) error {
	db, err := database.New(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	if err := db.RunMigrations(ctx, database.Migrations()); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	meter, shutdownMetrics, err := telemetry.Setup(ctx, "order-service", cfg.Telemetry.OTLPEndpoint)
	if err != nil {
		return err
	}
	defer shutdownMetrics(context.Background())
	metrics, err := telemetry.NewMetrics(meter)
	if err != nil {
		return err
	}

	publisher, err := newPublisher(cfg, log)
	if err != nil {
		return err
	}
	defer publisher.Close()

	authService := auth.NewService(auth.NewPostgresRepository(db), cfg.Auth.TokenTTL, log)
	if err := authService.EnsureUsers(ctx, cfg.Auth.DemoUsers); err != nil {
		return fmt.Errorf("failed to create users: %w", err)
	}

	menuService := menu.NewService(menu.NewPostgresRepository(db), log)
	orderService := order.NewService(order.NewPostgresRepository(db), menuService, publisher, metrics, log, order.Options{
		MinTable:      cfg.Server.MinTable,
		MaxTable:      cfg.Server.MaxTable,
		MaxConcurrent: maxConcurrent,
	})

	router := server.NewRouter(server.Handlers{
		AuthService: authService,
		Auth:        auth.NewHandler(authService, log),
		Menu:        menu.NewHandler(menuService, log),
		Order:       order.NewHandler(orderService, log),
	}, log)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.New(cfg.Server.Port, router, log).Run(ctx)
	})
	g.Go(func() error {
		return authService.PurgeExpired(ctx, 10*time.Minute)
	})
	return g.Wait()
}

func newPublisher(cfg *config.Config, log *logger.Logger) (messaging.EventPublisher, error) {
	switch cfg.Events.Driver {
	case "rabbitmq":
		conn, err := messaging.NewConnection(cfg, log)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize messaging: %w", err)
		}
		log.Info("rabbitmq_connected", "Connected to RabbitMQ", "startup", nil)
		return messaging.NewPublisher(conn, log), nil
	case "kafka":
		return messaging.NewKafkaPublisher(cfg.Kafka, log), nil
	default:
		return messaging.NopPublisher{}, nil
	}
}

func runNotificationSubscriber(ctx context.Context, cfg *config.Config, log *logger.Logger, prefetch int) error {
	var consumer messaging.Subscriber
	switch cfg.Events.Driver {
	case "rabbitmq":
		conn, err := messaging.NewConnection(cfg, log)
		if err != nil {
			return fmt.Errorf("failed to initialize messaging: %w", err)
		}
		consumer = messaging.NewConsumer(conn, log, messaging.NotificationsQueue, "notification-subscriber", prefetch)
	case "kafka":
		consumer = messaging.NewKafkaConsumer(cfg.Kafka.Brokers, cfg.Kafka.NotificationTopic, cfg.Kafka.GroupID, log)
	default:
		return errors.New("notification-subscriber needs events.driver rabbitmq or kafka")
	}

	return notification.NewSubscriber(consumer, log, os.Stdout).Start(ctx)
}

func runTerminal(ctx context.Context, cfg *config.Config, log *logger.Logger, username, password string) error {
	in := bufio.NewReader(os.Stdin)
	if username == "" {
		username = prompt(in, "Username: ")
	}
	if password == "" {
		password = prompt(in, "Password: ")
	}

	api := apiclient.New(cfg.API.BaseURL, cfg.API.Timeout)
	sess, err := session.Login(ctx, api, username, password)
	if err != nil {
		return err
	}
	defer func() {
		if err := sess.Logout(context.Background()); err != nil && !errors.Is(err, session.ErrSignedOut) {
			log.Warn("logout_failed", "Failed to revoke token", "", map[string]interface{}{"error": err.Error()})
		}
	}()

	rnd := rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0))
	fmt.Println(session.Greeting(sess.User.FullName, rnd))

	meter, shutdownMetrics, err := telemetry.Setup(ctx, "terminal", cfg.Telemetry.OTLPEndpoint)
	if err != nil {
		return err
	}
	defer shutdownMetrics(context.Background())
	metrics, err := telemetry.NewMetrics(meter)
	if err != nil {
		return err
	}

	router := session.NewRouter()
	router.Handle(models.RoleWaitress, func(ctx context.Context, s *session.Session) error {
		return runWaitress(ctx, cfg, s, metrics, log, rnd, in)
	})
	router.Handle(models.RoleKitchen, func(ctx context.Context, s *session.Session) error {
		return runBoard(ctx, cfg, s, models.Kitchen, metrics, log, in)
	})
	router.Handle(models.RoleBartender, func(ctx context.Context, s *session.Session) error {
		return runBoard(ctx, cfg, s, models.Bar, metrics, log, in)
	})
	router.Handle(models.RoleAdministrator, func(ctx context.Context, s *session.Session) error {
		return runBoard(ctx, cfg, s, "", metrics, log, in)
	})

	return router.Dispatch(ctx, sess)
}

func runWaitress(ctx context.Context, cfg *config.Config, s *session.Session, metrics *telemetry.Metrics,
	log *logger.Logger, rnd *rand.Rand, in io.Reader) error {
	policy := composer.AllowEmpty
	if cfg.Composer.KeepLastClient {
		policy = composer.KeepLastClient
	}
	c := composer.New(composer.Options{
		MinTable: cfg.Server.MinTable,
		MaxTable: cfg.Server.MaxTable,
		Removal:  policy,
	})

	workflow := waitress.NewWorkflow(s.API, c, metrics, log)
	if err := workflow.LoadCatalog(ctx); err != nil {
		return err
	}

	fmt.Println(`Type "help" for commands.`)
	shell := waitress.NewShell(workflow, os.Stdout, rnd)
	return untilDone(ctx, func() error { return shell.Run(ctx, in) })
}

func runBoard(ctx context.Context, cfg *config.Config, s *session.Session, dept models.Department,
	metrics *telemetry.Metrics, log *logger.Logger, in io.Reader) error {
	b := board.New(s.API, dept, cfg.Board.PollInterval, metrics, log)
	console := board.NewConsole(b, os.Stdout)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return b.Run(ctx, nil)
	})

	if sub, err := newBoardSubscriber(cfg, dept, log); err != nil {
		log.Warn("feed_unavailable", "Board will rely on polling only", "", map[string]interface{}{"error": err.Error()})
	} else if sub != nil {
		g.Go(func() error {
			return board.NewFeed(b, sub, log).Start(ctx)
		})
	}

	fmt.Println(`Type "show" to see orders, "help" for commands.`)
	err := untilDone(ctx, func() error { return console.Run(ctx, in) })
	cancel()
	if werr := g.Wait(); err == nil {
		err = werr
	}
	return err
}

// untilDone runs an interactive loop but returns as soon as ctx is cancelled,
// since a read from stdin cannot be interrupted.
func untilDone(ctx context.Context, run func() error) error {
	done := make(chan error, 1)
	go func() { done <- run() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return nil
	}
}

// newBoardSubscriber returns nil when no broker is configured
func newBoardSubscriber(cfg *config.Config, dept models.Department, log *logger.Logger) (messaging.Subscriber, error) {
	tag := "board-" + uuid.NewString()
	switch cfg.Events.Driver {
	case "rabbitmq":
		conn, err := messaging.NewConnection(cfg, log)
		if err != nil {
			return nil, err
		}
		if dept == "" {
			return messaging.NewWatchConsumer(conn, log, messaging.NotificationsExchange, "", tag), nil
		}
		return messaging.NewWatchConsumer(conn, log, messaging.OrdersExchange, models.GenerateRoutingKey(dept, "*"), tag), nil
	case "kafka":
		topic := cfg.Kafka.OrdersTopic
		if dept == "" {
			topic = cfg.Kafka.NotificationTopic
		}
		return messaging.NewKafkaConsumer(cfg.Kafka.Brokers, topic, tag, log), nil
	default:
		return nil, nil
	}
}

func prompt(in *bufio.Reader, label string) string {
	fmt.Print(label)
	line, _ := in.ReadString('\n')
	return strings.TrimSpace(line)
}
