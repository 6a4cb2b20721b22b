package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/alexanderramin/wbs/internal/cache"
	"github.com/alexanderramin/wbs/internal/cli"
	"github.com/alexanderramin/wbs/internal/config"
	"github.com/alexanderramin/wbs/internal/db"
	"github.com/alexanderramin/wbs/internal/feed"
	"github.com/alexanderramin/wbs/internal/logging"
	"github.com/alexanderramin/wbs/internal/permission"
	"github.com/alexanderramin/wbs/internal/repository"
	"github.com/alexanderramin/wbs/internal/service"
	"github.com/mattn/go-isatty"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(config.Options{ConfigFile: os.Getenv("WBS_CONFIG")})
	if err != nil {
		return err
	}

	log, err := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	// Open database
	database, err := db.OpenDB(cfg.DB.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer database.Close()

	// Wire repositories
	itemRepo := repository.NewSQLiteWBSItemRepo(database)
	permRepo := repository.NewSQLitePermissionRepo(database)

	// Wire unit of work for transactional operations
	uow := db.NewSQLiteUnitOfWork(database, log)

	changes, closeFeed, err := openFeed(cfg.Feed, log)
	if err != nil {
		return err
	}
	defer closeFeed()

	projectCache := cache.New(log)
	observer := service.NewLogUseCaseObserver(log)

	app := &cli.App{
		Items:       service.NewWBSService(itemRepo, uow, projectCache, changes, log, observer),
		Links:       service.NewTaskLinkService(uow, projectCache, changes, log, observer),
		Grants:      service.NewPermissionAdminService(permRepo, uow, log, observer),
		Import:      service.NewImportService(uow, projectCache, changes, log, observer),
		Permissions: permission.NewLoader(permRepo, permission.StaticIdentity{UserID: cfg.Identity.UserID}, cfg.Policy(), log),
		Feed:        changes,
		Cache:       projectCache,
		UserID:      cfg.Identity.UserID,
		CompanyID:   cfg.Identity.CompanyID,
		Log:         log,
	}

	// Detect interactive terminal for confirmation prompts.
	app.IsInteractive = func() bool {
		return isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd())
	}

	// Interrupts cancel the command context so watch exits cleanly.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// Execute root command
	rootCmd := cli.NewRootCmd(app)
	return rootCmd.ExecuteContext(ctx)
}

// openFeed returns the configured change feed. The in-process hub only
// reaches subscribers in this process; redis fans out across processes.
func openFeed(cfg config.FeedConfig, log *zap.Logger) (feed.Feed, func(), error) {
	if !strings.EqualFold(strings.TrimSpace(cfg.Driver), config.FeedRedis) {
		return feed.NewHub(), func() {}, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("connecting to redis at %s: %w", cfg.RedisAddr, err)
	}
	return feed.NewRedisFeed(client, log), func() { _ = client.Close() }, nil
}
