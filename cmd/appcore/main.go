package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"

	"github.com/dishwish/clientcore/internal/app"
	"github.com/dishwish/clientcore/internal/auth"
	authrepo "github.com/dishwish/clientcore/internal/auth/repo"
	"github.com/dishwish/clientcore/internal/credential"
	"github.com/dishwish/clientcore/internal/event"
	eventrepo "github.com/dishwish/clientcore/internal/event/repo"
	"github.com/dishwish/clientcore/internal/profile"
	profilerepo "github.com/dishwish/clientcore/internal/profile/repo"
	"github.com/dishwish/clientcore/internal/session"
	"github.com/dishwish/clientcore/internal/settings"
	"github.com/dishwish/clientcore/pkg/database"
	"github.com/dishwish/clientcore/pkg/utilities"
)

func main() {
	// load .env file if present so os.Getenv picks values from it
	_ = godotenv.Load()

	lg, err := utilities.InitLogger(utilities.LogConfigFromEnv())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer lg.Sync()
	sugar := lg.Sugar()
	sugar.Info("starting dishwish client core")

	cfg := database.ConfigFromEnv()
	sqlDB, err := database.Connect(cfg)
	if err != nil {
		sugar.Fatalf("db connect: %v", err)
	}
	defer sqlDB.Close()
	sqlxDB := sqlx.NewDb(sqlDB, "postgres")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	userRepo := authrepo.NewUserRepo(sqlxDB)
	sessionRepo := authrepo.NewSessionRepo(sqlxDB)
	eventRepo := eventrepo.NewEventRepo(sqlxDB)
	profileRepo := profilerepo.NewUserInfoRepo(sqlxDB)

	setupCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := userRepo.EnsureTable(setupCtx); err != nil {
		sugar.Fatalf("ensure users table: %v", err)
	}
	if err := sessionRepo.EnsureTable(setupCtx); err != nil {
		sugar.Fatalf("ensure auth_sessions table: %v", err)
	}
	if err := eventRepo.EnsureTables(setupCtx); err != nil {
		sugar.Fatalf("ensure event tables: %v", err)
	}
	if err := profileRepo.EnsureTable(setupCtx); err != nil {
		sugar.Fatalf("ensure user_info table: %v", err)
	}

	issuer := os.Getenv("AUTH_ISSUER")
	if issuer == "" {
		issuer = "https://auth.dishwish.local"
	}
	authSvc, err := auth.NewService(userRepo, sessionRepo, issuer)
	if err != nil {
		sugar.Fatalf("init auth service: %v", err)
	}

	dataDir := os.Getenv("DATA_DIR")
	if dataDir == "" {
		dataDir = ".dishwish"
	}
	creds, err := credential.NewFileStore(filepath.Join(dataDir, "credentials"))
	if err != nil {
		sugar.Fatalf("open credential store: %v", err)
	}
	prefs, err := settings.Open(dataDir)
	if err != nil {
		sugar.Fatalf("open settings store: %v", err)
	}

	sessions := session.NewManager(creds, prefs, authSvc, sugar, session.Options{
		ClearCurrentUser: os.Getenv("CLEAR_USER_ON_SIGNOUT") == "1",
	})

	application := &app.App{
		Sessions: sessions,
		Profiles: profile.NewCache(profileRepo),
		Syncer:   event.NewSyncer(eventRepo, sugar),
		Resolver: event.NewResolver(eventRepo, event.DefaultRegistry()),
		Recorder: event.NewRecorder(eventRepo),
		Events:   eventRepo,
		Log:      sugar,
	}

	// blanket timeout on the whole launch sequence; a slow backend means
	// no gate rather than a hung start
	launchCtx, cancelLaunch := context.WithTimeout(ctx, 15*time.Second)
	defer cancelLaunch()
	result := application.Launch(launchCtx)

	switch {
	case result.Session == nil:
		sugar.Info("no session restored, starting signed out")
	case result.Pending != nil:
		sugar.Infow("gating event pending",
			"event", result.Pending.Definition.Name,
			"kind", result.Pending.Kind.String(),
			"priority", result.Pending.Definition.Priority,
		)
	default:
		sugar.Infow("session restored, nothing pending",
			"user_id", result.Session.User.ID,
			"has_profile", result.Profile != nil,
		)
	}
}
