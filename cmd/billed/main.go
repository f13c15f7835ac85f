package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
	"go.etcd.io/bbolt"
	"go.uber.org/zap"

	"github.com/billed-app/billed/internal/auth"
	"github.com/billed-app/billed/internal/bill"
	"github.com/billed-app/billed/internal/locale"
	"github.com/billed-app/billed/internal/logger"
	"github.com/billed-app/billed/internal/scanning"
	"github.com/billed-app/billed/internal/session"
	"github.com/billed-app/billed/internal/web"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	defer logger.Sync()

	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Warn("reading .env", zap.Error(err))
	}

	flags := ff.NewFlagSet("billed")
	var (
		port           = flags.IntLong("port", 8080, "HTTP server port")
		dbPath         = flags.StringLong("db", "billed.db", "Bolt database file path (accounts, sessions and bolt bills)")
		storagePath    = flags.StringLong("storage", "./receipts", "Receipt storage directory path")
		dbDriver       = flags.StringLong("db-driver", "bolt", "Bill database: 'bolt' or 'postgres'")
		postgresDSN    = flags.StringLong("postgres-dsn", "", "Postgres connection string when db-driver is postgres")
		sessionBackend = flags.StringLong("session-backend", "bolt", "Session backend: 'bolt' or 'memcache'")
		memcacheHosts  = flags.StringLong("memcache-hosts", "localhost:11211", "Comma separated memcached hosts")
		sessionTTL     = flags.DurationLong("session-ttl", 24*time.Hour, "Session lifetime in memcached")
		localeName     = flags.StringLong("locale", "fr", "Display locale: 'fr' or 'en'")
		scannerType    = flags.StringLong("scanner", "none", "Receipt scanner: 'none', 'gemini' or 'ollama'")
		geminiKey      = flags.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel    = flags.StringLong("gemini-model", "gemini-2.5-flash", "Google Gemini model name")
		ollamaURL      = flags.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel    = flags.StringLong("ollama-model", "llava", "Ollama model name")
		adminEmail     = flags.StringLong("admin-email", "", "Email of the administrator account to create or promote at startup")
		adminPassword  = flags.StringLong("admin-password", "", "Password of the administrator account (required to create it)")
		authUser       = flags.StringLong("auth-user", "", "Bill API basic auth username (optional)")
		authPass       = flags.StringLong("auth-pass", "", "Bill API basic auth password (optional)")
		showVersion    = flags.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(flags, os.Args[1:],
		ff.WithEnvVarPrefix("BILLED"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(flags))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	formatter, err := locale.ForName(*localeName)
	if err != nil {
		logger.Fatal("invalid locale", zap.Error(err))
	}

	logger.Info("initializing database", zap.String("path", *dbPath))
	boltDB, err := bill.NewBoltDB(*dbPath)
	if err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}
	defer boltDB.Close()

	var db bill.DB = boltDB
	switch *dbDriver {
	case "bolt":
	case "postgres":
		logger.Info("initializing postgres bill database")
		pg, err := bill.NewPostgresDB(*postgresDSN)
		if err != nil {
			logger.Fatal("failed to initialize postgres", zap.Error(err))
		}
		defer pg.Close()
		db = pg
	default:
		logger.Fatal("invalid db driver", zap.String("driver", *dbDriver))
	}

	users, err := auth.NewBoltUsers(boltDB.Bolt())
	if err != nil {
		logger.Fatal("failed to initialize accounts", zap.Error(err))
	}

	authService := auth.NewService(users)
	if *adminEmail != "" {
		if err := authService.EnsureAdmin(context.Background(), *adminEmail, *adminPassword); err != nil {
			logger.Fatal("failed to set up admin account", zap.Error(err))
		}
	}

	sessions, err := newSessionBackend(*sessionBackend, boltDB.Bolt(), *memcacheHosts, *sessionTTL)
	if err != nil {
		logger.Fatal("failed to initialize sessions", zap.Error(err))
	}

	var scanner scanning.Scanner
	switch *scannerType {
	case "none":
	case "gemini":
		apiKey := *geminiKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			logger.Fatal("Gemini API key is required. Set --gemini-key flag or GEMINI_API_KEY environment variable")
		}
		logger.Info("initializing Gemini scanner", zap.String("model", *geminiModel))
		scanner, err = scanning.NewGemini(apiKey, *geminiModel)
		if err != nil {
			logger.Fatal("failed to initialize Gemini", zap.Error(err))
		}
	case "ollama":
		logger.Info("initializing Ollama scanner", zap.String("url", *ollamaURL), zap.String("model", *ollamaModel))
		scanner, err = scanning.NewOllama(*ollamaURL, *ollamaModel)
		if err != nil {
			logger.Fatal("failed to initialize Ollama", zap.Error(err))
		}
	default:
		logger.Fatal("invalid scanner type", zap.String("type", *scannerType), zap.String("valid", "none, gemini or ollama"))
	}
	if scanner != nil {
		defer scanner.Close()
	}

	logger.Info("initializing storage", zap.String("path", *storagePath))
	storage, err := bill.NewLocalStorage(*storagePath)
	if err != nil {
		logger.Fatal("failed to initialize storage", zap.Error(err))
	}

	server := web.NewServer(web.Deps{
		Store:     bill.NewStore(db, storage),
		Auth:      authService,
		Sessions:  sessions,
		Formatter: formatter,
		Scanner:   scanner,
	}, web.BasicAuth{
		Username: *authUser,
		Password: *authPass,
	})

	addr := fmt.Sprintf(":%d", *port)
	go func() {
		if err := server.Start(addr); err != nil {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	logger.Info("server started", zap.String("address", fmt.Sprintf("http://localhost%s", addr)), zap.String("version", version))
	if *authUser != "" || *authPass != "" {
		logger.Info("bill API basic auth enabled", zap.String("user", *authUser))
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down")
}

func newSessionBackend(kind string, db *bbolt.DB, hosts string, ttl time.Duration) (session.Backend, error) {
	switch kind {
	case "bolt":
		return session.NewBoltBackend(db)
	case "memcache":
		return session.NewMemcacheBackend(ttl, strings.Split(hosts, ",")...)
	}
	return nil, fmt.Errorf("unknown session backend %q", kind)
}
