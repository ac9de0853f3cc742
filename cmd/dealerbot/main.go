package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fusioncars/dealerbot/internal/bot"
	"github.com/fusioncars/dealerbot/internal/flow"
	"github.com/fusioncars/dealerbot/internal/genai"
	"github.com/fusioncars/dealerbot/internal/lockfile"
	"github.com/fusioncars/dealerbot/internal/messaging"
	"github.com/fusioncars/dealerbot/internal/scheduler"
	"github.com/fusioncars/dealerbot/internal/store"
	"github.com/fusioncars/dealerbot/internal/twiliowhatsapp"
	"github.com/fusioncars/dealerbot/internal/util"
	"github.com/fusioncars/dealerbot/internal/whatsapp"
	"github.com/joho/godotenv"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for dealerbot state data
	DefaultStateDir = "/var/lib/dealerbot"
	// DefaultDBFileName is the default SQLite catalog database filename
	DefaultDBFileName = "dealerbot.db"
	// DefaultSessionDBFileName is the default whatsmeow session database filename
	DefaultSessionDBFileName = "whatsmeow.db"
	// DefaultWebhookAddr is the default listen address for the Twilio webhook
	DefaultWebhookAddr = ":8090"
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	lock, err := lockfile.AcquireLock(*flags.stateDir)
	if err != nil {
		slog.Error("Failed to acquire state directory lock", "error", err)
		os.Exit(1)
	}
	defer lock.Release()

	if err := run(flags); err != nil {
		slog.Error("dealerbot failed to run", "error", err)
		lock.Release()
		os.Exit(1)
	}
	slog.Info("dealerbot exited successfully")
}

// Config holds environment configuration
type Config struct {
	StateDir         string
	DatabaseURL      string
	SessionDSN       string
	OpenAIKey        string
	Messenger        string
	WebhookAddr      string
	DigestCron       string
	ConversationTTL  time.Duration
	RosterReloadIntv time.Duration
}

// Flags holds command line flag values
type Flags struct {
	qrOutput    *string
	numeric     *bool
	stateDir    *string
	dbDSN       *string
	sessionDSN  *string
	openaiKey   *string
	messenger   *string
	webhookAddr *string
	digestCron  *string

	conversationTTL  time.Duration
	rosterReloadIntv time.Duration
}

// initializeLogger sets up structured logging with debug level
func initializeLogger() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		StateDir:         os.Getenv("DEALERBOT_STATE_DIR"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		SessionDSN:       os.Getenv("WHATSAPP_DB_DSN"),
		OpenAIKey:        os.Getenv("OPENAI_API_KEY"),
		Messenger:        os.Getenv("MESSAGING_BACKEND"),
		WebhookAddr:      os.Getenv("TWILIO_WEBHOOK_ADDR"),
		DigestCron:       os.Getenv("DAILY_DIGEST_CRON"),
		ConversationTTL:  util.ParseDurationEnv("CONVERSATION_TTL", flow.DefaultConversationTTL),
		RosterReloadIntv: util.ParseDurationEnv("ROSTER_RELOAD_INTERVAL", bot.DefaultRosterReloadInterval),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No DEALERBOT_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}
	if config.Messenger == "" {
		config.Messenger = "whatsapp"
	}
	if config.WebhookAddr == "" {
		config.WebhookAddr = DefaultWebhookAddr
	}

	slog.Debug("environment variables loaded",
		"DEALERBOT_STATE_DIR", config.StateDir,
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"WHATSAPP_DB_DSN_SET", config.SessionDSN != "",
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"MESSAGING_BACKEND", config.Messenger,
		"DAILY_DIGEST_CRON", config.DigestCron,
		"CONVERSATION_TTL", config.ConversationTTL,
		"ROSTER_RELOAD_INTERVAL", config.RosterReloadIntv)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		qrOutput:    flag.String("qr-output", "", "path to write login QR code"),
		numeric:     flag.Bool("numeric-code", false, "use numeric login code instead of QR code"),
		stateDir:    flag.String("state-dir", config.StateDir, "state directory for dealerbot data (overrides $DEALERBOT_STATE_DIR)"),
		dbDSN:       flag.String("db-dsn", config.DatabaseURL, "catalog database DSN, Postgres or SQLite path (overrides $DATABASE_URL)"),
		sessionDSN:  flag.String("session-dsn", config.SessionDSN, "whatsmeow session database DSN (overrides $WHATSAPP_DB_DSN)"),
		openaiKey:   flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key for /describe (overrides $OPENAI_API_KEY)"),
		messenger:   flag.String("messenger", config.Messenger, "messaging backend: whatsapp or twilio (overrides $MESSAGING_BACKEND)"),
		webhookAddr: flag.String("webhook-addr", config.WebhookAddr, "listen address for the Twilio inbound webhook (overrides $TWILIO_WEBHOOK_ADDR)"),
		digestCron:  flag.String("digest-cron", config.DigestCron, "cron expression for the daily admin digest, empty disables (overrides $DAILY_DIGEST_CRON)"),

		conversationTTL:  config.ConversationTTL,
		rosterReloadIntv: config.RosterReloadIntv,
	}

	flag.Parse()

	// File-based defaults live under the state directory.
	if *flags.dbDSN == "" {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
		slog.Debug("No catalog DSN provided, defaulting to SQLite", "sqlite_path", *flags.dbDSN)
	}
	if *flags.sessionDSN == "" {
		*flags.sessionDSN = filepath.Join(*flags.stateDir, DefaultSessionDBFileName)
		slog.Debug("No session DSN provided, defaulting to SQLite", "sqlite_path", *flags.sessionDSN)
	}

	slog.Debug("flags parsed",
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"sessionDSN_set", *flags.sessionDSN != "",
		"openaiKeySet", *flags.openaiKey != "",
		"messenger", *flags.messenger,
		"webhookAddr", *flags.webhookAddr,
		"digestCron", *flags.digestCron)

	return flags
}

// buildMessagingService constructs the configured messaging backend. For the
// Twilio backend it also starts the inbound webhook listener.
func buildMessagingService(flags Flags) (messaging.Service, error) {
	if *flags.messenger == "twilio" {
		client, err := twiliowhatsapp.NewClient()
		if err != nil {
			return nil, err
		}
		service := messaging.NewTwilioService(client)

		mux := http.NewServeMux()
		mux.HandleFunc("/webhook/twilio", service.WebhookHandler)
		go func() {
			slog.Info("Twilio webhook listening", "addr", *flags.webhookAddr)
			if err := http.ListenAndServe(*flags.webhookAddr, mux); err != nil {
				slog.Error("Twilio webhook server stopped", "error", err)
			}
		}()
		return service, nil
	}

	var waOpts []whatsapp.Option
	if *flags.qrOutput != "" {
		waOpts = append(waOpts, whatsapp.WithQRCodeOutput(*flags.qrOutput))
	}
	if *flags.numeric {
		waOpts = append(waOpts, whatsapp.WithNumericCode())
	}
	waOpts = append(waOpts, whatsapp.WithDBDSN(*flags.sessionDSN))

	client, err := whatsapp.NewClient(waOpts...)
	if err != nil {
		return nil, err
	}
	return messaging.NewWhatsAppService(client), nil
}

// run wires the modules together and blocks until shutdown.
func run(flags Flags) error {
	st, err := store.NewStore(store.WithDSN(*flags.dbDSN))
	if err != nil {
		return err
	}
	defer st.Close()

	msgService, err := buildMessagingService(flags)
	if err != nil {
		return err
	}
	defer msgService.Stop()

	botOpts := []bot.Option{
		bot.WithConversationTTL(flags.conversationTTL),
		bot.WithRosterReloadInterval(flags.rosterReloadIntv),
	}
	if *flags.openaiKey != "" {
		describer, err := genai.NewClient(genai.WithAPIKey(*flags.openaiKey))
		if err != nil {
			return err
		}
		botOpts = append(botOpts, bot.WithDescriber(describer))
		slog.Info("Description generation enabled")
	} else {
		slog.Info("No OpenAI API key configured, /describe disabled")
	}

	b := bot.NewBot(st, msgService, botOpts...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := msgService.Start(ctx); err != nil {
		return err
	}

	if *flags.digestCron != "" {
		sched := scheduler.NewScheduler()
		defer sched.Stop()
		if err := sched.AddJob(*flags.digestCron, func() {
			b.SendDailyDigest(context.Background())
		}); err != nil {
			return err
		}
		slog.Info("Daily digest scheduled", "cron", *flags.digestCron)
	}

	slog.Info("Bootstrapping dealerbot", "messenger", *flags.messenger, "state_dir", *flags.stateDir)
	if err := b.Run(ctx); err != nil && err != context.Canceled {
		return err
	}
	return nil
}
