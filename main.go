package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"casenotes/pkg/api"
	"casenotes/pkg/auth"
	"casenotes/pkg/cache"
	"casenotes/pkg/config"
	"casenotes/pkg/mutation"
	"casenotes/pkg/notify"
	"casenotes/pkg/referral"
	"casenotes/pkg/session"
	"casenotes/pkg/sheets"

	log "github.com/sirupsen/logrus"
)

func main() {
	verbose := flag.Bool("v", false, "Verbose logging")
	configFile := flag.String("config", "casenotes.toml", "Path to the TOML config file")

	flag.Parse()
	if *verbose {
		// Set the log level to debug
		log.SetLevel(log.DebugLevel)
	}
	// Set the log format to include a leading timestamp in ISO8601 format
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp: true,
	})

	config.LoadEnv()
	cfg, err := config.New(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config %s: %v", *configFile, err)
	}
	settings := cfg.Settings

	ctx := context.Background()
	store, err := sheets.NewSheetClient(ctx, settings.CredentialsFile, settings.SpreadsheetID, settings.SpreadsheetName)
	if err != nil {
		log.Fatalf("Failed to connect to Google Sheets: %v", err)
	}

	snapshots := cache.New(store, cfg.CacheTTL())
	seq := mutation.NewSequencer(store, snapshots)
	users := auth.NewDirectory(settings.Users)

	var sender notify.Sender = notify.LogSender{}
	if settings.Mail.APIKey != "" {
		mj, err := notify.NewMailjetSender(settings.Mail.APIKey, settings.Mail.APISecret, settings.Mail.Sender, settings.Mail.SenderName)
		if err != nil {
			log.Fatalf("Failed to configure Mailjet: %v", err)
		}
		sender = mj
	} else {
		log.Warn("MAILJET_API_KEY not set, referral notifications will only be logged")
	}

	referrals := referral.NewService(
		seq,
		notify.NewDispatcher(sender),
		referral.Coordinators(settings.Coordinators, users),
		settings.DashboardURL,
		settings.ContactEmail,
	)
	server := api.NewServer(snapshots, seq, referrals, session.NewTracker(), users)

	go startServer(settings.ListenAddress, server.GetRouter())

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)

mainloop:
	// In all cases, just exit and let the container restart from scratch.
	// There's less to get wrong doing it this way.
	for {
		select {
		case <-signalChan:
			log.Info("Signalled, breaking main loop")
			break mainloop
		}
	}
}

func startServer(addr string, router http.Handler) {
	server := http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 2 * time.Second,
	}
	log.Infof("listening for HTTP on: %s", server.Addr)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("ListenAndServe error: %v", err)
	}
}
