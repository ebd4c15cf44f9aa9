// Krishi is a terminal client for the Smart Agri backend: login, an AI
// assistant with voice input and read-aloud answers, and crop
// recommendations.
package main

import (
	"fmt"
	"os"

	"github.com/jwulff/krishi/internal/api"
	"github.com/jwulff/krishi/internal/app"
	"github.com/jwulff/krishi/internal/auth"
	"github.com/jwulff/krishi/internal/config"
	"github.com/jwulff/krishi/internal/crop"
	"github.com/jwulff/krishi/internal/logger"
	"github.com/jwulff/krishi/internal/route"
	"github.com/jwulff/krishi/internal/session"
	"github.com/jwulff/krishi/internal/speech"

	tea "github.com/charmbracelet/bubbletea"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "krishi:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log, logFile, err := logger.New(cfg.Log.Level, cfg.Log.File)
	if err != nil {
		return err
	}
	defer logFile.Close()

	persistent, err := session.OpenSQLiteTier(cfg.DBPath)
	if err != nil {
		return err
	}
	defer persistent.Close()

	store := session.New(persistent, session.NewMemoryTier(), log)
	router := route.NewRouter(store, log)

	// Set before Run; the forbidden handler only fires from commands.
	var prog *tea.Program
	client, err := api.New(api.Config{BaseURL: cfg.APIURL, Timeout: cfg.RequestTimeout}, store, router,
		api.WithLogger(log),
		api.WithForbiddenHandler(func() {
			if prog != nil {
				prog.Send(app.ForbiddenMsg{})
			}
		}),
	)
	if err != nil {
		return err
	}

	locator, err := crop.ParseLocation(cfg.Location)
	if err != nil {
		return err
	}

	m := app.New(app.Deps{
		Router:     router,
		Session:    store,
		Auth:       auth.NewService(client, store, log),
		Backend:    client,
		Locator:    locator,
		SocketPath: cfg.SocketPath,
		Locale:     cfg.Locale,
		Language:   cfg.Language,
		Speech:     speech.Options{Locales: []string{cfg.Locale, "hi-IN", "en-IN"}},
		Log:        log,
	})

	log.WithField("api", cfg.APIURL).Info("starting")
	prog = tea.NewProgram(m, tea.WithAltScreen())
	if _, err := prog.Run(); err != nil {
		return fmt.Errorf("run: %w", err)
	}
	return nil
}
