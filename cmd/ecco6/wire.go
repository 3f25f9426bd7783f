package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/Lellalu/II1302-Ecco6-Button/internal/alarm"
	"github.com/Lellalu/II1302-Ecco6-Button/internal/calendar"
	"github.com/Lellalu/II1302-Ecco6-Button/internal/config"
	"github.com/Lellalu/II1302-Ecco6-Button/internal/contacts"
	"github.com/Lellalu/II1302-Ecco6-Button/internal/docs"
	"github.com/Lellalu/II1302-Ecco6-Button/internal/email"
	"github.com/Lellalu/II1302-Ecco6-Button/internal/geocode"
	"github.com/Lellalu/II1302-Ecco6-Button/internal/homeassistant"
	"github.com/Lellalu/II1302-Ecco6-Button/internal/llm"
	"github.com/Lellalu/II1302-Ecco6-Button/internal/news"
	"github.com/Lellalu/II1302-Ecco6-Button/internal/tasks"
	"github.com/Lellalu/II1302-Ecco6-Button/internal/timer"
	"github.com/Lellalu/II1302-Ecco6-Button/internal/tools"
	"github.com/Lellalu/II1302-Ecco6-Button/internal/transit"
	"github.com/Lellalu/II1302-Ecco6-Button/internal/weather"
)

// buildRegistry registers the tools of every configured backend. A
// backend that is not configured leaves its tools out, so the model
// never offers them. The returned func releases what was opened.
func buildRegistry(ctx context.Context, cfg *config.Config, loc *time.Location, alarms *alarm.Service, logger *slog.Logger) (*tools.Registry, func(), error) {
	reg := tools.NewRegistry(loc, logger)
	var closers []func() error
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				logger.Warn("close failed", "error", err)
			}
		}
	}
	fail := func(err error) (*tools.Registry, func(), error) {
		closeAll()
		return nil, nil, err
	}

	reg.SetAlarmService(alarms)

	taskStore, err := tasks.OpenStore(filepath.Join(cfg.DataDir, "tasks.db"))
	if err != nil {
		return fail(fmt.Errorf("open task store: %w", err))
	}
	closers = append(closers, taskStore.Close)
	reg.SetTaskStore(taskStore)

	if cfg.Documents.Path != "" {
		docStore, err := docs.NewStore(cfg.Documents.Path)
		if err != nil {
			return fail(err)
		}
		reg.SetDocumentStore(docStore)
	}

	if cfg.HomeAssistant.Configured() {
		ha := homeassistant.NewClient(cfg.HomeAssistant.URL, cfg.HomeAssistant.Token, logger)
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := ha.Ping(pingCtx); err != nil {
			// The bulb tools fail per call until Home Assistant is back.
			logger.Warn("home assistant unreachable", "url", cfg.HomeAssistant.URL, "error", err)
		}
		cancel()
		reg.SetLight(homeassistant.NewLight(ha))
	} else {
		logger.Info("light tools disabled (homeassistant not configured)")
	}

	if cfg.CalDAV.Configured() {
		cal, err := calendar.New(cfg.CalDAV, loc, logger)
		if err != nil {
			return fail(fmt.Errorf("caldav: %w", err))
		}
		reg.SetCalendar(cal)
	}

	if cfg.Email.Configured() {
		mailbox := email.NewMailbox(cfg.Email, logger)
		closers = append(closers, mailbox.Close)

		var dir tools.Contacts
		if cfg.CardDAV.Configured() {
			d, err := contacts.New(cfg.CardDAV, logger)
			if err != nil {
				return fail(fmt.Errorf("carddav: %w", err))
			}
			dir = d
		}
		reg.SetMailbox(mailbox, dir)
	}

	if cfg.Weather.Configured() {
		reg.SetWeather(weather.New(cfg.Weather, logger))
	}
	if cfg.News.Configured() {
		reg.SetNews(news.New(cfg.News, logger))
	}

	if cfg.Transit.Configured() {
		stops, err := transit.LoadStops(cfg.Transit.StopsFile)
		if err != nil {
			return fail(fmt.Errorf("load transit stops: %w", err))
		}
		logger.Info("transit stops loaded", "count", stops.Len())
		reg.SetTransit(transit.New(cfg.Transit, stops, logger))
	}

	if cfg.Geocode.APIKey != "" {
		reg.SetGeocoder(geocode.New(cfg.Geocode, logger))
	}
	if cfg.Timer.URL != "" {
		reg.SetTimer(timer.New(cfg.Timer.URL, logger))
	}

	return reg, closeAll, nil
}

// createLLMClient returns the client for the configured provider.
func createLLMClient(cfg *config.Config, logger *slog.Logger) llm.Client {
	if cfg.Agent.Provider == "ollama" {
		logger.Info("LLM client initialized", "provider", "ollama", "url", cfg.Agent.OllamaURL, "model", cfg.Agent.Model)
		return llm.NewOllamaClient(cfg.Agent.OllamaURL, logger)
	}
	logger.Info("LLM client initialized", "provider", "openai", "model", cfg.Agent.Model)
	return llm.NewOpenAIClient(cfg.OpenAI.BaseURL, cfg.OpenAI.APIKey, logger)
}
