package main

import (
	"fmt"

	"saintagent/internal/browser"
	"saintagent/internal/cafeteria"
	"saintagent/internal/config"
	"saintagent/internal/creds"
	"saintagent/internal/knowledge"
	"saintagent/internal/notice"
	"saintagent/internal/notify"
	"saintagent/internal/portal"
	"saintagent/internal/store"
	"saintagent/internal/tasks"
	"saintagent/internal/tools"
)

// app bundles the wired components shared by the subcommands.
type app struct {
	cfg       *config.Config
	st        *store.Store
	sessions  *browser.Store
	portal    *portal.Client
	cafeteria *cafeteria.Client
	notices   *notice.Client
	kb        *knowledge.NoticeBase
	creds     creds.Provider
	tasks     *tasks.Registry
	notifier  notify.Notifier
}

// buildApp wires everything below the model and the HTTP surface.
func buildApp(cfg *config.Config) (*app, error) {
	st, err := store.Open(cfg.DatabasePath())
	if err != nil {
		return nil, err
	}

	driver := browser.NewRodDriver(cfg.Browser.Headless, cfg.GetNavigationTimeout())
	sessions := browser.NewStore(browser.StoreConfig{
		ProfilesRoot:   cfg.ProfilesPath(),
		SessionTimeout: cfg.GetSessionTimeout(),
		CloseTimeout:   cfg.GetCloseTimeout(),
	}, driver)

	portalClient := portal.NewClient(portal.Config{
		EntryURL:          cfg.Portal.EntryURL,
		FrameTimeout:      cfg.GetFrameTimeout(),
		ActionTimeout:     cfg.GetActionTimeout(),
		NavigationTimeout: cfg.GetNavigationTimeout(),
		SettleInterval:    cfg.GetSettleInterval(),
	}, sessions)

	cafeteriaClient := cafeteria.NewClient()
	noticeClient := notice.NewClient()
	kb := knowledge.NewNoticeBase(st, noticeClient)
	provider := creds.NewEnvProvider()

	taskRegistry, err := tasks.NewRegistry(
		tasks.GradeCheck(portalClient, sessions, provider),
		tasks.ScholarshipNoticeCheck(noticeClient),
		tasks.CafeteriaMenuCheck(cafeteriaClient, cfg.Scheduler.CafeteriaCode),
	)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("build task registry: %w", err)
	}

	var notifier notify.Notifier
	if cfg.Notify.Endpoint != "" {
		notifier = notify.NewHTTPNotifier(cfg.Notify.Endpoint, cfg.GetNotifyTimeout())
	} else {
		notifier = notify.LogNotifier{}
	}

	return &app{
		cfg:       cfg,
		st:        st,
		sessions:  sessions,
		portal:    portalClient,
		cafeteria: cafeteriaClient,
		notices:   noticeClient,
		kb:        kb,
		creds:     provider,
		tasks:     taskRegistry,
		notifier:  notifier,
	}, nil
}

// registryFor builds the per-user tool registry: portal primitives bound to
// the user's session plus the fetch tools.
func (a *app) registryFor(userID int64) (*tools.Registry, error) {
	r := tools.NewRegistry()
	ts := tools.NewPortalToolSet(a.portal, a.sessions, browser.UserKey(userID), userID, a.creds)
	if err := ts.RegisterAll(r); err != nil {
		return nil, err
	}
	if err := r.Register(tools.CafeteriaTool(a.cafeteria)); err != nil {
		return nil, err
	}
	if err := r.Register(tools.NoticeSearchTool(a.kb)); err != nil {
		return nil, err
	}
	return r, nil
}
