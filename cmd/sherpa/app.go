package main

import (
	"context"
	"errors"
	"log/slog"

	"github.com/xavierca1/sherpa/internal/config"
	"github.com/xavierca1/sherpa/internal/infra/attachment"
	"github.com/xavierca1/sherpa/internal/infra/browser"
	"github.com/xavierca1/sherpa/internal/infra/database"
	"github.com/xavierca1/sherpa/internal/infra/integration/apollo"
	"github.com/xavierca1/sherpa/internal/infra/integration/gemini"
	"github.com/xavierca1/sherpa/internal/infra/integration/kommo"
	"github.com/xavierca1/sherpa/internal/infra/integration/phantombuster"
	"github.com/xavierca1/sherpa/internal/infra/integration/whatsapp"
	"github.com/xavierca1/sherpa/internal/infra/mail"
	"github.com/xavierca1/sherpa/internal/infra/queue"
	"github.com/xavierca1/sherpa/internal/infra/worker"
	"github.com/xavierca1/sherpa/internal/logging"
	"github.com/xavierca1/sherpa/internal/throttle"
	"github.com/xavierca1/sherpa/internal/usecase"
)

var errInboxNotConfigured = errors.New("ingest: IMAP_ADDR is not set")

// app holds the store, the adapters chosen by configuration and the use
// cases built on them. Collaborators that are not configured stay nil
// interfaces, which disables their channel.
type app struct {
	cfg    *config.Config
	db     *database.DB
	rabbit *queue.RabbitMQ
	web    *browser.WhatsAppWeb
	logger *slog.Logger

	leads      *database.LeadRepository
	deliveries *database.DeliveryRepository
	examples   *database.ExampleRepository

	pb *phantombuster.Client

	createLead *usecase.CreateLeadUseCase
	gate       *usecase.ApprovalGate
	exampleUC  *usecase.ExamplesUseCase
	report     *usecase.ReportUseCase
	draft      *usecase.DraftLeadsUseCase
	dispatch   *usecase.DispatchLeadsUseCase
	ingest     *usecase.IngestRepliesUseCase
	discover   *usecase.DiscoverLeadsUseCase
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	db, err := database.Open(ctx, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:        cfg,
		db:         db,
		logger:     logging.New("app"),
		leads:      database.NewLeadRepository(db),
		deliveries: database.NewDeliveryRepository(db),
		examples:   database.NewExampleRepository(db),
	}
	p := cfg.Policy

	a.pb = phantombuster.NewClient(cfg.PhantomBuster.APIKey,
		phantombuster.WithBaseURL(cfg.PhantomBuster.BaseURL),
		phantombuster.WithSearchAgent(cfg.PhantomBuster.SearchAgentID),
		phantombuster.WithConnectionAgent(cfg.PhantomBuster.ConnectionAgentID),
	)
	llm := gemini.NewClient(cfg.Gemini.APIKey, gemini.WithBaseURL(cfg.Gemini.BaseURL))

	a.createLead = usecase.NewCreateLeadUseCase(a.leads)
	a.gate = &usecase.ApprovalGate{
		Leads:      a.leads,
		Deliveries: a.deliveries,
		Policy:     p.Draft,
		Logger:     logging.New("approval"),
	}
	a.exampleUC = &usecase.ExamplesUseCase{Repo: a.examples}
	a.report = &usecase.ReportUseCase{Leads: a.leads}

	a.draft = &usecase.DraftLeadsUseCase{
		Leads:    a.leads,
		Examples: a.examples,
		Gateway: &usecase.DraftGateway{
			Generator: gemini.NewDrafter(llm, cfg.Gemini.DraftModel, p.Draft),
			Policy:    p.Draft,
		},
		ExamplesPerChannel: p.Dispatch.ExamplesPerChannel,
		Logger:             logging.New("draft"),
	}

	a.dispatch = &usecase.DispatchLeadsUseCase{
		Leads:       a.leads,
		Deliveries:  a.deliveries,
		Attachments: attachment.NewResolver(cfg.AttachmentDir),
		EmailPacer:  throttle.New(p.Throttle.EmailMin, p.Throttle.EmailMax),
		ClaimLease:  p.Dispatch.ClaimLease,
		Logger:      logging.New("dispatch"),
	}
	if cfg.SMTP.Host != "" {
		a.dispatch.Mail = mail.NewSMTPTransport(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.User, cfg.SMTP.Password, cfg.SMTP.From)
	}
	if err := a.wireConnections(); err != nil {
		a.close()
		return nil, err
	}
	a.wireChat()

	a.ingest = &usecase.IngestRepliesUseCase{
		Leads: a.leads,
		Classifier: usecase.ChainClassifier{
			Fallback: gemini.NewClassifier(llm, cfg.Gemini.ClassifierModel),
		},
		UnclearAsReplied: p.Reply.UnclearAsReplied,
		Logger:           logging.New("ingest"),
	}
	if cfg.Gemini.APIKey == "" {
		a.ingest.Classifier = usecase.ChainClassifier{}
	}
	if cfg.IMAP.Addr != "" {
		a.ingest.Inbox = mail.NewIMAPInbox(cfg.IMAP.Addr, cfg.IMAP.User, cfg.IMAP.Password, cfg.IMAP.Mailbox)
	}
	if cfg.Kommo.APIToken != "" && cfg.Kommo.BaseURL != "" {
		a.ingest.CRM = kommo.NewClient(cfg.Kommo.APIToken, cfg.Kommo.BaseURL, cfg.Kommo.StatusID)
	}

	a.discover = &usecase.DiscoverLeadsUseCase{
		Leads:       a.leads,
		Discoverer:  a.pb,
		Query:       cfg.PhantomBuster.SearchURL,
		DailyLimit:  p.Discovery.DailyLimit,
		Concurrency: p.Discovery.EnrichConcurrency,
		Logger:      logging.New("discover"),
	}
	if cfg.Apollo.APIKey != "" {
		a.discover.Enricher = apollo.NewClient(cfg.Apollo.APIKey, apollo.WithBaseURL(cfg.Apollo.BaseURL))
	}

	return a, nil
}

// wireConnections queues connection requests on RabbitMQ when it is
// configured, otherwise launches them on PhantomBuster inline.
func (a *app) wireConnections() error {
	if a.cfg.RabbitMQ.URL != "" {
		r, err := queue.NewRabbitMQ(a.cfg.RabbitMQ.URL)
		if err != nil {
			return err
		}
		a.rabbit = r
		a.dispatch.Connections = queue.NewProducer(r.Ch)
		return nil
	}
	if a.cfg.PhantomBuster.APIKey != "" && a.cfg.PhantomBuster.ConnectionAgentID != "" {
		a.dispatch.Connections = directConnections{launcher: a.pb}
	}
	return nil
}

func (a *app) wireChat() {
	t := a.cfg.Policy.Throttle
	switch a.cfg.WhatsApp.Mode {
	case "browser":
		pacer := throttle.New(t.BrowserMin, t.BrowserMax)
		a.web = browser.NewWhatsAppWeb(a.cfg.WhatsApp.UserDataDir, a.cfg.WhatsApp.Headless, pacer)
		a.dispatch.Chat = a.web
		a.dispatch.ChatPacer = pacer
	case "cloud":
		a.dispatch.Chat = whatsapp.NewClient(a.cfg.WhatsApp.AccessToken, a.cfg.WhatsApp.PhoneID, a.cfg.WhatsApp.BaseURL)
		a.dispatch.ChatPacer = throttle.New(t.BrowserMin, t.BrowserMax)
	}
}

func (a *app) ingestPass(ctx context.Context) (usecase.PassReport, error) {
	if a.ingest.Inbox == nil {
		return usecase.PassReport{Pass: "ingest"}, errInboxNotConfigured
	}
	return a.ingest.IngestOnce(ctx)
}

func (a *app) passes() map[string]worker.PassFunc {
	return map[string]worker.PassFunc{
		"draft":    a.draft.Execute,
		"dispatch": a.dispatch.Execute,
		"ingest":   a.ingestPass,
		"discover": a.discover.Execute,
	}
}

// integrations reports which external services are configured, for /health.
func (a *app) integrations() map[string]bool {
	c := a.cfg
	return map[string]bool{
		"smtp":          c.SMTP.Host != "",
		"imap":          c.IMAP.Addr != "",
		"gemini":        c.Gemini.APIKey != "",
		"phantombuster": c.PhantomBuster.APIKey != "",
		"apollo":        c.Apollo.APIKey != "",
		"kommo":         c.Kommo.APIToken != "",
		"whatsapp":      c.WhatsApp.Mode != "off",
	}
}

func (a *app) close() {
	if a.web != nil {
		a.web.Close()
	}
	if a.rabbit != nil {
		if err := a.rabbit.Close(); err != nil {
			a.logger.Warn("close rabbitmq", logging.Err(err))
		}
	}
	if err := a.db.Close(); err != nil {
		a.logger.Warn("close database", logging.Err(err))
	}
}

// directConnections sends connection requests straight to the automation
// service when no broker is configured.
type directConnections struct {
	launcher queue.ConnectionLauncher
}

func (d directConnections) RequestConnection(ctx context.Context, _ string, profileURL, note string) (string, error) {
	return d.launcher.LaunchConnection(ctx, profileURL, note)
}
