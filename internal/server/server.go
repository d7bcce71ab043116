package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/calebfife/tandem/internal/email"
	"github.com/calebfife/tandem/internal/feed"
	"github.com/calebfife/tandem/internal/handler"
	"github.com/calebfife/tandem/internal/middleware"
	"github.com/calebfife/tandem/internal/negotiation"
	"github.com/calebfife/tandem/internal/push"
	"github.com/calebfife/tandem/internal/scheduler"
	"github.com/calebfife/tandem/internal/store"
	ws "github.com/calebfife/tandem/internal/websocket"
)

// Config collects the secrets and tuning the server needs beyond its
// dependencies.
type Config struct {
	WebhookSecret    string
	JobSecret        string
	ReminderInterval time.Duration
	Push             push.Config
}

type Server struct {
	db          *sql.DB
	feed        *feed.Feed
	hub         *ws.Hub
	coupleH     *handler.CoupleHandler
	partnerH    *handler.PartnerHandler
	checkInH    *handler.CheckInHandler
	bookendH    *handler.BookendHandler
	reminderH   *handler.ReminderHandler
	settingsH   *handler.SettingsHandler
	feedbackH   *handler.FeedbackHandler
	jobH        *handler.JobHandler
	pushH       *handler.PushHandler
	scheduler   *scheduler.Scheduler
	rateLimiter *middleware.RateLimiter
	jobSecret   string
	logger      *slog.Logger
}

func New(db *sql.DB, emailClient *email.Client, cfg Config, logger *slog.Logger) *Server {
	changeFeed := feed.New()
	hub := ws.NewHub(logger.With("component", "websocket"))
	hub.BindFeed(changeFeed)

	coupleStore := store.NewCoupleStore(db)
	partnerStore := store.NewPartnerStore(db)
	checkInStore := store.NewCheckInStore(db)
	bookendStore := store.NewBookendStore(db)
	settingsStore := store.NewSettingsStore(db)
	proposalStore := store.NewProposalStore(db)
	reminderStore := store.NewReminderStore(db)
	suppressionStore := store.NewSuppressionStore(db)
	pushStore := store.NewPushStore(db)

	negotiator := negotiation.New(proposalStore, settingsStore, changeFeed,
		logger.With("component", "negotiation"))

	var pushSvc *push.Service
	var pushH *handler.PushHandler
	var pushSender scheduler.PushSender
	if cfg.Push.VAPIDPublicKey != "" && cfg.Push.VAPIDPrivateKey != "" {
		pushSvc = push.NewService(cfg.Push.VAPIDPublicKey, cfg.Push.VAPIDPrivateKey)
		pushH = handler.NewPushHandler(pushStore, pushSvc, logger.With("component", "push"))
		pushSender = pushSvc
	}

	interval := cfg.ReminderInterval
	if interval <= 0 {
		interval = time.Minute
	}
	sched := scheduler.New(reminderStore, partnerStore, suppressionStore, pushStore,
		emailClient, pushSender, interval, logger.With("component", "scheduler"))

	return &Server{
		db:          db,
		feed:        changeFeed,
		hub:         hub,
		coupleH:     handler.NewCoupleHandler(coupleStore, partnerStore, logger.With("component", "couple")),
		partnerH:    handler.NewPartnerHandler(partnerStore, coupleStore, logger.With("component", "partner")),
		checkInH:    handler.NewCheckInHandler(checkInStore, changeFeed, logger.With("component", "checkin")),
		bookendH:    handler.NewBookendHandler(bookendStore, changeFeed, logger.With("component", "bookend")),
		reminderH:   handler.NewReminderHandler(reminderStore, changeFeed, logger.With("component", "reminder")),
		settingsH:   handler.NewSettingsHandler(settingsStore, negotiator, logger.With("component", "settings")),
		feedbackH:   handler.NewFeedbackHandler(suppressionStore, cfg.WebhookSecret, logger.With("component", "feedback")),
		jobH:        handler.NewJobHandler(sched),
		pushH:       pushH,
		scheduler:   sched,
		rateLimiter: middleware.NewRateLimiter(),
		jobSecret:   cfg.JobSecret,
		logger:      logger,
	}
}

// Feed returns the change feed for additional consumers.
func (s *Server) Feed() *feed.Feed {
	return s.feed
}

// Scheduler returns the reminder scheduler so main can run its loop.
func (s *Server) Scheduler() *scheduler.Scheduler {
	return s.scheduler
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthHandler)

	// Couples and partners
	mux.HandleFunc("POST /api/couples", s.coupleH.Create)
	mux.HandleFunc("GET /api/couples/{id}", s.coupleH.Get)
	mux.HandleFunc("POST /api/couples/{id}/partners", s.partnerH.Create)
	mux.HandleFunc("GET /api/couples/{id}/partners", s.partnerH.List)
	mux.HandleFunc("PUT /api/partners/{id}/pin", s.partnerH.SetPIN)
	mux.HandleFunc("POST /api/partners/{id}/pin/verify", s.partnerH.VerifyPIN)

	// Check-ins
	mux.HandleFunc("POST /api/checkins", s.checkInH.Create)
	mux.HandleFunc("GET /api/checkins", s.checkInH.List)
	mux.HandleFunc("PUT /api/checkins/{id}", s.checkInH.Update)
	mux.HandleFunc("DELETE /api/checkins/{id}", s.checkInH.Delete)

	// Bookends
	mux.HandleFunc("POST /api/bookends", s.bookendH.Create)
	mux.HandleFunc("GET /api/bookends", s.bookendH.List)
	mux.HandleFunc("PUT /api/bookends/{id}", s.bookendH.Update)
	mux.HandleFunc("DELETE /api/bookends/{id}", s.bookendH.Delete)

	// Reminders
	mux.HandleFunc("POST /api/reminders", s.reminderH.Create)
	mux.HandleFunc("GET /api/reminders", s.reminderH.List)
	mux.HandleFunc("PUT /api/reminders/{id}", s.reminderH.Update)
	mux.HandleFunc("DELETE /api/reminders/{id}", s.reminderH.Delete)
	mux.HandleFunc("POST /api/reminders/{id}/snooze", s.reminderH.Snooze)

	// Session settings and the proposal flow
	mux.HandleFunc("GET /api/couples/{id}/settings", s.settingsH.Get)
	mux.HandleFunc("POST /api/couples/{id}/proposals", s.settingsH.Propose)
	mux.HandleFunc("GET /api/couples/{id}/proposals/pending", s.settingsH.Pending)
	mux.HandleFunc("POST /api/proposals/{id}/respond", s.settingsH.Respond)

	// Push notifications
	if s.pushH != nil {
		mux.HandleFunc("POST /api/push/subscribe", s.pushH.Subscribe)
		mux.HandleFunc("POST /api/push/unsubscribe", s.pushH.Unsubscribe)
		mux.HandleFunc("GET /api/push/vapid-key", s.pushH.GetVAPIDKey)
	}

	// Delivery feedback
	mux.HandleFunc("POST /webhooks/email-events", s.rateLimitedHandler(s.feedbackH.Webhook))
	mux.HandleFunc("GET /unsubscribe/{token}", s.feedbackH.Unsubscribe)

	// Job triggers
	jobAuth := middleware.RequireJobSecret(s.jobSecret)
	mux.Handle("POST /jobs/reminders", jobAuth(http.HandlerFunc(s.jobH.RunReminders)))

	// WebSocket
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.logger.With("component", "websocket")))

	return middleware.RequestLogger(s.logger.With("component", "http"))(mux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	keyFunc := func(r *http.Request) string {
		return middleware.RealIP(r)
	}
	rl := middleware.RateLimit(s.rateLimiter, keyFunc, 60, time.Minute)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}
