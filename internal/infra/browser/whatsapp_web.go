// Package browser drives WhatsApp Web through a persistent Chrome profile.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"

	"github.com/xavierca1/sherpa/internal/logging"
)

const (
	DefaultBaseURL = "https://web.whatsapp.com"

	// chatListSelector is only rendered for a logged-in session.
	chatListSelector = `#pane-side`
	composeSelector  = `footer div[contenteditable="true"]`
)

// Pauser inserts a short human-like pause between browser actions.
type Pauser interface {
	Sleep(ctx context.Context) error
}

type WhatsAppWeb struct {
	BaseURL     string
	UserDataDir string
	Headless    bool
	Pause       Pauser
	LoadTimeout time.Duration

	mu            sync.Mutex
	browserCtx    context.Context
	allocCancel   context.CancelFunc
	browserCancel context.CancelFunc
	logger        *slog.Logger
}

func NewWhatsAppWeb(userDataDir string, headless bool, pause Pauser) *WhatsAppWeb {
	return &WhatsAppWeb{
		BaseURL:     DefaultBaseURL,
		UserDataDir: userDataDir,
		Headless:    headless,
		Pause:       pause,
		LoadTimeout: 45 * time.Second,
		logger:      logging.New("whatsapp-web"),
	}
}

// browser starts Chrome on first use and returns its context.
func (w *WhatsAppWeb) browser() context.Context {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.browserCtx != nil {
		return w.browserCtx
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", w.Headless),
		chromedp.Flag("disable-gpu", true),
	)
	if w.UserDataDir != "" {
		opts = append(opts, chromedp.UserDataDir(w.UserDataDir))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	w.browserCtx, w.allocCancel, w.browserCancel = browserCtx, allocCancel, browserCancel
	return browserCtx
}

// run executes actions in the shared tab, bounded by ctx and LoadTimeout.
func (w *WhatsAppWeb) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(w.browser(), timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	w.mu.Lock()
	defer w.mu.Unlock()
	return chromedp.Run(runCtx, actions...)
}

// IsReady reports whether the profile holds a logged-in WhatsApp session.
func (w *WhatsAppWeb) IsReady(ctx context.Context) bool {
	err := w.run(ctx, w.LoadTimeout,
		chromedp.Navigate(w.BaseURL),
		chromedp.WaitVisible(chatListSelector, chromedp.ByQuery),
	)
	if err != nil {
		w.logger.Info("whatsapp web session not ready", logging.Err(err))
		return false
	}
	return true
}

func (w *WhatsAppWeb) Send(ctx context.Context, phone, text string) error {
	target, err := SendURL(w.BaseURL, phone, text)
	if err != nil {
		return err
	}

	if err := w.run(ctx, w.LoadTimeout,
		chromedp.Navigate(target),
		chromedp.WaitVisible(composeSelector, chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("open chat: %w", err)
	}
	if err := w.pause(ctx); err != nil {
		return err
	}
	if err := w.run(ctx, 10*time.Second, chromedp.SendKeys(composeSelector, kb.Enter, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("press send: %w", err)
	}
	// leave time for the message to leave the outbox before the next navigation
	return w.pause(ctx)
}

// Login opens WhatsApp Web and waits up to wait for the QR code to be
// scanned. The session is kept in UserDataDir.
func (w *WhatsAppWeb) Login(ctx context.Context, wait time.Duration) error {
	err := w.run(ctx, wait,
		chromedp.Navigate(w.BaseURL),
		chromedp.WaitVisible(chatListSelector, chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("whatsapp login not completed: %w", err)
	}
	w.logger.Info("whatsapp web logged in", "profile", w.UserDataDir)
	return nil
}

func (w *WhatsAppWeb) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.browserCancel != nil {
		w.browserCancel()
		w.allocCancel()
		w.browserCtx = nil
	}
}

func (w *WhatsAppWeb) pause(ctx context.Context) error {
	if w.Pause == nil {
		return nil
	}
	return w.Pause.Sleep(ctx)
}

// SendURL builds the click-to-chat URL that opens a chat with text prefilled.
func SendURL(base, phone, text string) (string, error) {
	var digits strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	if digits.Len() < 7 {
		return "", errors.New("whatsapp web: phone number needs at least 7 digits")
	}
	q := url.Values{}
	q.Set("phone", digits.String())
	q.Set("text", text)
	return strings.TrimRight(base, "/") + "/send?" + q.Encode(), nil
}
