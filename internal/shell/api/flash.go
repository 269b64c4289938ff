package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/artpar/instancedeck/internal/core/crypto"
)

// =============================================================================
// Flash Messages
// =============================================================================

// Flash categories.
const (
	FlashSuccess = "success"
	FlashDanger  = "danger"
	FlashInfo    = "info"
	FlashWarning = "warning"
)

// FlashCookie is the cookie carrying pending flash messages.
const FlashCookie = "instancedeck_flash"

const maxFlashes = 10

// Flash is a one-shot message shown on the next rendered page.
type Flash struct {
	Category string `json:"c"`
	Message  string `json:"m"`
}

// Flasher stores flash messages in an encrypted cookie.
type Flasher struct {
	sealer *crypto.Sealer
	secure bool
	logger *slog.Logger
}

// NewFlasher creates a Flasher whose cookie is sealed with a key derived from secret.
func NewFlasher(secret string, secure bool, logger *slog.Logger) *Flasher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Flasher{
		sealer: crypto.NewSealer(secret),
		secure: secure,
		logger: logger,
	}
}

// Add queues a message for the next page render. Messages already pending
// on the request are kept.
func (f *Flasher) Add(w http.ResponseWriter, r *http.Request, category, message string) {
	flashes := append(f.read(r), Flash{Category: category, Message: message})
	if len(flashes) > maxFlashes {
		flashes = flashes[len(flashes)-maxFlashes:]
	}

	payload, err := json.Marshal(flashes)
	if err != nil {
		f.logger.Error("failed to encode flash", "error", err)
		return
	}
	sealed, err := f.sealer.Seal(payload)
	if err != nil {
		f.logger.Error("failed to seal flash", "error", err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     FlashCookie,
		Value:    sealed,
		Path:     "/",
		HttpOnly: true,
		Secure:   f.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Consume returns the pending messages and clears the cookie.
func (f *Flasher) Consume(w http.ResponseWriter, r *http.Request) []Flash {
	if _, err := r.Cookie(FlashCookie); err != nil {
		return nil
	}

	flashes := f.read(r)
	http.SetCookie(w, &http.Cookie{
		Name:     FlashCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   f.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return flashes
}

func (f *Flasher) read(r *http.Request) []Flash {
	cookie, err := r.Cookie(FlashCookie)
	if err != nil || cookie.Value == "" {
		return nil
	}

	payload, err := f.sealer.Open(cookie.Value)
	if err != nil {
		f.logger.Debug("discarding unreadable flash cookie", "error", err)
		return nil
	}

	var flashes []Flash
	if err := json.Unmarshal(payload, &flashes); err != nil {
		f.logger.Debug("discarding malformed flash cookie", "error", err)
		return nil
	}
	return flashes
}
