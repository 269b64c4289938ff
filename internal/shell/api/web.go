package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/artpar/instancedeck/internal/core/auth"
	"github.com/artpar/instancedeck/internal/core/domain"
	"github.com/artpar/instancedeck/internal/core/instance"
	"github.com/artpar/instancedeck/internal/shell/store"
)

// Flash texts shown by the web pages.
const (
	msgEmailTaken      = "Email already registered!"
	msgRegistered      = "Registration successful! Please log in."
	msgLoginOK         = "Login successful!"
	msgLoginFailed     = "Invalid login, try again."
	msgLoggedOut       = "Logged out!"
	msgLoginRequired   = "Please login!"
	msgSomethingFailed = "Something went wrong, please try again."
)

// =============================================================================
// Public Pages
// =============================================================================

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	if auth.FromContext(r.Context()).Authenticated {
		http.Redirect(w, r, "/instances", http.StatusFound)
		return
	}
	h.render(w, r, "index.html", pageData{Title: "Welcome"})
}

func (h *Handler) handleRegisterForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "register.html", pageData{Title: "Register"})
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.flash.Add(w, r, FlashDanger, msgSomethingFailed)
		http.Redirect(w, r, "/register", http.StatusFound)
		return
	}

	reg := domain.Registration{
		Username: r.PostForm.Get("username"),
		Email:    r.PostForm.Get("email"),
		Password: r.PostForm.Get("password"),
	}.Normalize()

	if err := reg.Validate(); err != nil {
		h.flash.Add(w, r, FlashDanger, capitalizeFirst(err.Error()))
		http.Redirect(w, r, "/register", http.StatusFound)
		return
	}

	if _, err := h.store.GetUserByEmail(r.Context(), reg.Email); err == nil {
		h.flash.Add(w, r, FlashDanger, msgEmailTaken)
		http.Redirect(w, r, "/register", http.StatusFound)
		return
	} else if !isNotFound(err) {
		h.logger.Error("failed to look up user", "error", err)
		h.flash.Add(w, r, FlashDanger, msgSomethingFailed)
		http.Redirect(w, r, "/register", http.StatusFound)
		return
	}

	hash, err := auth.HashPassword(reg.Password)
	if err != nil {
		h.logger.Error("failed to hash password", "error", err)
		h.flash.Add(w, r, FlashDanger, msgSomethingFailed)
		http.Redirect(w, r, "/register", http.StatusFound)
		return
	}

	user, err := domain.NewUser(reg, hash)
	if err != nil {
		h.flash.Add(w, r, FlashDanger, capitalizeFirst(err.Error()))
		http.Redirect(w, r, "/register", http.StatusFound)
		return
	}

	if err := h.store.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			h.flash.Add(w, r, FlashDanger, msgEmailTaken)
		} else {
			h.logger.Error("failed to create user", "error", err)
			h.flash.Add(w, r, FlashDanger, msgSomethingFailed)
		}
		http.Redirect(w, r, "/register", http.StatusFound)
		return
	}

	h.logger.Info("user registered", "user_id", user.ID, "reference_id", user.ReferenceID)
	h.flash.Add(w, r, FlashSuccess, msgRegistered)
	http.Redirect(w, r, "/login", http.StatusFound)
}

func (h *Handler) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "login.html", pageData{Title: "Log in"})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.flash.Add(w, r, FlashDanger, msgLoginFailed)
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	email := domain.NormalizeEmail(r.PostForm.Get("email"))
	password := r.PostForm.Get("password")

	user, err := h.store.GetUserByEmail(r.Context(), email)
	if err != nil {
		if !isNotFound(err) {
			h.logger.Error("failed to look up user", "error", err)
		}
		h.flash.Add(w, r, FlashDanger, msgLoginFailed)
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	if err := auth.CheckPassword(user.PasswordHash, password); err != nil {
		h.logger.Info("login failed", "user_id", user.ID)
		h.flash.Add(w, r, FlashDanger, msgLoginFailed)
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	token, err := auth.NewSessionToken()
	if err != nil {
		h.logger.Error("failed to create session token", "error", err)
		h.flash.Add(w, r, FlashDanger, msgSomethingFailed)
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	session := domain.NewSession(auth.HashSessionToken(token), *user, h.cfg.SessionTTL, h.now())
	if err := h.store.CreateSession(r.Context(), session); err != nil {
		h.logger.Error("failed to create session", "user_id", user.ID, "error", err)
		h.flash.Add(w, r, FlashDanger, msgSomethingFailed)
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     h.cfg.SessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		Secure:   h.cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	h.logger.Info("user logged in", "user_id", user.ID)
	h.flash.Add(w, r, FlashSuccess, msgLoginOK)
	http.Redirect(w, r, "/instances", http.StatusFound)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.FromContext(r.Context())
	if authCtx.Authenticated {
		if err := h.store.DeleteSession(r.Context(), authCtx.SessionHash); err != nil && !isNotFound(err) {
			h.logger.Error("failed to delete session", "user_id", authCtx.UserID, "error", err)
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     h.cfg.SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	h.flash.Add(w, r, FlashInfo, msgLoggedOut)
	http.Redirect(w, r, "/login", http.StatusFound)
}

// redirectToLogin is the deny handler for pages that need a session.
func (h *Handler) redirectToLogin(w http.ResponseWriter, r *http.Request) {
	h.flash.Add(w, r, FlashWarning, msgLoginRequired)
	http.Redirect(w, r, "/login", http.StatusFound)
}

// =============================================================================
// Instance Pages
// =============================================================================

func (h *Handler) handleInstancesPage(w http.ResponseWriter, r *http.Request) {
	if !auth.CanViewInstances(auth.FromContext(r.Context())) {
		h.redirectToLogin(w, r)
		return
	}

	h.render(w, r, "instances.html", pageData{
		Title:     "Instances",
		Region:    h.instances.Region(),
		AllowLive: h.cfg.AllowLive,
		Instances: h.instances.Describe(r.Context(), nil),
	})
}

func (h *Handler) handleStartForm(w http.ResponseWriter, r *http.Request) {
	h.handleActionForm(w, r, instance.ActionStart)
}

func (h *Handler) handleStopForm(w http.ResponseWriter, r *http.Request) {
	h.handleActionForm(w, r, instance.ActionStop)
}

func (h *Handler) handleActionForm(w http.ResponseWriter, r *http.Request, action instance.Action) {
	authCtx := auth.FromContext(r.Context())
	if !auth.CanManageInstances(authCtx) {
		h.redirectToLogin(w, r)
		return
	}

	id := chi.URLParam(r, "id")
	dryRun := h.resolveDryRun(formBool(r, "dry_run"))

	var result instance.ActionResult
	switch action {
	case instance.ActionStart:
		result = h.instances.Start(r.Context(), id, dryRun)
	case instance.ActionStop:
		result = h.instances.Stop(r.Context(), id, dryRun)
	}

	h.logger.Info("instance action",
		"user_id", authCtx.UserID,
		"action", string(action),
		"instance_id", id,
		"success", result.Success,
		"dry_run", result.DryRun,
	)

	category := FlashDanger
	if result.Success {
		category = FlashSuccess
	}
	h.flash.Add(w, r, category, result.Message)
	http.Redirect(w, r, "/instances", http.StatusFound)
}

// formBool parses a boolean form field. Missing or unparsable values yield nil.
func formBool(r *http.Request, key string) *bool {
	raw := r.FormValue(key)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil
	}
	return &v
}

func capitalizeFirst(s string) string {
	if s == "" {
		return s
	}
	if c := s[0]; c >= 'a' && c <= 'z' {
		return string(c-'a'+'A') + s[1:]
	}
	return s
}
