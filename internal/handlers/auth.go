package handlers

import (
	"encoding/base64"
	"log/slog"
	"net/http"
	"strings"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	qrcode "github.com/skip2/go-qrcode"

	"pipshop/internal/middleware"
	"pipshop/internal/session"
	"pipshop/internal/store"
)

// totpIssuer names the shop in authenticator apps.
const totpIssuer = "pipshop"

// Auth groups the staff sign-in handlers.
type Auth struct {
	sessions  *session.Store
	userStore *store.UserStore
}

// NewAuth creates a new Auth handler group.
func NewAuth(sessions *session.Store, userStore *store.UserStore) *Auth {
	return &Auth{
		sessions:  sessions,
		userStore: userStore,
	}
}

// formOrJSON reads the named fields from a JSON body or, for form posts,
// from the form values.
func formOrJSON(w http.ResponseWriter, r *http.Request, fields ...string) (map[string]string, error) {
	out := make(map[string]string, len(fields))
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var body map[string]string
		if err := decodeJSON(w, r, &body); err != nil {
			return nil, err
		}
		for _, f := range fields {
			out[f] = body[f]
		}
		return out, nil
	}
	for _, f := range fields {
		out[f] = r.FormValue(f)
	}
	return out, nil
}

// LoginState returns the CSRF token to echo on the next post and whether
// the caller is already signed in.
func (a *Auth) LoginState(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromCtx(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"csrf_token":    middleware.CSRFTokenFromCtx(r.Context()),
		"authenticated": sess.Authenticated(),
		"two_fa_done":   sess.Authenticated() && sess.TwoFADone,
	})
}

// Login checks the staff credentials and starts a session that still
// needs two-factor authentication.
func (a *Auth) Login(w http.ResponseWriter, r *http.Request) {
	in, err := formOrJSON(w, r, "email", "password")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := a.userStore.FindByEmail(strings.TrimSpace(in["email"]))
	if err != nil {
		slog.Error("login lookup failed", "error", err)
		writeError(w, http.StatusInternalServerError, "An unexpected error occurred.")
		return
	}
	if user == nil || !a.userStore.CheckPassword(user, in["password"]) {
		writeError(w, http.StatusUnauthorized, "Invalid email or password.")
		return
	}

	// A fresh session id on sign-in; the shopper's basket carries over.
	data := &session.Data{
		UserID:      user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		Role:        string(user.Role),
	}
	if prev := middleware.SessionFromCtx(r.Context()); prev != nil {
		data.BasketID = prev.BasketID
		a.sessions.Destroy(r.Context(), w, r)
	}
	if _, err := a.sessions.Create(r.Context(), w, data); err != nil {
		slog.Error("session create failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	next := "/admin/2fa/verify"
	if user.Needs2FASetup() {
		next = "/admin/2fa/setup"
	}
	slog.Info("staff signed in", "user", user.Email)
	writeJSON(w, http.StatusOK, map[string]string{"next": next})
}

// TwoFASetup generates a TOTP secret and returns it with a QR code.
func (a *Auth) TwoFASetup(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromCtx(r.Context())

	user, err := a.userStore.FindByID(sess.UserID)
	if err != nil || user == nil {
		slog.Error("user lookup for 2fa failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if user.TOTPEnabled {
		writeError(w, http.StatusConflict, "Two-factor authentication is already set up.")
		return
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      totpIssuer,
		AccountName: sess.Email,
	})
	if err != nil {
		slog.Error("totp generate failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if err := a.userStore.SetTOTPSecret(sess.UserID, key.Secret()); err != nil {
		slog.Error("save totp secret failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	qr, err := qrCode(key)
	if err != nil {
		slog.Error("qr code generation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"secret":      key.Secret(),
		"otpauth_url": key.URL(),
		"qr_code":     qr,
	})
}

// qrCode renders the key's otpauth URL as a base64 PNG.
func qrCode(key *otp.Key) (string, error) {
	png, err := qrcode.Encode(key.URL(), qrcode.Medium, 256)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(png), nil
}

// TwoFAVerify validates a TOTP code and completes sign-in. The first
// valid code after setup enables 2FA for the account.
func (a *Auth) TwoFAVerify(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromCtx(r.Context())

	in, err := formOrJSON(w, r, "code")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := a.userStore.FindByID(sess.UserID)
	if err != nil || user == nil {
		slog.Error("user lookup for 2fa failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if user.TOTPSecret == nil {
		writeJSON(w, http.StatusConflict, map[string]string{
			"error": "Two-factor authentication has not been set up.",
			"next":  "/admin/2fa/setup",
		})
		return
	}

	if !totp.Validate(strings.TrimSpace(in["code"]), *user.TOTPSecret) {
		writeError(w, http.StatusUnauthorized, "Invalid code. Please try again.")
		return
	}

	if !user.TOTPEnabled {
		if err := a.userStore.EnableTOTP(user.ID); err != nil {
			slog.Error("enable totp failed", "error", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
	}

	sess.TwoFADone = true
	if err := a.sessions.Update(r.Context(), r, sess); err != nil {
		slog.Error("session update failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"next": "/admin/api/orders"})
}

// Logout ends the session.
func (a *Auth) Logout(w http.ResponseWriter, r *http.Request) {
	a.sessions.Destroy(r.Context(), w, r)
	writeJSON(w, http.StatusOK, map[string]string{"status": "signed out"})
}
