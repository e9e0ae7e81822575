package auth

import (
	"net/http"
	"time"
)

// ClientCookieName holds the signed client identity token
const ClientCookieName = "client_token"

// CookieConfig holds cookie configuration settings
type CookieConfig struct {
	Domain   string // Empty string = current host only
	Secure   bool   // HTTPS only
	SameSite string // "strict", "lax", or "none"
}

// SetClientCookie sets the client token in an httpOnly cookie
func SetClientCookie(w http.ResponseWriter, token string, expiresAt time.Time, config CookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     ClientCookieName,
		Value:    token,
		Path:     "/",
		Domain:   config.Domain,
		Expires:  expiresAt,
		MaxAge:   int(time.Until(expiresAt).Seconds()),
		HttpOnly: true,
		Secure:   config.Secure,
		SameSite: parseSameSite(config.SameSite),
	})
}

// ClearClientCookie clears the client cookie
func ClearClientCookie(w http.ResponseWriter, config CookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     ClientCookieName,
		Value:    "",
		Path:     "/",
		Domain:   config.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   config.Secure,
		SameSite: parseSameSite(config.SameSite),
	})
}

// GetClientCookie retrieves the client token from cookies
func GetClientCookie(r *http.Request) (string, error) {
	cookie, err := r.Cookie(ClientCookieName)
	if err != nil {
		return "", err
	}
	return cookie.Value, nil
}

func parseSameSite(sameSite string) http.SameSite {
	switch sameSite {
	case "strict":
		return http.SameSiteStrictMode
	case "lax":
		return http.SameSiteLaxMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteDefaultMode
	}
}
