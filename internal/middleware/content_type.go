package middleware

import (
	"mime"
	"net/http"

	pkghttp "github.com/BradenHooton/clinicauth/pkg/http"
)

// RequireJSON rejects state-changing requests whose body is not JSON. Cross-site
// JSON posts always need a CORS preflight.
func RequireJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !isStateChangingMethod(r.Method) || r.ContentLength == 0 {
			next.ServeHTTP(w, r)
			return
		}

		mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if err != nil || mediaType != "application/json" {
			pkghttp.WriteError(w, http.StatusUnsupportedMediaType, "unsupported_media_type",
				"O corpo da requisição deve ser JSON.")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func isStateChangingMethod(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}
