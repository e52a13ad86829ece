package i18n

import (
	"net/http"
)

// Middleware extracts locale from Accept-Language header and adds it to context
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		locale := ParseAcceptLanguage(r.Header.Get("Accept-Language"))
		if q := r.URL.Query().Get("locale"); IsSupported(q) {
			locale = q
		}
		next.ServeHTTP(w, r.WithContext(WithLocale(r.Context(), locale)))
	})
}
