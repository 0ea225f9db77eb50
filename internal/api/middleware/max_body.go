package middleware

import (
	"net/http"

	"github.com/cloo-solutions/tubeqa/internal/api"
	"github.com/cloo-solutions/tubeqa/internal/domain"
)

// DefaultMaxBodyBytes fits every session request body: a video URL or a question.
const DefaultMaxBodyBytes int64 = 64 << 10

// MaxBodyBytes rejects declared oversize bodies with 413 and caps the rest at
// limit. A non-positive limit means DefaultMaxBodyBytes.
func MaxBodyBytes(limit int64) func(http.Handler) http.Handler {
	if limit <= 0 {
		limit = DefaultMaxBodyBytes
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body == nil || r.Body == http.NoBody {
				next.ServeHTTP(w, r)
				return
			}

			if r.ContentLength > limit {
				api.JSON(w, http.StatusRequestEntityTooLarge, api.ErrorResponse{
					Error: "request body too large",
					Code:  domain.ErrCodeValidation,
				})
				return
			}

			r.Body = http.MaxBytesReader(w, r.Body, limit)
			next.ServeHTTP(w, r)
		})
	}
}
