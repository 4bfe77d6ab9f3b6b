package auth

import (
	"context"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"

	apperrors "github.com/chainsafe/token-bridge/pkg/app/errors"
	apphttp "github.com/chainsafe/token-bridge/pkg/app/http"
)

// Header names carrying the signed caller message
const (
	HeaderSignature = "X-Signature"
	HeaderMessage   = "X-Message"
)

type contextKey string

// ContextKeyCaller is the context key for the authenticated caller address
const ContextKeyCaller contextKey = "caller"

// WithCaller adds the caller address to the context
func WithCaller(ctx context.Context, caller common.Address) context.Context {
	return context.WithValue(ctx, ContextKeyCaller, caller)
}

// CallerFromContext retrieves the caller address from the context
func CallerFromContext(ctx context.Context) (common.Address, bool) {
	addr, ok := ctx.Value(ContextKeyCaller).(common.Address)
	return addr, ok
}

// RequireSignature authenticates requests by recovering the signer of the
// X-Message header from the X-Signature header. now may be nil.
func RequireSignature(maxAge time.Duration, now func() time.Time) func(http.Handler) http.Handler {
	if now == nil {
		now = time.Now
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			signature := r.Header.Get(HeaderSignature)
			message := r.Header.Get(HeaderMessage)
			if signature == "" || message == "" {
				apphttp.DefaultErrorHandler(w, apperrors.UnAuthorizedError(nil, "signature and message required"))
				return
			}

			caller, err := VerifyMessage(message, signature, now(), maxAge)
			if err != nil {
				apphttp.DefaultErrorHandler(w, apperrors.UnAuthorizedError(err, "invalid signature"))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), caller)))
		})
	}
}
