package assethat

import (
	"context"
	"net/http"
	"strings"
)

// RequestInfo is what the pipeline needs to know about the current request.
type RequestInfo struct {
	SSL bool
}

type requestKey struct{}

func WithRequest(ctx context.Context, info RequestInfo) context.Context {
	return context.WithValue(ctx, requestKey{}, info)
}

func RequestFromContext(ctx context.Context) (RequestInfo, bool) {
	info, ok := ctx.Value(requestKey{}).(RequestInfo)
	return info, ok
}

// requestSSL prefers an explicit option over the request in ctx.
func requestSSL(ctx context.Context, opts Options) bool {
	if opts.SSL != nil {
		return *opts.SSL
	}
	info, _ := RequestFromContext(ctx)
	return info.SSL
}

// Middleware records whether each request arrived over SSL, directly or
// through a TLS-terminating proxy.
func (s *Service) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := WithRequest(r.Context(), RequestInfo{SSL: isSSLRequest(r)})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func isSSLRequest(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	proto := r.Header.Get("X-Forwarded-Proto")
	if i := strings.IndexByte(proto, ','); i >= 0 {
		proto = proto[:i]
	}
	return strings.EqualFold(strings.TrimSpace(proto), "https")
}
