package middleware

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/83west/storefront/api/web"
)

const (
	RequestIDHeader = "X-Request-Id"

	DefaultRequestIDLengthLimit = 128
)

type reqIDKeyCtx int

const reqIDKey reqIDKeyCtx = 1

var reqID int64

var reqPrefix string

func init() {
	var buf [12]byte
	var b64 string
	for len(b64) < 10 {
		_, _ = rand.Read(buf[:])
		b64 = base64.StdEncoding.EncodeToString(buf[:])
		b64 = strings.NewReplacer("+", "", "/", "").Replace(b64)
	}
	reqPrefix = b64[0:10]
}

// RequestID reuses the caller's X-Request-Id (truncated to the length limit)
// or generates a process unique one, and echoes it on the response.
func RequestID() web.Middleware {
	lengthLimit := DefaultRequestIDLengthLimit
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {

			id := r.Header.Get(RequestIDHeader)
			if id == "" {
				id = fmt.Sprintf("%s-%06d", reqPrefix, atomic.AddInt64(&reqID, 1))
			} else if lengthLimit >= 0 && len(id) > lengthLimit {
				id = id[:lengthLimit]
			}
			ctx = context.WithValue(ctx, reqIDKey, id)
			w.Header().Set(RequestIDHeader, id)

			return handler(ctx, w, r)
		}
		return h
	}
	return m
}

func ContextRequestID(ctx context.Context) (reqID string) {
	if id, ok := ctx.Value(reqIDKey).(string); ok {
		reqID = id
	}
	return
}
