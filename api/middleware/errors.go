package middleware

import (
	"context"
	"net/http"

	"github.com/83west/storefront/api/web"
	"github.com/83west/storefront/api/weberr"
	"github.com/sirupsen/logrus"
)

// Errors logs every error returned by the handler chain and renders the
// response attached to it through weberr. Errors without one become a
// generic 500.
func Errors(log logrus.FieldLogger) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {

			err := handler(ctx, w, r)
			if err == nil {
				return nil
			}

			fields := logrus.Fields{
				"req_id":  ContextRequestID(ctx),
				"message": err,
			}
			if f, ok := weberr.Fields(err); ok {
				for k, v := range f {
					fields[k] = v
				}
			}

			body, code, ok := weberr.Response(err)
			if !ok {
				body = weberr.ErrorResponse{Error: http.StatusText(http.StatusInternalServerError)}
				code = http.StatusInternalServerError
			}
			fields["statuscode"] = code

			entry := log.WithFields(fields)
			if code >= http.StatusInternalServerError {
				entry.Error("ERROR")
			} else {
				entry.Warn("request rejected")
			}

			return web.Respond(ctx, w, body, code)
		}
		return h
	}
	return m
}
