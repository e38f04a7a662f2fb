package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/83west/storefront/api/web"
	"github.com/sirupsen/logrus"
	"github.com/zenazn/goji/web/mutil"
)

func Logger(log logrus.FieldLogger) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {

			log := log

			if rid := ContextRequestID(ctx); rid != "" {
				log = log.WithField("req_id", rid)
			}

			log = log.WithFields(logrus.Fields{
				"method":     r.Method,
				"path":       r.URL.Path,
				"remoteaddr": r.RemoteAddr,
			})

			log.Debug("started")
			startTime := time.Now().UTC()

			lw := mutil.WrapWriter(w)
			err := handler(ctx, lw, r)

			status := lw.Status()
			if status == 0 {
				status = http.StatusOK
			}

			log.WithFields(logrus.Fields{
				"statuscode": status,
				"bytes":      lw.BytesWritten(),
				"since":      time.Since(startTime).String(),
			}).Info("completed")
			return err
		}
		return h
	}
	return m
}
