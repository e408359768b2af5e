// Package webhook receives Telegram updates over HTTPS and hands them to a
// dispatcher without waiting for them to be processed.
package webhook

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mr-linch/go-tg"
	log "github.com/sirupsen/logrus"

	"github.com/iamwavecut/telegram-assistant-bot/internal/infra"
)

const (
	SecretHeader = "X-Telegram-Bot-Api-Secret-Token"

	maxBodySize     = 1 << 20
	shutdownTimeout = 10 * time.Second
)

// Dispatcher queues an update for processing. infra.ErrQueueFull tells the
// server to ask Telegram for a retry.
type Dispatcher interface {
	Dispatch(update *tg.Update) error
}

type Options struct {
	Addr   string
	Path   string
	Secret string
}

type Server struct {
	opts       Options
	dispatcher Dispatcher
	seen       *dedupStore
	engine     *gin.Engine
}

func New(opts Options, dispatcher Dispatcher) *Server {
	if opts.Path == "" {
		opts.Path = "/webhook"
	}
	s := &Server{
		opts:       opts,
		dispatcher: dispatcher,
		seen:       newDedupStore(),
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger())
	engine.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "bot is running")
	})
	engine.POST(opts.Path, s.handleUpdate)
	s.engine = engine
	return s
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go s.seen.cleaner(ctx)

	errCh := make(chan error, 1)
	go func() {
		log.WithFields(log.Fields{"addr": s.opts.Addr, "path": s.opts.Path}).Infoln("webhook server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Infoln("webhook server stopped")
	return nil
}

func (s *Server) handleUpdate(c *gin.Context) {
	if s.opts.Secret != "" {
		got := c.GetHeader(SecretHeader)
		if subtle.ConstantTimeCompare([]byte(s.opts.Secret), []byte(got)) != 1 {
			log.WithField("remote", c.ClientIP()).Warnln("webhook secret mismatch")
			c.String(http.StatusUnauthorized, "unauthorized")
			return
		}
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodySize)
	var update tg.Update
	if err := c.ShouldBindJSON(&update); err != nil {
		log.WithError(err).Warnln("cant decode update")
		c.String(http.StatusBadRequest, "bad request")
		return
	}

	logger := log.WithField("update_id", update.ID)
	if update.Message == nil && update.CallbackQuery == nil {
		logger.Debugln("update ignored")
		c.String(http.StatusOK, "ok")
		return
	}
	if !s.seen.markSeen(update.ID) {
		logger.Debugln("duplicate update dropped")
		c.String(http.StatusOK, "ok")
		return
	}

	if err := s.dispatcher.Dispatch(&update); err != nil {
		// let Telegram redeliver it
		s.seen.forget(update.ID)
		status := http.StatusServiceUnavailable
		if !errors.Is(err, infra.ErrQueueFull) && !errors.Is(err, infra.ErrPoolClosed) {
			status = http.StatusInternalServerError
		}
		logger.WithError(err).Warnln("cant dispatch update")
		c.String(status, "busy")
		return
	}
	c.String(http.StatusOK, "ok")
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(log.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
		}).Traceln("http request")
	}
}
