package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/pos/internal/domain"
	"github.com/vladislavdragonenkov/pos/internal/identity"
	"github.com/vladislavdragonenkov/pos/internal/service/terminal"
)

const (
	headerRequestID   = "X-Request-ID"
	headerIdempotency = "Idempotency-Key"
	headerReplayed    = "Idempotent-Replayed"

	ctxLogger    = "logger"
	ctxPrincipal = "principal"
	ctxSession   = "session"
)

// accessLog пишет строку на каждый запрос и заводит request-scoped логгер.
func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := c.GetHeader(headerRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(headerRequestID, requestID)

		reqLogger := s.logger.WithFields(log.Fields{
			"request_id": requestID,
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
		})
		c.Set(ctxLogger, reqLogger)

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()
		s.metrics.RecordRequest(c.FullPath(), c.Request.Method, status, latency)
		s.metrics.SetOpenSessions(s.sessions.Len())

		entry := reqLogger.WithFields(log.Fields{
			"status":  status,
			"latency": latency.String(),
		})
		if len(c.Errors) > 0 {
			entry = entry.WithField("errors", c.Errors.Errors())
		}
		switch {
		case status >= http.StatusInternalServerError:
			entry.Error("http request")
		case status >= http.StatusBadRequest:
			entry.Warn("http request")
		default:
			entry.Info("http request")
		}
	}
}

// recovery превращает panic обработчика в 500 с единым телом ошибки.
func (s *Server) recovery() gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(nil, func(c *gin.Context, recovered any) {
		s.logger.WithField("panic", recovered).Error("http handler panicked")
		c.AbortWithStatusJSON(http.StatusInternalServerError, errorResponse{
			Error: errorBody{Code: codeInternal, Message: "internal error"},
		})
	})
}

// authenticate проверяет bearer-токен и кладёт принципала в контекст.
func (s *Server) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			s.abort(c, domain.ErrUnauthenticated)
			return
		}

		principal, err := s.verifier.Verify(strings.TrimSpace(token))
		if err != nil {
			requestLogger(c).WithError(err).Debug("token rejected")
			s.abort(c, domain.ErrUnauthenticated)
			return
		}

		c.Set(ctxPrincipal, principal)
		c.Request = c.Request.WithContext(identity.WithPrincipal(c.Request.Context(), principal))
		c.Next()
	}
}

// loadSession находит сессию из пути и проверяет, что её открыл этот пользователь.
func (s *Server) loadSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		session, err := s.sessions.Get(c.Param("id"))
		if err != nil {
			s.abort(c, err)
			return
		}
		if !session.OwnedBy(principalFrom(c)) {
			c.AbortWithStatusJSON(http.StatusForbidden, errorResponse{
				Error: errorBody{Code: codeForbidden, Message: "session belongs to another user"},
			})
			return
		}
		c.Set(ctxSession, session)
		c.Next()
	}
}

func principalFrom(c *gin.Context) identity.Principal {
	if v, ok := c.Get(ctxPrincipal); ok {
		if p, ok := v.(identity.Principal); ok {
			return p
		}
	}
	return identity.Principal{}
}

func sessionFrom(c *gin.Context) *terminal.Session {
	v, _ := c.Get(ctxSession)
	session, _ := v.(*terminal.Session)
	return session
}

func requestLogger(c *gin.Context) *log.Entry {
	if v, ok := c.Get(ctxLogger); ok {
		if entry, ok := v.(*log.Entry); ok {
			return entry
		}
	}
	return log.NewEntry(log.StandardLogger())
}
