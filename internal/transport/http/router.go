package http

import (
	"github.com/gin-gonic/gin"
	"github.com/quotedesk/rfq-service/internal/config"
	"github.com/quotedesk/rfq-service/internal/repo"
	"github.com/quotedesk/rfq-service/internal/service"
	"go.uber.org/zap"
)

// Services bundles what the handlers need.
type Services struct {
	Schedule     *service.ScheduleService
	Escalation   *service.EscalationService
	Conversation *service.ConversationService
	Repo         repo.RepositoryInterface
}

func NewRouter(svcs Services, rl config.RateLimitConfig, log *zap.SugaredLogger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware(log))
	r.Use(RateLimitMiddleware(rl.RPS, rl.Burst))
	RegisterHandlers(r, svcs, log)
	return r
}
