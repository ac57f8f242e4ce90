package http

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/quotedesk/rfq-service/internal/repo"
	"github.com/quotedesk/rfq-service/internal/service"
	"go.uber.org/zap"
)

func RegisterHandlers(r *gin.Engine, svcs Services, log *zap.SugaredLogger) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := r.Group("/v1")
	{
		v1.PUT("/rfqs/:id/subcontractors/:subId/reminders", upsertScheduleHandler(svcs.Schedule, log))
		v1.POST("/escalations/run", runEscalationHandler(svcs.Escalation, log))
		v1.GET("/messages/:id/parent", parentMessageHandler(svcs.Conversation))
		v1.GET("/settings/reminders", getReminderSettingHandler(svcs.Repo))
		v1.PUT("/settings/reminders", setReminderSettingHandler(svcs.Repo))
	}
}

// Dates and Time are validated by the service so an empty or fully
// malformed list yields the distinct "no valid reminder dates" error
// instead of a generic binding failure.
type scheduleReq struct {
	Dates     []string `json:"dates"`
	Time      string   `json:"time"`
	DueDate   string   `json:"due_date" binding:"required"`
	EmailBody string   `json:"email_body" binding:"required"`
	UpdatedBy string   `json:"updated_by" binding:"required"`
}

func upsertScheduleHandler(svc *service.ScheduleService, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req scheduleReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		result, err := svc.CreateOrUpdate(c, service.ScheduleRequest{
			RfqID:           c.Param("id"),
			SubcontractorID: c.Param("subId"),
			Dates:           req.Dates,
			TimeOfDay:       req.Time,
			DueDate:         req.DueDate,
			EmailBody:       req.EmailBody,
			UpdatedBy:       req.UpdatedBy,
		})
		switch {
		case errors.Is(err, service.ErrNoValidDates):
			c.JSON(http.StatusBadRequest, gin.H{"error": "no valid reminder dates"})
		case errors.Is(err, service.ErrMissingField):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case err != nil:
			log.Errorf("upsert schedule: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		default:
			c.JSON(http.StatusOK, gin.H{"config_id": result.ConfigID, "scheduled": result.Scheduled})
		}
	}
}

type escalationReq struct {
	SubcontractorIDs []string `json:"subcontractor_ids"`
}

func runEscalationHandler(svc *service.EscalationService, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		// an absent body means "resolve the missing set server-side";
		// EOF is that case, any other bind failure is the caller's
		var req escalationReq
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		result, err := svc.RunBatch(c, req.SubcontractorIDs)
		if err != nil {
			log.Errorf("escalation batch: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func parentMessageHandler(svc *service.ConversationService) gin.HandlerFunc {
	return func(c *gin.Context) {
		parent, err := svc.ResolveParent(c, c.Param("id"))
		if errors.Is(err, repo.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "parent message not found"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		switch parent.Kind {
		case service.ParentRfqMessage:
			c.JSON(http.StatusOK, gin.H{"kind": parent.Kind, "message": parent.RfqMessage})
		default:
			c.JSON(http.StatusOK, gin.H{"kind": parent.Kind, "log_entry": parent.LogEntry})
		}
	}
}

func getReminderSettingHandler(r repo.RepositoryInterface) gin.HandlerFunc {
	return func(c *gin.Context) {
		enabled, err := r.RemindersEnabled(c)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"enabled": enabled})
	}
}

type settingReq struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

func setReminderSettingHandler(r repo.RepositoryInterface) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req settingReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := r.SetRemindersEnabled(c, *req.Enabled); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"enabled": *req.Enabled})
	}
}
