package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/makkenzo/email-gateway-api/internal/handler/dto"
	"github.com/makkenzo/email-gateway-api/internal/handler/middleware"
	"github.com/makkenzo/email-gateway-api/internal/ierr"
	"github.com/makkenzo/email-gateway-api/internal/service"
	"go.uber.org/zap"
)

type EmailHandler struct {
	service *service.MailService
	logger  *zap.Logger
}

func NewEmailHandler(service *service.MailService, logger *zap.Logger) *EmailHandler {
	return &EmailHandler{
		service: service,
		logger:  logger.Named("EmailHandler"),
	}
}

func (h *EmailHandler) Send(c *gin.Context) {
	var req dto.SendEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Failed to bind send email request", zap.Error(err))
		_ = c.Error(err)
		return
	}

	key := middleware.GetIdentity(c)
	if key == nil {
		_ = c.Error(ierr.ErrUnauthorized)
		return
	}

	if err := h.service.Send(c.Request.Context(), key, &req); err != nil {
		h.logger.Error("Service failed to send email", zap.String("key_id", key.KeyID), zap.Error(err))
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dto.SuccessResponse{
		Status:  "success",
		Message: fmt.Sprintf("Email sent to %s.", req.ReceiverEmail),
	})
}

func (h *EmailHandler) ListUnread(c *gin.Context) {
	var query dto.ListEmailsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		h.logger.Warn("Failed to bind email list query", zap.Error(err))
		_ = c.Error(err)
		return
	}

	key := middleware.GetIdentity(c)
	if key == nil {
		_ = c.Error(ierr.ErrUnauthorized)
		return
	}

	resp, err := h.service.ListUnread(c.Request.Context(), key, &query)
	if err != nil {
		h.logger.Error("Service failed to list unread emails", zap.String("key_id", key.KeyID), zap.Error(err))
		_ = c.Error(err)
		return
	}

	h.logger.Debug("Unread emails listed via handler",
		zap.String("key_id", key.KeyID),
		zap.Int("count", resp.Count),
	)
	c.JSON(http.StatusOK, resp)
}

func (h *EmailHandler) MarkRead(c *gin.Context) {
	id := c.Param("emailId")
	if id == "" {
		_ = c.Error(fmt.Errorf("%w: email id is required", ierr.ErrValidation))
		return
	}

	key := middleware.GetIdentity(c)
	if key == nil {
		_ = c.Error(ierr.ErrUnauthorized)
		return
	}

	if err := h.service.MarkRead(c.Request.Context(), key, id); err != nil {
		h.logger.Error("Service failed to mark email read",
			zap.String("key_id", key.KeyID),
			zap.String("email_id", id),
			zap.Error(err),
		)
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dto.SuccessResponse{
		Status:  "success",
		Message: fmt.Sprintf("Email %s marked as read.", id),
	})
}

func (h *EmailHandler) MarkReadBatch(c *gin.Context) {
	h.batchFlags(c, true)
}

func (h *EmailHandler) MarkUnreadBatch(c *gin.Context) {
	h.batchFlags(c, false)
}

func (h *EmailHandler) batchFlags(c *gin.Context, read bool) {
	var req dto.BatchEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Failed to bind batch email request", zap.Error(err))
		_ = c.Error(err)
		return
	}

	key := middleware.GetIdentity(c)
	if key == nil {
		_ = c.Error(ierr.ErrUnauthorized)
		return
	}

	var (
		resp *dto.BatchOperationResponse
		err  error
	)
	if read {
		resp, err = h.service.MarkReadBatch(c.Request.Context(), key, req.EmailIDs)
	} else {
		resp, err = h.service.MarkUnreadBatch(c.Request.Context(), key, req.EmailIDs)
	}
	if err != nil {
		h.logger.Error("Service failed batch flag operation",
			zap.String("key_id", key.KeyID),
			zap.Bool("read", read),
			zap.Error(err),
		)
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
