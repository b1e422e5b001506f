package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/makkenzo/email-gateway-api/internal/handler/dto"
	"github.com/makkenzo/email-gateway-api/internal/handler/middleware"
	"github.com/makkenzo/email-gateway-api/internal/ierr"
	"github.com/makkenzo/email-gateway-api/internal/service"
	"go.uber.org/zap"
)

type APIKeyHandler struct {
	service *service.APIKeyService
	logger  *zap.Logger
}

func NewAPIKeyHandler(service *service.APIKeyService, logger *zap.Logger) *APIKeyHandler {
	return &APIKeyHandler{
		service: service,
		logger:  logger.Named("APIKeyHandler"),
	}
}

func (h *APIKeyHandler) Create(c *gin.Context) {
	var req dto.CreateAPIKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Failed to bind create api key request", zap.Error(err))
		_ = c.Error(err)
		return
	}

	respDTO, err := h.service.Issue(c.Request.Context(), &req)
	if err != nil {
		h.logger.Error("Service failed to issue api key", zap.Error(err))
		_ = c.Error(err)
		return
	}

	h.logger.Info("API key issued via handler", zap.String("key_id", respDTO.KeyID))
	c.JSON(http.StatusCreated, respDTO)
}

func (h *APIKeyHandler) List(c *gin.Context) {
	keys, err := h.service.List(c.Request.Context())
	if err != nil {
		h.logger.Error("Service failed to list api keys", zap.Error(err))
		_ = c.Error(err)
		return
	}

	h.logger.Debug("API keys listed via handler", zap.Int("count", len(keys)))
	c.JSON(http.StatusOK, keys)
}

// Me returns the calling key's own record.
func (h *APIKeyHandler) Me(c *gin.Context) {
	key := middleware.GetIdentity(c)
	if key == nil {
		_ = c.Error(ierr.ErrUnauthorized)
		return
	}
	c.JSON(http.StatusOK, dto.NewAPIKeyResponse(key))
}

func (h *APIKeyHandler) Update(c *gin.Context) {
	keyID := c.Param("keyId")
	if keyID == "" {
		_ = c.Error(fmt.Errorf("%w: key id is required", ierr.ErrValidation))
		return
	}

	var req dto.UpdateAPIKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Failed to bind update api key request", zap.String("key_id", keyID), zap.Error(err))
		_ = c.Error(err)
		return
	}

	actor := middleware.GetIdentity(c)
	if actor == nil {
		_ = c.Error(ierr.ErrUnauthorized)
		return
	}

	if err := h.service.Update(c.Request.Context(), actor, keyID, &req); err != nil {
		h.logger.Error("Service failed to update api key", zap.String("key_id", keyID), zap.Error(err))
		_ = c.Error(translateMissingKey(err))
		return
	}

	h.logger.Info("API key updated via handler", zap.String("key_id", keyID))
	c.JSON(http.StatusOK, dto.SuccessResponse{Status: "success", Message: "API key updated."})
}

func (h *APIKeyHandler) Delete(c *gin.Context) {
	keyID := c.Param("keyId")
	if keyID == "" {
		_ = c.Error(fmt.Errorf("%w: key id is required", ierr.ErrValidation))
		return
	}

	if err := h.service.Delete(c.Request.Context(), keyID); err != nil {
		h.logger.Error("Service failed to delete api key", zap.String("key_id", keyID), zap.Error(err))
		_ = c.Error(translateMissingKey(err))
		return
	}

	h.logger.Info("API key deleted via handler", zap.String("key_id", keyID))
	c.Status(http.StatusNoContent)
}

// translateMissingKey distinguishes a missing resource on a management
// route from a missing credential during authentication. Here the key id
// is a path parameter, so its absence is a 404, not a 401.
func translateMissingKey(err error) error {
	if errors.Is(err, ierr.ErrAPIKeyNotFound) {
		return fmt.Errorf("%w: api key does not exist", ierr.ErrNotFound)
	}
	return err
}
