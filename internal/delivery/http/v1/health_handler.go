package v1

import (
	"net/http"

	"agribid-backend/internal/delivery/http/response"
	"agribid-backend/internal/usecase"

	"github.com/gin-gonic/gin"
)

type HealthHandler struct {
	healthUC usecase.HealthUsecase
}

func NewHealthHandler(public *gin.RouterGroup, healthUC usecase.HealthUsecase) {
	handler := &HealthHandler{healthUC: healthUC}
	public.GET("/health", handler.Health)
}

// Health godoc
// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  response.Response
// @Failure      503  {object}  response.Response
// @Router       /health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	status := h.healthUC.Check(c.Request.Context())
	if status["status"] != "ok" {
		response.Error(c, http.StatusServiceUnavailable, "System degraded", status)
		return
	}
	response.Success(c, http.StatusOK, "System operational", status)
}
