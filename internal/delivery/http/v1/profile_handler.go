package v1

import (
	"encoding/json"
	"net/http"

	"agribid-backend/internal/delivery/http/middleware"
	"agribid-backend/internal/delivery/http/response"
	"agribid-backend/internal/domain"
	"agribid-backend/pkg/apperror"

	"github.com/gin-gonic/gin"
)

type ProfileHandler struct {
	profileUC domain.ProfileUsecase
}

func NewProfileHandler(protected *gin.RouterGroup, profileUC domain.ProfileUsecase) {
	handler := &ProfileHandler{profileUC: profileUC}

	profile := protected.Group("/profile")
	{
		profile.GET("", handler.GetProfile)
		profile.PUT("", handler.SaveProfile)
	}
}

type SaveProfileRequest struct {
	UserType string          `json:"userType" enums:"farmer,company,exporter"`
	Profile  json.RawMessage `json:"profile" swaggertype:"object"`
}

// GetProfile godoc
// @Summary      Get my profile
// @Description  Returns the caller merged with the stored profile. Callers without a stored profile get the default user type and no profile.
// @Tags         profile
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=domain.User}
// @Failure      401  {object}  response.Response
// @Router       /profile [get]
func (h *ProfileHandler) GetProfile(c *gin.Context) {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		c.Error(apperror.Unauthorized("User not authenticated"))
		return
	}
	user, err := h.profileUC.GetCurrentUser(c.Request.Context(), identity)
	if err != nil {
		c.Error(err)
		return
	}
	response.Success(c, http.StatusOK, "Profile retrieved", user)
}

// SaveProfile godoc
// @Summary      Save my profile
// @Description  Creates or replaces the caller's farmer or company profile. The user type chosen at registration cannot change.
// @Tags         profile
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        profile  body      SaveProfileRequest  true  "Profile"
// @Success      200      {object}  response.Response{data=domain.User}
// @Failure      400      {object}  response.Response
// @Failure      401      {object}  response.Response
// @Failure      409      {object}  response.Response  "User type cannot be changed"
// @Router       /profile [put]
func (h *ProfileHandler) SaveProfile(c *gin.Context) {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		c.Error(apperror.Unauthorized("User not authenticated"))
		return
	}

	var req SaveProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperror.BadRequest("Invalid request body"))
		return
	}
	userType, err := domain.ParseUserType(req.UserType)
	if err != nil {
		c.Error(apperror.BadRequest("Please choose farmer, company or exporter"))
		return
	}
	profile, err := domain.DecodeProfile(userType, req.Profile)
	if err != nil {
		c.Error(apperror.New(http.StatusBadRequest, "Profile does not match the "+string(userType)+" profile fields", err))
		return
	}

	user, err := h.profileUC.SaveProfile(c.Request.Context(), identity, userType, profile)
	if err != nil {
		c.Error(err)
		return
	}
	response.Success(c, http.StatusOK, "Profile saved", user)
}
