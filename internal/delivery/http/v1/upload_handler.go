package v1

import (
	"io"
	"net/http"
	"strconv"

	"agribid-backend/internal/delivery/http/middleware"
	"agribid-backend/internal/delivery/http/response"
	"agribid-backend/internal/domain"
	"agribid-backend/pkg/apperror"
	"agribid-backend/pkg/logger"
	"agribid-backend/pkg/security"

	"github.com/gin-gonic/gin"
)

type UploadHandler struct {
	images    domain.ImageStore
	limiter   *security.UploadLimiter
	secLogger *security.SecurityLogger
}

// NewUploadHandler registers the listing image upload. A nil images store
// answers 503.
func NewUploadHandler(protected *gin.RouterGroup, images domain.ImageStore, limiter *security.UploadLimiter, secLogger *security.SecurityLogger) {
	handler := &UploadHandler{images: images, limiter: limiter, secLogger: secLogger}
	protected.POST("/uploads/images", handler.UploadImage)
}

type UploadResponse struct {
	URL string `json:"url"`
}

// UploadImage godoc
// @Summary      Upload a listing image
// @Description  Accepts JPEG, PNG or WebP up to 10 MB. The image is downscaled and stored as JPEG.
// @Tags         uploads
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        file  formData  file  true  "Image"
// @Success      201   {object}  response.Response{data=UploadResponse}
// @Failure      400   {object}  response.Response
// @Failure      413   {object}  response.Response
// @Failure      429   {object}  response.Response
// @Failure      503   {object}  response.Response
// @Router       /uploads/images [post]
func (h *UploadHandler) UploadImage(c *gin.Context) {
	if h.images == nil {
		c.Error(apperror.New(http.StatusServiceUnavailable, "Image uploads are not configured", nil))
		return
	}
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.Error(apperror.Unauthorized("User not authenticated"))
		return
	}
	ctx := c.Request.Context()

	allowed, retryAfter, err := h.limiter.AllowUpload(ctx, c.ClientIP(), user.ID)
	if err != nil {
		logger.Log.Warn("Upload limit check failed", "error", err)
	}
	if !allowed {
		c.Header("Retry-After", strconv.Itoa(retryAfter))
		c.Error(apperror.TooManyRequests("Upload limit reached. Please try again later."))
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, security.MaxImageBytes+(1<<20))
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.Error(apperror.BadRequest("An image file is required"))
		return
	}
	if fileHeader.Size > security.MaxImageBytes {
		c.Error(apperror.New(http.StatusRequestEntityTooLarge, "Image must be 10 MB or smaller", nil))
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		c.Error(apperror.Internal(err))
		return
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, security.MaxImageBytes+1))
	if err != nil {
		c.Error(apperror.Internal(err))
		return
	}

	check := security.ValidateImage(fileHeader.Filename, data)
	if !check.Valid {
		h.secLogger.Log(ctx, security.SecurityEvent{
			Event:        security.EventUploadRejected,
			SubjectType:  "user_id",
			SubjectValue: user.ID,
			IP:           c.ClientIP(),
			RequestID:    requestID(c),
			Details:      map[string]any{"reason": check.Error, "extension": check.Extension},
		})
		c.Error(apperror.BadRequest(check.Error))
		return
	}

	url, err := h.images.UploadImage(ctx, data, check.DetectedMIME)
	if err != nil {
		c.Error(apperror.BadGateway("Failed to store image", err))
		return
	}
	response.Success(c, http.StatusCreated, "Image uploaded", UploadResponse{URL: url})
}
