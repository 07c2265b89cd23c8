package transport

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/rosehq/screening-backend/internal/service"
	"github.com/rosehq/screening-backend/internal/transport/middleware"
)

// maxResultFileSize caps uploaded artifacts at 10 MB.
const maxResultFileSize = 10 << 20

type ResultHandler struct {
	resultService service.ResultService
}

func NewResultHandler(resultService service.ResultService) *ResultHandler {
	return &ResultHandler{resultService: resultService}
}

// UploadResult accepts a multipart form: booking_id, result_category,
// result_notes and an optional file part.
func (h *ResultHandler) UploadResult(c *gin.Context) {
	req := service.UploadResultRequest{
		BookingID:      c.PostForm("booking_id"),
		ResultCategory: c.PostForm("result_category"),
		ResultNotes:    c.PostForm("result_notes"),
		UploadedBy:     c.GetString(middleware.AdminIDKey),
	}

	if _, err := uuid.Parse(req.BookingID); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Success: false, Error: "invalid booking id"})
		return
	}
	if req.ResultCategory == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Success: false, Error: "result_category is required"})
		return
	}

	if fileHeader, err := c.FormFile("file"); err == nil {
		if fileHeader.Size > maxResultFileSize {
			c.JSON(http.StatusBadRequest, ErrorResponse{Success: false, Error: "file too large"})
			return
		}

		file, err := fileHeader.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Success: false, Error: "failed to read file"})
			return
		}
		defer file.Close()

		data, err := io.ReadAll(io.LimitReader(file, maxResultFileSize))
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Success: false, Error: "failed to read file"})
			return
		}
		req.FileData = data
		req.FileName = fileHeader.Filename
	}

	result, err := h.resultService.UploadResult(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

func (h *ResultHandler) SendResultSMS(c *gin.Context) {
	resultID := c.Param("id")
	if _, err := uuid.Parse(resultID); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Success: false, Error: "invalid result id"})
		return
	}

	if err := h.resultService.SendResultSMS(c.Request.Context(), resultID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Success: true, Message: "result notification queued"})
}

func (h *ResultHandler) GetResult(c *gin.Context) {
	resultID := c.Param("id")
	if _, err := uuid.Parse(resultID); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Success: false, Error: "invalid result id"})
		return
	}

	result, err := h.resultService.GetResult(c.Request.Context(), resultID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *ResultHandler) GetAllResults(c *gin.Context) {
	results, err := h.resultService.GetAllResults(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, results)
}

func (h *ResultHandler) GetMyResults(c *gin.Context) {
	participantID := c.GetString(middleware.ParticipantIDKey)

	results, err := h.resultService.GetParticipantResults(c.Request.Context(), participantID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, results)
}

func (h *ResultHandler) RequestOTP(c *gin.Context) {
	resultID := c.Param("id")
	if _, err := uuid.Parse(resultID); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Success: false, Error: "invalid result id"})
		return
	}

	participantID := c.GetString(middleware.ParticipantIDKey)

	if err := h.resultService.RequestOTP(c.Request.Context(), resultID, participantID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Success: true, Message: "otp sent"})
}

func (h *ResultHandler) ViewResult(c *gin.Context) {
	resultID := c.Param("id")
	if _, err := uuid.Parse(resultID); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Success: false, Error: "invalid result id"})
		return
	}

	var req struct {
		Code string `json:"code" binding:"required,len=6,numeric"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Success: false, Error: err.Error()})
		return
	}

	participantID := c.GetString(middleware.ParticipantIDKey)

	view, err := h.resultService.ViewResult(c.Request.Context(), resultID, participantID, req.Code)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}
