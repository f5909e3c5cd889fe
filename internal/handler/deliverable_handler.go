package handler

import (
	"errors"
	"net/http"

	"hireloop/internal/service"

	"github.com/gin-gonic/gin"
)

const maxDeliverableSize = 25 << 20

type DeliverableHandler struct {
	svc *service.DeliverableService
}

func NewDeliverableHandler(svc *service.DeliverableService) *DeliverableHandler {
	return &DeliverableHandler{svc: svc}
}

// Upload accepts a multipart "file" plus an optional "note" from the contract's payee.
func (h *DeliverableHandler) Upload(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file required"})
		return
	}
	if file.Size > maxDeliverableSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
		return
	}
	f, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read file"})
		return
	}
	defer f.Close()

	d, err := h.svc.Add(c.Request.Context(), id, actorFrom(c), f, file.Filename, c.PostForm("note"))
	if err != nil {
		if errors.Is(err, service.ErrUploadsDisabled) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "uploads are disabled"})
			return
		}
		writeEscrowError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"deliverable": d})
}

func (h *DeliverableHandler) List(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	list, err := h.svc.List(c.Request.Context(), id, actorFrom(c))
	if err != nil {
		writeEscrowError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deliverables": list})
}
