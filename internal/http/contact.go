package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"agency-site/internal/domain"
	"agency-site/internal/service"
)

func (h *Handler) submitContactMessage(c *gin.Context) {
	var req contactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	msg, err := h.contact.Submit(c.Request.Context(), service.ContactInput{
		Name:    req.Name,
		Email:   req.Email,
		Message: req.Message,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.metrics.RecordSubmission("contact_message")
	c.JSON(http.StatusCreated, contactMessageToResponse(*msg))
}

func (h *Handler) listContactMessages(c *gin.Context) {
	messages, err := h.contact.List(c.Request.Context(), actorFrom(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	stats := domain.SummariseContactMessages(messages)
	messages = domain.FilterContactMessages(messages, c.Query("q"))

	resp := make([]ContactMessageResponse, len(messages))
	for i := range messages {
		resp[i] = contactMessageToResponse(messages[i])
	}
	c.JSON(http.StatusOK, gin.H{
		"messages": resp,
		"stats":    ContactStatsResponse(stats),
	})
}

func (h *Handler) markContactMessageRead(c *gin.Context) {
	if err := h.contact.MarkRead(c.Request.Context(), actorFrom(c), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
