package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"agency-site/internal/domain"
	"agency-site/internal/service"
)

func (h *Handler) listProjectRequests(c *gin.Context) {
	requests, err := h.projects.ListByUser(c.Request.Context(), actorFrom(c), c.Query("user_id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, projectRequestsToResponse(requests))
}

func (h *Handler) createProjectRequest(c *gin.Context) {
	var req projectRequestBody
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	created, err := h.projects.Create(c.Request.Context(), actorFrom(c), service.ProjectRequestInput{
		Name:        req.Name,
		Email:       req.Email,
		Title:       req.Title,
		Description: req.Description,
		Budget:      req.Budget,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.metrics.RecordSubmission("project_request")
	c.JSON(http.StatusCreated, projectRequestToResponse(*created))
}

func (h *Handler) listAllProjectRequests(c *gin.Context) {
	requests, stats, err := h.projects.ListAll(c.Request.Context(), actorFrom(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if status := c.Query("status"); status != "" {
		filtered := make([]domain.ProjectRequest, 0, len(requests))
		for _, r := range requests {
			if string(r.Status) == status {
				filtered = append(filtered, r)
			}
		}
		requests = filtered
	}
	c.JSON(http.StatusOK, gin.H{
		"requests": projectRequestsToResponse(requests),
		"stats":    ProjectRequestStatsResponse(stats),
	})
}

func (h *Handler) updateProjectRequestStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	updated, err := h.projects.UpdateStatus(c.Request.Context(), actorFrom(c), c.Param("id"), domain.ProjectStatus(req.Status))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, projectRequestToResponse(*updated))
}
