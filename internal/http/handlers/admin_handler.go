// README: Admin endpoints: direct driver assignment and ranked candidate lookup.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"leafline/internal/http/middleware"
	"leafline/internal/modules/order"
	"leafline/internal/types"
)

type AdminHandler struct {
	oc      Orchestrator
	matcher CandidateFinder
}

func NewAdminHandler(oc Orchestrator, matcher CandidateFinder) *AdminHandler {
	return &AdminHandler{oc: oc, matcher: matcher}
}

type assignReq struct {
	DriverID string `json:"driver_id"`
}

func (h *AdminHandler) Assign(c *gin.Context) {
	var req assignReq
	if err := c.ShouldBindJSON(&req); err != nil || req.DriverID == "" {
		writeError(c, http.StatusBadRequest, "missing driver_id")
		return
	}
	o, err := h.oc.AssignDriver(c.Request.Context(), middleware.CallerActor(c), types.ID(c.Param("id")), types.ID(req.DriverID))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, viewOrder(o))
}

type candidateView struct {
	DriverID   string  `json:"driver_id"`
	Rating     float64 `json:"rating"`
	DistanceKm float64 `json:"distance_km"`
}

func (h *AdminHandler) Candidates(c *gin.Context) {
	actor := middleware.CallerActor(c)
	if !actor.Role.IsOperator() {
		writeDomainError(c, order.ErrForbidden)
		return
	}
	o, err := h.oc.GetOrder(c.Request.Context(), actor, types.ID(c.Param("id")))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	candidates, err := h.matcher.FindCandidates(c.Request.Context(), o)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	out := make([]candidateView, 0, len(candidates))
	for _, cand := range candidates {
		out = append(out, candidateView{
			DriverID:   string(cand.Driver.ID),
			Rating:     cand.Driver.Rating,
			DistanceKm: cand.DistanceKm,
		})
	}
	writeJSON(c, http.StatusOK, gin.H{"candidates": out})
}
