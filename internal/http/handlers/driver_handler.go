// README: Driver endpoints: accept, presence, location pings, earnings, push tokens.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"leafline/internal/http/middleware"
	"leafline/internal/modules/driver"
	"leafline/internal/types"
)

type DriverHandler struct {
	oc       Orchestrator
	earnings EarningsReader
	tokens   TokenRegistry
}

func NewDriverHandler(oc Orchestrator, earnings EarningsReader, tokens TokenRegistry) *DriverHandler {
	return &DriverHandler{oc: oc, earnings: earnings, tokens: tokens}
}

func (h *DriverHandler) Accept(c *gin.Context) {
	o, err := h.oc.AcceptOrder(c.Request.Context(), middleware.CallerActor(c), types.ID(c.Param("id")))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, viewOrder(o))
}

type setOnlineReq struct {
	Online bool     `json:"online"`
	Lat    *float64 `json:"lat"`
	Lng    *float64 `json:"lng"`
}

func (h *DriverHandler) SetOnline(c *gin.Context) {
	var req setOnlineReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	var p *types.Point
	if req.Lat != nil && req.Lng != nil {
		p = &types.Point{Lat: *req.Lat, Lng: *req.Lng}
	}
	if err := h.oc.SetDriverOnline(c.Request.Context(), middleware.CallerActor(c), req.Online, p); err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"online": req.Online})
}

type locationReq struct {
	Lat     float64  `json:"lat"`
	Lng     float64  `json:"lng"`
	Heading *float64 `json:"heading"`
	Speed   *float64 `json:"speed"`
	TsMs    int64    `json:"ts_ms"`
}

func (h *DriverHandler) ReportLocation(c *gin.Context) {
	var req locationReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if req.TsMs == 0 {
		req.TsMs = time.Now().UnixMilli()
	}
	loc := driver.Location{
		Point:   types.Point{Lat: req.Lat, Lng: req.Lng},
		Heading: req.Heading,
		Speed:   req.Speed,
		TsMs:    req.TsMs,
	}
	if err := h.oc.ReportDriverLocation(c.Request.Context(), middleware.CallerActor(c), loc); err != nil {
		writeDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *DriverHandler) Earnings(c *gin.Context) {
	actor := middleware.CallerActor(c)
	weekly, err := h.earnings.WeeklySummary(c.Request.Context(), actor.ID)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	monthly, err := h.earnings.MonthlySummary(c.Request.Context(), actor.ID)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{
		"weekly":  weekly.Amount,
		"monthly": monthly.Amount,
	})
}

type tokenReq struct {
	Token string `json:"token"`
}

func (h *DriverHandler) RegisterToken(c *gin.Context) {
	var req tokenReq
	if err := c.ShouldBindJSON(&req); err != nil || req.Token == "" {
		writeError(c, http.StatusBadRequest, "missing token")
		return
	}
	if err := h.tokens.RegisterToken(c.Request.Context(), middleware.CallerActor(c).ID, req.Token); err != nil {
		writeDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *DriverHandler) UnregisterToken(c *gin.Context) {
	if err := h.tokens.UnregisterToken(c.Request.Context(), middleware.CallerActor(c).ID); err != nil {
		writeDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
