// README: Customer-facing order endpoints: place, list, get, cancel.
package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"leafline/internal/http/middleware"
	"leafline/internal/modules/order"
	"leafline/internal/orchestrator"
	"leafline/internal/types"
)

type OrderHandler struct {
	oc Orchestrator
}

func NewOrderHandler(oc Orchestrator) *OrderHandler {
	return &OrderHandler{oc: oc}
}

type orderItemReq struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type placeOrderReq struct {
	Items         []orderItemReq `json:"items"`
	Address       string         `json:"address"`
	Lat           *float64       `json:"lat"`
	Lng           *float64       `json:"lng"`
	PaymentMethod string         `json:"payment_method"`
	Tip           int64          `json:"tip"`
	Instructions  string         `json:"instructions"`
}

func (h *OrderHandler) Place(c *gin.Context) {
	var req placeOrderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if len(req.Items) == 0 || req.Address == "" {
		writeError(c, http.StatusBadRequest, "missing fields")
		return
	}

	cmd := orchestrator.PlaceOrderCommand{
		Address:       req.Address,
		PaymentMethod: req.PaymentMethod,
		TipCents:      req.Tip,
		Instructions:  req.Instructions,
	}
	for _, it := range req.Items {
		cmd.Items = append(cmd.Items, order.ItemInput{ProductID: types.ID(it.ProductID), Quantity: it.Quantity})
	}
	if req.Lat != nil && req.Lng != nil {
		cmd.Dropoff = &types.Point{Lat: *req.Lat, Lng: *req.Lng}
	}

	o, err := h.oc.PlaceOrder(c.Request.Context(), middleware.CallerActor(c), cmd)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, viewOrder(o))
}

func (h *OrderHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	status := order.Status(c.Query("status"))

	orders, err := h.oc.ListOrders(c.Request.Context(), middleware.CallerActor(c), status, page, limit)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"orders": viewOrders(orders), "page": page, "limit": limit})
}

func (h *OrderHandler) Get(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		writeError(c, http.StatusBadRequest, "missing order id")
		return
	}
	o, err := h.oc.GetOrder(c.Request.Context(), middleware.CallerActor(c), types.ID(id))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, viewOrder(o))
}

type updateStatusReq struct {
	Status string `json:"status"`
	Note   string `json:"note"`
}

func (h *OrderHandler) UpdateStatus(c *gin.Context) {
	var req updateStatusReq
	if err := c.ShouldBindJSON(&req); err != nil || req.Status == "" {
		writeError(c, http.StatusBadRequest, "missing status")
		return
	}
	o, err := h.oc.UpdateStatus(c.Request.Context(), middleware.CallerActor(c), types.ID(c.Param("id")), order.Status(req.Status), req.Note)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, viewOrder(o))
}

type cancelReq struct {
	Reason string `json:"reason"`
}

func (h *OrderHandler) Cancel(c *gin.Context) {
	var req cancelReq
	_ = c.ShouldBindJSON(&req) // reason is optional

	err := h.oc.CancelOrder(c.Request.Context(), middleware.CallerActor(c), types.ID(c.Param("id")), req.Reason)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"status": order.StatusCancelled})
}
