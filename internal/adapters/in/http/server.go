// Package http exposes the dispatch engine over a small JSON API: the
// deliverer's session and offer list, the job-stage actions, and the shop's
// order board with its countdown column.
package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"dispatch/internal/core/application/engine"
	"dispatch/internal/core/application/usecases/queries"
	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/model/order"
	"dispatch/internal/core/domain/model/session"
	"dispatch/internal/core/ports"
	"dispatch/internal/pkg/errs"

	"github.com/labstack/echo/v4"
)

// Server routes HTTP requests to the courier engine and the shop tracker.
type Server struct {
	engine          *engine.Engine
	tracker         *engine.OrderTracker
	earningsHandler queries.GetEarningsQueryHandler
}

// NewServer creates an HTTP server over the given engine and tracker.
func NewServer(
	eng *engine.Engine,
	tracker *engine.OrderTracker,
	earningsHandler queries.GetEarningsQueryHandler,
) *Server {
	return &Server{
		engine:          eng,
		tracker:         tracker,
		earningsHandler: earningsHandler,
	}
}

// RegisterRoutes attaches all handlers to the echo instance.
func (s *Server) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", s.Health)

	api := e.Group("/api/v1")
	api.GET("/session", s.GetSession)
	api.POST("/session/online", s.GoOnline)
	api.POST("/session/offline", s.GoOffline)

	api.GET("/offers", s.GetOffers)
	api.POST("/offers/:assignmentId/accept", s.AcceptOffer)

	api.POST("/job/arrive-restaurant", s.ArriveAtRestaurant)
	api.POST("/job/pickup", s.ConfirmPickup)
	api.POST("/job/arrive-customer", s.ArriveAtCustomer)
	api.POST("/job/deliver", s.ConfirmDelivery)
	api.POST("/job/acknowledge", s.AcknowledgeCompletion)
	api.POST("/job/cancel", s.CancelJob)

	api.GET("/earnings", s.GetEarnings)

	api.GET("/orders", s.GetOrders)
	api.GET("/orders/:orderId/countdown", s.GetCountdown)
	api.POST("/orders/:orderId/cancel", s.CancelOrder)
}

// Error is the JSON error body.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func errorJSON(ctx echo.Context, code int, message string) error {
	return ctx.JSON(code, Error{Code: code, Message: message})
}

// Health handles GET /health.
func (s *Server) Health(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Healthy")
}

// SessionResponse is the deliverer session snapshot.
type SessionResponse struct {
	DelivererID    string  `json:"deliverer_id"`
	IsOnline       bool    `json:"is_online"`
	CurrentOrderID *string `json:"current_order_id,omitempty"`
	Stage          string  `json:"stage"`
	JobCredit      int     `json:"job_credit"`
}

// GetSession handles GET /api/v1/session.
func (s *Server) GetSession(ctx echo.Context) error {
	snap := s.engine.Session()

	resp := SessionResponse{
		DelivererID: snap.DelivererID.String(),
		IsOnline:    snap.IsOnline,
		Stage:       snap.Stage.String(),
		JobCredit:   snap.JobCredit,
	}
	if snap.CurrentOrderID != nil {
		id := snap.CurrentOrderID.String()
		resp.CurrentOrderID = &id
	}
	return ctx.JSON(http.StatusOK, resp)
}

// GoOnline handles POST /api/v1/session/online.
func (s *Server) GoOnline(ctx echo.Context) error {
	if err := s.engine.SetOnline(); err != nil {
		if errors.Is(err, session.ErrNoJobCredit) {
			return errorJSON(ctx, http.StatusPaymentRequired, "Job credit balance is exhausted")
		}
		return errorJSON(ctx, http.StatusInternalServerError, "Failed to go online")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// GoOffline handles POST /api/v1/session/offline.
func (s *Server) GoOffline(ctx echo.Context) error {
	s.engine.SetOffline()
	return ctx.NoContent(http.StatusNoContent)
}

// OfferResponse is one row of the deliverer's offer list.
type OfferResponse struct {
	AssignmentID    string   `json:"assignment_id"`
	OrderID         string   `json:"order_id"`
	ShopID          string   `json:"shop_id"`
	DistanceKm      *float64 `json:"distance_km,omitempty"`
	DeliveryFee     float64  `json:"delivery_fee"`
	DeliveryAddress string   `json:"delivery_address"`
	AcceptDeadline  string   `json:"accept_deadline"`
}

// GetOffers handles GET /api/v1/offers.
func (s *Server) GetOffers(ctx echo.Context) error {
	visible := s.engine.VisibleOffers()

	resp := make([]OfferResponse, len(visible))
	for i, v := range visible {
		o := v.Offer
		resp[i] = OfferResponse{
			AssignmentID:    o.AssignmentID().String(),
			OrderID:         o.OrderID().String(),
			ShopID:          o.ShopID().String(),
			DeliveryFee:     o.DeliveryFee(),
			DeliveryAddress: o.DeliveryAddress(),
			AcceptDeadline:  v.Deadline.UTC().Format(time.RFC3339),
		}
		if o.HasKnownDistance() {
			d := o.DistanceKm()
			resp[i].DistanceKm = &d
		}
	}
	return ctx.JSON(http.StatusOK, resp)
}

// AcceptOffer handles POST /api/v1/offers/:assignmentId/accept.
func (s *Server) AcceptOffer(ctx echo.Context) error {
	assignmentID, err := kernel.UUIDFromString(ctx.Param("assignmentId"))
	if err != nil {
		return errorJSON(ctx, http.StatusBadRequest, "Invalid assignment id")
	}

	switch err := s.engine.AttemptAccept(ctx.Request().Context(), assignmentID); {
	case err == nil:
		return ctx.NoContent(http.StatusNoContent)
	case errors.Is(err, engine.ErrOfferNotVisible):
		return errorJSON(ctx, http.StatusNotFound, "Offer is not visible")
	case errors.Is(err, ports.ErrOfferTaken):
		return errorJSON(ctx, http.StatusConflict, "Offer already taken by another courier")
	case errors.Is(err, session.ErrAlreadyOnJob):
		return errorJSON(ctx, http.StatusConflict, "A job is already in progress")
	default:
		return errorJSON(ctx, http.StatusBadGateway, "Accept failed: "+err.Error())
	}
}

// ArriveAtRestaurant handles POST /api/v1/job/arrive-restaurant.
func (s *Server) ArriveAtRestaurant(ctx echo.Context) error {
	return s.jobAction(ctx, s.engine.ArriveAtRestaurant)
}

// ConfirmPickup handles POST /api/v1/job/pickup.
func (s *Server) ConfirmPickup(ctx echo.Context) error {
	err := s.engine.ConfirmPickup(ctx.Request().Context())
	if errors.Is(err, engine.ErrOrderNotReady) {
		return errorJSON(ctx, http.StatusPreconditionFailed, "Order is not ready for pickup")
	}
	return s.jobActionResult(ctx, err)
}

// ArriveAtCustomer handles POST /api/v1/job/arrive-customer.
func (s *Server) ArriveAtCustomer(ctx echo.Context) error {
	return s.jobAction(ctx, s.engine.ArriveAtCustomer)
}

// ConfirmDelivery handles POST /api/v1/job/deliver.
func (s *Server) ConfirmDelivery(ctx echo.Context) error {
	return s.jobAction(ctx, s.engine.ConfirmDelivery)
}

// AcknowledgeCompletion handles POST /api/v1/job/acknowledge.
func (s *Server) AcknowledgeCompletion(ctx echo.Context) error {
	return s.jobAction(ctx, s.engine.AcknowledgeCompletion)
}

// CancelJob handles POST /api/v1/job/cancel.
func (s *Server) CancelJob(ctx echo.Context) error {
	return s.jobAction(ctx, s.engine.CancelJob)
}

func (s *Server) jobAction(ctx echo.Context, action func(context.Context) error) error {
	return s.jobActionResult(ctx, action(ctx.Request().Context()))
}

func (s *Server) jobActionResult(ctx echo.Context, err error) error {
	switch {
	case err == nil:
		return ctx.NoContent(http.StatusNoContent)
	case errors.Is(err, session.ErrNoActiveJob):
		return errorJSON(ctx, http.StatusNotFound, "No active job")
	case isInvariantViolation(err):
		return errorJSON(ctx, http.StatusConflict, err.Error())
	default:
		return errorJSON(ctx, http.StatusBadGateway, "Job action failed: "+err.Error())
	}
}

// EarningRow is one settlement accrual in the earnings response.
type EarningRow struct {
	OrderID   string  `json:"order_id"`
	Fee       float64 `json:"fee"`
	AccruedAt string  `json:"accrued_at"`
}

// GetEarnings handles GET /api/v1/earnings.
func (s *Server) GetEarnings(ctx echo.Context) error {
	query, err := queries.NewGetEarningsQuery(s.engine.Session().DelivererID)
	if err != nil {
		return errorJSON(ctx, http.StatusInternalServerError, "Failed to build earnings query")
	}

	accruals, err := s.earningsHandler.Handle(ctx.Request().Context(), query)
	if err != nil {
		return errorJSON(ctx, http.StatusInternalServerError, "Failed to retrieve earnings")
	}

	resp := make([]EarningRow, len(accruals))
	for i, a := range accruals {
		resp[i] = EarningRow{
			OrderID:   a.OrderID.String(),
			Fee:       a.Fee,
			AccruedAt: a.AccruedAt.UTC().Format(time.RFC3339),
		}
	}
	return ctx.JSON(http.StatusOK, resp)
}

// OrderResponse is one row of the shop's order board.
type OrderResponse struct {
	OrderID   string `json:"order_id"`
	Status    string `json:"status"`
	Countdown string `json:"countdown,omitempty"`
}

// GetOrders handles GET /api/v1/orders.
func (s *Server) GetOrders(ctx echo.Context) error {
	ids := s.tracker.TrackedIDs()

	resp := make([]OrderResponse, 0, len(ids))
	for _, id := range ids {
		so := s.tracker.Order(id)
		if so == nil {
			continue
		}
		resp = append(resp, OrderResponse{
			OrderID:   id.String(),
			Status:    so.Status().String(),
			Countdown: s.tracker.CountdownDisplay(id),
		})
	}
	return ctx.JSON(http.StatusOK, resp)
}

// CountdownResponse carries the timer column for one order.
type CountdownResponse struct {
	OrderID   string `json:"order_id"`
	Countdown string `json:"countdown"`
}

// GetCountdown handles GET /api/v1/orders/:orderId/countdown.
func (s *Server) GetCountdown(ctx echo.Context) error {
	orderID, err := kernel.UUIDFromString(ctx.Param("orderId"))
	if err != nil {
		return errorJSON(ctx, http.StatusBadRequest, "Invalid order id")
	}
	if s.tracker.Order(orderID) == nil {
		return errorJSON(ctx, http.StatusNotFound, "Order is not tracked")
	}

	return ctx.JSON(http.StatusOK, CountdownResponse{
		OrderID:   orderID.String(),
		Countdown: s.tracker.CountdownDisplay(orderID),
	})
}

// CancelOrderRequest is the shop's cancellation body.
type CancelOrderRequest struct {
	Reason string `json:"reason"`
}

// CancelOrder handles POST /api/v1/orders/:orderId/cancel.
func (s *Server) CancelOrder(ctx echo.Context) error {
	orderID, err := kernel.UUIDFromString(ctx.Param("orderId"))
	if err != nil {
		return errorJSON(ctx, http.StatusBadRequest, "Invalid order id")
	}

	var req CancelOrderRequest
	if err := ctx.Bind(&req); err != nil {
		return errorJSON(ctx, http.StatusBadRequest, "Invalid request body")
	}

	switch err := s.tracker.CancelOrder(ctx.Request().Context(), orderID, req.Reason); {
	case err == nil:
		return ctx.NoContent(http.StatusNoContent)
	case isNotFound(err):
		return errorJSON(ctx, http.StatusNotFound, "Order is not tracked")
	case isInvariantViolation(err):
		return errorJSON(ctx, http.StatusConflict, err.Error())
	default:
		return errorJSON(ctx, http.StatusBadGateway, "Cancel failed: "+err.Error())
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, errs.ErrObjectNotFound)
}

func isInvariantViolation(err error) bool {
	return errors.Is(err, errs.ErrValueIsInvalid) ||
		errors.Is(err, errs.ErrValueIsRequired) ||
		errors.Is(err, order.ErrAlreadyPickedUp)
}
