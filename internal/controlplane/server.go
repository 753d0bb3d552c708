package controlplane

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/epic1st/execengine/internal/domain/order"
	"github.com/epic1st/execengine/internal/domain/values"
	"github.com/epic1st/execengine/internal/usecase"
)

// ControlPlane is the order-entry surface the HTTP layer drives. It is
// satisfied by *usecase.Submitter; declaring it here keeps the transport
// package ignorant of the use case's other dependencies (repository,
// broker adapter, risk constraints) and leaves room for a gRPC or Flight
// transport to implement the same contract later without touching the
// use case itself.
type ControlPlane interface {
	Submit(ctx context.Context, req usecase.SubmitSingleLegRequest) (*order.Order, error)
	Cancel(ctx context.Context, id values.OrderId, reason order.CancelReason) error
}

// Config configures the control-plane HTTP server.
type Config struct {
	Bind string
	Port string
	JWTSecret []byte
}

// Dependencies wires the control plane to the rest of the engine.
type Dependencies struct {
	ControlPlane ControlPlane
}

// Server is the JWT-guarded HTTP front door onto ControlPlane.
type Server struct {
	httpServer *http.Server
	log *zap.Logger
}

func NewServer(cfg Config, deps Dependencies, log *zap.Logger) *Server {
	mux := http.NewServeMux()
	s := &Server{
		httpServer: &http.Server{
			Addr: cfg.Bind + ":" + cfg.Port,
			Handler: mux,
			ReadTimeout: 15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout: 60 * time.Second,
		},
		log: log,
	}

	auth := JWTAuth(cfg.JWTSecret)
	h := &handlers{plane: deps.ControlPlane, log: log}

	mux.HandleFunc("GET /healthz", h.health)
	mux.Handle("POST /v1/orders", auth(http.HandlerFunc(h.submit)))
	mux.Handle("POST /v1/orders/{id}/cancel", auth(http.HandlerFunc(h.cancel)))

	return s
}

func (s *Server) Start() error {
	s.log.Info("starting control-plane HTTP server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("control-plane server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

type handlers struct {
	plane ControlPlane
	log *zap.Logger
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type submitOrderRequest struct {
	Symbol string `json:"symbol"`
	Side values.Side `json:"side"`
	OrderType order.OrderType `json:"order_type"`
	Quantity values.Quantity `json:"quantity"`
	LimitPrice *values.Money `json:"limit_price,omitempty"`
	StopPrice *values.Money `json:"stop_price,omitempty"`
	TIF order.TimeInForce `json:"tif"`
	Purpose order.Purpose `json:"purpose"`
	EstimatedPrice values.Money `json:"estimated_price"`
}

type orderView struct {
	ID string `json:"id"`
	BrokerID string `json:"broker_id,omitempty"`
	Symbol string `json:"symbol"`
	Side values.Side `json:"side"`
	Status order.Status `json:"status"`
	CumQty string `json:"cum_qty"`
	LeavesQty string `json:"leaves_qty"`
	AvgPx string `json:"avg_px"`
}

func viewOf(o *order.Order) orderView {
	return orderView{
		ID: o.ID().String(),
		BrokerID: o.BrokerID().String(),
		Symbol: o.Symbol().String(),
		Side: o.Side(),
		Status: o.Status(),
		CumQty: o.CumQty().String(),
		LeavesQty: o.LeavesQty().String(),
		AvgPx: o.AvgPx().String(),
	}
}

func (h *handlers) submit(w http.ResponseWriter, r *http.Request) {
	var req submitOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	sym, err := values.NewSymbol(req.Symbol)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	o, err := h.plane.Submit(r.Context(), usecase.SubmitSingleLegRequest{
		Symbol: sym,
		Side: req.Side,
		OrderType: req.OrderType,
		Quantity: req.Quantity,
		LimitPrice: req.LimitPrice,
		StopPrice: req.StopPrice,
		TIF: req.TIF,
		Purpose: req.Purpose,
		EstimatedPrice: req.EstimatedPrice,
	})
	if err != nil {
		h.writeSubmitError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, viewOf(o))
}

func (h *handlers) writeSubmitError(w http.ResponseWriter, err error) {
	var halted *usecase.TradingHaltedError
	var riskRejected *usecase.RiskRejectedError
	switch {
	case errors.As(err, &halted):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.As(err, &riskRejected):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		h.log.Error("submit failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "submit failed")
	}
}

type cancelOrderRequest struct {
	Reason order.CancelReason `json:"reason"`
}

func (h *handlers) cancel(w http.ResponseWriter, r *http.Request) {
	id := values.OrderId(r.PathValue("id"))
	if id.IsEmpty() {
		writeError(w, http.StatusBadRequest, "order id required")
		return
	}
	var req cancelOrderRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "malformed request body")
			return
		}
	}
	if req.Reason == "" {
		req.Reason = order.CancelReasonUser
	}

	if err := h.plane.Cancel(r.Context(), id, req.Reason); err != nil {
		h.log.Error("cancel failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "cancel failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "canceled"})
}
