package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/iho/cashdesk/internal/domain"
	"github.com/iho/cashdesk/internal/infrastructure/auth"
	"github.com/iho/cashdesk/internal/realtime"
	"github.com/iho/cashdesk/internal/usecase"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Configure properly for production
	},
}

// Handler upgrades connections, authenticates them, and routes inbound
// frames to coordinator operations.
type Handler struct {
	coordinator *usecase.Coordinator
	registry    *realtime.Registry
	router      *realtime.Router
	recovery    *realtime.Recovery
	jwt         *auth.JWTManager
	logger      zerolog.Logger
}

// NewHandler creates a websocket Handler.
func NewHandler(
	coordinator *usecase.Coordinator,
	registry *realtime.Registry,
	router *realtime.Router,
	recovery *realtime.Recovery,
	jwt *auth.JWTManager,
	logger zerolog.Logger,
) *Handler {
	return &Handler{
		coordinator: coordinator,
		registry:    registry,
		router:      router,
		recovery:    recovery,
		jwt:         jwt,
		logger:      logger,
	}
}

// HandleWebSocket is the /ws endpoint. The token travels in the query string
// or the Authorization header; browsers cannot set headers on websocket
// upgrades.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	claims, err := h.authenticate(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := newClient(uuid.NewString(), claims.Identity, claims.Role, conn, h.logger)

	if replaced := h.registry.Register(client); replaced != nil {
		replaced.Close()
	}
	h.router.Connected(client)

	h.logger.Info().
		Str("identity", client.identity).
		Str("role", string(client.role)).
		Msg("client connected")

	_ = client.Send("connected", map[string]any{
		"identity":  client.identity,
		"role":      client.role,
		"timestamp": time.Now().Unix(),
	})

	h.recovery.HandleReconnect(r.Context(), client)

	go client.writePump()
	go client.readPump(h)
}

func (h *Handler) authenticate(r *http.Request) (*auth.Claims, error) {
	token := r.URL.Query().Get("token")
	if token == "" {
		header := r.Header.Get("Authorization")
		token = strings.TrimPrefix(header, "Bearer ")
	}
	if token == "" {
		return nil, domain.ErrUnauthorized
	}

	return h.jwt.Verify(token)
}

// disconnect runs when the read pump exits. A stale close from a replaced
// connection is ignored; only the connection on record starts a grace
// period.
func (h *Handler) disconnect(c *Client) {
	if !h.registry.Unregister(c) {
		return
	}

	h.logger.Info().
		Str("identity", c.identity).
		Str("role", string(c.role)).
		Msg("client disconnected")

	h.recovery.HandleDisconnect(context.Background(), c.identity, c.role)
}

func (h *Handler) dispatch(c *Client, msg *Message) {
	ctx := context.Background()

	var err error
	switch msg.Type {
	// Player operations
	case MsgRequestTransaction:
		err = h.requireRole(c, domain.RolePlayer, func() error { return h.handleRequest(ctx, c, msg.Data) })
	case MsgReportPayment:
		err = h.requireRole(c, domain.RolePlayer, func() error { return h.handleReportPayment(ctx, c, msg.Data) })
	case MsgCancelTransaction:
		err = h.requireRole(c, domain.RolePlayer, func() error { return h.handleCancel(ctx, c, msg.Data) })

	// Cashier operations
	case MsgAcceptTransaction:
		err = h.requireRole(c, domain.RoleCashier, func() error { return h.handleAccept(ctx, c, msg.Data) })
	case MsgAdjustAmount:
		err = h.requireRole(c, domain.RoleCashier, func() error { return h.handleAdjust(ctx, c, msg.Data) })
	case MsgConfirmTransaction:
		err = h.requireRole(c, domain.RoleCashier, func() error { return h.handleConfirm(ctx, c, msg.Data) })
	case MsgRejectTransaction:
		err = h.requireRole(c, domain.RoleCashier, func() error { return h.handleReject(ctx, c, msg.Data) })
	case MsgSetAvailability:
		err = h.requireRole(c, domain.RoleCashier, func() error { return h.handleSetAvailability(c, msg.Data) })

	// Either side
	case MsgEscalateTransaction:
		err = h.handleEscalate(ctx, c, msg.Data)

	// Admin operations
	case MsgResumeTransaction:
		err = h.requireRole(c, domain.RoleAdmin, func() error { return h.handleResume(ctx, c, msg.Data) })
	case MsgRevertTransaction:
		err = h.requireRole(c, domain.RoleAdmin, func() error { return h.handleRevert(ctx, c, msg.Data) })

	// Read operations
	case MsgGetTransaction:
		err = h.handleGetTransaction(ctx, c, msg.Data)
	case MsgMyPending:
		err = h.requireRole(c, domain.RolePlayer, func() error { return h.handleMyPending(ctx, c, msg.Data) })
	case MsgNeedingVerification:
		err = h.requireRole(c, domain.RoleCashier, func() error { return h.handleNeedingVerification(ctx, c, msg.Data) })
	case MsgOpenForReview:
		err = h.requireRole(c, domain.RoleAdmin, func() error { return h.handleOpenForReview(ctx, c, msg.Data) })
	case MsgHistory:
		err = h.requireRole(c, domain.RolePlayer, func() error { return h.handleHistory(ctx, c, msg.Data) })

	default:
		err = fmt.Errorf("unknown message type: %s", msg.Type)
	}

	if err != nil {
		c.SendError(msg.Type, err)
	}
}

func (h *Handler) requireRole(c *Client, role domain.Role, fn func() error) error {
	if c.role != role {
		return domain.ErrWrongRole
	}
	return fn()
}

func (h *Handler) handleRequest(ctx context.Context, c *Client, data json.RawMessage) error {
	var p requestPayload
	if err := decode(data, &p); err != nil {
		return err
	}

	txn, err := h.coordinator.Request(ctx, usecase.RequestInput{
		PlayerID:   c.identity,
		Category:   domain.Category(p.Category),
		Amount:     p.Amount,
		ExternalID: p.ExternalID,
		RoomID:     p.RoomID,
		Payment:    domain.PaymentDetails{Method: p.Method, Notes: p.Notes},
		Metadata:   p.Metadata,
	})
	if err != nil {
		return err
	}

	return c.Send(MsgRequestTransaction+".ok", txn)
}

func (h *Handler) handleReportPayment(ctx context.Context, c *Client, data json.RawMessage) error {
	var p reportPayload
	if err := decode(data, &p); err != nil {
		return err
	}

	txn, err := h.coordinator.ReportPayment(ctx, usecase.ReportPaymentInput{
		TransactionID: p.TransactionID,
		PlayerID:      c.identity,
		Payment: domain.PaymentDetails{
			Method:       p.Method,
			Counterparty: p.Counterparty,
			ProofRef:     p.ProofRef,
			Notes:        p.Notes,
		},
	})
	if err != nil {
		return err
	}

	return c.Send(MsgReportPayment+".ok", txn)
}

func (h *Handler) handleCancel(ctx context.Context, c *Client, data json.RawMessage) error {
	var p reasonPayload
	if err := decode(data, &p); err != nil {
		return err
	}

	txn, err := h.coordinator.Cancel(ctx, usecase.CancelInput{
		TransactionID: p.TransactionID,
		PlayerID:      c.identity,
		Reason:        p.Reason,
	})
	if err != nil {
		return err
	}

	return c.Send(MsgCancelTransaction+".ok", txn)
}

func (h *Handler) handleAccept(ctx context.Context, c *Client, data json.RawMessage) error {
	var p acceptPayload
	if err := decode(data, &p); err != nil {
		return err
	}

	txn, err := h.coordinator.Accept(ctx, usecase.AcceptInput{
		TransactionID: p.TransactionID,
		CashierID:     c.identity,
		Payment: domain.PaymentDetails{
			Method:       p.Method,
			Counterparty: p.Counterparty,
			Notes:        p.Notes,
		},
	})
	if err != nil {
		return err
	}

	return c.Send(MsgAcceptTransaction+".ok", txn)
}

func (h *Handler) handleAdjust(ctx context.Context, c *Client, data json.RawMessage) error {
	var p adjustPayload
	if err := decode(data, &p); err != nil {
		return err
	}

	txn, err := h.coordinator.AdjustAmount(ctx, usecase.AdjustAmountInput{
		TransactionID: p.TransactionID,
		CashierID:     c.identity,
		NewAmount:     p.NewAmount,
		Reason:        p.Reason,
	})
	if err != nil {
		return err
	}

	return c.Send(MsgAdjustAmount+".ok", txn)
}

func (h *Handler) handleConfirm(ctx context.Context, c *Client, data json.RawMessage) error {
	var p transactionPayload
	if err := decode(data, &p); err != nil {
		return err
	}

	txn, err := h.coordinator.Confirm(ctx, usecase.ConfirmInput{
		TransactionID: p.TransactionID,
		CashierID:     c.identity,
	})
	if err != nil {
		return err
	}

	return c.Send(MsgConfirmTransaction+".ok", txn)
}

func (h *Handler) handleReject(ctx context.Context, c *Client, data json.RawMessage) error {
	var p reasonPayload
	if err := decode(data, &p); err != nil {
		return err
	}

	txn, err := h.coordinator.Reject(ctx, usecase.RejectInput{
		TransactionID: p.TransactionID,
		CashierID:     c.identity,
		Reason:        p.Reason,
		EvidenceRef:   p.EvidenceRef,
	})
	if err != nil {
		return err
	}

	return c.Send(MsgRejectTransaction+".ok", txn)
}

func (h *Handler) handleSetAvailability(c *Client, data json.RawMessage) error {
	var p availabilityPayload
	if err := decode(data, &p); err != nil {
		return err
	}

	h.router.SetCashierBusy(c.identity, !p.Available)
	return c.Send(MsgSetAvailability+".ok", p)
}

func (h *Handler) handleEscalate(ctx context.Context, c *Client, data json.RawMessage) error {
	if c.role != domain.RolePlayer && c.role != domain.RoleCashier {
		return domain.ErrWrongRole
	}

	var p reasonPayload
	if err := decode(data, &p); err != nil {
		return err
	}

	txn, err := h.coordinator.Escalate(ctx, usecase.EscalateInput{
		TransactionID: p.TransactionID,
		ActorID:       c.identity,
		Role:          c.role,
		Reason:        p.Reason,
	})
	if err != nil {
		return err
	}

	return c.Send(MsgEscalateTransaction+".ok", txn)
}

func (h *Handler) handleResume(ctx context.Context, c *Client, data json.RawMessage) error {
	var p resumePayload
	if err := decode(data, &p); err != nil {
		return err
	}

	txn, err := h.coordinator.Resume(ctx, usecase.ResumeInput{
		TransactionID: p.TransactionID,
		AdminID:       c.identity,
		Target:        domain.State(p.Target),
		Reason:        p.Reason,
	})
	if err != nil {
		return err
	}

	return c.Send(MsgResumeTransaction+".ok", txn)
}

func (h *Handler) handleRevert(ctx context.Context, c *Client, data json.RawMessage) error {
	var p reasonPayload
	if err := decode(data, &p); err != nil {
		return err
	}

	txn, err := h.coordinator.Revert(ctx, usecase.RevertInput{
		TransactionID: p.TransactionID,
		AdminID:       c.identity,
		Reason:        p.Reason,
	})
	if err != nil {
		return err
	}

	return c.Send(MsgRevertTransaction+".ok", txn)
}

func (h *Handler) handleGetTransaction(ctx context.Context, c *Client, data json.RawMessage) error {
	var p transactionPayload
	if err := decode(data, &p); err != nil {
		return err
	}

	txn, err := h.coordinator.GetTransaction(ctx, p.TransactionID)
	if err != nil {
		return err
	}

	if c.role != domain.RoleAdmin && !txn.IsParticipant(c.identity) {
		return domain.ErrUnauthorized
	}

	return c.Send(MsgGetTransaction+".ok", txn)
}

func (h *Handler) handleMyPending(ctx context.Context, c *Client, data json.RawMessage) error {
	var p listPayload
	if err := decode(data, &p); err != nil {
		return err
	}

	txns, err := h.coordinator.MyPending(ctx, c.identity, p.Limit, p.Offset)
	if err != nil {
		return err
	}

	return c.Send(MsgMyPending+".ok", txns)
}

func (h *Handler) handleNeedingVerification(ctx context.Context, c *Client, data json.RawMessage) error {
	var p listPayload
	if err := decode(data, &p); err != nil {
		return err
	}

	txns, err := h.coordinator.NeedingVerification(ctx, c.identity, p.Limit, p.Offset)
	if err != nil {
		return err
	}

	return c.Send(MsgNeedingVerification+".ok", txns)
}

func (h *Handler) handleOpenForReview(ctx context.Context, c *Client, data json.RawMessage) error {
	var p listPayload
	if err := decode(data, &p); err != nil {
		return err
	}

	txns, err := h.coordinator.OpenForReview(ctx, p.Limit, p.Offset)
	if err != nil {
		return err
	}

	return c.Send(MsgOpenForReview+".ok", txns)
}

func (h *Handler) handleHistory(ctx context.Context, c *Client, data json.RawMessage) error {
	var p listPayload
	if err := decode(data, &p); err != nil {
		return err
	}

	txns, err := h.coordinator.History(ctx, c.identity, p.Limit, p.Offset)
	if err != nil {
		return err
	}

	return c.Send(MsgHistory+".ok", txns)
}

func decode(data json.RawMessage, into any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, into); err != nil {
		return errors.New("invalid payload")
	}
	return nil
}
