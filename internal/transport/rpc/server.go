// Package rpc exposes agent operations to internal callers over JSON-RPC.
package rpc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"strings"
	"time"

	"github.com/rooftopsai/rooftopsgpt-sub002/internal/domain"
	"github.com/rooftopsai/rooftopsgpt-sub002/internal/service"
)

// ServiceName is the name the handler is registered under.
const ServiceName = "Agent"

const callTimeout = 30 * time.Second

// Server accepts JSON-RPC connections from back-office tools.
type Server struct {
	listener  net.Listener
	rpcServer *rpc.Server
	logger    *slog.Logger
	ready     chan struct{}
	done      chan struct{}
}

// NewServer creates a new RPC server bound to the agent service.
func NewServer(svc *service.Service, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	rpcServer := rpc.NewServer()
	if err := rpcServer.RegisterName(ServiceName, &Handler{service: svc}); err != nil {
		return nil, fmt.Errorf("register rpc handler: %w", err)
	}

	return &Server{
		rpcServer: rpcServer,
		logger:    logger,
		ready:     make(chan struct{}),
		done:      make(chan struct{}),
	}, nil
}

// Start begins accepting RPC connections on the given address. It blocks
// until Shutdown is called.
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.listener = ln
	close(s.ready)
	s.logger.Info("rpc server listening", "addr", ln.Addr().String())

	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				close(s.done)
				return nil
			}
			s.logger.Warn("rpc accept error", "error", err)
			continue
		}

		go s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(conn))
	}
}

// Addr waits for the listener and returns its address.
func (s *Server) Addr(ctx context.Context) (net.Addr, error) {
	select {
	case <-s.ready:
		return s.listener.Addr(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Shutdown stops accepting new RPC connections.
func (s *Server) Shutdown(ctx context.Context) error {
	select {
	case <-s.ready:
	default:
		return nil
	}

	if err := s.listener.Close(); err != nil {
		return err
	}

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Handler implements the agent RPC methods.
type Handler struct {
	service *service.Service
}

// ConfirmArgs carries a confirmation decision on behalf of a user.
type ConfirmArgs struct {
	UserID  string                `json:"user_id"`
	Request domain.ConfirmRequest `json:"request"`
}

// UsageArgs selects a user's usage for a month (YYYY-MM, empty for current).
type UsageArgs struct {
	UserID string `json:"user_id"`
	Month  string `json:"month"`
}

// ActivityArgs selects a user's activity feed.
type ActivityArgs struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
	Limit     int    `json:"limit"`
}

// ActivityResponse wraps activity entries.
type ActivityResponse struct {
	Activity []domain.ActivityEntry `json:"activity"`
}

// SessionsArgs selects a user's sessions.
type SessionsArgs struct {
	UserID string               `json:"user_id"`
	Filter domain.SessionFilter `json:"filter"`
}

// SessionsResponse wraps sessions.
type SessionsResponse struct {
	Sessions []domain.Session `json:"sessions"`
}

// ExpireArgs is empty; the sweep uses the configured TTL.
type ExpireArgs struct{}

// ExpireResponse reports how many pending calls were cancelled.
type ExpireResponse struct {
	Expired int `json:"expired"`
}

// Confirm confirms or cancels a pending tool call.
func (h *Handler) Confirm(req *ConfirmArgs, resp *domain.ConfirmResponse) error {
	if req == nil {
		return errors.New("confirm request is required")
	}
	req.Request.Action = normalizeAction(req.Request.Action)

	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	result, err := h.service.Confirm(ctx, req.UserID, req.Request)
	if err != nil {
		return publicError(err)
	}
	if resp != nil && result != nil {
		*resp = *result
	}
	return nil
}

// Usage reports monthly usage against the user's tier limits.
func (h *Handler) Usage(req *UsageArgs, resp *service.UsageSummary) error {
	if req == nil {
		return errors.New("usage request is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	result, err := h.service.GetUsage(ctx, req.UserID, req.Month)
	if err != nil {
		return publicError(err)
	}
	if resp != nil && result != nil {
		*resp = *result
	}
	return nil
}

// Activity lists a user's activity feed, newest first.
func (h *Handler) Activity(req *ActivityArgs, resp *ActivityResponse) error {
	if req == nil {
		return errors.New("activity request is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	entries, err := h.service.ListActivity(ctx, req.UserID, req.SessionID, req.Limit)
	if err != nil {
		return publicError(err)
	}
	if resp != nil {
		resp.Activity = entries
	}
	return nil
}

// Sessions lists a user's sessions.
func (h *Handler) Sessions(req *SessionsArgs, resp *SessionsResponse) error {
	if req == nil {
		return errors.New("sessions request is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	sessions, err := h.service.ListSessions(ctx, req.UserID, req.Filter)
	if err != nil {
		return publicError(err)
	}
	if resp != nil {
		resp.Sessions = sessions
	}
	return nil
}

// ExpireConfirmations runs one confirmation expiry sweep immediately.
func (h *Handler) ExpireConfirmations(_ *ExpireArgs, resp *ExpireResponse) error {
	n := h.service.ExpireConfirmations(context.Background())
	if resp != nil {
		resp.Expired = n
	}
	return nil
}

// publicError keeps internal failure details off the wire.
func publicError(err error) error {
	if msg, ok := service.PublicMessage(err); ok {
		return errors.New(msg)
	}
	return errors.New("internal error")
}

func normalizeAction(action domain.ConfirmAction) domain.ConfirmAction {
	switch strings.ToLower(strings.TrimSpace(string(action))) {
	case "confirm", "confirmed", "approve", "approved":
		return domain.ConfirmActionConfirm
	case "cancel", "cancelled", "reject", "rejected":
		return domain.ConfirmActionCancel
	default:
		return action
	}
}
