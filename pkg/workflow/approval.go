package workflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cascadehq/cascade/pkg/infra/logger"
)

// ApprovalStatus is the decision state of an approval request.
type ApprovalStatus string

const (
	ApprovalPending   ApprovalStatus = "pending"
	ApprovalApproved  ApprovalStatus = "approved"
	ApprovalDenied    ApprovalStatus = "denied"
	ApprovalTimeout   ApprovalStatus = "timeout"
	ApprovalCancelled ApprovalStatus = "cancelled"
)

// ApprovalRequest tracks one outstanding human decision for a step.
type ApprovalRequest struct {
	ID          string         `json:"id"`
	WorkflowID  string         `json:"workflow_id"`
	ExecutionID string         `json:"execution_id"`
	StepID      string         `json:"step_id"`
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Status      ApprovalStatus `json:"status"`
	Requester   string         `json:"requester,omitempty"`
	Approver    string         `json:"approver,omitempty"`
	Context     map[string]any `json:"context,omitempty"`
	TimeoutSecs int            `json:"timeout_secs"`
	CreatedAt   time.Time      `json:"created_at"`
	RespondedAt *time.Time     `json:"responded_at,omitempty"`
	Message     string         `json:"message,omitempty"`
	// Channels to notify about this request; delivery is external.
	NotifyChannels []string `json:"notify_channels,omitempty"`
}

// NewApprovalRequest creates a pending request for a step.
func NewApprovalRequest(workflowID, executionID, stepID, title, requester string, timeoutSecs int) *ApprovalRequest {
	return &ApprovalRequest{
		ID:          uuid.NewString(),
		WorkflowID:  workflowID,
		ExecutionID: executionID,
		StepID:      stepID,
		Title:       title,
		Status:      ApprovalPending,
		Requester:   requester,
		TimeoutSecs: timeoutSecs,
		CreatedAt:   time.Now().UTC(),
	}
}

// Expired reports whether a pending request has outlived its timeout.
// Zero timeout means no expiry.
func (r *ApprovalRequest) Expired(now time.Time) bool {
	if r.Status != ApprovalPending || r.TimeoutSecs <= 0 {
		return false
	}
	return now.Sub(r.CreatedAt) >= time.Duration(r.TimeoutSecs)*time.Second
}

// ApprovalGate tracks approval requests keyed by request ID. An
// Approval-kind step cannot reach a terminal outcome until its request
// is resolved here or expires.
type ApprovalGate struct {
	mu       sync.RWMutex
	requests map[string]*ApprovalRequest
}

func NewApprovalGate() *ApprovalGate {
	return &ApprovalGate{requests: make(map[string]*ApprovalRequest)}
}

// Request registers a pending approval and returns its ID.
func (g *ApprovalGate) Request(req *ApprovalRequest) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests[req.ID] = req

	logger.Info("approval requested",
		"approval_id", req.ID,
		"execution_id", req.ExecutionID,
		"step_id", req.StepID)
	return req.ID
}

// Check returns the current status of a request, expiring it first if
// its timeout has elapsed.
func (g *ApprovalGate) Check(approvalID string) (ApprovalStatus, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	req, ok := g.requests[approvalID]
	if !ok {
		return "", false
	}
	if req.Expired(time.Now().UTC()) {
		now := time.Now().UTC()
		req.Status = ApprovalTimeout
		req.RespondedAt = &now
		logger.Warn("approval request timed out", "approval_id", approvalID)
	}
	return req.Status, true
}

// Get returns a copy of a request.
func (g *ApprovalGate) Get(approvalID string) (*ApprovalRequest, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	req, ok := g.requests[approvalID]
	if !ok {
		return nil, false
	}
	cp := *req
	return &cp, true
}

// ListPending returns all requests still awaiting a decision.
func (g *ApprovalGate) ListPending() []*ApprovalRequest {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var pending []*ApprovalRequest
	for _, req := range g.requests {
		if req.Status == ApprovalPending {
			cp := *req
			pending = append(pending, &cp)
		}
	}
	return pending
}

// ListForWorkflow returns all requests raised for a workflow.
func (g *ApprovalGate) ListForWorkflow(workflowID string) []*ApprovalRequest {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var out []*ApprovalRequest
	for _, req := range g.requests {
		if req.WorkflowID == workflowID {
			cp := *req
			out = append(out, &cp)
		}
	}
	return out
}

// Approve resolves a pending request positively.
func (g *ApprovalGate) Approve(approvalID, approver, message string) error {
	return g.resolve(approvalID, ApprovalApproved, approver, message)
}

// Deny resolves a pending request negatively.
func (g *ApprovalGate) Deny(approvalID, approver, message string) error {
	return g.resolve(approvalID, ApprovalDenied, approver, message)
}

func (g *ApprovalGate) resolve(approvalID string, status ApprovalStatus, approver, message string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	req, ok := g.requests[approvalID]
	if !ok {
		return fmt.Errorf("approval %s: %w", approvalID, ErrNotFound)
	}
	if req.Status != ApprovalPending {
		return fmt.Errorf("approval %s is not pending (status %s)", approvalID, req.Status)
	}

	now := time.Now().UTC()
	req.Status = status
	req.Approver = approver
	req.Message = message
	req.RespondedAt = &now

	logger.Info("approval resolved",
		"approval_id", approvalID,
		"status", string(status),
		"approver", approver)
	return nil
}

// Cancel withdraws a request regardless of its current status.
func (g *ApprovalGate) Cancel(approvalID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	req, ok := g.requests[approvalID]
	if !ok {
		return fmt.Errorf("approval %s: %w", approvalID, ErrNotFound)
	}
	now := time.Now().UTC()
	req.Status = ApprovalCancelled
	req.RespondedAt = &now

	logger.Info("approval cancelled", "approval_id", approvalID)
	return nil
}

// WaitForDecision polls the gate until the request leaves Pending or
// ctx is done.
func (g *ApprovalGate) WaitForDecision(ctx context.Context, approvalID string, pollInterval time.Duration) (ApprovalStatus, error) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		status, ok := g.Check(approvalID)
		if !ok {
			return "", fmt.Errorf("approval %s: %w", approvalID, ErrNotFound)
		}
		if status != ApprovalPending {
			return status, nil
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

// CleanupOldRequests drops resolved requests older than maxAge. Pending
// requests are always kept.
func (g *ApprovalGate) CleanupOldRequests(maxAge time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()

	cutoff := time.Now().UTC().Add(-maxAge)
	for id, req := range g.requests {
		if req.Status == ApprovalPending {
			continue
		}
		if req.RespondedAt == nil || req.RespondedAt.Before(cutoff) {
			delete(g.requests, id)
		}
	}
}
