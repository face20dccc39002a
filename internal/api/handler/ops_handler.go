package handler

import (
	"context"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/core-banking/ledger/internal/domain/journal"
	"github.com/core-banking/ledger/internal/domain/outbox"
	"github.com/core-banking/ledger/internal/domain/shared"
)

// OutboxInspector lists outbox entries that exhausted their delivery budget
type OutboxInspector interface {
	FlaggedForReview(ctx context.Context, limit int) ([]*outbox.Entry, error)
}

// JournalBrowser serves cross-account journal queries
type JournalBrowser interface {
	ListTransactionsByTimeRange(ctx context.Context, start, end time.Time, limit, offset int) ([]*journal.Entry, error)
}

// AuditArchiveReader serves reads from the audit archive
type AuditArchiveReader interface {
	GetByEntityID(ctx context.Context, entityID uuid.UUID) (*shared.AuditEvent, error)
	ListRecent(ctx context.Context, limit int) ([]*shared.AuditEvent, error)
}

// OpsHandler exposes the operational inspection surface: stuck outbox
// entries, cross-account journal queries, and the audit archive.
type OpsHandler struct {
	outbox  OutboxInspector
	journal JournalBrowser
	archive AuditArchiveReader
	logger  *slog.Logger
}

// NewOpsHandler creates a new ops handler. archive may be nil when the audit
// archive is disabled.
func NewOpsHandler(logger *slog.Logger, outboxInspector OutboxInspector, journalBrowser JournalBrowser, archive AuditArchiveReader) *OpsHandler {
	return &OpsHandler{
		outbox:  outboxInspector,
		journal: journalBrowser,
		archive: archive,
		logger:  logger,
	}
}

// ListFlaggedOutbox lists outbox entries flagged for review after exhausting
// their delivery attempt budget
func (h *OpsHandler) ListFlaggedOutbox(c *gin.Context) {
	var params LimitParams
	if err := c.ShouldBindQuery(&params); err != nil {
		h.logger.Error("Invalid limit parameter", "error", err)
		RespondBadRequest(c, "Invalid limit parameter")
		return
	}

	entries, err := h.outbox.FlaggedForReview(c.Request.Context(), params.Limit)
	if err != nil {
		h.logger.Error("Failed to list flagged outbox entries", "error", err)
		RespondInternalError(c)
		return
	}

	responses := make([]OutboxEntryResponse, 0, len(entries))
	for _, entry := range entries {
		responses = append(responses, mapOutboxEntryToResponse(entry))
	}

	RespondOK(c, responses)
}

// ListTransactionsByTimeRange retrieves journal entries committed within a
// time window
func (h *OpsHandler) ListTransactionsByTimeRange(c *gin.Context) {
	var params TimeRangeParams
	if err := c.ShouldBindQuery(&params); err != nil {
		h.logger.Error("Invalid time range parameters", "error", err)
		RespondBadRequest(c, "Invalid time range parameters")
		return
	}

	start, err := time.Parse(time.RFC3339, params.From)
	if err != nil {
		RespondBadRequest(c, "Invalid 'from' timestamp, expected RFC3339")
		return
	}
	end, err := time.Parse(time.RFC3339, params.To)
	if err != nil {
		RespondBadRequest(c, "Invalid 'to' timestamp, expected RFC3339")
		return
	}
	if !end.After(start) {
		RespondBadRequest(c, "'to' must be after 'from'")
		return
	}

	offset := (params.Page - 1) * params.PerPage
	entries, err := h.journal.ListTransactionsByTimeRange(c.Request.Context(), start, end, params.PerPage, offset)
	if err != nil {
		h.logger.Error("Failed to list transactions by time range", "error", err)
		RespondInternalError(c)
		return
	}

	transactions := make([]TransactionResponse, 0, len(entries))
	for _, entry := range entries {
		transactions = append(transactions, mapEntryToResponse(entry))
	}

	RespondOK(c, transactions)
}

// GetAuditLog retrieves an archived audit event by the entity it concerns
func (h *OpsHandler) GetAuditLog(c *gin.Context) {
	if h.archive == nil {
		RespondNotFound(c, "Audit archive is disabled")
		return
	}

	entityParam := c.Param("entity_id")
	entityID, err := uuid.Parse(entityParam)
	if err != nil {
		RespondBadRequest(c, "Invalid entity id")
		return
	}

	event, err := h.archive.GetByEntityID(c.Request.Context(), entityID)
	if err != nil {
		h.logger.Error("Failed to get audit log", "entity_id", entityParam, "error", err)
		RespondInternalError(c)
		return
	}
	if event == nil {
		RespondNotFound(c, "Audit log not found")
		return
	}

	RespondOK(c, mapAuditEventToResponse(event))
}

// ListRecentAuditLogs lists the most recently archived audit events
func (h *OpsHandler) ListRecentAuditLogs(c *gin.Context) {
	if h.archive == nil {
		RespondNotFound(c, "Audit archive is disabled")
		return
	}

	var params LimitParams
	if err := c.ShouldBindQuery(&params); err != nil {
		h.logger.Error("Invalid limit parameter", "error", err)
		RespondBadRequest(c, "Invalid limit parameter")
		return
	}

	events, err := h.archive.ListRecent(c.Request.Context(), params.Limit)
	if err != nil {
		h.logger.Error("Failed to list audit logs", "error", err)
		RespondInternalError(c)
		return
	}

	responses := make([]AuditEventResponse, 0, len(events))
	for _, event := range events {
		responses = append(responses, mapAuditEventToResponse(event))
	}

	RespondOK(c, responses)
}

func mapOutboxEntryToResponse(entry *outbox.Entry) OutboxEntryResponse {
	resp := OutboxEntryResponse{
		ID:            entry.ID,
		Kind:          string(entry.Kind),
		CorrelationID: entry.CorrelationID.String(),
		Status:        string(entry.Status),
		Attempts:      entry.Attempts,
		LastError:     entry.LastError,
		CreatedAt:     entry.CreatedAt.Format(time.RFC3339),
	}
	if entry.LastAttemptAt != nil {
		resp.LastAttemptAt = entry.LastAttemptAt.Format(time.RFC3339)
	}
	return resp
}

func mapAuditEventToResponse(event *shared.AuditEvent) AuditEventResponse {
	return AuditEventResponse{
		Action:     string(event.Action),
		EntityType: event.EntityType,
		EntityID:   event.EntityID.String(),
		Message:    event.Message,
		CreatedBy:  event.CreatedBy,
		CreatedAt:  event.CreatedAt.Format(time.RFC3339),
	}
}
