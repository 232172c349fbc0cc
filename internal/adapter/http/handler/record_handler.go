package handler

import (
	"context"
	"net/http"

	"github.com/iho/coopledger/internal/adapter/http/dto"
	"github.com/iho/coopledger/internal/domain"
	"github.com/iho/coopledger/internal/usecase"
)

// RecordService defines the behavior needed by RecordHandler.
type RecordService interface {
	Ingest(ctx context.Context, input usecase.IngestRecordInput) (*usecase.IngestResult, error)
	GetRecord(ctx context.Context, id string) (*domain.TransactionRecord, error)
	ListMemberRecords(ctx context.Context, input usecase.ListMemberRecordsInput) ([]domain.TransactionRecord, error)
}

// RecordHandler handles transaction record requests.
type RecordHandler struct {
	recordUC RecordService
}

// NewRecordHandler creates a new RecordHandler.
func NewRecordHandler(recordUC RecordService) *RecordHandler {
	return &RecordHandler{recordUC: recordUC}
}

// Ingest stores a new transaction record.
func (h *RecordHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	var req dto.IngestRecordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	input, err := req.ToUseCaseInput()
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	result, err := h.recordUC.Ingest(r.Context(), input)
	if err != nil {
		writeDomainError(w, "failed to ingest record", err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.IngestFromUseCase(result))
}

// Get retrieves a record by ID.
func (h *RecordHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathParam(w, r, "id")
	if !ok {
		return
	}

	record, err := h.recordUC.GetRecord(r.Context(), id)
	if err != nil {
		writeDomainError(w, "failed to get record", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.RecordFromDomain(record))
}

// ListByMember lists a member's records, newest first.
func (h *RecordHandler) ListByMember(w http.ResponseWriter, r *http.Request) {
	memberID, ok := pathParam(w, r, "id")
	if !ok {
		return
	}

	records, err := h.recordUC.ListMemberRecords(r.Context(), usecase.ListMemberRecordsInput{
		MemberID: memberID,
		Limit:    parseIntQuery(r, "limit", 50),
		Offset:   parseIntQuery(r, "offset", 0),
	})
	if err != nil {
		writeDomainError(w, "failed to list records", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ListRecordsResponse{
		Records: dto.RecordsFromDomain(records),
		Total:   int64(len(records)),
	})
}
