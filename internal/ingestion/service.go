package ingestion

import (
	"context"
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wakala/settlement/internal/domain"
	"github.com/wakala/settlement/internal/repository"
)

// IngestResult is returned from an ingestion.
type IngestResult struct {
	BatchID           string        `json:"batch_id"`
	Source            domain.Source `json:"source,omitempty"`
	AlreadyIngested   bool          `json:"already_ingested"`
	RecordsIngested   int           `json:"records_ingested"`
	DuplicatesSkipped int           `json:"duplicates_skipped"`
	Rejected          int           `json:"rejected"`
	Report            domain.Report `json:"report"`
}

// Service loads normalized transaction batches into the store.
type Service struct {
	txnRepo *repository.TransactionRepo
	loc     *time.Location
}

// NewService creates a new ingestion service. Timestamps are assigned to the
// calendar day they fall on in loc.
func NewService(txnRepo *repository.TransactionRepo, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{txnRepo: txnRepo, loc: loc}
}

// IngestBatch stores a JSON batch of normalized transactions. A batch whose
// bytes were ingested before is not stored again; transactions already
// stored under the same id are skipped.
func (s *Service) IngestBatch(ctx context.Context, data []byte) (*IngestResult, error) {
	// Idempotency check via batch hash.
	hash := fmt.Sprintf("%x", sha256.Sum256(data))
	exists, err := s.txnRepo.BatchExistsByHash(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("check hash: %w", err)
	}
	if exists {
		return &IngestResult{BatchID: "already-ingested", AlreadyIngested: true}, nil
	}

	source, txns, report, err := decodeBatch(data, hash, s.loc)
	if err != nil {
		return nil, err
	}

	batch := repository.Batch{
		ID:          uuid.NewString(),
		Source:      source,
		FileHash:    hash,
		RecordCount: len(txns),
		IngestedAt:  time.Now().UTC(),
	}
	inserted, err := s.txnRepo.InsertBatch(ctx, batch, txns)
	if err != nil {
		return nil, fmt.Errorf("insert batch: %w", err)
	}

	zap.L().Info("batch ingested",
		zap.String("batch_id", batch.ID),
		zap.String("source", string(source)),
		zap.Int("records", len(txns)),
		zap.Int("inserted", inserted),
		zap.Int("rejected", len(report.Faults)),
	)

	return &IngestResult{
		BatchID:           batch.ID,
		Source:            source,
		RecordsIngested:   inserted,
		DuplicatesSkipped: len(txns) - inserted,
		Rejected:          len(report.Faults),
		Report:            report,
	}, nil
}
