package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"docstore/internal/apperr"
	"docstore/internal/model"
	"docstore/internal/repository"
	"docstore/internal/storage"
)

var (
	ErrIDRequired         = errors.New("document id is required")
	ErrNameRequired       = errors.New("file name is required")
	ErrExternalIDRequired = errors.New("external id is required")
	ErrOwnerRequired      = errors.New("owner id is required")
	ErrContentNil         = errors.New("content is nil")
	ErrInvalidPosition    = errors.New("line position must be a finite number")
	ErrBlockIDRequired    = errors.New("line block id is required")
)

// UploadMeta is the caller-supplied metadata for a new document.
type UploadMeta struct {
	ExternalID  string `json:"external_id"`
	OwnerID     string `json:"owner_id"`
	AccessGroup string `json:"access_group,omitempty"`
}

// DocumentListResult is the service-level DTO for paginated documents.
type DocumentListResult struct {
	Items []model.Document `json:"data"`
	Total int              `json:"total"`
}

// BackendStatus reports reachability of one backing store.
type BackendStatus struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// Health carries independent per-backend reachability for readiness probes.
type Health struct {
	Database    BackendStatus `json:"database"`
	ObjectStore BackendStatus `json:"object_store"`
}

// Healthy reports whether both backends are reachable.
func (h Health) Healthy() bool { return h.Database.OK && h.ObjectStore.OK }

// SweepResult summarizes one reconciliation pass over stale PENDING rows.
type SweepResult struct {
	Promoted int `json:"promoted"`
	Removed  int `json:"removed"`
}

// DataClient is the consistency orchestrator and the only component
// exposed to callers. It sequences every operation that spans the object
// store and the relational store; the repositories and the blob adapter
// are never handed out directly, so the cross-store protocol cannot be
// bypassed.
type DataClient interface {
	// Upload stores content and metadata as one logical document. The
	// metadata row is written first in state PENDING, then the blob, then
	// the state flips to ACTIVE. A failed blob write triggers a
	// compensating row delete.
	Upload(ctx context.Context, name string, content []byte, meta UploadMeta) (*model.Document, error)

	// Get returns document metadata by id.
	Get(ctx context.Context, id string) (*model.Document, error)

	// GetFile returns the raw blob content of an ACTIVE document.
	GetFile(ctx context.Context, id string) ([]byte, error)

	// List returns documents using limit/offset and a total count,
	// optionally filtered by lifecycle state.
	List(ctx context.Context, limit, offset int, state model.DocumentState) (*DocumentListResult, error)

	// Delete removes lines, the metadata row, and the blob, in that
	// order. Each step is idempotent, so a caller may retry after a
	// PartialFailure without corrupting state.
	Delete(ctx context.Context, id string) error

	// SaveLines replaces the full parsed-line set of a document. Atomic
	// at the relational layer; no cross-store coordination involved.
	SaveLines(ctx context.Context, id string, lines []model.Line) error

	// ListLines returns a document's lines in ascending position order,
	// ties broken by block id.
	ListLines(ctx context.Context, id string) ([]model.Line, error)

	// UpdateLine rewrites the content of one line addressed by block id.
	UpdateLine(ctx context.Context, id, blockID, content string) error

	// GenerateDownloadURL returns a time-limited URL for the blob.
	GenerateDownloadURL(ctx context.Context, id string, ttl time.Duration) (string, error)

	// Init ensures the relational schema and the bucket exist. Safe to
	// run repeatedly.
	Init(ctx context.Context) error

	// Check reports per-backend reachability independently.
	Check(ctx context.Context) Health

	// SweepPending reconciles PENDING rows older than the grace window:
	// rows whose blob exists are promoted to ACTIVE, the rest removed.
	SweepPending(ctx context.Context, grace time.Duration) (SweepResult, error)
}

// compensationTimeout bounds the rollback delete after a failed blob
// write. The rollback gets its own budget because the caller's context
// is usually already expired at that point.
const compensationTimeout = 5 * time.Second

// MigrateFunc ensures the relational schema exists. Wired to the
// migration runner in main; injected here so Init stays testable.
type MigrateFunc func(ctx context.Context) error

type dataClient struct {
	store   storage.Storage
	docs    repository.DocumentRepository
	lines   repository.LineRepository
	migrate MigrateFunc
}

// NewDataClient constructs the orchestrator over its three backends.
func NewDataClient(store storage.Storage, docs repository.DocumentRepository, lines repository.LineRepository, migrate MigrateFunc) DataClient {
	return &dataClient{store: store, docs: docs, lines: lines, migrate: migrate}
}

// Upload implements the two-step saga with compensation.
//
// Metadata goes first on purpose: a PENDING row with no blob is
// detectable residue (scan for stale PENDING rows), while a blob with no
// row is invisible to the relational store. The protocol optimizes for
// detectable failure residue over zero residue, since true atomicity
// across the two stores is unattainable.
func (d *dataClient) Upload(ctx context.Context, name string, content []byte, meta UploadMeta) (*model.Document, error) {
	if name == "" {
		return nil, ErrNameRequired
	}
	if content == nil {
		return nil, ErrContentNil
	}
	if meta.ExternalID == "" {
		return nil, ErrExternalIDRequired
	}
	if meta.OwnerID == "" {
		return nil, ErrOwnerRequired
	}

	sum := sha256.Sum256(content)
	now := time.Now().UTC()
	doc := &model.Document{
		ID:          uuid.New().String(),
		ExternalID:  meta.ExternalID,
		Name:        name,
		OwnerID:     meta.OwnerID,
		AccessGroup: meta.AccessGroup,
		Extension:   extensionOf(name),
		Size:        int64(len(content)),
		Checksum:    hex.EncodeToString(sum[:]),
		State:       model.StatePending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	// Step 1: metadata row, state PENDING. A duplicate external id fails
	// here with nothing written anywhere, so no compensation is needed.
	pending, err := d.docs.Insert(ctx, doc)
	if err != nil {
		return nil, err
	}

	// Step 2: blob keyed by the generated document id.
	_, err = d.store.Put(ctx, pending.ID, bytes.NewReader(content), storage.PutObjectOptions{
		Size:        int64(len(content)),
		ContentType: "application/octet-stream",
		Metadata:    map[string]string{"original-filename": name},
	})
	if err != nil {
		blobErr := fmt.Errorf("blob write: %w", err)
		// Compensate: remove the PENDING row. Deletes are idempotent, so
		// running this speculatively after a timeout is safe even if the
		// remote write did apply. The delete runs detached from the
		// caller's cancellation: the blob write commonly fails because the
		// caller's deadline expired, and the rollback still has to reach a
		// healthy database.
		compCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
		defer cancel()
		if _, delErr := d.docs.Delete(compCtx, pending.ID); delErr != nil {
			cerr := &apperr.CompensationError{Op: "upload", Cause: blobErr, CompensationErr: delErr}
			d.logEvent("compensation_failed", map[string]any{
				"document_id":   pending.ID,
				"error_message": cerr.Error(),
			})
			return nil, cerr
		}
		return nil, blobErr
	}

	// Step 3: confirm. Both halves exist now; the state flip is the
	// commit point visible to readers.
	active, err := d.docs.UpdateState(ctx, pending.ID, model.StateActive)
	if err != nil {
		return nil, &apperr.PartialError{
			Op:        "upload",
			Completed: []apperr.Step{apperr.StepMetadataInsert, apperr.StepBlobWrite},
			Err:       fmt.Errorf("confirm upload: %w", err),
		}
	}
	return active, nil
}

// Get returns document metadata by id.
func (d *dataClient) Get(ctx context.Context, id string) (*model.Document, error) {
	if id == "" {
		return nil, ErrIDRequired
	}
	return d.docs.FindByID(ctx, id)
}

// GetFile fetches the blob of an ACTIVE document. Rows still PENDING (or
// soft-deleted) are not visible to readers.
func (d *dataClient) GetFile(ctx context.Context, id string) ([]byte, error) {
	doc, err := d.activeDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	rc, _, err := d.store.Get(ctx, doc.ID)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// List returns paginated documents without exposing repository types.
func (d *dataClient) List(ctx context.Context, limit, offset int, state model.DocumentState) (*DocumentListResult, error) {
	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}
	res, err := d.docs.List(ctx, repository.PageQuery{Limit: limit, Offset: offset, State: state})
	if err != nil {
		return nil, err
	}
	return &DocumentListResult{Items: res.Items, Total: res.Total}, nil
}

// Delete runs the ordered delete protocol: lines, metadata row, blob.
// Referencing data goes before the referenced blob, so a crash between
// steps leaves at worst an orphan blob, which the next call sweeps.
func (d *dataClient) Delete(ctx context.Context, id string) error {
	if id == "" {
		return ErrIDRequired
	}

	// Step 1: lines. Nothing committed yet on failure, so this is a
	// plain error, not a partial one.
	if err := d.lines.DeleteAll(ctx, id); err != nil {
		return fmt.Errorf("delete lines: %w", err)
	}

	// Step 2: metadata row. Absent row is a no-op so retries replay
	// cleanly; whether it existed decides the final NotFound answer.
	existed, err := d.docs.Delete(ctx, id)
	if err != nil {
		return &apperr.PartialError{
			Op:        "delete",
			Completed: []apperr.Step{apperr.StepLinesDelete},
			Err:       fmt.Errorf("delete metadata: %w", err),
		}
	}

	// Step 3: blob. Keyed by document id alone, so this works even when
	// the row is already gone (retry after a partial failure).
	if err := d.store.Delete(ctx, id); err != nil {
		return &apperr.PartialError{
			Op:        "delete",
			Completed: []apperr.Step{apperr.StepLinesDelete, apperr.StepMetadataDelete},
			Err:       fmt.Errorf("delete blob: %w", err),
		}
	}

	if !existed {
		return fmt.Errorf("%w: document %s", apperr.ErrNotFound, id)
	}
	return nil
}

// SaveLines validates and bulk-replaces the parsed lines of a document.
func (d *dataClient) SaveLines(ctx context.Context, id string, lines []model.Line) error {
	if id == "" {
		return ErrIDRequired
	}
	if _, err := d.docs.FindByID(ctx, id); err != nil {
		return err
	}

	seen := make(map[string]struct{}, len(lines))
	for i := range lines {
		ln := &lines[i]
		if ln.BlockID == "" {
			return ErrBlockIDRequired
		}
		if math.IsNaN(ln.Position) || math.IsInf(ln.Position, 0) {
			return fmt.Errorf("%w: block %s", ErrInvalidPosition, ln.BlockID)
		}
		if _, dup := seen[ln.BlockID]; dup {
			return fmt.Errorf("%w: block id %q repeated in input", apperr.ErrDuplicateKey, ln.BlockID)
		}
		seen[ln.BlockID] = struct{}{}
		ln.DocumentID = id
	}

	return d.lines.BulkReplace(ctx, id, lines)
}

// ListLines returns the ordered line set of a document.
func (d *dataClient) ListLines(ctx context.Context, id string) ([]model.Line, error) {
	if id == "" {
		return nil, ErrIDRequired
	}
	if _, err := d.docs.FindByID(ctx, id); err != nil {
		return nil, err
	}
	return d.lines.ListByDocument(ctx, id)
}

// UpdateLine rewrites one line's content, addressed by block id.
func (d *dataClient) UpdateLine(ctx context.Context, id, blockID, content string) error {
	if id == "" {
		return ErrIDRequired
	}
	if blockID == "" {
		return ErrBlockIDRequired
	}
	return d.lines.UpdateContent(ctx, id, blockID, content)
}

// GenerateDownloadURL returns a presigned URL for an ACTIVE document.
func (d *dataClient) GenerateDownloadURL(ctx context.Context, id string, ttl time.Duration) (string, error) {
	doc, err := d.activeDocument(ctx, id)
	if err != nil {
		return "", err
	}
	return d.store.PresignGet(ctx, doc.ID, ttl)
}

// Init ensures schema and bucket exist. Both halves are idempotent.
func (d *dataClient) Init(ctx context.Context) error {
	if d.migrate != nil {
		if err := d.migrate(ctx); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	if err := d.store.EnsureBucket(ctx); err != nil {
		return fmt.Errorf("init bucket: %w", err)
	}
	return nil
}

// Check probes both backends independently; one failing does not mask
// the other's status.
func (d *dataClient) Check(ctx context.Context) Health {
	var h Health
	if err := d.docs.Ping(ctx); err != nil {
		h.Database = BackendStatus{OK: false, Error: err.Error()}
	} else {
		h.Database = BackendStatus{OK: true}
	}
	if err := d.store.Ping(ctx); err != nil {
		h.ObjectStore = BackendStatus{OK: false, Error: err.Error()}
	} else {
		h.ObjectStore = BackendStatus{OK: true}
	}
	return h
}

// SweepPending reconciles interrupted uploads. A stale PENDING row whose
// blob exists means the crash happened between the blob write and the
// state flip: finish the job and promote it. No blob means the write
// never landed: remove the row.
func (d *dataClient) SweepPending(ctx context.Context, grace time.Duration) (SweepResult, error) {
	var res SweepResult
	stale, err := d.docs.ListStalePending(ctx, time.Now().UTC().Add(-grace))
	if err != nil {
		return res, fmt.Errorf("list stale pending: %w", err)
	}

	var errs []error
	for _, doc := range stale {
		_, statErr := d.store.Stat(ctx, doc.ID)
		switch {
		case statErr == nil:
			if _, err := d.docs.UpdateState(ctx, doc.ID, model.StateActive); err != nil {
				errs = append(errs, fmt.Errorf("promote %s: %w", doc.ID, err))
				continue
			}
			res.Promoted++
		case errors.Is(statErr, apperr.ErrNotFound):
			if _, err := d.docs.Delete(ctx, doc.ID); err != nil {
				errs = append(errs, fmt.Errorf("remove %s: %w", doc.ID, err))
				continue
			}
			res.Removed++
		default:
			errs = append(errs, fmt.Errorf("stat %s: %w", doc.ID, statErr))
		}
	}

	if len(errs) > 0 {
		return res, errors.Join(errs...)
	}
	d.logEvent("sweep_complete", map[string]any{
		"promoted": res.Promoted,
		"removed":  res.Removed,
	})
	return res, nil
}

// activeDocument resolves a document for read paths. Anything not ACTIVE
// reads as NotFound: PENDING rows have no confirmed blob yet.
func (d *dataClient) activeDocument(ctx context.Context, id string) (*model.Document, error) {
	if id == "" {
		return nil, ErrIDRequired
	}
	doc, err := d.docs.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.State != model.StateActive {
		return nil, fmt.Errorf("%w: document %s is %s", apperr.ErrNotFound, id, doc.State)
	}
	return doc, nil
}

func extensionOf(name string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	if ext == "" {
		return "bin"
	}
	return ext
}

// logEvent emits one-line JSON, matching the rest of the codebase.
func (d *dataClient) logEvent(event string, fields map[string]any) {
	data := map[string]any{
		"component": "dataclient",
		"event":     event,
		"ts":        time.Now().UTC().Format(time.RFC3339Nano),
	}
	for k, v := range fields {
		data[k] = v
	}
	b, err := json.Marshal(data)
	if err != nil {
		return
	}
	log.SetFlags(0)
	log.Println(string(b))
}
