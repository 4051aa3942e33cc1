package queue

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carehq/carehq/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// =========== Queue Repository ===========

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const itemCols = `id, file_id, file_path, status, error_message, created_at, processed_at`

func (r *repoPG) scanItem(row pgx.Row) (*QueueItem, error) {
	var q QueueItem
	err := row.Scan(&q.ID, &q.FileID, &q.FilePath, &q.Status, &q.ErrorMessage, &q.CreatedAt, &q.ProcessedAt)
	return &q, err
}

func (r *repoPG) Enqueue(ctx context.Context, item *QueueItem) error {
	item.ID = uuid.New()
	item.Status = StatusPending
	// The conditional insert enforces at-most-one active item per file.
	row := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO pdf_processing_queue (id, file_id, file_path, status)
		SELECT $1, $2, $3, 'pending'
		WHERE NOT EXISTS (
			SELECT 1 FROM pdf_processing_queue
			WHERE file_id = $2 AND status IN ('pending', 'processing')
		)
		RETURNING `+itemCols, item.ID, item.FileID, item.FilePath)

	got, err := r.scanItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrAlreadyQueued
		}
		return err
	}
	*item = *got
	return nil
}

func (r *repoPG) ClaimNext(ctx context.Context) (*QueueItem, error) {
	// Single conditional update: concurrent callers cannot claim the same
	// row, and a second worker skips a locked candidate instead of blocking.
	row := r.conn(ctx).QueryRow(ctx, `
		UPDATE pdf_processing_queue
		SET status = 'processing'
		WHERE id = (
			SELECT id FROM pdf_processing_queue
			WHERE status = 'pending'
			ORDER BY created_at
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		RETURNING `+itemCols)

	item, err := r.scanItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrQueueEmpty
		}
		return nil, err
	}
	return item, nil
}

func (r *repoPG) MarkCompleted(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE pdf_processing_queue
		SET status = 'completed', error_message = NULL, processed_at = NOW()
		WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) MarkFailed(ctx context.Context, id uuid.UUID, errorMessage string) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE pdf_processing_queue
		SET status = 'failed', error_message = $2, processed_at = NOW()
		WHERE id = $1`, id, errorMessage)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*QueueItem, error) {
	item, err := r.scanItem(r.conn(ctx).QueryRow(ctx,
		`SELECT `+itemCols+` FROM pdf_processing_queue WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return item, nil
}

func (r *repoPG) ListRecent(ctx context.Context, limit, offset int) ([]*QueueItem, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM pdf_processing_queue`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+itemCols+` FROM pdf_processing_queue ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*QueueItem
	for rows.Next() {
		it, err := r.scanItem(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, it)
	}
	return items, total, nil
}

// =========== PatientFile Repository ===========

type fileRepoPG struct{ pool *pgxpool.Pool }

func NewFileRepoPG(pool *pgxpool.Pool) FileRepository { return &fileRepoPG{pool: pool} }

func (r *fileRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const fileCols = `id, patient_id, patient_full_name, file_name, file_type, month, year,
	file_path, parsed_text, page_count, processing_status, created_at, updated_at`

func (r *fileRepoPG) scanFile(row pgx.Row) (*PatientFile, error) {
	var f PatientFile
	err := row.Scan(&f.ID, &f.PatientID, &f.PatientFullName, &f.FileName, &f.FileType, &f.Month, &f.Year,
		&f.FilePath, &f.ParsedText, &f.PageCount, &f.ProcessingStatus, &f.CreatedAt, &f.UpdatedAt)
	return &f, err
}

func (r *fileRepoPG) Create(ctx context.Context, f *PatientFile) error {
	f.ID = uuid.New()
	if f.ProcessingStatus == "" {
		f.ProcessingStatus = StatusPending
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO patient_files (id, patient_id, patient_full_name, file_name, file_type,
			month, year, file_path, processing_status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		f.ID, f.PatientID, f.PatientFullName, f.FileName, f.FileType,
		f.Month, f.Year, f.FilePath, f.ProcessingStatus)
	return err
}

func (r *fileRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*PatientFile, error) {
	f, err := r.scanFile(r.conn(ctx).QueryRow(ctx,
		`SELECT `+fileCols+` FROM patient_files WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return f, nil
}

func (r *fileRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*PatientFile, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+fileCols+` FROM patient_files WHERE patient_id = $1 ORDER BY year, month, created_at`,
		patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var files []*PatientFile
	for rows.Next() {
		f, err := r.scanFile(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, nil
}

func (r *fileRepoPG) SetProcessingStatus(ctx context.Context, id uuid.UUID, status Status) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE patient_files SET processing_status = $2, updated_at = NOW() WHERE id = $1`,
		id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *fileRepoPG) StoreExtraction(ctx context.Context, id uuid.UUID, text string, pageCount int, status Status) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE patient_files
		SET parsed_text = $2, page_count = $3, processing_status = $4, updated_at = NOW()
		WHERE id = $1`,
		id, text, pageCount, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
