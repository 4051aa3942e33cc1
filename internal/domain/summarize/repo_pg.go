package summarize

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

const highlightCols = `id, patient_id, hospital_discharge_summary_text, facility_summary_text,
	engagement_summary_text, hospital_quotes, facility_quotes, engagement_quotes,
	clinical_risks, detailed_interventions, detailed_outcomes, updated_at`

func (r *repoPG) scanHighlight(row pgx.Row) (*CaseStudyHighlight, error) {
	var h CaseStudyHighlight
	err := row.Scan(&h.ID, &h.PatientID, &h.HospitalDischargeSummaryText, &h.FacilitySummaryText,
		&h.EngagementSummaryText, &h.HospitalQuotes, &h.FacilityQuotes, &h.EngagementQuotes,
		&h.ClinicalRisks, &h.DetailedInterventions, &h.DetailedOutcomes, &h.UpdatedAt)
	return &h, err
}

func (r *repoPG) Upsert(ctx context.Context, h *CaseStudyHighlight) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	row := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patient_case_study_highlights (
			id, patient_id, hospital_discharge_summary_text, facility_summary_text,
			engagement_summary_text, hospital_quotes, facility_quotes, engagement_quotes,
			clinical_risks, detailed_interventions, detailed_outcomes, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW())
		ON CONFLICT (patient_id) DO UPDATE SET
			hospital_discharge_summary_text = EXCLUDED.hospital_discharge_summary_text,
			facility_summary_text = EXCLUDED.facility_summary_text,
			engagement_summary_text = EXCLUDED.engagement_summary_text,
			hospital_quotes = EXCLUDED.hospital_quotes,
			facility_quotes = EXCLUDED.facility_quotes,
			engagement_quotes = EXCLUDED.engagement_quotes,
			clinical_risks = EXCLUDED.clinical_risks,
			detailed_interventions = EXCLUDED.detailed_interventions,
			detailed_outcomes = EXCLUDED.detailed_outcomes,
			updated_at = NOW()
		RETURNING `+highlightCols,
		h.ID, h.PatientID, h.HospitalDischargeSummaryText, h.FacilitySummaryText,
		h.EngagementSummaryText, h.HospitalQuotes, h.FacilityQuotes, h.EngagementQuotes,
		h.ClinicalRisks, h.DetailedInterventions, h.DetailedOutcomes)

	got, err := r.scanHighlight(row)
	if err != nil {
		return err
	}
	*h = *got
	return nil
}

func (r *repoPG) GetByPatient(ctx context.Context, patientID uuid.UUID) (*CaseStudyHighlight, error) {
	row := r.conn(ctx).QueryRow(ctx, `
		SELECT `+highlightCols+`
		FROM patient_case_study_highlights
		WHERE patient_id = $1`, patientID)
	h, err := r.scanHighlight(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrHighlightNotFound
		}
		return nil, err
	}
	return h, nil
}

func (r *repoPG) ListByPatients(ctx context.Context, patientIDs []uuid.UUID) ([]*CaseStudyHighlight, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+highlightCols+`
		FROM patient_case_study_highlights
		WHERE patient_id = ANY($1)
		ORDER BY updated_at DESC`, patientIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*CaseStudyHighlight
	for rows.Next() {
		h, err := r.scanHighlight(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}
