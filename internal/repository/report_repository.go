package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/route-ticketing/internal/model"
)

// ReportRepo reads and writes the 'verification_reports' table.
type ReportRepo struct{ DB *sql.DB }

func NewReportRepo(db *sql.DB) *ReportRepo { return &ReportRepo{DB: db} }

const reportColumns = "id,trace_digest,outcome,records,steps,elapsed_ms,geometry,created_at"

// Create inserts rep.  Reports are immutable once written.
func (r *ReportRepo) Create(ctx context.Context, rep *model.VerificationReport) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO verification_reports ("+reportColumns+") VALUES (?,?,?,?,?,?,?,?)",
		rep.ID, rep.TraceDigest, rep.Outcome, rep.Records, rep.Steps, rep.ElapsedMS, rep.Geometry, rep.CreatedAt)
	if err != nil && strings.Contains(err.Error(), "1062") {
		return ErrDuplicateReport
	}
	return err
}

// GetByID fetches one report.
func (r *ReportRepo) GetByID(ctx context.Context, id string) (*model.VerificationReport, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+reportColumns+" FROM verification_reports WHERE id=? LIMIT 1", id)
	rep, err := scanReport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrReportNotFound
	}
	return rep, err
}

// ListRecent returns up to limit reports, newest first.
func (r *ReportRepo) ListRecent(ctx context.Context, limit int) ([]model.VerificationReport, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+reportColumns+" FROM verification_reports ORDER BY created_at DESC, id LIMIT ?", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.VerificationReport{}
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rep)
	}
	return out, rows.Err()
}

type scanner interface{ Scan(dest ...any) error }

func scanReport(s scanner) (*model.VerificationReport, error) {
	var rep model.VerificationReport
	err := s.Scan(&rep.ID, &rep.TraceDigest, &rep.Outcome, &rep.Records, &rep.Steps,
		&rep.ElapsedMS, &rep.Geometry, &rep.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &rep, nil
}
