package ingest

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"phoneqa-importer/internal/report"
	"phoneqa-importer/internal/shared/telemetry"
)

const insertCombinedAnalysis = `
INSERT INTO combined_analyses (
	agent_id, analysis_period_note, number_of_reports_provided, number_of_reports_successfully_analyzed,
	snapshot_total_calls_contributing, snapshot_positive_count, snapshot_negative_count, snapshot_neutral_count
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING combined_analysis_id`

const insertCoachingFocus = `
INSERT INTO combined_analysis_coaching_focus (combined_analysis_id, area_text)
VALUES ($1, $2)
RETURNING coaching_focus_id`

// insertCombined writes one combined analysis row and its child trees
// (strengths, development areas, coaching plan, per-quality-point details)
// inside the caller's transaction. Details whose quality point text did not
// resolve are dropped, not errored.
func insertCombined(ctx context.Context, tx *sql.Tx, doc *report.Combined, agentID int64, qpIDs map[string]int64, log *telemetry.Logger) error {
	header := doc.ReportHeader
	snapshot := doc.PerformanceSnapshot

	var combinedID int64
	err := tx.QueryRowContext(ctx, insertCombinedAnalysis,
		agentID,
		header.AnalysisPeriodNote,
		header.NumberOfReportsProvided,
		header.NumberOfReportsSuccessfullyAnalyzed,
		snapshot.TotalCallsContributing,
		snapshot.AggregateFindings.Positive,
		snapshot.AggregateFindings.Negative,
		snapshot.AggregateFindings.Neutral,
	).Scan(&combinedID)
	if err != nil {
		return fmt.Errorf("insert combined analysis: %w", err)
	}
	log.WithField("combined_analysis_id", combinedID).Debug("inserted combined analysis")

	qual := doc.QualitativeSummary
	if err := insertTextList(ctx, tx, "combined_analysis_strengths", "combined_analysis_id", "strength_text", combinedID, qual.Strengths); err != nil {
		return err
	}
	if err := insertTextList(ctx, tx, "combined_analysis_development_areas", "combined_analysis_id", "development_area_text", combinedID, qual.DevelopmentAreas); err != nil {
		return err
	}

	for _, focus := range qual.CoachingFocus {
		if focus.Area == "" {
			continue
		}
		var focusID int64
		if err := tx.QueryRowContext(ctx, insertCoachingFocus, combinedID, focus.Area).Scan(&focusID); err != nil {
			return fmt.Errorf("insert coaching focus: %w", err)
		}
		if err := insertTextList(ctx, tx, "combined_analysis_coaching_actions", "coaching_focus_id", "action_text", focusID, focus.SpecificActions); err != nil {
			return err
		}
	}

	var tuples []string
	var args []any
	dropped := 0
	for _, detail := range doc.QualityPointAnalysis {
		qpID, ok := qpIDs[detail.QualityPoint]
		if !ok {
			dropped++
			continue
		}
		n := len(args)
		tuples = append(tuples, fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d)", n+1, n+2, n+3, n+4, n+5, n+6))
		args = append(args,
			combinedID,
			qpID,
			detail.FindingsSummary.Positive,
			detail.FindingsSummary.Negative,
			detail.FindingsSummary.Neutral,
			detail.TrendObservation,
		)
	}
	if dropped > 0 {
		log.WithField("dropped", dropped).Debug("dropped quality point details with unresolved quality points")
	}
	if len(tuples) == 0 {
		return nil
	}

	query := fmt.Sprintf(
		`INSERT INTO combined_analysis_quality_point_details (combined_analysis_id, quality_point_id, findings_summary_positive, findings_summary_negative, findings_summary_neutral, trend_observation) VALUES %s`,
		strings.Join(tuples, ", "),
	)
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert quality point details: %w", err)
	}
	log.WithField("combined_analysis_id", combinedID).WithField("details", len(tuples)).Debug("inserted quality point details")
	return nil
}

// insertTextList batch-inserts a list of free-text child rows under parentID.
func insertTextList(ctx context.Context, tx *sql.Tx, table, parentColumn, column string, parentID int64, values []string) error {
	if len(values) == 0 {
		return nil
	}
	tuples := make([]string, len(values))
	args := make([]any, 0, len(values)*2)
	for i, value := range values {
		tuples[i] = fmt.Sprintf("($%d, $%d)", i*2+1, i*2+2)
		args = append(args, parentID, value)
	}
	query := fmt.Sprintf(`INSERT INTO %s (%s, %s) VALUES %s`, table, parentColumn, column, strings.Join(tuples, ", "))
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert %s: %w", table, err)
	}
	return nil
}
