package ingest

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"

	"phoneqa-importer/internal/report"
	"phoneqa-importer/internal/scan"
	"phoneqa-importer/internal/shared/telemetry"
)

const insertIndividualAnalysis = `
INSERT INTO individual_call_analyses (
	agent_id, tech_dispatcher_name_raw, original_audio_file_name, call_duration, client_name,
	client_facility_company, ticket_number, client_callback_number, ticket_status_type,
	call_subject_summary, concluding_remarks_positive, concluding_remarks_negative,
	concluding_remarks_coaching
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
RETURNING analysis_id`

// insertIndividual writes one individual analysis row and its evaluation
// items inside the caller's transaction. Items whose quality point text did
// not resolve are dropped, not errored; the parent row is still written.
func insertIndividual(ctx context.Context, tx *sql.Tx, doc *report.Individual, filePath string, agentID int64, qpIDs map[string]int64, log *telemetry.Logger) error {
	summary := doc.CallSummary
	remarks := doc.ConcludingRemarks

	var analysisID int64
	err := tx.QueryRowContext(ctx, insertIndividualAnalysis,
		agentID,
		summary.TechDispatcherName,
		audioFileName(filePath),
		summary.CallDuration,
		summary.ClientName,
		summary.ClientFacilityCompany,
		summary.TicketNumber,
		summary.ClientCallbackNumber,
		summary.TicketStatusType,
		summary.CallSubjectSummary,
		remarks.SummaryPositiveFindings,
		remarks.SummaryNegativeFindings,
		remarks.CoachingPlanForGrowth,
	).Scan(&analysisID)
	if err != nil {
		return fmt.Errorf("insert individual analysis: %w", err)
	}
	log.WithField("analysis_id", analysisID).Debug("inserted individual analysis")

	var tuples []string
	var args []any
	dropped := 0
	for _, item := range doc.DetailedEvaluation {
		qpID, ok := qpIDs[item.QualityPoint]
		if !ok {
			dropped++
			continue
		}
		n := len(args)
		tuples = append(tuples, fmt.Sprintf("($%d, $%d, $%d, $%d)", n+1, n+2, n+3, n+4))
		args = append(args, analysisID, qpID, item.Finding, item.ExplanationSnippets)
	}
	if dropped > 0 {
		log.WithField("dropped", dropped).Debug("dropped evaluation items with unresolved quality points")
	}
	if len(tuples) == 0 {
		return nil
	}

	query := fmt.Sprintf(
		`INSERT INTO individual_evaluation_items (analysis_id, quality_point_id, finding, explanation_snippets) VALUES %s`,
		strings.Join(tuples, ", "),
	)
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert evaluation items: %w", err)
	}
	log.WithField("analysis_id", analysisID).WithField("items", len(tuples)).Debug("inserted evaluation items")
	return nil
}

// audioFileName derives the original recording name from the report name.
func audioFileName(filePath string) string {
	base := filepath.Base(filePath)
	return strings.TrimSuffix(base, scan.IndividualSuffix) + ".wav"
}
