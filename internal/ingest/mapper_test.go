package ingest

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"phoneqa-importer/internal/report"
	"phoneqa-importer/internal/shared/telemetry"
)

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func newMockTx(t *testing.T) (*sql.Tx, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	mock.ExpectBegin()
	tx, err := db.Begin()
	require.NoError(t, err)
	return tx, mock
}

func TestInsertIndividualMapsFieldsAndNulls(t *testing.T) {
	tx, mock := newMockTx(t)

	doc := &report.Individual{
		CallSummary: report.CallSummary{
			TechDispatcherName: strPtr("Jane Smith"),
			CallDuration:       strPtr("05:12"),
			TicketNumber:       strPtr("T-1001"),
		},
		ConcludingRemarks: report.ConcludingRemarks{
			SummaryPositiveFindings: strPtr("Clear greeting"),
		},
		DetailedEvaluation: []report.EvaluationItem{
			{QualityPoint: "Proper Greeting", Finding: strPtr("positive"), ExplanationSnippets: strPtr("hello")},
			{QualityPoint: "Hold Etiquette", Finding: strPtr("negative")},
			{QualityPoint: "Not In Mapping", Finding: strPtr("neutral")},
		},
	}
	qpIDs := map[string]int64{"Proper Greeting": 1, "Hold Etiquette": 2}

	mock.ExpectQuery("INSERT INTO individual_call_analyses").
		WithArgs(
			int64(5),
			"Jane Smith",
			"call_a.wav",
			"05:12",
			nil, // client_name
			nil, // client_facility_company
			"T-1001",
			nil, // client_callback_number
			nil, // ticket_status_type
			nil, // call_subject_summary
			"Clear greeting",
			nil, // negative findings
			nil, // coaching plan
		).
		WillReturnRows(sqlmock.NewRows([]string{"analysis_id"}).AddRow(int64(11)))
	mock.ExpectExec("INSERT INTO individual_evaluation_items").
		WithArgs(
			int64(11), int64(1), "positive", "hello",
			int64(11), int64(2), "negative", nil,
		).
		WillReturnResult(sqlmock.NewResult(0, 2))

	err := insertIndividual(context.Background(), tx, doc, "Week of 2024-02-15/4821/call_a_analysis.json", 5, qpIDs, telemetry.Discard())
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertIndividualNoResolvableItems(t *testing.T) {
	tx, mock := newMockTx(t)

	doc := &report.Individual{
		DetailedEvaluation: []report.EvaluationItem{
			{QualityPoint: "Unknown", Finding: strPtr("positive")},
		},
	}

	mock.ExpectQuery("INSERT INTO individual_call_analyses").
		WillReturnRows(sqlmock.NewRows([]string{"analysis_id"}).AddRow(int64(12)))
	// No evaluation items insert: the only item is unresolvable and dropped.

	err := insertIndividual(context.Background(), tx, doc, "call_b_analysis.json", 5, nil, telemetry.Discard())
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertCombinedMapsFullTree(t *testing.T) {
	tx, mock := newMockTx(t)

	doc := &report.Combined{
		ReportHeader: report.ReportHeader{
			AnalysisPeriodNote:      strPtr("Week of 2024-02-15"),
			NumberOfReportsProvided: intPtr(12),
		},
		PerformanceSnapshot: report.PerformanceSnapshot{
			TotalCallsContributing: intPtr(10),
			AggregateFindings: report.FindingCounts{
				Positive: intPtr(30),
				Negative: intPtr(4),
			},
		},
		QualitativeSummary: report.QualitativeSummary{
			Strengths:        []string{"Empathy", "Clarity"},
			DevelopmentAreas: []string{"Hold handling"},
			CoachingFocus: []report.CoachingFocus{
				{Area: "Hold handling", SpecificActions: []string{"Announce holds", "Check back"}},
				{Area: ""}, // no area text, skipped
			},
		},
		QualityPointAnalysis: []report.QualityPointDetail{
			{
				QualityPoint:     "Proper Greeting",
				FindingsSummary:  report.FindingCounts{Positive: intPtr(9), Negative: intPtr(1)},
				TrendObservation: strPtr("steady"),
			},
			{QualityPoint: "Not In Mapping"},
		},
	}
	qpIDs := map[string]int64{"Proper Greeting": 1}

	mock.ExpectQuery("INSERT INTO combined_analyses").
		WithArgs(int64(5), "Week of 2024-02-15", 12, nil, 10, 30, 4, nil).
		WillReturnRows(sqlmock.NewRows([]string{"combined_analysis_id"}).AddRow(int64(21)))
	mock.ExpectExec("INSERT INTO combined_analysis_strengths").
		WithArgs(int64(21), "Empathy", int64(21), "Clarity").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("INSERT INTO combined_analysis_development_areas").
		WithArgs(int64(21), "Hold handling").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("INSERT INTO combined_analysis_coaching_focus").
		WithArgs(int64(21), "Hold handling").
		WillReturnRows(sqlmock.NewRows([]string{"coaching_focus_id"}).AddRow(int64(31)))
	mock.ExpectExec("INSERT INTO combined_analysis_coaching_actions").
		WithArgs(int64(31), "Announce holds", int64(31), "Check back").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("INSERT INTO combined_analysis_quality_point_details").
		WithArgs(int64(21), int64(1), 9, 1, nil, "steady").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := insertCombined(context.Background(), tx, doc, 5, qpIDs, telemetry.Discard())
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertCombinedMinimalDocument(t *testing.T) {
	tx, mock := newMockTx(t)

	mock.ExpectQuery("INSERT INTO combined_analyses").
		WithArgs(int64(5), nil, nil, nil, nil, nil, nil, nil).
		WillReturnRows(sqlmock.NewRows([]string{"combined_analysis_id"}).AddRow(int64(22)))

	err := insertCombined(context.Background(), tx, &report.Combined{}, 5, nil, telemetry.Discard())
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAudioFileName(t *testing.T) {
	require.Equal(t, "call_a.wav", audioFileName("Week of 2024-02-15/4821/call_a_analysis.json"))
	require.Equal(t, "rec_077.wav", audioFileName("rec_077_analysis.json"))
}
