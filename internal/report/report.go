// Package report defines the two call-analysis report shapes and decodes
// raw file bytes into them. Fields are pointers so that a missing JSON key
// maps to an explicit no-value, which the mappers turn into a NULL column.
package report

import (
	"encoding/json"
	"fmt"

	"phoneqa-importer/internal/scan"
)

// Individual is a single-call evaluation report (*_analysis.json).
type Individual struct {
	CallSummary        CallSummary       `json:"call_summary"`
	ConcludingRemarks  ConcludingRemarks `json:"concluding_remarks"`
	DetailedEvaluation []EvaluationItem  `json:"detailed_evaluation"`
}

// CallSummary carries call metadata; any field may be absent.
type CallSummary struct {
	TechDispatcherName    *string `json:"tech_dispatcher_name"`
	CallDuration          *string `json:"call_duration"`
	ClientName            *string `json:"client_name"`
	ClientFacilityCompany *string `json:"client_facility_company"`
	TicketNumber          *string `json:"ticket_number"`
	ClientCallbackNumber  *string `json:"client_callback_number"`
	TicketStatusType      *string `json:"ticket_status_type"`
	CallSubjectSummary    *string `json:"call_subject_summary"`
}

// ConcludingRemarks carries the free-text summary fields.
type ConcludingRemarks struct {
	SummaryPositiveFindings *string `json:"summary_positive_findings"`
	SummaryNegativeFindings *string `json:"summary_negative_findings"`
	CoachingPlanForGrowth   *string `json:"coaching_plan_for_growth"`
}

// EvaluationItem scores one quality point for one call.
type EvaluationItem struct {
	QualityPoint        string  `json:"quality_point"`
	Finding             *string `json:"finding"`
	ExplanationSnippets *string `json:"explanation_snippets"`
}

// Combined is an aggregate report spanning multiple calls for one agent.
type Combined struct {
	ReportHeader         ReportHeader         `json:"report_header"`
	PerformanceSnapshot  PerformanceSnapshot  `json:"overall_performance_snapshot"`
	QualitativeSummary   QualitativeSummary   `json:"qualitative_summary_and_coaching_plan"`
	QualityPointAnalysis []QualityPointDetail `json:"detailed_quality_point_analysis"`
}

// ReportHeader describes the analysis period and report counts.
type ReportHeader struct {
	AnalysisPeriodNote                  *string `json:"analysis_period_note"`
	NumberOfReportsProvided             *int    `json:"number_of_reports_provided"`
	NumberOfReportsSuccessfullyAnalyzed *int    `json:"number_of_reports_successfully_analyzed"`
}

// PerformanceSnapshot carries the aggregate finding counts.
type PerformanceSnapshot struct {
	TotalCallsContributing *int          `json:"total_calls_contributing_to_aggregates"`
	AggregateFindings      FindingCounts `json:"aggregate_findings_counts"`
}

// FindingCounts is a positive/negative/neutral tally.
type FindingCounts struct {
	Positive *int `json:"positive_count"`
	Negative *int `json:"negative_count"`
	Neutral  *int `json:"neutral_count"`
}

// QualitativeSummary carries the coaching plan sections.
type QualitativeSummary struct {
	Strengths        []string        `json:"overall_strengths_observed"`
	DevelopmentAreas []string        `json:"overall_areas_for_development"`
	CoachingFocus    []CoachingFocus `json:"consolidated_coaching_focus"`
}

// CoachingFocus is one focus area and its recommended actions.
type CoachingFocus struct {
	Area            string   `json:"area"`
	SpecificActions []string `json:"specific_actions"`
}

// QualityPointDetail aggregates findings for one quality point.
type QualityPointDetail struct {
	QualityPoint     string        `json:"quality_point"`
	FindingsSummary  FindingCounts `json:"findings_summary"`
	TrendObservation *string       `json:"trend_observation"`
}

// File is one decoded report; exactly one of the two shapes is set.
type File struct {
	Individual *Individual
	Combined   *Combined
}

// Parse decodes data into the shape selected by the file's basename.
func Parse(name string, data []byte) (*File, error) {
	if scan.IsCombinedReport(name) {
		var doc Combined
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("decode combined report: %w", err)
		}
		return &File{Combined: &doc}, nil
	}
	var doc Individual
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode individual report: %w", err)
	}
	return &File{Individual: &doc}, nil
}

// QualityPointTexts returns the distinct quality-point texts the document
// references, so one batched resolve covers the whole file.
func (f *File) QualityPointTexts() map[string]struct{} {
	texts := make(map[string]struct{})
	if f.Individual != nil {
		for _, item := range f.Individual.DetailedEvaluation {
			if item.QualityPoint != "" {
				texts[item.QualityPoint] = struct{}{}
			}
		}
	}
	if f.Combined != nil {
		for _, detail := range f.Combined.QualityPointAnalysis {
			if detail.QualityPoint != "" {
				texts[detail.QualityPoint] = struct{}{}
			}
		}
	}
	return texts
}
