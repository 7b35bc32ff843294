// Package ingest drives the per-file lifecycle: read, decode, resolve
// reference data, map into relational inserts, commit, and mark the file
// with its outcome.
package ingest

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"phoneqa-importer/internal/refdata"
	"phoneqa-importer/internal/report"
	"phoneqa-importer/internal/roster"
	"phoneqa-importer/internal/scan"
	"phoneqa-importer/internal/shared/metrics"
	"phoneqa-importer/internal/shared/telemetry"
)

// Processor ingests one folder of report files sequentially.
type Processor struct {
	db     *sql.DB
	roster map[string]roster.Member
	ref    *refdata.Resolver
	log    *telemetry.Logger
	now    func() time.Time
}

// NewProcessor wires a Processor. The roster map may be empty; agents then
// fall back to synthesized identities.
func NewProcessor(dbConn *sql.DB, rosterByExt map[string]roster.Member, ref *refdata.Resolver, log *telemetry.Logger) *Processor {
	return &Processor{
		db:     dbConn,
		roster: rosterByExt,
		ref:    ref,
		log:    log,
		now:    time.Now,
	}
}

// Summary totals one folder run.
type Summary struct {
	Eligible int
	Stored   int
	Failed   int
}

// ProcessFolder ingests every eligible report under folder, one transaction
// per file. A failing file is marked and skipped; it never blocks the rest
// of the batch.
func (p *Processor) ProcessFolder(ctx context.Context, folder string) (Summary, error) {
	files, err := scan.Scan(folder)
	if err != nil {
		return Summary{}, fmt.Errorf("scan %s: %w", folder, err)
	}
	summary := Summary{Eligible: len(files)}
	if len(files) == 0 {
		p.log.WithField("folder", folder).Info("no new report files to process")
		return summary, nil
	}
	p.log.WithField("folder", folder).WithField("count", len(files)).Info("processing report files")

	for _, path := range files {
		start := time.Now()
		err := p.processFile(ctx, path)
		metrics.ObserveFileDurationMs(float64(time.Since(start).Milliseconds()))
		if err != nil {
			summary.Failed++
			metrics.IncFileFailed()
			p.log.WithFile(path).WithError(err).Error("file failed; marking for review")
		} else {
			summary.Stored++
			metrics.IncFileStored()
			p.log.WithFile(path).Info("file committed")
		}
		p.markFile(path, err == nil)
	}
	return summary, nil
}

// processFile runs one file through its full lifecycle. Every returned
// error is a FileError; the caller only needs the success/failure outcome.
func (p *Processor) processFile(ctx context.Context, path string) error {
	log := p.log.WithFile(path)

	raw, err := os.ReadFile(path)
	if err != nil {
		return FileError{Kind: FailureParse, Path: path, Err: err}
	}
	doc, err := report.Parse(filepath.Base(path), raw)
	if err != nil {
		return FileError{Kind: FailureParse, Path: path, Err: err}
	}

	member := p.agentForPath(path, log)

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return FileError{Kind: FailureDatabase, Path: path, Err: err}
	}
	defer tx.Rollback()

	agentID, err := p.ref.GetOrCreateAgent(ctx, tx, member)
	if err != nil {
		return FileError{Kind: FailureAgent, Path: path, Err: err}
	}

	qpIDs, err := p.ref.GetOrCreateQualityPoints(ctx, tx, doc.QualityPointTexts())
	if err != nil {
		return FileError{Kind: FailureDatabase, Path: path, Err: err}
	}

	if doc.Combined != nil {
		err = insertCombined(ctx, tx, doc.Combined, agentID, qpIDs, log)
	} else {
		err = insertIndividual(ctx, tx, doc.Individual, path, agentID, qpIDs, log)
	}
	if err != nil {
		return FileError{Kind: FailureDatabase, Path: path, Err: err}
	}

	if err := tx.Commit(); err != nil {
		return FileError{Kind: FailureDatabase, Path: path, Err: err}
	}
	return nil
}

// agentForPath resolves the agent identity encoded in the file's directory
// path, synthesizing an identity when the extension is missing or not on
// the roster so the report is stored either way.
func (p *Processor) agentForPath(path string, log *telemetry.Logger) roster.Member {
	ext, ok := scan.ExtractExtension(path)
	if !ok {
		stamp := syntheticStamp(p.now())
		log.Error("could not determine extension from path; creating unique unknown agent")
		return roster.Member{
			Name:      fmt.Sprintf("Unknown Agent (Unkeyed Path %s)", stamp),
			Extension: "UNKEYED_PATH_" + stamp,
		}
	}
	if member, found := p.roster[ext]; found {
		return member
	}
	log.WithField("extension", ext).Warn("extension not in roster; recording as un-rostered")
	return roster.Member{
		Name:      "Un-rostered Agent - " + ext,
		Extension: ext,
	}
}

// syntheticStamp has microsecond precision so repeated unkeyed files in the
// same run still get distinct identities.
func syntheticStamp(t time.Time) string {
	return t.Format("20060102150405") + fmt.Sprintf("%06d", t.Nanosecond()/1000)
}

// markFile renames the file with the outcome prefix. A rename failure after
// a successful commit leaves the database authoritative; it is logged as
// critical but never aborts the remaining files.
func (p *Processor) markFile(path string, stored bool) {
	prefix := scan.FailedPrefix
	if stored {
		prefix = scan.ProcessedPrefix
	}
	dir, base := filepath.Split(path)
	if err := os.Rename(path, filepath.Join(dir, prefix+base)); err != nil {
		p.log.WithFile(path).WithError(err).WithField("critical", true).Error("failed to rename processed file")
	}
}
