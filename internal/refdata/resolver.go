// Package refdata resolves Agent and QualityPoint rows with get-or-create
// semantics inside the caller's per-file transaction.
package refdata

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"phoneqa-importer/internal/roster"
	"phoneqa-importer/internal/shared/metrics"
	"phoneqa-importer/internal/shared/telemetry"
)

const (
	uniqueViolation = "23505"
	bonusMarker     = "[BONUS]"

	agentExtensionConstraint = "agents_extension_key"
	agentNameConstraint      = "agents_agent_name_key"
)

// Resolver provides get-or-create lookups for reference data. All methods
// run on the transaction the orchestrator opened for the current file.
type Resolver struct {
	log *telemetry.Logger
}

// NewResolver returns a Resolver logging through log.
func NewResolver(log *telemetry.Logger) *Resolver {
	return &Resolver{log: log}
}

// GetOrCreateAgent looks an agent up by extension and inserts it on a miss,
// returning the generated key in the same round trip. If the insert hits a
// unique constraint (a concurrent writer created the same extension or
// name), the transaction is rolled back to a savepoint and the winner's row
// is re-queried, keyed on which constraint fired.
func (r *Resolver) GetOrCreateAgent(ctx context.Context, tx *sql.Tx, member roster.Member) (int64, error) {
	if member.Name == "" || member.Extension == "" {
		return 0, fmt.Errorf("agent details missing name or extension (name=%q extension=%q)", member.Name, member.Extension)
	}

	var id int64
	err := tx.QueryRowContext(ctx, `SELECT agent_id FROM agents WHERE extension = $1`, member.Extension).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("lookup agent by extension: %w", err)
	}

	// Savepoint so a conflicting insert does not abort the file's transaction.
	if _, err := tx.ExecContext(ctx, "SAVEPOINT agent_insert"); err != nil {
		return 0, fmt.Errorf("savepoint: %w", err)
	}
	const insert = `INSERT INTO agents (agent_name, email_address, extension) VALUES ($1, $2, $3) RETURNING agent_id`
	err = tx.QueryRowContext(ctx, insert, member.Name, nullableString(member.Email), member.Extension).Scan(&id)
	if err == nil {
		if _, err := tx.ExecContext(ctx, "RELEASE SAVEPOINT agent_insert"); err != nil {
			return 0, fmt.Errorf("release savepoint: %w", err)
		}
		r.log.WithField("agent", member.Name).WithField("extension", member.Extension).Info("created new agent")
		metrics.IncAgentCreated()
		return id, nil
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
		return 0, fmt.Errorf("insert agent: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT agent_insert"); err != nil {
		return 0, fmt.Errorf("rollback to savepoint: %w", err)
	}

	lookupCol, lookupVal := "extension", member.Extension
	if pgErr.ConstraintName == agentNameConstraint {
		lookupCol, lookupVal = "agent_name", member.Name
	}
	r.log.WithField("constraint", pgErr.ConstraintName).WithField("extension", member.Extension).Warn("agent insert conflicted; re-querying")

	requery := fmt.Sprintf(`SELECT agent_id FROM agents WHERE %s = $1`, lookupCol)
	if err := tx.QueryRowContext(ctx, requery, lookupVal).Scan(&id); err != nil {
		return 0, fmt.Errorf("re-query agent after conflict on %s: %w", pgErr.ConstraintName, err)
	}
	return id, nil
}

// GetOrCreateQualityPoints resolves every text in texts to its generated id,
// inserting the missing subset in one batch. Idempotent across overlapping
// text sets: the insert ignores rows that appeared concurrently and the
// final select returns the surviving ids.
func (r *Resolver) GetOrCreateQualityPoints(ctx context.Context, tx *sql.Tx, texts map[string]struct{}) (map[string]int64, error) {
	ids := make(map[string]int64, len(texts))
	if len(texts) == 0 {
		return ids, nil
	}

	ordered := make([]string, 0, len(texts))
	for text := range texts {
		ordered = append(ordered, text)
	}
	sort.Strings(ordered)

	selectQuery, selectArgs := qualityPointSelect(ordered)
	if err := scanQualityPoints(ctx, tx, selectQuery, selectArgs, ids); err != nil {
		return nil, err
	}

	var missing []string
	for _, text := range ordered {
		if _, ok := ids[text]; !ok {
			missing = append(missing, text)
		}
	}
	if len(missing) == 0 {
		return ids, nil
	}

	insertQuery, insertArgs := qualityPointInsert(missing)
	if _, err := tx.ExecContext(ctx, insertQuery, insertArgs...); err != nil {
		return nil, fmt.Errorf("insert quality points: %w", err)
	}
	r.log.WithField("count", len(missing)).Info("inserted new quality points")
	metrics.AddQualityPointsCreated(uint64(len(missing)))

	if err := scanQualityPoints(ctx, tx, selectQuery, selectArgs, ids); err != nil {
		return nil, err
	}
	for _, text := range ordered {
		if _, ok := ids[text]; !ok {
			return nil, fmt.Errorf("quality point %q unresolved after insert", text)
		}
	}
	return ids, nil
}

// IsBonus reports whether a quality point text carries the bonus marker.
func IsBonus(text string) bool {
	return strings.Contains(strings.ToUpper(text), bonusMarker)
}

func qualityPointSelect(texts []string) (string, []any) {
	placeholders := make([]string, len(texts))
	args := make([]any, len(texts))
	for i, text := range texts {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = text
	}
	query := fmt.Sprintf(
		`SELECT quality_point_text, quality_point_id FROM quality_points_master WHERE quality_point_text IN (%s)`,
		strings.Join(placeholders, ", "),
	)
	return query, args
}

func qualityPointInsert(texts []string) (string, []any) {
	tuples := make([]string, len(texts))
	args := make([]any, 0, len(texts)*2)
	for i, text := range texts {
		tuples[i] = fmt.Sprintf("($%d, $%d)", i*2+1, i*2+2)
		args = append(args, text, IsBonus(text))
	}
	query := fmt.Sprintf(
		`INSERT INTO quality_points_master (quality_point_text, is_bonus) VALUES %s ON CONFLICT (quality_point_text) DO NOTHING`,
		strings.Join(tuples, ", "),
	)
	return query, args
}

func scanQualityPoints(ctx context.Context, tx *sql.Tx, query string, args []any, ids map[string]int64) error {
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("select quality points: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var text string
		var id int64
		if err := rows.Scan(&text, &id); err != nil {
			return fmt.Errorf("scan quality point: %w", err)
		}
		ids[text] = id
	}
	return rows.Err()
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
