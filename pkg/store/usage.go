package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/duhu110/axiom/pkg/model"
)

// InsertUsage appends one append-only LLM usage row.
func (s *Store) InsertUsage(ctx context.Context, record model.LLMUsageRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}

	var metadata sql.NullString
	if record.Metadata != nil {
		encoded, err := json.Marshal(record.Metadata)
		if err != nil {
			return fmt.Errorf("store: marshal usage metadata: %w", err)
		}
		metadata = sql.NullString{String: string(encoded), Valid: true}
	}

	query := fmt.Sprintf(`
INSERT INTO llm_usage (id, user_id, model_name, prompt_tokens, completion_tokens, total_tokens, request_id, trace_id, metadata, created_at)
VALUES (%s, %s, %s, %s, %s, %s, %s, %s, %s, %s)
`, s.placeholder(1), s.placeholder(2), s.placeholder(3), s.placeholder(4), s.placeholder(5),
		s.placeholder(6), s.placeholder(7), s.placeholder(8), s.placeholder(9), s.placeholder(10))

	_, err := s.db.ExecContext(ctx, query,
		record.ID, record.UserID, record.Model,
		nullableInt(record.PromptTokens), nullableInt(record.CompletionTokens), nullableInt(record.TotalTokens),
		nullableString(record.RequestID), nullableString(record.TraceID),
		metadata, record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("store: insert usage record: %w", err)
	}
	return nil
}

// UsageFilter narrows ListUsage/SummaryUsage to a time range and model.
type UsageFilter struct {
	Start *time.Time
	End   *time.Time
	Model *string
}

// ListUsage returns a page of usage rows for user, newest first, and
// the total row count matching the filter (ignoring skip/limit).
func (s *Store) ListUsage(ctx context.Context, userID string, filter UsageFilter, skip, limit int) ([]model.LLMUsageRecord, int, error) {
	where, args := s.usageWhere(userID, filter)

	var total int
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM llm_usage WHERE %s`, where)
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("store: count usage rows: %w", err)
	}

	query := fmt.Sprintf(
		`SELECT id, user_id, model_name, prompt_tokens, completion_tokens, total_tokens, request_id, trace_id, metadata, created_at
FROM llm_usage WHERE %s ORDER BY created_at DESC LIMIT %s OFFSET %s`,
		where, s.placeholder(len(args)+1), s.placeholder(len(args)+2),
	)
	rows, err := s.db.QueryContext(ctx, query, append(args, limit, skip)...)
	if err != nil {
		return nil, 0, fmt.Errorf("store: list usage rows: %w", err)
	}
	defer rows.Close()

	var out []model.LLMUsageRecord
	for rows.Next() {
		record, err := scanUsageRow(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("store: iterate usage rows: %w", err)
	}
	return out, total, nil
}

// UsageSummary is one aggregated bucket (by day or by model).
type UsageSummary struct {
	Group            string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// SummaryUsage aggregates usage sums for user grouped by day or model.
func (s *Store) SummaryUsage(ctx context.Context, userID string, filter UsageFilter, groupBy string) ([]UsageSummary, error) {
	where, args := s.usageWhere(userID, filter)

	groupExpr := s.dayGroupExpr()
	if groupBy == "model" {
		groupExpr = "model_name"
	}

	query := fmt.Sprintf(`
SELECT %s AS grp,
       COALESCE(SUM(prompt_tokens), 0),
       COALESCE(SUM(completion_tokens), 0),
       COALESCE(SUM(total_tokens), 0)
FROM llm_usage WHERE %s GROUP BY grp ORDER BY grp
`, groupExpr, where)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: summarize usage: %w", err)
	}
	defer rows.Close()

	var out []UsageSummary
	for rows.Next() {
		var summary UsageSummary
		if err := rows.Scan(&summary.Group, &summary.PromptTokens, &summary.CompletionTokens, &summary.TotalTokens); err != nil {
			return nil, fmt.Errorf("store: scan usage summary row: %w", err)
		}
		out = append(out, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate usage summary rows: %w", err)
	}
	return out, nil
}

// dayGroupExpr returns the dialect's date-truncation expression for
// bucketing created_at by calendar day.
func (s *Store) dayGroupExpr() string {
	switch s.dialect {
	case Postgres:
		return "date_trunc('day', created_at)"
	case MySQL:
		return "DATE(created_at)"
	default: // sqlite3
		return "date(created_at)"
	}
}

func (s *Store) usageWhere(userID string, filter UsageFilter) (string, []any) {
	clauses := []string{fmt.Sprintf("user_id = %s", s.placeholder(1))}
	args := []any{userID}

	if filter.Start != nil {
		args = append(args, *filter.Start)
		clauses = append(clauses, fmt.Sprintf("created_at >= %s", s.placeholder(len(args))))
	}
	if filter.End != nil {
		args = append(args, *filter.End)
		clauses = append(clauses, fmt.Sprintf("created_at <= %s", s.placeholder(len(args))))
	}
	if filter.Model != nil {
		args = append(args, *filter.Model)
		clauses = append(clauses, fmt.Sprintf("model_name = %s", s.placeholder(len(args))))
	}
	return strings.Join(clauses, " AND "), args
}

func scanUsageRow(rows *sql.Rows) (model.LLMUsageRecord, error) {
	var record model.LLMUsageRecord
	var promptTokens, completionTokens, totalTokens sql.NullInt64
	var requestID, traceID, metadata sql.NullString

	if err := rows.Scan(&record.ID, &record.UserID, &record.Model,
		&promptTokens, &completionTokens, &totalTokens,
		&requestID, &traceID, &metadata, &record.CreatedAt); err != nil {
		return model.LLMUsageRecord{}, fmt.Errorf("store: scan usage row: %w", err)
	}

	record.PromptTokens = intPointer(promptTokens)
	record.CompletionTokens = intPointer(completionTokens)
	record.TotalTokens = intPointer(totalTokens)
	if requestID.Valid {
		record.RequestID = &requestID.String
	}
	if traceID.Valid {
		record.TraceID = &traceID.String
	}
	if metadata.Valid {
		var decoded map[string]any
		if err := json.Unmarshal([]byte(metadata.String), &decoded); err != nil {
			return model.LLMUsageRecord{}, fmt.Errorf("store: unmarshal usage metadata: %w", err)
		}
		record.Metadata = decoded
	}
	return record, nil
}

func nullableInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullableString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

func intPointer(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}
