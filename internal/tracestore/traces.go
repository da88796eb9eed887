package tracestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/coldbell/mango-v4-go/internal/logtrace"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 200
)

type TraceFilter struct {
	Signature   string
	Instruction string
	ErrorName   string
	FailedOnly  bool
	Limit       int
	Offset      int
}

type ErrorCount struct {
	Code         *uint32 `json:"code"`
	Name         string  `json:"name"`
	Transactions int64   `json:"transactions"`
}

// SaveTraces inserts records in one transaction. Records already stored under
// the same (signature, seq) are left untouched.
func (s *Store) SaveTraces(ctx context.Context, records []logtrace.Record) error {
	if len(records) == 0 {
		return nil
	}
	return s.WithTx(ctx, func(tx *Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO traces (
				signature, seq, slot, root_instruction, consumed, failed,
				error_code, error_name, rendered, frames_json, received_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (signature, seq) DO NOTHING
		`)
		if err != nil {
			return fmt.Errorf("prepare trace insert: %w", err)
		}
		defer stmt.Close()

		for _, r := range records {
			frames, err := json.Marshal(r.Trace.Frames)
			if err != nil {
				return fmt.Errorf("encode frames for %s/%d: %w", r.Signature, r.Seq, err)
			}
			var consumed uint64
			if len(r.Trace.Frames) > 0 {
				consumed = r.Trace.Frames[0].Consumed
			}
			var code sql.NullInt64
			if r.ErrorCode != nil {
				code = sql.NullInt64{Int64: int64(*r.ErrorCode), Valid: true}
			}
			if _, err := stmt.ExecContext(ctx,
				r.Signature,
				r.Seq,
				int64(r.Slot),
				r.Root(),
				int64(consumed),
				r.Failed,
				code,
				r.ErrorName,
				r.Trace.String(),
				string(frames),
				r.ReceivedAt.UnixMilli(),
			); err != nil {
				return fmt.Errorf("insert trace %s/%d: %w", r.Signature, r.Seq, err)
			}
		}
		return nil
	})
}

func buildTraceQuery(filter TraceFilter) (string, []any, int, int) {
	limit, offset := normalizePagination(filter.Limit, filter.Offset)
	clauses := []string{"1 = 1"}
	args := make([]any, 0, 6)

	if filter.Signature != "" {
		clauses = append(clauses, "signature = ?")
		args = append(args, filter.Signature)
	}
	if filter.Instruction != "" {
		clauses = append(clauses, "root_instruction = ?")
		args = append(args, filter.Instruction)
	}
	if filter.ErrorName != "" {
		clauses = append(clauses, "error_name = ?")
		args = append(args, filter.ErrorName)
	}
	if filter.FailedOnly {
		clauses = append(clauses, "failed")
	}

	query := fmt.Sprintf(`
		SELECT
			signature,
			seq,
			slot,
			failed,
			error_code,
			error_name,
			frames_json,
			received_at
		FROM traces
		WHERE %s
		ORDER BY slot DESC, signature ASC, seq ASC
		LIMIT ? OFFSET ?
	`, strings.Join(clauses, " AND "))
	args = append(args, limit, offset)
	return query, args, limit, offset
}

// ListTraces returns matching records newest slot first, together with the
// effective limit and offset.
func (s *Store) ListTraces(ctx context.Context, filter TraceFilter) ([]logtrace.Record, int, int, error) {
	query, args, limit, offset := buildTraceQuery(filter)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, 0, err
	}
	defer rows.Close()

	items := make([]logtrace.Record, 0, limit)
	for rows.Next() {
		var (
			item       logtrace.Record
			slot       int64
			code       sql.NullInt64
			framesJSON string
			receivedAt int64
		)
		if err := rows.Scan(
			&item.Signature,
			&item.Seq,
			&slot,
			&item.Failed,
			&code,
			&item.ErrorName,
			&framesJSON,
			&receivedAt,
		); err != nil {
			return nil, 0, 0, err
		}
		if err := json.Unmarshal([]byte(framesJSON), &item.Trace.Frames); err != nil {
			return nil, 0, 0, fmt.Errorf("decode frames for %s/%d: %w", item.Signature, item.Seq, err)
		}
		item.Slot = uint64(slot)
		if code.Valid {
			c := uint32(code.Int64)
			item.ErrorCode = &c
		}
		item.ReceivedAt = time.UnixMilli(receivedAt).UTC()
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, 0, err
	}

	return items, limit, offset, nil
}

// ErrorCounts tallies failed transactions by program error, most frequent
// first.
func (s *Store) ErrorCounts(ctx context.Context) ([]ErrorCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT error_code, error_name, COUNT(DISTINCT signature)
		FROM traces
		WHERE failed
		GROUP BY error_code, error_name
		ORDER BY COUNT(DISTINCT signature) DESC, error_name ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ErrorCount
	for rows.Next() {
		var (
			item ErrorCount
			code sql.NullInt64
		)
		if err := rows.Scan(&code, &item.Name, &item.Transactions); err != nil {
			return nil, err
		}
		if code.Valid {
			c := uint32(code.Int64)
			item.Code = &c
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func normalizePagination(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
