package storage

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"social-ingest/internal/model"
	"social-ingest/internal/normalize"
)

// columnTypes gives the DDL type for each canonical column. The CREATE
// TABLE and INSERT statements are generated from normalize.Columns() so
// the relation always matches the canonical column order.
var columnTypes = map[string]string{
	"source_type":   "TEXT NOT NULL",
	"channel_url":   "TEXT NOT NULL",
	"post_id":       "TEXT NOT NULL",
	"posted_at":     "TIMESTAMPTZ NOT NULL",
	"text":          "TEXT NOT NULL DEFAULT ''",
	"views":         "BIGINT NOT NULL DEFAULT 0",
	"forwards":      "BIGINT NOT NULL DEFAULT 0",
	"reactions":     "BIGINT NOT NULL DEFAULT 0",
	"comments_text": "TEXT NOT NULL DEFAULT ''",
	"comment_count": "BIGINT NOT NULL DEFAULT 0",
	"sentiment":     "TEXT NOT NULL DEFAULT ''",
	"table_name":    "TEXT NOT NULL",
}

var tableNameRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

const insertChunk = 200

// PostgresSink persists canonical batches into per-topic tables. Inserts
// dedup on (source_type, channel_url, post_id), so re-running an
// overlapping window never duplicates rows.
type PostgresSink struct {
	pool *pgxpool.Pool
}

func OpenPostgres(ctx context.Context, dsn string, maxConns int) (*PostgresSink, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse dsn: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = int32(maxConns)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return &PostgresSink{pool: pool}, nil
}

func (s *PostgresSink) Close() {
	s.pool.Close()
}

func (s *PostgresSink) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func validTable(table string) error {
	if !tableNameRe.MatchString(table) {
		return fmt.Errorf("postgres: invalid table name %q", table)
	}
	return nil
}

// EnsureTable creates the topic relation if absent.
func (s *PostgresSink) EnsureTable(ctx context.Context, table string) error {
	if err := validTable(table); err != nil {
		return err
	}
	cols := normalize.Columns()
	ddl := "CREATE TABLE IF NOT EXISTS " + table + " (\n"
	for _, col := range cols {
		ddl += fmt.Sprintf("\t%s %s,\n", col, columnTypes[col])
	}
	ddl += "\tPRIMARY KEY (source_type, channel_url, post_id)\n)"
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("postgres: ensure table %s: %w", table, err)
	}
	return nil
}

func insertSQL(table string) string {
	cols := normalize.Columns()
	sql := "INSERT INTO " + table + " ("
	args := ""
	for i, col := range cols {
		if i > 0 {
			sql += ", "
			args += ","
		}
		sql += col
		args += fmt.Sprintf("$%d", i+1)
	}
	return sql + ") VALUES (" + args + ") ON CONFLICT (source_type, channel_url, post_id) DO NOTHING"
}

// rowValues orders a post's fields per normalize.Columns().
func rowValues(p model.CanonicalPost) []any {
	cols := normalize.Columns()
	out := make([]any, 0, len(cols))
	for _, col := range cols {
		switch col {
		case "source_type":
			out = append(out, string(p.SourceType))
		case "channel_url":
			out = append(out, p.ChannelURL)
		case "post_id":
			out = append(out, p.PostID)
		case "posted_at":
			out = append(out, p.PostedAt)
		case "text":
			out = append(out, p.Text)
		case "views":
			out = append(out, p.Views)
		case "forwards":
			out = append(out, p.Forwards)
		case "reactions":
			out = append(out, p.Reactions)
		case "comments_text":
			out = append(out, p.CommentsText)
		case "comment_count":
			out = append(out, p.CommentCount)
		case "sentiment":
			out = append(out, string(p.Sentiment))
		case "table_name":
			out = append(out, p.TableName)
		}
	}
	return out
}

// SaveBatch creates the relation if needed and appends the batch,
// chunked, skipping rows already present.
func (s *PostgresSink) SaveBatch(ctx context.Context, table string, posts []model.CanonicalPost) error {
	if err := s.EnsureTable(ctx, table); err != nil {
		return err
	}
	if len(posts) == 0 {
		return nil
	}
	sql := insertSQL(table)
	total := 0
	for i := 0; i < len(posts); i += insertChunk {
		j := i + insertChunk
		if j > len(posts) {
			j = len(posts)
		}
		b := &pgx.Batch{}
		for _, p := range posts[i:j] {
			b.Queue(sql, rowValues(p)...)
		}
		br := s.pool.SendBatch(ctx, b)
		for k := i; k < j; k++ {
			tag, err := br.Exec()
			if err != nil {
				_ = br.Close()
				return fmt.Errorf("postgres: insert into %s: %w", table, err)
			}
			total += int(tag.RowsAffected())
		}
		if err := br.Close(); err != nil {
			return fmt.Errorf("postgres: insert into %s: %w", table, err)
		}
	}
	// inserted < len(posts) means the conflict key already held the rest.
	slog.Info("postgres: batch stored",
		"table", table, "rows", len(posts), "inserted", total, "deduplicated", len(posts)-total)
	return nil
}

// DeleteOldestDay removes the rows of the oldest calendar day (UTC) in
// the topic table, implementing the rolling-window refresh. Returns the
// number of rows removed; a missing relation removes nothing.
func (s *PostgresSink) DeleteOldestDay(ctx context.Context, table string) (int64, error) {
	if err := validTable(table); err != nil {
		return 0, err
	}
	var exists *string
	if err := s.pool.QueryRow(ctx, "SELECT to_regclass($1)::text", table).Scan(&exists); err != nil {
		return 0, fmt.Errorf("postgres: check table %s: %w", table, err)
	}
	if exists == nil {
		return 0, nil
	}
	sql := fmt.Sprintf(`DELETE FROM %s WHERE date_trunc('day', posted_at AT TIME ZONE 'UTC') = (
		SELECT min(date_trunc('day', posted_at AT TIME ZONE 'UTC')) FROM %s
	)`, table, table)
	tag, err := s.pool.Exec(ctx, sql)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete oldest day from %s: %w", table, err)
	}
	return tag.RowsAffected(), nil
}

// OldestDay reports the earliest posted_at in the table, for logging the
// window before a rolling delete.
func (s *PostgresSink) OldestDay(ctx context.Context, table string) (time.Time, bool, error) {
	if err := validTable(table); err != nil {
		return time.Time{}, false, err
	}
	var min *time.Time
	err := s.pool.QueryRow(ctx, fmt.Sprintf("SELECT min(posted_at) FROM %s", table)).Scan(&min)
	if err != nil || min == nil {
		return time.Time{}, false, err
	}
	return min.UTC(), true, nil
}
