package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/yousraMsaouri/ChatBot-Inteligent-Assistant-de-Redaction-de-Rapports/internal/domain"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS user_reports (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		report_name TEXT NOT NULL,
		plan_json JSONB NOT NULL,
		generated_at TIMESTAMPTZ NOT NULL,
		downloaded BOOLEAN NOT NULL DEFAULT FALSE,
		email_sent BOOLEAN NOT NULL DEFAULT FALSE,
		call_scheduled BOOLEAN NOT NULL DEFAULT FALSE,
		file_path TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_user_reports_user_id ON user_reports (user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_user_reports_file_path ON user_reports (file_path)`,
	`CREATE TABLE IF NOT EXISTS user_messages (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		message TEXT NOT NULL,
		sender TEXT NOT NULL CHECK (sender IN ('user', 'bot')),
		timestamp TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_user_messages_user_id ON user_messages (user_id, timestamp)`,
}

type planDocument struct {
	Sections []string `json:"sections"`
}

type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(ctx context.Context, databaseURL string) (*PostgresRepository, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pg pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping pg: %w", err)
	}

	repo := &PostgresRepository{pool: pool}
	if err := repo.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return repo, nil
}

func (r *PostgresRepository) Close() {
	r.pool.Close()
}

func (r *PostgresRepository) ensureSchema(ctx context.Context) error {
	for _, statement := range schemaStatements {
		if _, err := r.pool.Exec(ctx, statement); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

func (r *PostgresRepository) CreateReport(ctx context.Context, report *domain.Report) error {
	plan, err := json.Marshal(planDocument{Sections: report.Plan})
	if err != nil {
		return fmt.Errorf("encode plan: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO user_reports (
			id,
			user_id,
			report_name,
			plan_json,
			generated_at,
			downloaded,
			email_sent,
			call_scheduled,
			file_path
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`,
		report.ID,
		report.UserID,
		report.Title,
		plan,
		report.GeneratedAt,
		report.Downloaded,
		report.EmailSent,
		report.CallPlaced,
		report.Location,
	)
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetReport(ctx context.Context, reportID string) (*domain.Report, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, user_id, report_name, plan_json, generated_at, downloaded, email_sent, call_scheduled, file_path
		FROM user_reports
		WHERE id = $1
	`, reportID)

	report, err := scanReport(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query report: %w", err)
	}
	return report, nil
}

func (r *PostgresRepository) SetLocation(ctx context.Context, reportID, location string) error {
	command, err := r.pool.Exec(ctx, `
		UPDATE user_reports
		SET file_path = $2
		WHERE id = $1 AND file_path = ''
	`, reportID, location)
	if err != nil {
		return fmt.Errorf("update report location: %w", err)
	}
	if command.RowsAffected() == 1 {
		return nil
	}

	if _, err := r.GetReport(ctx, reportID); err != nil {
		return err
	}
	return ErrLocationAlreadySet
}

func (r *PostgresRepository) MarkDownloaded(ctx context.Context, location string) (*domain.Report, error) {
	if location == "" {
		return nil, ErrNotFound
	}
	row := r.pool.QueryRow(ctx, `
		WITH marked AS (
			UPDATE user_reports
			SET downloaded = TRUE
			WHERE file_path = $1
			RETURNING id, user_id, report_name, plan_json, generated_at, downloaded, email_sent, call_scheduled, file_path
		)
		SELECT id, user_id, report_name, plan_json, generated_at, downloaded, email_sent, call_scheduled, file_path
		FROM marked
		ORDER BY generated_at, id
		LIMIT 1
	`, location)

	report, err := scanReport(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("mark report downloaded: %w", err)
	}
	return report, nil
}

func (r *PostgresRepository) MarkEmailSent(ctx context.Context, reportID string) error {
	return r.setFlag(ctx, `UPDATE user_reports SET email_sent = TRUE WHERE id = $1`, reportID)
}

func (r *PostgresRepository) MarkCallPlaced(ctx context.Context, reportID string) error {
	return r.setFlag(ctx, `UPDATE user_reports SET call_scheduled = TRUE WHERE id = $1`, reportID)
}

func (r *PostgresRepository) ListReports(ctx context.Context, userID string) ([]domain.Report, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, report_name, plan_json, generated_at, downloaded, email_sent, call_scheduled, file_path
		FROM user_reports
		WHERE user_id = $1
		ORDER BY generated_at ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	items := make([]domain.Report, 0)
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		items = append(items, *report)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate reports: %w", rows.Err())
	}
	return items, nil
}

func (r *PostgresRepository) AppendMessage(ctx context.Context, message *domain.Message) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO user_messages (id, user_id, message, sender, timestamp)
		VALUES ($1,$2,$3,$4,$5)
	`, message.ID, message.UserID, message.Body, string(message.Sender), message.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListMessages(ctx context.Context, userID string, limit int) ([]domain.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, message, sender, timestamp
		FROM (
			SELECT id, user_id, message, sender, timestamp
			FROM user_messages
			WHERE user_id = $1
			ORDER BY timestamp DESC
			LIMIT $2
		) recent
		ORDER BY timestamp ASC
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	items := make([]domain.Message, 0)
	for rows.Next() {
		var (
			message   domain.Message
			sender    string
			createdAt time.Time
		)
		if err := rows.Scan(&message.ID, &message.UserID, &message.Body, &sender, &createdAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		message.Sender = domain.Sender(sender)
		message.CreatedAt = createdAt
		items = append(items, message)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate messages: %w", rows.Err())
	}
	return items, nil
}

func (r *PostgresRepository) setFlag(ctx context.Context, statement, reportID string) error {
	command, err := r.pool.Exec(ctx, statement, reportID)
	if err != nil {
		return fmt.Errorf("update report flag: %w", err)
	}
	if command.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanReport(row pgx.Row) (*domain.Report, error) {
	var (
		report      domain.Report
		plan        []byte
		generatedAt time.Time
	)
	err := row.Scan(
		&report.ID,
		&report.UserID,
		&report.Title,
		&plan,
		&generatedAt,
		&report.Downloaded,
		&report.EmailSent,
		&report.CallPlaced,
		&report.Location,
	)
	if err != nil {
		return nil, err
	}

	var decoded planDocument
	if len(plan) > 0 {
		if err := json.Unmarshal(plan, &decoded); err != nil {
			return nil, fmt.Errorf("decode plan: %w", err)
		}
	}
	report.Plan = decoded.Sections
	report.GeneratedAt = generatedAt
	return &report, nil
}
