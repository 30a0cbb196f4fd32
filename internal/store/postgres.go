package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	s := &PostgresStore{db: db}
	if err := s.migrate(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	// Use advisory lock to prevent concurrent migrations when several
	// instances start at once. Note: in production, use a dedicated
	// migration tool that runs as a separate deployment step.
	const lockID = 428431907 // arbitrary number for this application's migration lock

	var acquired bool
	err := s.db.QueryRowContext(ctx, `SELECT pg_try_advisory_lock($1)`, lockID).Scan(&acquired)
	if err != nil {
		return fmt.Errorf("failed to acquire migration lock: %w", err)
	}

	if !acquired {
		// Another instance is running migrations; wait briefly and skip
		time.Sleep(2 * time.Second)
		return nil
	}

	defer func() {
		_, _ = s.db.ExecContext(context.Background(), `SELECT pg_advisory_unlock($1)`, lockID)
	}()

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL,
			file_name TEXT NOT NULL,
			file_url TEXT NOT NULL,
			upload_status TEXT NOT NULL,
			processing_status TEXT NOT NULL,
			analysis_status TEXT NOT NULL,
			analysis_job_id TEXT,
			confidence_score DOUBLE PRECISION DEFAULT 0,
			total_pages INT DEFAULT 0,
			chunk_count INT DEFAULT 0,
			form_fields JSONB,
			has_signatures BOOL DEFAULT FALSE,
			signature_count INT DEFAULT 0,
			uploaded_at TIMESTAMPTZ DEFAULT now(),
			processed_at TIMESTAMPTZ,
			updated_at TIMESTAMPTZ DEFAULT now()
		);`,
		`CREATE TABLE IF NOT EXISTS analysis_jobs (
			id UUID PRIMARY KEY,
			document_id UUID REFERENCES documents(id) ON DELETE CASCADE,
			external_job_id TEXT UNIQUE NOT NULL,
			status TEXT NOT NULL,
			error_message TEXT,
			started_at TIMESTAMPTZ DEFAULT now(),
			completed_at TIMESTAMPTZ,
			raw_result JSONB
		);`,
		`CREATE TABLE IF NOT EXISTS chunks (
			id UUID PRIMARY KEY,
			document_id UUID REFERENCES documents(id) ON DELETE CASCADE,
			ord INT NOT NULL,
			page INT NOT NULL,
			content TEXT NOT NULL,
			word_count INT NOT NULL,
			char_count INT NOT NULL,
			confidence DOUBLE PRECISION DEFAULT 0
		);`,
		`CREATE TABLE IF NOT EXISTS entities (
			id UUID PRIMARY KEY,
			document_id UUID REFERENCES documents(id) ON DELETE CASCADE,
			entity_type TEXT NOT NULL,
			entity_value TEXT NOT NULL,
			confidence DOUBLE PRECISION DEFAULT 0,
			page INT NOT NULL,
			bbox JSONB
		);`,
		`CREATE TABLE IF NOT EXISTS doc_tables (
			id UUID PRIMARY KEY,
			document_id UUID REFERENCES documents(id) ON DELETE CASCADE,
			page INT NOT NULL,
			headers JSONB,
			rows JSONB,
			confidence DOUBLE PRECISION DEFAULT 0
		);`,
		`CREATE INDEX IF NOT EXISTS chunks_document_idx ON chunks(document_id);`,
		`CREATE INDEX IF NOT EXISTS entities_document_idx ON entities(document_id);`,
		`CREATE INDEX IF NOT EXISTS doc_tables_document_idx ON doc_tables(document_id);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *PostgresStore) CreateDocument(ctx context.Context, doc Document) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents(id, user_id, file_name, file_url, upload_status, processing_status, analysis_status)
		VALUES($1,$2,$3,$4,$5,$6,$7)`,
		doc.ID, doc.UserID, doc.FileName, doc.FileURL, doc.UploadStatus, doc.ProcessingStatus, doc.AnalysisStatus)
	return err
}

// AttachJob inserts the analysis job row and stamps the external job id
// on the owning document.
func (s *PostgresStore) AttachJob(ctx context.Context, job AnalysisJob) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO analysis_jobs(id, document_id, external_job_id, status)
		VALUES($1,$2,$3,$4)`,
		job.ID, job.DocumentID, job.ExternalJobID, job.Status)
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `
		UPDATE documents SET analysis_job_id=$1, updated_at=now() WHERE id=$2`,
		job.ExternalJobID, job.DocumentID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrDocumentNotFound
	}
	return tx.Commit()
}

func (s *PostgresStore) MarkDocumentFailed(ctx context.Context, docID uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE documents SET processing_status=$1, analysis_status=$1, updated_at=now() WHERE id=$2`,
		StatusFailed, docID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrDocumentNotFound
	}
	return nil
}

func (s *PostgresStore) GetJobByExternalID(ctx context.Context, externalJobID string) (AnalysisJob, error) {
	var job AnalysisJob
	var errMsg sql.NullString
	var completedAt sql.NullTime
	row := s.db.QueryRowContext(ctx, `
		SELECT id, document_id, external_job_id, status, error_message, started_at, completed_at
		FROM analysis_jobs WHERE external_job_id=$1`, externalJobID)
	err := row.Scan(&job.ID, &job.DocumentID, &job.ExternalJobID, &job.Status, &errMsg, &job.StartedAt, &completedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return AnalysisJob{}, ErrJobNotFound
	}
	if err != nil {
		return AnalysisJob{}, fmt.Errorf("failed to get job %s: %w", externalJobID, err)
	}
	job.ErrorMessage = errMsg.String
	if completedAt.Valid {
		t := completedAt.Time
		job.CompletedAt = &t
	}
	return job, nil
}

// CompleteJob performs the terminal transition keyed by external job id.
// Every column is written with an absolute value, so a re-delivered
// notification rewrites the same state.
func (s *PostgresStore) CompleteJob(ctx context.Context, externalJobID string, status JobStatus, errMsg string, rawResult []byte, completedAt time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE analysis_jobs SET status=$1, error_message=$2, raw_result=$3, completed_at=$4
		WHERE external_job_id=$5`,
		status, nullString(errMsg), nullJSON(rawResult), completedAt, externalJobID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrJobNotFound
	}
	return nil
}

func (s *PostgresStore) ReplaceChunks(ctx context.Context, docID uuid.UUID, chunks []Chunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE document_id=$1`, docID); err != nil {
		return err
	}
	for _, c := range chunks {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO chunks(id, document_id, ord, page, content, word_count, char_count, confidence)
			VALUES($1,$2,$3,$4,$5,$6,$7,$8)`,
			uuid.New(), docID, c.Index, c.Page, c.Content, c.WordCount, c.CharCount, c.Confidence)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *PostgresStore) ReplaceEntities(ctx context.Context, docID uuid.UUID, entities []Entity) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM entities WHERE document_id=$1`, docID); err != nil {
		return err
	}
	for _, e := range entities {
		var bbox []byte
		if e.BoundingBox != nil {
			bbox, err = json.Marshal(e.BoundingBox)
			if err != nil {
				return err
			}
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO entities(id, document_id, entity_type, entity_value, confidence, page, bbox)
			VALUES($1,$2,$3,$4,$5,$6,$7)`,
			uuid.New(), docID, e.Type, e.Value, e.Confidence, e.Page, nullJSON(bbox))
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *PostgresStore) ReplaceTables(ctx context.Context, docID uuid.UUID, tables []Table) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM doc_tables WHERE document_id=$1`, docID); err != nil {
		return err
	}
	for _, t := range tables {
		headers, err := json.Marshal(t.Headers)
		if err != nil {
			return err
		}
		rows, err := json.Marshal(t.Rows)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO doc_tables(id, document_id, page, headers, rows, confidence)
			VALUES($1,$2,$3,$4,$5,$6)`,
			uuid.New(), docID, t.Page, headers, rows, t.Confidence)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *PostgresStore) FinalizeDocument(ctx context.Context, docID uuid.UUID, results DocumentResults) error {
	fields, err := json.Marshal(results.FormFields)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE documents SET
			processing_status=$1,
			analysis_status=$1,
			confidence_score=$2,
			total_pages=$3,
			chunk_count=$4,
			form_fields=$5,
			has_signatures=$6,
			signature_count=$7,
			processed_at=$8,
			updated_at=now()
		WHERE id=$9`,
		StatusCompleted, results.ConfidenceScore, results.TotalPages, results.ChunkCount,
		fields, results.HasSignatures, results.SignatureCount, results.ProcessedAt, docID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrDocumentNotFound
	}
	return nil
}

func (s *PostgresStore) FindOwnedDocument(ctx context.Context, userID uuid.UUID, keySuffix string) (Document, error) {
	var doc Document
	// The pattern suffix is escaped so %/_ in a requested key match
	// literally instead of acting as wildcards.
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, file_name, file_url
		FROM documents
		WHERE user_id=$1 AND file_url LIKE '%' || $2 ESCAPE '\'
		LIMIT 1`, userID, escapeLike(keySuffix))
	err := row.Scan(&doc.ID, &doc.UserID, &doc.FileName, &doc.FileURL)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, ErrDocumentNotFound
	}
	if err != nil {
		return Document{}, err
	}
	return doc, nil
}

// escapeLike neutralizes LIKE metacharacters in a literal operand.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}
