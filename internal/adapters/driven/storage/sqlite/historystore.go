package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/doculens-ai/doculens/internal/core/domain"
	"github.com/doculens-ai/doculens/internal/core/ports/driven"
)

// summaryStore implements driven.SummaryStore on SQLite.
type summaryStore struct {
	store *Store
}

var _ driven.SummaryStore = (*summaryStore)(nil)

// Save stores or replaces the summary for a document.
func (s *summaryStore) Save(ctx context.Context, summary *domain.Summary) error {
	bullets, err := json.Marshal(summary.BulletPoints)
	if err != nil {
		return fmt.Errorf("marshalling bullet points: %w", err)
	}
	next, err := json.Marshal(summary.NextSteps)
	if err != nil {
		return fmt.Errorf("marshalling next steps: %w", err)
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO summaries (document_id, summary, bullet_points, next_steps,
			source_chunk_count, model, generated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(document_id) DO UPDATE SET
			summary = excluded.summary,
			bullet_points = excluded.bullet_points,
			next_steps = excluded.next_steps,
			source_chunk_count = excluded.source_chunk_count,
			model = excluded.model,
			generated_at = excluded.generated_at
	`, summary.DocumentID.String(), summary.Summary, string(bullets), string(next),
		summary.SourceChunkCount, summary.Model, summary.GeneratedAt.UTC())
	if err != nil {
		return fmt.Errorf("saving summary: %w", err)
	}
	return nil
}

// Get retrieves the current summary for a document.
func (s *summaryStore) Get(ctx context.Context, documentID uuid.UUID) (*domain.Summary, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT document_id, summary, bullet_points, next_steps,
			source_chunk_count, model, generated_at
		FROM summaries WHERE document_id = ?
	`, documentID.String())

	var summary domain.Summary
	var docID, bullets, next string
	if err := row.Scan(&docID, &summary.Summary, &bullets, &next,
		&summary.SourceChunkCount, &summary.Model, &summary.GeneratedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning summary: %w", err)
	}

	var err error
	if summary.DocumentID, err = uuid.Parse(docID); err != nil {
		return nil, fmt.Errorf("parsing document id: %w", err)
	}
	if err := unmarshalStrings(bullets, &summary.BulletPoints); err != nil {
		return nil, fmt.Errorf("unmarshalling bullet points: %w", err)
	}
	if err := unmarshalStrings(next, &summary.NextSteps); err != nil {
		return nil, fmt.Errorf("unmarshalling next steps: %w", err)
	}
	return &summary, nil
}

// Delete removes the summary for a document.
func (s *summaryStore) Delete(ctx context.Context, documentID uuid.UUID) error {
	if _, err := s.store.db.ExecContext(ctx,
		`DELETE FROM summaries WHERE document_id = ?`, documentID.String()); err != nil {
		return fmt.Errorf("deleting summary: %w", err)
	}
	return nil
}

// classificationStore implements driven.ClassificationStore on SQLite.
type classificationStore struct {
	store *Store
}

var _ driven.ClassificationStore = (*classificationStore)(nil)

// Append records a new classification result.
func (s *classificationStore) Append(ctx context.Context, record *domain.ClassificationRecord) error {
	scores, err := json.Marshal(record.Scores)
	if err != nil {
		return fmt.Errorf("marshalling scores: %w", err)
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO classifications (id, document_id, label_name, confidence,
			source, scores, reasoning, notes, classifier_version, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, record.ID.String(), record.DocumentID.String(), record.LabelName,
		record.Confidence, string(record.Source), string(scores),
		record.Reasoning, record.Notes, record.ClassifierVersion, record.CreatedAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("appending classification: %w", err)
	}
	return nil
}

// ListByDocument returns a document's classification history newest-first.
func (s *classificationStore) ListByDocument(ctx context.Context, documentID uuid.UUID, limit int) ([]domain.ClassificationRecord, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, document_id, label_name, confidence, source, scores,
			reasoning, notes, classifier_version, created_at
		FROM classifications WHERE document_id = ?
		ORDER BY created_at DESC, id DESC LIMIT ?
	`, documentID.String(), limitOrAll(limit))
	if err != nil {
		return nil, fmt.Errorf("listing classifications: %w", err)
	}
	defer rows.Close()

	var records []domain.ClassificationRecord
	for rows.Next() {
		record, err := scanClassification(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *record)
	}
	return records, rows.Err()
}

// Latest returns the current label record for a document.
func (s *classificationStore) Latest(ctx context.Context, documentID uuid.UUID) (*domain.ClassificationRecord, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, document_id, label_name, confidence, source, scores,
			reasoning, notes, classifier_version, created_at
		FROM classifications WHERE document_id = ?
		ORDER BY created_at DESC, id DESC LIMIT 1
	`, documentID.String())
	return scanClassification(row)
}

func scanClassification(row rowScanner) (*domain.ClassificationRecord, error) {
	var record domain.ClassificationRecord
	var id, docID, source, scores string
	if err := row.Scan(&id, &docID, &record.LabelName, &record.Confidence,
		&source, &scores, &record.Reasoning, &record.Notes,
		&record.ClassifierVersion, &record.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning classification: %w", err)
	}

	var err error
	if record.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parsing classification id: %w", err)
	}
	if record.DocumentID, err = uuid.Parse(docID); err != nil {
		return nil, fmt.Errorf("parsing document id: %w", err)
	}
	record.Source = domain.ClassificationSource(source)
	if scores != "" && scores != jsonNull {
		if err := json.Unmarshal([]byte(scores), &record.Scores); err != nil {
			return nil, fmt.Errorf("unmarshalling scores: %w", err)
		}
	}
	return &record, nil
}

// labelStore implements driven.LabelStore on SQLite.
type labelStore struct {
	store *Store
}

var _ driven.LabelStore = (*labelStore)(nil)

// Save stores or updates a taxonomy node.
func (s *labelStore) Save(ctx context.Context, label *domain.Label) error {
	var parent any
	if label.ParentID != uuid.Nil {
		parent = label.ParentID.String()
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO labels (id, name, kind, description, parent_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description
	`, label.ID.String(), label.Name, string(label.Kind), label.Description,
		parent, label.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("saving label: %w", err)
	}
	return nil
}

// Delete removes taxonomy nodes by id.
func (s *labelStore) Delete(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id.String()
	}
	_, err := s.store.db.ExecContext(ctx,
		`DELETE FROM labels WHERE id IN (`+strings.Join(placeholders, ", ")+`)`, args...)
	if err != nil {
		return fmt.Errorf("deleting labels: %w", err)
	}
	return nil
}

// List returns all taxonomy rows, domains first so the arena can be
// rebuilt without forward references.
func (s *labelStore) List(ctx context.Context) ([]domain.Label, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, name, kind, description, parent_id, created_at
		FROM labels
		ORDER BY CASE kind WHEN 'domain' THEN 0 ELSE 1 END, created_at, id
	`)
	if err != nil {
		return nil, fmt.Errorf("listing labels: %w", err)
	}
	defer rows.Close()

	var labels []domain.Label
	for rows.Next() {
		var label domain.Label
		var id, kind string
		var parent sql.NullString
		if err := rows.Scan(&id, &label.Name, &kind, &label.Description, &parent, &label.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning label: %w", err)
		}
		if label.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parsing label id: %w", err)
		}
		label.Kind = domain.LabelKind(kind)
		if parent.Valid && parent.String != "" {
			if label.ParentID, err = uuid.Parse(parent.String); err != nil {
				return nil, fmt.Errorf("parsing parent id: %w", err)
			}
		}
		labels = append(labels, label)
	}
	return labels, rows.Err()
}

func unmarshalStrings(raw string, dst *[]string) error {
	if raw == "" || raw == jsonNull {
		return nil
	}
	return json.Unmarshal([]byte(raw), dst)
}
