package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"

	"github.com/zatekoja/feedbackhub/internal/domain/entities"
	"github.com/zatekoja/feedbackhub/internal/domain/repositories"
	"github.com/zatekoja/feedbackhub/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/feedbackhub/pkg/errors"
)

var feedbackColumns = []any{"id", "project_id", "name", "email", "message", "rating", "metadata", "created_at"}

// FeedbackAdapter implements feedback persistence in Postgres.
type FeedbackAdapter struct {
	client *postgres.Client
}

// NewFeedbackAdapter creates a new feedback adapter.
func NewFeedbackAdapter(client *postgres.Client) repositories.FeedbackRepository {
	return &FeedbackAdapter{client: client}
}

// Create inserts a feedback record.
func (a *FeedbackAdapter) Create(ctx context.Context, feedback *entities.Feedback) error {
	if feedback == nil {
		return apperrors.NewInternalError("feedback is nil", fmt.Errorf("feedback is nil"))
	}

	metadata, err := metadataValue(feedback.Metadata)
	if err != nil {
		return apperrors.NewValidationError("metadata is not JSON serializable")
	}

	record := goqu.Record{
		"id":         feedback.ID,
		"project_id": nullStringPtr(feedback.ProjectID),
		"name":       nullString(feedback.Name),
		"email":      nullString(feedback.Email),
		"message":    feedback.Message,
		"rating":     nullInt(feedback.Rating),
		"metadata":   metadata,
		"created_at": feedback.CreatedAt,
	}

	query, args, err := dialect.Insert(feedbackTable).Prepared(true).Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build feedback insert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to create feedback", err)
	}

	return nil
}

// GetByID retrieves a feedback record by ID
func (a *FeedbackAdapter) GetByID(ctx context.Context, id string) (*entities.Feedback, error) {
	if !validID(id) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("feedback with id %s not found", id))
	}

	query, args, err := dialect.From(feedbackTable).Prepared(true).
		Select(feedbackColumns...).
		Where(goqu.C("id").Eq(id)).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build feedback query", err)
	}

	feedback, err := scanFeedback(a.client.DB().QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("feedback with id %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get feedback", err)
	}

	return feedback, nil
}

// List returns one page of matching feedback, newest first, together with
// the total number of matches.
func (a *FeedbackAdapter) List(ctx context.Context, filter repositories.FeedbackFilter, opts repositories.ListOptions) ([]*entities.Feedback, int, error) {
	total, err := a.Count(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	ds := dialect.From(feedbackTable).Prepared(true).
		Select(feedbackColumns...).
		Where(feedbackConditions(filter)...).
		Order(goqu.C("created_at").Desc(), goqu.C("id").Desc())
	if opts.Limit > 0 {
		ds = ds.Limit(uint(opts.Limit))
	}
	if opts.Offset > 0 {
		ds = ds.Offset(uint(opts.Offset))
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, 0, apperrors.NewInternalError("failed to build feedback list query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, apperrors.NewInternalError("failed to list feedback", err)
	}
	defer rows.Close()

	items := make([]*entities.Feedback, 0)
	for rows.Next() {
		feedback, err := scanFeedback(rows)
		if err != nil {
			return nil, 0, apperrors.NewInternalError("failed to scan feedback", err)
		}
		items = append(items, feedback)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, apperrors.NewInternalError("failed to list feedback", err)
	}

	return items, total, nil
}

// Delete removes a feedback record
func (a *FeedbackAdapter) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return apperrors.NewNotFoundError(fmt.Sprintf("feedback with id %s not found", id))
	}

	query, args, err := dialect.Delete(feedbackTable).Prepared(true).Where(goqu.C("id").Eq(id)).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build feedback delete query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to delete feedback", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}
	if rows == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("feedback with id %s not found", id))
	}

	return nil
}

// Count returns the number of matching feedback records
func (a *FeedbackAdapter) Count(ctx context.Context, filter repositories.FeedbackFilter) (int, error) {
	query, args, err := dialect.From(feedbackTable).Prepared(true).
		Select(goqu.COUNT("*")).
		Where(feedbackConditions(filter)...).
		ToSQL()
	if err != nil {
		return 0, apperrors.NewInternalError("failed to build feedback count query", err)
	}

	var count int
	if err := a.client.DB().QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, apperrors.NewInternalError("failed to count feedback", err)
	}
	return count, nil
}

// AverageRating averages the ratings of matching feedback, ignoring
// feedback without a rating.
func (a *FeedbackAdapter) AverageRating(ctx context.Context, filter repositories.FeedbackFilter) (*float64, error) {
	conds := append(feedbackConditions(filter), goqu.C("rating").IsNotNull())
	query, args, err := dialect.From(feedbackTable).Prepared(true).
		Select(goqu.AVG("rating")).
		Where(conds...).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build average rating query", err)
	}

	var avg sql.NullFloat64
	if err := a.client.DB().QueryRowContext(ctx, query, args...).Scan(&avg); err != nil {
		return nil, apperrors.NewInternalError("failed to average ratings", err)
	}
	if !avg.Valid {
		return nil, nil
	}
	return &avg.Float64, nil
}

// GroupByProject counts matching feedback per project_id. Unassigned
// feedback forms its own group with a nil ProjectID.
func (a *FeedbackAdapter) GroupByProject(ctx context.Context, filter repositories.FeedbackFilter) ([]repositories.ProjectCount, error) {
	query, args, err := dialect.From(feedbackTable).Prepared(true).
		Select(goqu.C("project_id"), goqu.COUNT("*").As("count")).
		Where(feedbackConditions(filter)...).
		GroupBy(goqu.C("project_id")).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build feedback grouping query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to group feedback", err)
	}
	defer rows.Close()

	var groups []repositories.ProjectCount
	for rows.Next() {
		var (
			projectID sql.NullString
			count     int
		)
		if err := rows.Scan(&projectID, &count); err != nil {
			return nil, apperrors.NewInternalError("failed to scan feedback group", err)
		}
		groups = append(groups, repositories.ProjectCount{ProjectID: stringPtr(projectID), Count: count})
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to group feedback", err)
	}

	return groups, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFeedback(row rowScanner) (*entities.Feedback, error) {
	var (
		feedback  entities.Feedback
		projectID sql.NullString
		name      sql.NullString
		email     sql.NullString
		rating    sql.NullInt64
		metadata  []byte
		createdAt time.Time
	)

	if err := row.Scan(&feedback.ID, &projectID, &name, &email, &feedback.Message, &rating, &metadata, &createdAt); err != nil {
		return nil, err
	}

	decoded, err := decodeMetadata(metadata)
	if err != nil {
		return nil, fmt.Errorf("invalid metadata for feedback %s: %w", feedback.ID, err)
	}

	feedback.ProjectID = stringPtr(projectID)
	feedback.Name = name.String
	feedback.Email = email.String
	feedback.Rating = intPtr(rating)
	feedback.Metadata = decoded
	feedback.CreatedAt = createdAt.UTC()
	return &feedback, nil
}
