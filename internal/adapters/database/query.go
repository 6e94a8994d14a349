package database

import (
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/zatekoja/feedbackhub/internal/domain/entities"
	"github.com/zatekoja/feedbackhub/internal/domain/repositories"
)

const (
	feedbackTable = "feedback"
	projectsTable = "projects"

	uniqueViolation = "23505"
)

var dialect = goqu.Dialect("postgres")

// validID reports whether id can be compared against a UUID column. Any
// other value cannot match a row.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullStringPtr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullInt(i *int) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*i), Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func intPtr(ni sql.NullInt64) *int {
	if !ni.Valid {
		return nil
	}
	i := int(ni.Int64)
	return &i
}

// metadataValue encodes metadata for a JSONB column. Empty metadata is
// stored as NULL.
func metadataValue(m entities.Metadata) (any, error) {
	if len(m) == 0 {
		return nil, nil
	}
	encoded, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(encoded), nil
}

func decodeMetadata(raw []byte) (entities.Metadata, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var m entities.Metadata
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// feedbackConditions translates a filter into WHERE expressions.
func feedbackConditions(filter repositories.FeedbackFilter) []exp.Expression {
	var conds []exp.Expression
	switch {
	case filter.ProjectID != nil && !validID(*filter.ProjectID):
		conds = append(conds, goqu.L("FALSE"))
	case filter.ProjectID != nil:
		conds = append(conds, goqu.C("project_id").Eq(*filter.ProjectID))
	case filter.Unassigned:
		conds = append(conds, goqu.C("project_id").IsNull())
	}
	if filter.Rating != nil {
		conds = append(conds, goqu.C("rating").Eq(*filter.Rating))
	}
	if filter.CreatedAfter != nil {
		conds = append(conds, goqu.C("created_at").Gte(*filter.CreatedAfter))
	}
	return conds
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
