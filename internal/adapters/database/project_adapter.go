package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"

	"github.com/zatekoja/feedbackhub/internal/domain/entities"
	"github.com/zatekoja/feedbackhub/internal/domain/repositories"
	"github.com/zatekoja/feedbackhub/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/feedbackhub/pkg/errors"
)

var projectColumns = []any{
	goqu.I("p.id"), goqu.I("p.name"), goqu.I("p.domain"), goqu.I("p.description"),
	goqu.I("p.api_key"), goqu.I("p.is_active"), goqu.I("p.created_at"), goqu.I("p.updated_at"),
	goqu.L(`(SELECT COUNT(*) FROM "feedback" AS "f" WHERE "f"."project_id" = "p"."id")`).As("feedback_count"),
}

// ProjectAdapter implements the ProjectRepository interface
type ProjectAdapter struct {
	client *postgres.Client
}

// NewProjectAdapter creates a new project adapter
func NewProjectAdapter(client *postgres.Client) repositories.ProjectRepository {
	return &ProjectAdapter{client: client}
}

func (a *ProjectAdapter) selectProjects() *goqu.SelectDataset {
	return dialect.From(goqu.T(projectsTable).As("p")).Prepared(true).Select(projectColumns...)
}

// Create inserts a project
func (a *ProjectAdapter) Create(ctx context.Context, project *entities.Project) error {
	record := goqu.Record{
		"id":          project.ID,
		"name":        project.Name,
		"domain":      project.Domain,
		"description": nullString(project.Description),
		"api_key":     project.APIKey,
		"is_active":   project.IsActive,
		"created_at":  project.CreatedAt,
		"updated_at":  project.UpdatedAt,
	}

	query, args, err := dialect.Insert(projectsTable).Prepared(true).Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build project insert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return apperrors.NewConflictError("project api key already exists")
		}
		return apperrors.NewInternalError("failed to create project", err)
	}
	return nil
}

// GetByID retrieves a project by ID, active or not
func (a *ProjectAdapter) GetByID(ctx context.Context, id string) (*entities.Project, error) {
	if !validID(id) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("project with id %s not found", id))
	}
	return a.getOne(ctx, goqu.I("p.id").Eq(id), fmt.Sprintf("project with id %s not found", id))
}

// GetByAPIKey retrieves the project owning apiKey
func (a *ProjectAdapter) GetByAPIKey(ctx context.Context, apiKey string) (*entities.Project, error) {
	return a.getOne(ctx, goqu.I("p.api_key").Eq(apiKey), "project not found for api key")
}

func (a *ProjectAdapter) getOne(ctx context.Context, cond exp.Expression, notFound string) (*entities.Project, error) {
	query, args, err := a.selectProjects().Where(cond).ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build project query", err)
	}

	project, err := scanProject(a.client.DB().QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError(notFound)
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get project", err)
	}
	return project, nil
}

// GetByIDs retrieves the projects that exist among ids. Order is not
// guaranteed and missing ids are skipped.
func (a *ProjectAdapter) GetByIDs(ctx context.Context, ids []string) ([]*entities.Project, error) {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if validID(id) {
			valid = append(valid, id)
		}
	}
	if len(valid) == 0 {
		return []*entities.Project{}, nil
	}

	query, args, err := a.selectProjects().Where(goqu.I("p.id").In(valid)).ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build project batch query", err)
	}
	return a.queryProjects(ctx, query, args)
}

// List returns projects ordered by name
func (a *ProjectAdapter) List(ctx context.Context, filter repositories.ProjectFilter) ([]*entities.Project, error) {
	ds := a.selectProjects().Order(goqu.I("p.name").Asc(), goqu.I("p.created_at").Asc())
	if filter.ActiveOnly {
		ds = ds.Where(goqu.I("p.is_active").IsTrue())
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build project list query", err)
	}
	return a.queryProjects(ctx, query, args)
}

func (a *ProjectAdapter) queryProjects(ctx context.Context, query string, args []any) ([]*entities.Project, error) {
	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to query projects", err)
	}
	defer rows.Close()

	projects := make([]*entities.Project, 0)
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan project", err)
		}
		projects = append(projects, project)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to query projects", err)
	}
	return projects, nil
}

// Update persists name, domain, description and active state
func (a *ProjectAdapter) Update(ctx context.Context, project *entities.Project) error {
	project.UpdatedAt = time.Now().UTC()

	return a.update(ctx, project.ID, goqu.Record{
		"name":        project.Name,
		"domain":      project.Domain,
		"description": nullString(project.Description),
		"is_active":   project.IsActive,
		"updated_at":  project.UpdatedAt,
	})
}

// UpdateAPIKey replaces the project's API key
func (a *ProjectAdapter) UpdateAPIKey(ctx context.Context, id, apiKey string) error {
	return a.update(ctx, id, goqu.Record{
		"api_key":    apiKey,
		"updated_at": time.Now().UTC(),
	})
}

func (a *ProjectAdapter) update(ctx context.Context, id string, record goqu.Record) error {
	notFound := apperrors.NewNotFoundError(fmt.Sprintf("project with id %s not found", id))
	if !validID(id) {
		return notFound
	}

	query, args, err := dialect.Update(projectsTable).Prepared(true).
		Set(record).
		Where(goqu.C("id").Eq(id)).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build project update query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.NewConflictError("project api key already exists")
		}
		return apperrors.NewInternalError("failed to update project", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}
	if rows == 0 {
		return notFound
	}
	return nil
}

// Delete removes a project. Its feedback keeps the dangling project_id.
func (a *ProjectAdapter) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return apperrors.NewNotFoundError(fmt.Sprintf("project with id %s not found", id))
	}

	query, args, err := dialect.Delete(projectsTable).Prepared(true).Where(goqu.C("id").Eq(id)).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build project delete query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to delete project", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}
	if rows == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("project with id %s not found", id))
	}
	return nil
}

// Count returns the number of projects
func (a *ProjectAdapter) Count(ctx context.Context, filter repositories.ProjectFilter) (int, error) {
	ds := dialect.From(projectsTable).Prepared(true).Select(goqu.COUNT("*"))
	if filter.ActiveOnly {
		ds = ds.Where(goqu.C("is_active").IsTrue())
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return 0, apperrors.NewInternalError("failed to build project count query", err)
	}

	var count int
	if err := a.client.DB().QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, apperrors.NewInternalError("failed to count projects", err)
	}
	return count, nil
}

func scanProject(row rowScanner) (*entities.Project, error) {
	var (
		project     entities.Project
		description sql.NullString
	)

	err := row.Scan(
		&project.ID,
		&project.Name,
		&project.Domain,
		&description,
		&project.APIKey,
		&project.IsActive,
		&project.CreatedAt,
		&project.UpdatedAt,
		&project.FeedbackCount,
	)
	if err != nil {
		return nil, err
	}

	project.Description = description.String
	return &project, nil
}
