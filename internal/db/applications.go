package db

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/application-tracker/internal/types"
)

const insertApplication = `INSERT INTO applications (` + applicationColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)`

// CreateApplications inserts every record in one transaction.
func (db *DB) CreateApplications(ctx context.Context, apps []types.Application) error {
	if len(apps) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for i := range apps {
		a := &apps[i]
		history, interactions, err := encodeSequences(a)
		if err != nil {
			return err
		}
		batch.Queue(insertApplication,
			a.ID, a.OwnerID, a.CompanyName, a.JobTitle, string(a.Portal), a.JobLink, a.Location,
			string(a.EmploymentType), a.DateApplied, string(a.Status), string(a.Source), a.SalaryRange,
			a.RecruiterName, a.RecruiterEmail, a.RecruiterPhone, a.FollowUpDate, a.Notes, a.ResumeVersion,
			history, interactions, a.CreatedAt, a.UpdatedAt,
		)
	}

	err := pgx.BeginFunc(ctx, db.pool, func(tx pgx.Tx) error {
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return fmt.Errorf("failed to insert applications: %w", classify(err))
	}
	return nil
}

// GetApplication retrieves an application by ID, scoped to its owner
func (db *DB) GetApplication(ctx context.Context, owner, id uuid.UUID) (*types.Application, error) {
	var row applicationRow
	err := pgxscan.Get(ctx, db.pool, &row,
		`SELECT `+applicationColumns+` FROM applications WHERE id = $1 AND user_id = $2`,
		id, owner,
	)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, types.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get application: %w", classify(err))
	}
	app, err := row.toDomain()
	if err != nil {
		return nil, err
	}
	return &app, nil
}

// MutateApplication locks the row, applies fn and writes the result back in
// the same transaction.
func (db *DB) MutateApplication(ctx context.Context, owner, id uuid.UUID, fn func(*types.Application) error) (*types.Application, error) {
	var out types.Application
	err := pgx.BeginFunc(ctx, db.pool, func(tx pgx.Tx) error {
		var row applicationRow
		err := pgxscan.Get(ctx, tx, &row,
			`SELECT `+applicationColumns+` FROM applications WHERE id = $1 AND user_id = $2 FOR UPDATE`,
			id, owner,
		)
		if err != nil {
			return err
		}
		app, err := row.toDomain()
		if err != nil {
			return err
		}
		if err := fn(&app); err != nil {
			return err
		}
		history, interactions, err := encodeSequences(&app)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx,
			`UPDATE applications SET
				company_name = $3, job_title = $4, job_portal = $5, job_link = $6, location = $7,
				employment_type = $8, date_applied = $9, status = $10, source = $11, salary_range = $12,
				recruiter_name = $13, recruiter_email = $14, recruiter_phone = $15, follow_up_date = $16,
				notes = $17, resume_version = $18, status_history = $19, interactions = $20, updated_at = $21
			 WHERE id = $1 AND user_id = $2`,
			id, owner, app.CompanyName, app.JobTitle, string(app.Portal), app.JobLink, app.Location,
			string(app.EmploymentType), app.DateApplied, string(app.Status), string(app.Source), app.SalaryRange,
			app.RecruiterName, app.RecruiterEmail, app.RecruiterPhone, app.FollowUpDate,
			app.Notes, app.ResumeVersion, history, interactions, app.UpdatedAt,
		)
		out = app
		return err
	})
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, types.ErrNotFound
		}
		return nil, fmt.Errorf("failed to update application: %w", classify(err))
	}
	return &out, nil
}

// DeleteApplication hard-deletes an application owned by owner.
func (db *DB) DeleteApplication(ctx context.Context, owner, id uuid.UUID) error {
	tag, err := db.pool.Exec(ctx, `DELETE FROM applications WHERE id = $1 AND user_id = $2`, id, owner)
	if err != nil {
		return fmt.Errorf("failed to delete application: %w", classify(err))
	}
	if tag.RowsAffected() == 0 {
		return types.ErrNotFound
	}
	return nil
}

// ListApplications lists owner's applications matching c together with the
// unpaginated total. Both queries run concurrently.
func (db *DB) ListApplications(ctx context.Context, owner uuid.UUID, c types.ListCriteria) ([]types.Application, int, error) {
	where, args := buildListFilter(owner, c)

	var (
		total int
		rows  []applicationRow
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return db.pool.QueryRow(gctx, `SELECT COUNT(*) FROM applications `+where, args...).Scan(&total)
	})
	g.Go(func() error {
		pageArgs := append(slices.Clone(args), c.Limit, c.Offset())
		query := fmt.Sprintf(`SELECT %s FROM applications %s ORDER BY %s LIMIT $%d OFFSET $%d`,
			applicationColumns, where, orderClause(c), len(args)+1, len(args)+2)
		return pgxscan.Select(gctx, db.pool, &rows, query, pageArgs...)
	})
	if err := g.Wait(); err != nil {
		return nil, 0, fmt.Errorf("failed to list applications: %w", classify(err))
	}

	apps, err := rowsToDomain(rows)
	if err != nil {
		return nil, 0, err
	}
	return apps, total, nil
}

// ListDueFollowUps returns owner's non-terminal applications whose follow-up
// date is at or before asOf, most overdue first.
func (db *DB) ListDueFollowUps(ctx context.Context, owner uuid.UUID, asOf time.Time) ([]types.Application, error) {
	var rows []applicationRow
	err := pgxscan.Select(ctx, db.pool, &rows,
		`SELECT `+applicationColumns+` FROM applications
		 WHERE user_id = $1 AND follow_up_date IS NOT NULL AND follow_up_date <= $2
		   AND status <> ALL($3)
		 ORDER BY follow_up_date ASC, id ASC`,
		owner, asOf, terminalStatuses(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list follow-ups: %w", classify(err))
	}
	return rowsToDomain(rows)
}

// ListAllApplications returns all of owner's applications in the default list order.
func (db *DB) ListAllApplications(ctx context.Context, owner uuid.UUID) ([]types.Application, error) {
	var rows []applicationRow
	err := pgxscan.Select(ctx, db.pool, &rows,
		`SELECT `+applicationColumns+` FROM applications WHERE user_id = $1 ORDER BY `+orderClause(types.DefaultListCriteria()),
		owner,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to export applications: %w", classify(err))
	}
	return rowsToDomain(rows)
}

func terminalStatuses() []string {
	var out []string
	for _, s := range types.Statuses {
		if s.Terminal() {
			out = append(out, string(s))
		}
	}
	return out
}

// buildListFilter builds the WHERE clause for c. The owner predicate is
// always first and always present.
func buildListFilter(owner uuid.UUID, c types.ListCriteria) (string, []any) {
	conditions := []string{"user_id = $1"}
	args := []any{owner}
	add := func(format string, value any) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf(format, len(args)))
	}

	if c.Portal != "" {
		add("job_portal = $%d", string(c.Portal))
	}
	if c.Status != "" {
		add("status = $%d", string(c.Status))
	}
	if c.EmploymentType != "" {
		add("employment_type = $%d", string(c.EmploymentType))
	}
	if c.Location != "" {
		add("location ILIKE $%d", containsPattern(c.Location))
	}
	if c.DateFrom != nil {
		add("date_applied >= $%d", *c.DateFrom)
	}
	if c.DateTo != nil {
		add("date_applied <= $%d", *c.DateTo)
	}
	if c.Search != "" {
		args = append(args, containsPattern(c.Search))
		n := len(args)
		conditions = append(conditions, fmt.Sprintf("(company_name ILIKE $%d OR job_title ILIKE $%d)", n, n))
	}
	return "WHERE " + strings.Join(conditions, " AND "), args
}

var sortColumns = map[string]string{
	types.SortDateApplied:  "date_applied",
	types.SortCompanyName:  `company_name COLLATE "C"`,
	types.SortJobTitle:     `job_title COLLATE "C"`,
	types.SortStatus:       `status COLLATE "C"`,
	types.SortFollowUpDate: "follow_up_date",
	types.SortCreatedAt:    "created_at",
	types.SortUpdatedAt:    "updated_at",
}

// orderClause renders a total ordering matching types.ListCriteria.Less.
func orderClause(c types.ListCriteria) string {
	col, ok := sortColumns[c.SortBy]
	if !ok {
		col = sortColumns[types.SortDateApplied]
	}
	dir := "ASC"
	if c.Descending {
		dir = "DESC"
	}
	nulls := ""
	if c.SortBy == types.SortFollowUpDate {
		nulls = " NULLS LAST"
	}
	return fmt.Sprintf("%s %s%s, id ASC", col, dir, nulls)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern turns s into an ILIKE pattern matching s literally anywhere.
func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}
