package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"formflow-backend/pkg/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// PostgresDatabase stores every collection in PostgreSQL; sharing lists live in a JSONB column
type PostgresDatabase struct {
	db *sql.DB
}

// NewPostgresDatabase opens the pool, trying a couple of connection strategies before giving up
func NewPostgresDatabase(dsn string) (*PostgresDatabase, error) {
	// Sanitize DSN to avoid stray CR/LF from env values
	dsn = strings.TrimSpace(dsn)
	strategies := []string{
		addConnectionParams(dsn, "connect_timeout=10"),
		dsn,
	}

	var lastErr error
	for _, strategy := range strategies {
		db, err := sql.Open("postgres", strategy)
		if err != nil {
			lastErr = err
			continue
		}

		db.SetMaxOpenConns(20)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(5 * time.Minute)
		db.SetConnMaxIdleTime(2 * time.Minute)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err = db.PingContext(ctx)
		cancel()
		if err != nil {
			lastErr = err
			db.Close()
			continue
		}
		return &PostgresDatabase{db: db}, nil
	}
	return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", lastErr)
}

// ApplySchema runs PostgresSchema
func (db *PostgresDatabase) ApplySchema(ctx context.Context) error {
	if _, err := db.db.ExecContext(ctx, PostgresSchema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// MissingTables returns the PostgresTables not present in the current schema
func (db *PostgresDatabase) MissingTables(ctx context.Context) ([]string, error) {
	var missing []string
	for _, table := range PostgresTables {
		var exists bool
		err := db.db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = $1)`,
			table,
		).Scan(&exists)
		if err != nil {
			return nil, fmt.Errorf("failed to check table %s: %w", table, err)
		}
		if !exists {
			missing = append(missing, table)
		}
	}
	return missing, nil
}

// addConnectionParams appends query parameters to the DSN
func addConnectionParams(dsn, params string) string {
	if params == "" {
		return dsn
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&" + params
	}
	// key=value DSNs take space separated params
	if !strings.Contains(dsn, "://") {
		return dsn + " " + strings.ReplaceAll(params, "&", " ")
	}
	return dsn + "?" + params
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// ================= Users =================

const userColumns = `id, name, email, password_hash, COALESCE(workspace_id,''), workspace_access, created_at, updated_at`

func scanUser(row interface{ Scan(...interface{}) error }) (*models.User, error) {
	var u models.User
	var access pq.StringArray
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Password, &u.WorkspaceID, &access, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.WorkspaceAccess = []string(access)
	if u.WorkspaceAccess == nil {
		u.WorkspaceAccess = []string{}
	}
	return &u, nil
}

func (db *PostgresDatabase) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.WorkspaceAccess == nil {
		user.WorkspaceAccess = []string{}
	}
	query := `
		INSERT INTO users (id, name, email, password_hash, workspace_id, workspace_access, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, NOW(), NOW())
		RETURNING created_at, updated_at
	`
	err := db.db.QueryRowContext(ctx, query, user.ID, user.Name, user.Email, user.Password, user.WorkspaceID, pq.Array(user.WorkspaceAccess)).
		Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("email %s: %w", user.Email, ErrDuplicate)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (db *PostgresDatabase) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	u, err := scanUser(db.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, notFound("user")
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

func (db *PostgresDatabase) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	u, err := scanUser(db.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, notFound("user")
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return u, nil
}

func (db *PostgresDatabase) UpdateUser(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		return fmt.Errorf("user ID is required for update")
	}
	query := `
		UPDATE users
		SET name = $1, email = $2, password_hash = $3, workspace_id = NULLIF($4, ''),
		    workspace_access = $5, updated_at = NOW()
		WHERE id = $6
		RETURNING updated_at
	`
	err := db.db.QueryRowContext(ctx, query, user.Name, user.Email, user.Password, user.WorkspaceID, pq.Array(user.WorkspaceAccess), user.ID).
		Scan(&user.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return notFound("user")
		}
		if isUniqueViolation(err) {
			return fmt.Errorf("email %s: %w", user.Email, ErrDuplicate)
		}
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

func (db *PostgresDatabase) ListUsers(ctx context.Context) ([]models.User, error) {
	rows, err := db.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()
	var result []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *u)
	}
	return result, rows.Err()
}

// ================= Workspaces =================

const workspaceColumns = `id, owner_id, shared_with, version, created_at, updated_at`

func scanWorkspace(row interface{ Scan(...interface{}) error }) (*models.Workspace, error) {
	var w models.Workspace
	var shared []byte
	if err := row.Scan(&w.ID, &w.OwnerID, &shared, &w.Version, &w.CreatedAt, &w.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(shared, &w.SharedWith); err != nil {
		return nil, fmt.Errorf("failed to decode shared_with: %w", err)
	}
	if w.SharedWith == nil {
		w.SharedWith = models.SharedWith{}
	}
	return &w, nil
}

func (db *PostgresDatabase) CreateWorkspace(ctx context.Context, ws *models.Workspace) error {
	if ws.ID == "" {
		ws.ID = uuid.New().String()
	}
	if ws.SharedWith == nil {
		ws.SharedWith = models.SharedWith{}
	}
	shared, err := json.Marshal(ws.SharedWith)
	if err != nil {
		return err
	}
	ws.Version = 1
	err = db.db.QueryRowContext(ctx, `
		INSERT INTO workspaces (id, owner_id, shared_with, version, created_at, updated_at)
		VALUES ($1, $2, $3, 1, NOW(), NOW())
		RETURNING created_at, updated_at
	`, ws.ID, ws.OwnerID, shared).Scan(&ws.CreatedAt, &ws.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create workspace: %w", err)
	}
	return nil
}

func (db *PostgresDatabase) GetWorkspace(ctx context.Context, id string) (*models.Workspace, error) {
	w, err := scanWorkspace(db.db.QueryRowContext(ctx, `SELECT `+workspaceColumns+` FROM workspaces WHERE id = $1`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, notFound("workspace")
		}
		return nil, fmt.Errorf("failed to get workspace: %w", err)
	}
	return w, nil
}

func (db *PostgresDatabase) SaveWorkspace(ctx context.Context, ws *models.Workspace) error {
	shared, err := json.Marshal(ws.SharedWith)
	if err != nil {
		return err
	}
	var newVersion int64
	var updatedAt time.Time
	err = db.db.QueryRowContext(ctx, `
		UPDATE workspaces SET shared_with = $1, version = version + 1, updated_at = NOW()
		WHERE id = $2 AND version = $3
		RETURNING version, updated_at
	`, shared, ws.ID, ws.Version).Scan(&newVersion, &updatedAt)
	if err == sql.ErrNoRows {
		// either gone or moved on; tell them apart
		if _, getErr := db.GetWorkspace(ctx, ws.ID); getErr != nil {
			return getErr
		}
		return ErrVersionConflict
	}
	if err != nil {
		return fmt.Errorf("failed to save workspace: %w", err)
	}
	ws.Version = newVersion
	ws.UpdatedAt = updatedAt
	return nil
}

func (db *PostgresDatabase) FindWorkspaces(ctx context.Context, filter WorkspaceFilter) ([]models.Workspace, error) {
	var conds []string
	var args []interface{}
	if filter.OwnerID != "" {
		args = append(args, filter.OwnerID)
		conds = append(conds, fmt.Sprintf("owner_id = $%d", len(args)))
	}
	if filter.MemberID != "" {
		member, err := json.Marshal([]map[string]string{{"user_id": filter.MemberID}})
		if err != nil {
			return nil, err
		}
		args = append(args, filter.MemberID, member)
		conds = append(conds, fmt.Sprintf("(owner_id = $%d OR shared_with @> $%d::jsonb)", len(args)-1, len(args)))
	}
	query := `SELECT ` + workspaceColumns + ` FROM workspaces`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at ASC"

	rows, err := db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to find workspaces: %w", err)
	}
	defer rows.Close()
	var result []models.Workspace
	for rows.Next() {
		w, err := scanWorkspace(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *w)
	}
	return result, rows.Err()
}

// ================= Invites =================

func (db *PostgresDatabase) CreateInvite(ctx context.Context, inv *models.WorkspaceInvite) error {
	_, err := db.db.ExecContext(ctx, `
		INSERT INTO workspace_invites (token, workspace_id, permission, owner_name, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, inv.Token, inv.WorkspaceID, string(inv.Permission), inv.OwnerName, inv.CreatedAt, inv.ExpiresAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("invite token: %w", ErrDuplicate)
		}
		return fmt.Errorf("failed to create invite: %w", err)
	}
	return nil
}

func (db *PostgresDatabase) GetInviteByToken(ctx context.Context, token string) (*models.WorkspaceInvite, error) {
	var inv models.WorkspaceInvite
	var perm string
	err := db.db.QueryRowContext(ctx, `
		SELECT token, workspace_id, permission, owner_name, created_at, expires_at
		FROM workspace_invites WHERE token = $1
	`, token).Scan(&inv.Token, &inv.WorkspaceID, &perm, &inv.OwnerName, &inv.CreatedAt, &inv.ExpiresAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, notFound("invite")
		}
		return nil, fmt.Errorf("failed to get invite: %w", err)
	}
	inv.Permission = models.Permission(perm)
	return &inv, nil
}

func (db *PostgresDatabase) DeleteInvite(ctx context.Context, token string) error {
	res, err := db.db.ExecContext(ctx, `DELETE FROM workspace_invites WHERE token = $1`, token)
	if err != nil {
		return fmt.Errorf("failed to delete invite: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound("invite")
	}
	return nil
}

func (db *PostgresDatabase) DeleteExpiredInvites(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := db.db.ExecContext(ctx, `DELETE FROM workspace_invites WHERE expires_at <= $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired invites: %w", err)
	}
	return res.RowsAffected()
}

// ================= Folders =================

func (db *PostgresDatabase) CreateFolder(ctx context.Context, f *models.Folder) error {
	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	if f.FormIDs == nil {
		f.FormIDs = []string{}
	}
	err := db.db.QueryRowContext(ctx, `
		INSERT INTO folders (id, workspace_id, title, form_ids, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING created_at
	`, f.ID, f.WorkspaceID, f.Title, pq.Array(f.FormIDs), f.CreatedBy).Scan(&f.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("folder title %q: %w", f.Title, ErrDuplicate)
		}
		return fmt.Errorf("failed to create folder: %w", err)
	}
	return nil
}

func scanFolder(row interface{ Scan(...interface{}) error }) (*models.Folder, error) {
	var f models.Folder
	var formIDs pq.StringArray
	if err := row.Scan(&f.ID, &f.WorkspaceID, &f.Title, &formIDs, &f.CreatedBy, &f.CreatedAt); err != nil {
		return nil, err
	}
	f.FormIDs = []string(formIDs)
	return &f, nil
}

func (db *PostgresDatabase) GetFolder(ctx context.Context, id string) (*models.Folder, error) {
	f, err := scanFolder(db.db.QueryRowContext(ctx, `SELECT id, workspace_id, title, form_ids, created_by, created_at FROM folders WHERE id = $1`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, notFound("folder")
		}
		return nil, fmt.Errorf("failed to get folder: %w", err)
	}
	return f, nil
}

func (db *PostgresDatabase) UpdateFolder(ctx context.Context, f *models.Folder) error {
	res, err := db.db.ExecContext(ctx, `UPDATE folders SET title = $1, form_ids = $2 WHERE id = $3`, f.Title, pq.Array(f.FormIDs), f.ID)
	if err != nil {
		return fmt.Errorf("failed to update folder: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound("folder")
	}
	return nil
}

func (db *PostgresDatabase) ListFoldersByWorkspace(ctx context.Context, workspaceID string) ([]models.Folder, error) {
	rows, err := db.db.QueryContext(ctx, `SELECT id, workspace_id, title, form_ids, created_by, created_at FROM folders WHERE workspace_id = $1 ORDER BY created_at ASC`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list folders: %w", err)
	}
	defer rows.Close()
	var result []models.Folder
	for rows.Next() {
		f, err := scanFolder(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *f)
	}
	return result, rows.Err()
}

// ================= Forms =================

const formColumns = `id, workspace_id, folder_id, title, fields, flow, visit_count, created_by, created_at, updated_at`

func scanForm(row interface{ Scan(...interface{}) error }) (*models.Form, error) {
	var f models.Form
	var folderID sql.NullString
	var fields, flow []byte
	if err := row.Scan(&f.ID, &f.WorkspaceID, &folderID, &f.Title, &fields, &flow, &f.VisitCount, &f.CreatedBy, &f.CreatedAt, &f.UpdatedAt); err != nil {
		return nil, err
	}
	if folderID.Valid {
		f.FolderID = &folderID.String
	}
	if err := json.Unmarshal(fields, &f.Fields); err != nil {
		return nil, fmt.Errorf("failed to decode fields: %w", err)
	}
	if err := json.Unmarshal(flow, &f.Flow); err != nil {
		return nil, fmt.Errorf("failed to decode flow: %w", err)
	}
	return &f, nil
}

func marshalFormDocs(f *models.Form) (fields, flow []byte, err error) {
	if f.Fields == nil {
		f.Fields = []models.FormField{}
	}
	if f.Flow == nil {
		f.Flow = []models.FlowStep{}
	}
	if fields, err = json.Marshal(f.Fields); err != nil {
		return nil, nil, err
	}
	if flow, err = json.Marshal(f.Flow); err != nil {
		return nil, nil, err
	}
	return fields, flow, nil
}

func (db *PostgresDatabase) CreateForm(ctx context.Context, f *models.Form) error {
	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	fields, flow, err := marshalFormDocs(f)
	if err != nil {
		return err
	}
	err = db.db.QueryRowContext(ctx, `
		INSERT INTO forms (id, workspace_id, folder_id, title, fields, flow, visit_count, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, 0, $7, NOW(), NOW())
		RETURNING created_at, updated_at
	`, f.ID, f.WorkspaceID, f.FolderID, f.Title, fields, flow, f.CreatedBy).Scan(&f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create form: %w", err)
	}
	return nil
}

func (db *PostgresDatabase) GetForm(ctx context.Context, id string) (*models.Form, error) {
	f, err := scanForm(db.db.QueryRowContext(ctx, `SELECT `+formColumns+` FROM forms WHERE id = $1`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, notFound("form")
		}
		return nil, fmt.Errorf("failed to get form: %w", err)
	}
	return f, nil
}

func (db *PostgresDatabase) UpdateForm(ctx context.Context, f *models.Form) error {
	fields, flow, err := marshalFormDocs(f)
	if err != nil {
		return err
	}
	err = db.db.QueryRowContext(ctx, `
		UPDATE forms SET folder_id = $1, title = $2, fields = $3, flow = $4, updated_at = NOW()
		WHERE id = $5
		RETURNING updated_at
	`, f.FolderID, f.Title, fields, flow, f.ID).Scan(&f.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return notFound("form")
		}
		return fmt.Errorf("failed to update form: %w", err)
	}
	return nil
}

func (db *PostgresDatabase) DeleteForm(ctx context.Context, id string) error {
	res, err := db.db.ExecContext(ctx, `DELETE FROM forms WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete form: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound("form")
	}
	if _, err := db.db.ExecContext(ctx, `UPDATE folders SET form_ids = array_remove(form_ids, $1) WHERE $1 = ANY(form_ids)`, id); err != nil {
		return fmt.Errorf("failed to detach form from folders: %w", err)
	}
	return nil
}

func (db *PostgresDatabase) ListFormsByWorkspace(ctx context.Context, workspaceID string) ([]models.Form, error) {
	rows, err := db.db.QueryContext(ctx, `SELECT `+formColumns+` FROM forms WHERE workspace_id = $1 ORDER BY created_at ASC`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list forms: %w", err)
	}
	defer rows.Close()
	var result []models.Form
	for rows.Next() {
		f, err := scanForm(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *f)
	}
	return result, rows.Err()
}

func (db *PostgresDatabase) IncrementVisitCount(ctx context.Context, id string) error {
	res, err := db.db.ExecContext(ctx, `UPDATE forms SET visit_count = visit_count + 1 WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to count visit: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound("form")
	}
	return nil
}

// ================= Responses =================

const responseColumns = `id, form_id, answers, status, submitted_at, created_at, updated_at`

func scanResponse(row interface{ Scan(...interface{}) error }) (*models.Response, error) {
	var r models.Response
	var answers []byte
	var status string
	var submitted sql.NullTime
	if err := row.Scan(&r.ID, &r.FormID, &answers, &status, &submitted, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(answers, &r.Answers); err != nil {
		return nil, fmt.Errorf("failed to decode answers: %w", err)
	}
	r.Status = models.ResponseStatus(status)
	if submitted.Valid {
		r.SubmittedAt = &submitted.Time
	}
	return &r, nil
}

func (db *PostgresDatabase) CreateResponse(ctx context.Context, r *models.Response) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.Answers == nil {
		r.Answers = []models.Answer{}
	}
	answers, err := json.Marshal(r.Answers)
	if err != nil {
		return err
	}
	err = db.db.QueryRowContext(ctx, `
		INSERT INTO responses (id, form_id, answers, status, submitted_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		RETURNING created_at, updated_at
	`, r.ID, r.FormID, answers, string(r.Status), r.SubmittedAt).Scan(&r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create response: %w", err)
	}
	return nil
}

func (db *PostgresDatabase) GetResponse(ctx context.Context, id string) (*models.Response, error) {
	r, err := scanResponse(db.db.QueryRowContext(ctx, `SELECT `+responseColumns+` FROM responses WHERE id = $1`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, notFound("response")
		}
		return nil, fmt.Errorf("failed to get response: %w", err)
	}
	return r, nil
}

func (db *PostgresDatabase) UpdateResponse(ctx context.Context, r *models.Response) error {
	answers, err := json.Marshal(r.Answers)
	if err != nil {
		return err
	}
	err = db.db.QueryRowContext(ctx, `
		UPDATE responses SET answers = $1, status = $2, submitted_at = $3, updated_at = NOW()
		WHERE id = $4
		RETURNING updated_at
	`, answers, string(r.Status), r.SubmittedAt, r.ID).Scan(&r.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return notFound("response")
		}
		return fmt.Errorf("failed to update response: %w", err)
	}
	return nil
}

func (db *PostgresDatabase) ListResponsesByForm(ctx context.Context, formID string) ([]models.Response, error) {
	rows, err := db.db.QueryContext(ctx, `SELECT `+responseColumns+` FROM responses WHERE form_id = $1 ORDER BY created_at ASC`, formID)
	if err != nil {
		return nil, fmt.Errorf("failed to list responses: %w", err)
	}
	defer rows.Close()
	var result []models.Response
	for rows.Next() {
		r, err := scanResponse(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *r)
	}
	return result, rows.Err()
}

// HealthCheck pings the pool
func (db *PostgresDatabase) HealthCheck(ctx context.Context) error {
	return db.db.PingContext(ctx)
}

func (db *PostgresDatabase) Close() error {
	return db.db.Close()
}

// Stats exposes pool statistics for the debug endpoint
func (db *PostgresDatabase) Stats() sql.DBStats {
	return db.db.Stats()
}
