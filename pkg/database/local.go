package database

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"formflow-backend/pkg/models"

	"github.com/google/uuid"
)

// LocalDatabase is a file-backed document store: one JSON file per collection.
// Suitable for development and tests; every call re-reads the file under a mutex.
type LocalDatabase struct {
	dataDir string
	mu      sync.Mutex
}

const (
	usersFile      = "users.json"
	workspacesFile = "workspaces.json"
	invitesFile    = "invites.json"
	foldersFile    = "folders.json"
	formsFile      = "forms.json"
	responsesFile  = "responses.json"
)

// NewLocalDatabase creates the data directory if needed
func NewLocalDatabase(dataDir string) (*LocalDatabase, error) {
	if dataDir == "" {
		dataDir = "./data"
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		// read-only filesystems (serverless) still allow /tmp
		fallback := filepath.Join(os.TempDir(), "formflow-data")
		if err2 := os.MkdirAll(fallback, 0755); err2 != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		dataDir = fallback
	}
	return &LocalDatabase{dataDir: dataDir}, nil
}

// ================= Users =================

func (db *LocalDatabase) CreateUser(ctx context.Context, user *models.User) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	users, err := loadAll[models.User](db, usersFile)
	if err != nil {
		return err
	}
	for _, u := range users {
		if strings.EqualFold(u.Email, user.Email) {
			return fmt.Errorf("email %s: %w", user.Email, ErrDuplicate)
		}
	}
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.WorkspaceAccess == nil {
		user.WorkspaceAccess = []string{}
	}
	return saveAll(db, usersFile, append(users, *user))
}

func (db *LocalDatabase) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return findOne(db, usersFile, "user", func(u models.User) bool { return u.ID == id })
}

func (db *LocalDatabase) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return findOne(db, usersFile, "user", func(u models.User) bool { return strings.EqualFold(u.Email, email) })
}

func (db *LocalDatabase) UpdateUser(ctx context.Context, user *models.User) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	users, err := loadAll[models.User](db, usersFile)
	if err != nil {
		return err
	}
	idx := -1
	for i, u := range users {
		if u.ID == user.ID {
			idx = i
		} else if strings.EqualFold(u.Email, user.Email) {
			return fmt.Errorf("email %s: %w", user.Email, ErrDuplicate)
		}
	}
	if idx < 0 {
		return notFound("user")
	}
	user.UpdatedAt = time.Now().UTC()
	users[idx] = *user
	return saveAll(db, usersFile, users)
}

func (db *LocalDatabase) ListUsers(ctx context.Context) ([]models.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return loadAll[models.User](db, usersFile)
}

// ================= Workspaces =================

func (db *LocalDatabase) CreateWorkspace(ctx context.Context, ws *models.Workspace) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	list, err := loadAll[models.Workspace](db, workspacesFile)
	if err != nil {
		return err
	}
	if ws.ID == "" {
		ws.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	ws.CreatedAt = now
	ws.UpdatedAt = now
	ws.Version = 1
	if ws.SharedWith == nil {
		ws.SharedWith = models.SharedWith{}
	}
	return saveAll(db, workspacesFile, append(list, *ws))
}

func (db *LocalDatabase) GetWorkspace(ctx context.Context, id string) (*models.Workspace, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return findOne(db, workspacesFile, "workspace", func(w models.Workspace) bool { return w.ID == id })
}

func (db *LocalDatabase) SaveWorkspace(ctx context.Context, ws *models.Workspace) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	list, err := loadAll[models.Workspace](db, workspacesFile)
	if err != nil {
		return err
	}
	for i := range list {
		if list[i].ID != ws.ID {
			continue
		}
		if list[i].Version != ws.Version {
			return ErrVersionConflict
		}
		ws.Version++
		ws.UpdatedAt = time.Now().UTC()
		list[i] = *ws
		return saveAll(db, workspacesFile, list)
	}
	return notFound("workspace")
}

func (db *LocalDatabase) FindWorkspaces(ctx context.Context, filter WorkspaceFilter) ([]models.Workspace, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	list, err := loadAll[models.Workspace](db, workspacesFile)
	if err != nil {
		return nil, err
	}
	var result []models.Workspace
	for _, w := range list {
		if filter.OwnerID != "" && w.OwnerID != filter.OwnerID {
			continue
		}
		if filter.MemberID != "" && w.OwnerID != filter.MemberID && !w.SharedWith.Contains(filter.MemberID) {
			continue
		}
		result = append(result, w)
	}
	return result, nil
}

// ================= Invites =================

func (db *LocalDatabase) CreateInvite(ctx context.Context, inv *models.WorkspaceInvite) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	list, err := loadAll[models.WorkspaceInvite](db, invitesFile)
	if err != nil {
		return err
	}
	for _, existing := range list {
		if existing.Token == inv.Token {
			return fmt.Errorf("invite token: %w", ErrDuplicate)
		}
	}
	return saveAll(db, invitesFile, append(list, *inv))
}

func (db *LocalDatabase) GetInviteByToken(ctx context.Context, token string) (*models.WorkspaceInvite, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return findOne(db, invitesFile, "invite", func(i models.WorkspaceInvite) bool { return i.Token == token })
}

func (db *LocalDatabase) DeleteInvite(ctx context.Context, token string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	removed, err := removeWhere(db, invitesFile, func(i models.WorkspaceInvite) bool { return i.Token == token })
	if err != nil {
		return err
	}
	if removed == 0 {
		return notFound("invite")
	}
	return nil
}

func (db *LocalDatabase) DeleteExpiredInvites(ctx context.Context, cutoff time.Time) (int64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return removeWhere(db, invitesFile, func(i models.WorkspaceInvite) bool { return i.ExpiredAt(cutoff) })
}

// ================= Folders =================

func (db *LocalDatabase) CreateFolder(ctx context.Context, f *models.Folder) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	list, err := loadAll[models.Folder](db, foldersFile)
	if err != nil {
		return err
	}
	for _, existing := range list {
		if existing.WorkspaceID == f.WorkspaceID && existing.Title == f.Title {
			return fmt.Errorf("folder title %q: %w", f.Title, ErrDuplicate)
		}
	}
	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	f.CreatedAt = time.Now().UTC()
	if f.FormIDs == nil {
		f.FormIDs = []string{}
	}
	return saveAll(db, foldersFile, append(list, *f))
}

func (db *LocalDatabase) GetFolder(ctx context.Context, id string) (*models.Folder, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return findOne(db, foldersFile, "folder", func(f models.Folder) bool { return f.ID == id })
}

func (db *LocalDatabase) UpdateFolder(ctx context.Context, f *models.Folder) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return replaceOne(db, foldersFile, "folder", *f, func(x models.Folder) bool { return x.ID == f.ID })
}

func (db *LocalDatabase) ListFoldersByWorkspace(ctx context.Context, workspaceID string) ([]models.Folder, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return filterAll(db, foldersFile, func(f models.Folder) bool { return f.WorkspaceID == workspaceID })
}

// ================= Forms =================

func (db *LocalDatabase) CreateForm(ctx context.Context, f *models.Form) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	list, err := loadAll[models.Form](db, formsFile)
	if err != nil {
		return err
	}
	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	f.CreatedAt = now
	f.UpdatedAt = now
	return saveAll(db, formsFile, append(list, *f))
}

func (db *LocalDatabase) GetForm(ctx context.Context, id string) (*models.Form, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return findOne(db, formsFile, "form", func(f models.Form) bool { return f.ID == id })
}

func (db *LocalDatabase) UpdateForm(ctx context.Context, f *models.Form) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	f.UpdatedAt = time.Now().UTC()
	return replaceOne(db, formsFile, "form", *f, func(x models.Form) bool { return x.ID == f.ID })
}

func (db *LocalDatabase) DeleteForm(ctx context.Context, id string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	removed, err := removeWhere(db, formsFile, func(f models.Form) bool { return f.ID == id })
	if err != nil {
		return err
	}
	if removed == 0 {
		return notFound("form")
	}
	// drop dangling folder references
	folders, err := loadAll[models.Folder](db, foldersFile)
	if err != nil {
		return err
	}
	for i := range folders {
		kept := folders[i].FormIDs[:0]
		for _, fid := range folders[i].FormIDs {
			if fid != id {
				kept = append(kept, fid)
			}
		}
		folders[i].FormIDs = kept
	}
	return saveAll(db, foldersFile, folders)
}

func (db *LocalDatabase) ListFormsByWorkspace(ctx context.Context, workspaceID string) ([]models.Form, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return filterAll(db, formsFile, func(f models.Form) bool { return f.WorkspaceID == workspaceID })
}

func (db *LocalDatabase) IncrementVisitCount(ctx context.Context, id string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	list, err := loadAll[models.Form](db, formsFile)
	if err != nil {
		return err
	}
	for i := range list {
		if list[i].ID == id {
			list[i].VisitCount++
			return saveAll(db, formsFile, list)
		}
	}
	return notFound("form")
}

// ================= Responses =================

func (db *LocalDatabase) CreateResponse(ctx context.Context, r *models.Response) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	list, err := loadAll[models.Response](db, responsesFile)
	if err != nil {
		return err
	}
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	r.CreatedAt = now
	r.UpdatedAt = now
	return saveAll(db, responsesFile, append(list, *r))
}

func (db *LocalDatabase) GetResponse(ctx context.Context, id string) (*models.Response, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return findOne(db, responsesFile, "response", func(r models.Response) bool { return r.ID == id })
}

func (db *LocalDatabase) UpdateResponse(ctx context.Context, r *models.Response) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	r.UpdatedAt = time.Now().UTC()
	return replaceOne(db, responsesFile, "response", *r, func(x models.Response) bool { return x.ID == r.ID })
}

func (db *LocalDatabase) ListResponsesByForm(ctx context.Context, formID string) ([]models.Response, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return filterAll(db, responsesFile, func(r models.Response) bool { return r.FormID == formID })
}

// HealthCheck verifies the data directory is still reachable
func (db *LocalDatabase) HealthCheck(ctx context.Context) error {
	if _, err := os.Stat(db.dataDir); err != nil {
		return fmt.Errorf("local data directory unavailable: %w", err)
	}
	return nil
}

func (db *LocalDatabase) Close() error {
	return nil
}

// ================= helpers (callers hold db.mu) =================

func (db *LocalDatabase) filePath(name string) string {
	return filepath.Join(db.dataDir, name)
}

func loadAll[T any](db *LocalDatabase, name string) ([]T, error) {
	data, err := os.ReadFile(db.filePath(name))
	if os.IsNotExist(err) {
		return []T{}, nil
	}
	if err != nil {
		return nil, err
	}

	var items []T
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", name, err)
	}
	return items, nil
}

func saveAll[T any](db *LocalDatabase, name string, items []T) error {
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return err
	}
	// write-then-rename so a crash never leaves a truncated collection
	tmp := db.filePath(name + ".tmp")
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, db.filePath(name))
}

func findOne[T any](db *LocalDatabase, name, what string, match func(T) bool) (*T, error) {
	items, err := loadAll[T](db, name)
	if err != nil {
		return nil, err
	}
	for i := range items {
		if match(items[i]) {
			return &items[i], nil
		}
	}
	return nil, notFound(what)
}

func filterAll[T any](db *LocalDatabase, name string, match func(T) bool) ([]T, error) {
	items, err := loadAll[T](db, name)
	if err != nil {
		return nil, err
	}
	var result []T
	for _, it := range items {
		if match(it) {
			result = append(result, it)
		}
	}
	return result, nil
}

func replaceOne[T any](db *LocalDatabase, name, what string, item T, match func(T) bool) error {
	items, err := loadAll[T](db, name)
	if err != nil {
		return err
	}
	for i := range items {
		if match(items[i]) {
			items[i] = item
			return saveAll(db, name, items)
		}
	}
	return notFound(what)
}

func removeWhere[T any](db *LocalDatabase, name string, match func(T) bool) (int64, error) {
	items, err := loadAll[T](db, name)
	if err != nil {
		return 0, err
	}
	kept := make([]T, 0, len(items))
	var removed int64
	for _, it := range items {
		if match(it) {
			removed++
			continue
		}
		kept = append(kept, it)
	}
	if removed == 0 {
		return 0, nil
	}
	return removed, saveAll(db, name, kept)
}
