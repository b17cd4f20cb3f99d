package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"formflow-backend/pkg/models"
)

var (
	// ErrNotFound is wrapped by every store when the requested record does not exist
	ErrNotFound = errors.New("not found")
	// ErrVersionConflict is returned by SaveWorkspace when the stored version moved on
	ErrVersionConflict = errors.New("workspace was modified concurrently")
	// ErrDuplicate is returned when a unique key (user email, invite token) is already taken
	ErrDuplicate = errors.New("duplicate key")
)

// UserStore persists user records (the identity store)
type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateUser(ctx context.Context, user *models.User) error
	ListUsers(ctx context.Context) ([]models.User, error)
}

// WorkspaceFilter selects workspaces. MemberID matches owner OR any SharedWith entry.
type WorkspaceFilter struct {
	OwnerID  string
	MemberID string
}

// WorkspaceStore persists workspaces with their sharing lists
type WorkspaceStore interface {
	CreateWorkspace(ctx context.Context, ws *models.Workspace) error
	GetWorkspace(ctx context.Context, id string) (*models.Workspace, error)
	// SaveWorkspace writes ws only if the stored Version equals ws.Version, then bumps it.
	SaveWorkspace(ctx context.Context, ws *models.Workspace) error
	FindWorkspaces(ctx context.Context, filter WorkspaceFilter) ([]models.Workspace, error)
}

// InviteStore persists invite records keyed by token
type InviteStore interface {
	CreateInvite(ctx context.Context, inv *models.WorkspaceInvite) error
	GetInviteByToken(ctx context.Context, token string) (*models.WorkspaceInvite, error)
	DeleteInvite(ctx context.Context, token string) error
	// DeleteExpiredInvites removes every invite whose expiry is at or before the cutoff
	DeleteExpiredInvites(ctx context.Context, cutoff time.Time) (int64, error)
}

type FolderStore interface {
	CreateFolder(ctx context.Context, f *models.Folder) error
	GetFolder(ctx context.Context, id string) (*models.Folder, error)
	UpdateFolder(ctx context.Context, f *models.Folder) error
	ListFoldersByWorkspace(ctx context.Context, workspaceID string) ([]models.Folder, error)
}

type FormStore interface {
	CreateForm(ctx context.Context, f *models.Form) error
	GetForm(ctx context.Context, id string) (*models.Form, error)
	UpdateForm(ctx context.Context, f *models.Form) error
	DeleteForm(ctx context.Context, id string) error
	ListFormsByWorkspace(ctx context.Context, workspaceID string) ([]models.Form, error)
	// IncrementVisitCount bumps the counter atomically where the backend allows it
	IncrementVisitCount(ctx context.Context, id string) error
}

type ResponseStore interface {
	CreateResponse(ctx context.Context, r *models.Response) error
	GetResponse(ctx context.Context, id string) (*models.Response, error)
	UpdateResponse(ctx context.Context, r *models.Response) error
	ListResponsesByForm(ctx context.Context, formID string) ([]models.Response, error)
}

// DatabaseInterface is the full document store used by the service
type DatabaseInterface interface {
	UserStore
	WorkspaceStore
	InviteStore
	FolderStore
	FormStore
	ResponseStore

	HealthCheck(ctx context.Context) error
	Close() error
}

// DatabaseConfig selects and configures a backend
type DatabaseConfig struct {
	Backend       string // "local", "postgres" or "mongo"
	DataDir       string
	PostgresDSN   string
	MongoURI      string
	MongoDatabase string
	// Redis, when Addr is set, takes over invite storage
	Redis RedisConfig
	Debug bool
}

// NewDatabase opens the backend named by config.Backend, layering Redis invites on top when configured
func NewDatabase(ctx context.Context, config DatabaseConfig) (DatabaseInterface, error) {
	base, err := openBackend(ctx, config)
	if err != nil {
		return nil, err
	}
	if config.Redis.Addr == "" {
		return base, nil
	}
	rc, err := NewRedisClient(ctx, config.Redis)
	if err != nil {
		base.Close()
		return nil, err
	}
	return WithInviteStore(base, NewRedisInviteStore(rc)), nil
}

func openBackend(ctx context.Context, config DatabaseConfig) (DatabaseInterface, error) {
	switch config.Backend {
	case "", "local":
		return NewLocalDatabase(config.DataDir)
	case "postgres":
		if config.PostgresDSN == "" {
			return nil, fmt.Errorf("postgres backend requires POSTGRES_DSN")
		}
		return NewPostgresDatabase(config.PostgresDSN)
	case "mongo":
		if config.MongoURI == "" {
			return nil, fmt.Errorf("mongo backend requires MONGO_URI")
		}
		return NewMongoDatabase(ctx, config.MongoURI, config.MongoDatabase)
	default:
		return nil, fmt.Errorf("unknown store backend %q", config.Backend)
	}
}

func notFound(what string) error {
	return fmt.Errorf("%s %w", what, ErrNotFound)
}
