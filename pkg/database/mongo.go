package database

import (
	"context"
	"fmt"
	"time"

	"formflow-backend/pkg/models"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	usersCollection      = "users"
	workspacesCollection = "workspaces"
	invitesCollection    = "workspace_invites"
	foldersCollection    = "folders"
	formsCollection      = "forms"
	responsesCollection  = "responses"
)

// MongoDatabase keeps each entity in its own collection, string ids in _id
type MongoDatabase struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewMongoDatabase connects, pings and ensures indexes
func NewMongoDatabase(ctx context.Context, uri, dbName string) (*MongoDatabase, error) {
	if dbName == "" {
		dbName = "formflow"
	}
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	m := &MongoDatabase{client: client, db: client.Database(dbName)}
	if err := m.ensureIndexes(connectCtx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return m, nil
}

func (m *MongoDatabase) ensureIndexes(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		usersCollection: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true).
				SetCollation(&options.Collation{Locale: "en", Strength: 2})},
		},
		workspacesCollection: {
			{Keys: bson.D{{Key: "owner_id", Value: 1}}},
			{Keys: bson.D{{Key: "shared_with.user_id", Value: 1}}},
		},
		invitesCollection: {
			{Keys: bson.D{{Key: "expires_at", Value: 1}}},
		},
		foldersCollection: {
			{Keys: bson.D{{Key: "workspace_id", Value: 1}, {Key: "title", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		formsCollection: {
			{Keys: bson.D{{Key: "workspace_id", Value: 1}}},
		},
		responsesCollection: {
			{Keys: bson.D{{Key: "form_id", Value: 1}}},
		},
	}
	for name, idx := range indexes {
		if _, err := m.db.Collection(name).Indexes().CreateMany(ctx, idx); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", name, err)
		}
	}
	return nil
}

func (m *MongoDatabase) col(name string) *mongo.Collection {
	return m.db.Collection(name)
}

// findByID decodes the document with _id == id into out
func (m *MongoDatabase) findByID(ctx context.Context, collection, what, id string, out interface{}) error {
	err := m.col(collection).FindOne(ctx, bson.M{"_id": id}).Decode(out)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return notFound(what)
		}
		return fmt.Errorf("failed to find %s: %w", what, err)
	}
	return nil
}

// replaceByID overwrites the document with _id == id
func (m *MongoDatabase) replaceByID(ctx context.Context, collection, what, id string, doc interface{}) error {
	res, err := m.col(collection).ReplaceOne(ctx, bson.M{"_id": id}, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%s: %w", what, ErrDuplicate)
		}
		return fmt.Errorf("failed to update %s: %w", what, err)
	}
	if res.MatchedCount == 0 {
		return notFound(what)
	}
	return nil
}

func findAll[T any](ctx context.Context, c *mongo.Collection, filter interface{}) ([]T, error) {
	cursor, err := c.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	var out []T
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ================= Users =================

func (m *MongoDatabase) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.WorkspaceAccess == nil {
		user.WorkspaceAccess = []string{}
	}
	if _, err := m.col(usersCollection).InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("email %s: %w", user.Email, ErrDuplicate)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (m *MongoDatabase) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	if err := m.findByID(ctx, usersCollection, "user", id, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (m *MongoDatabase) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	opts := options.FindOne().SetCollation(&options.Collation{Locale: "en", Strength: 2})
	err := m.col(usersCollection).FindOne(ctx, bson.M{"email": email}, opts).Decode(&u)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, notFound("user")
		}
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	return &u, nil
}

func (m *MongoDatabase) UpdateUser(ctx context.Context, user *models.User) error {
	user.UpdatedAt = time.Now().UTC()
	return m.replaceByID(ctx, usersCollection, "user", user.ID, user)
}

func (m *MongoDatabase) ListUsers(ctx context.Context) ([]models.User, error) {
	users, err := findAll[models.User](ctx, m.col(usersCollection), bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// ================= Workspaces =================

func (m *MongoDatabase) CreateWorkspace(ctx context.Context, ws *models.Workspace) error {
	if ws.ID == "" {
		ws.ID = uuid.New().String()
	}
	if ws.SharedWith == nil {
		ws.SharedWith = models.SharedWith{}
	}
	now := time.Now().UTC()
	ws.CreatedAt = now
	ws.UpdatedAt = now
	ws.Version = 1
	if _, err := m.col(workspacesCollection).InsertOne(ctx, ws); err != nil {
		return fmt.Errorf("failed to create workspace: %w", err)
	}
	return nil
}

func (m *MongoDatabase) GetWorkspace(ctx context.Context, id string) (*models.Workspace, error) {
	var ws models.Workspace
	if err := m.findByID(ctx, workspacesCollection, "workspace", id, &ws); err != nil {
		return nil, err
	}
	if ws.SharedWith == nil {
		ws.SharedWith = models.SharedWith{}
	}
	return &ws, nil
}

func (m *MongoDatabase) SaveWorkspace(ctx context.Context, ws *models.Workspace) error {
	now := time.Now().UTC()
	res, err := m.col(workspacesCollection).UpdateOne(ctx,
		bson.M{"_id": ws.ID, "version": ws.Version},
		bson.M{
			"$set": bson.M{"shared_with": ws.SharedWith, "updated_at": now},
			"$inc": bson.M{"version": 1},
		},
	)
	if err != nil {
		return fmt.Errorf("failed to save workspace: %w", err)
	}
	if res.MatchedCount == 0 {
		if _, getErr := m.GetWorkspace(ctx, ws.ID); getErr != nil {
			return getErr
		}
		return ErrVersionConflict
	}
	ws.Version++
	ws.UpdatedAt = now
	return nil
}

func (m *MongoDatabase) FindWorkspaces(ctx context.Context, filter WorkspaceFilter) ([]models.Workspace, error) {
	q := bson.M{}
	if filter.OwnerID != "" {
		q["owner_id"] = filter.OwnerID
	}
	if filter.MemberID != "" {
		q["$or"] = bson.A{
			bson.M{"owner_id": filter.MemberID},
			bson.M{"shared_with.user_id": filter.MemberID},
		}
	}
	list, err := findAll[models.Workspace](ctx, m.col(workspacesCollection), q)
	if err != nil {
		return nil, fmt.Errorf("failed to find workspaces: %w", err)
	}
	return list, nil
}

// ================= Invites =================

func (m *MongoDatabase) CreateInvite(ctx context.Context, inv *models.WorkspaceInvite) error {
	if _, err := m.col(invitesCollection).InsertOne(ctx, inv); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("invite token: %w", ErrDuplicate)
		}
		return fmt.Errorf("failed to create invite: %w", err)
	}
	return nil
}

func (m *MongoDatabase) GetInviteByToken(ctx context.Context, token string) (*models.WorkspaceInvite, error) {
	var inv models.WorkspaceInvite
	if err := m.findByID(ctx, invitesCollection, "invite", token, &inv); err != nil {
		return nil, err
	}
	return &inv, nil
}

func (m *MongoDatabase) DeleteInvite(ctx context.Context, token string) error {
	res, err := m.col(invitesCollection).DeleteOne(ctx, bson.M{"_id": token})
	if err != nil {
		return fmt.Errorf("failed to delete invite: %w", err)
	}
	if res.DeletedCount == 0 {
		return notFound("invite")
	}
	return nil
}

func (m *MongoDatabase) DeleteExpiredInvites(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := m.col(invitesCollection).DeleteMany(ctx, bson.M{"expires_at": bson.M{"$lte": cutoff}})
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired invites: %w", err)
	}
	return res.DeletedCount, nil
}

// ================= Folders =================

func (m *MongoDatabase) CreateFolder(ctx context.Context, f *models.Folder) error {
	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	if f.FormIDs == nil {
		f.FormIDs = []string{}
	}
	f.CreatedAt = time.Now().UTC()
	if _, err := m.col(foldersCollection).InsertOne(ctx, f); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("folder title %q: %w", f.Title, ErrDuplicate)
		}
		return fmt.Errorf("failed to create folder: %w", err)
	}
	return nil
}

func (m *MongoDatabase) GetFolder(ctx context.Context, id string) (*models.Folder, error) {
	var f models.Folder
	if err := m.findByID(ctx, foldersCollection, "folder", id, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

func (m *MongoDatabase) UpdateFolder(ctx context.Context, f *models.Folder) error {
	return m.replaceByID(ctx, foldersCollection, "folder", f.ID, f)
}

func (m *MongoDatabase) ListFoldersByWorkspace(ctx context.Context, workspaceID string) ([]models.Folder, error) {
	list, err := findAll[models.Folder](ctx, m.col(foldersCollection), bson.M{"workspace_id": workspaceID})
	if err != nil {
		return nil, fmt.Errorf("failed to list folders: %w", err)
	}
	return list, nil
}

// ================= Forms =================

func (m *MongoDatabase) CreateForm(ctx context.Context, f *models.Form) error {
	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	if f.Fields == nil {
		f.Fields = []models.FormField{}
	}
	if f.Flow == nil {
		f.Flow = []models.FlowStep{}
	}
	now := time.Now().UTC()
	f.CreatedAt = now
	f.UpdatedAt = now
	if _, err := m.col(formsCollection).InsertOne(ctx, f); err != nil {
		return fmt.Errorf("failed to create form: %w", err)
	}
	return nil
}

func (m *MongoDatabase) GetForm(ctx context.Context, id string) (*models.Form, error) {
	var f models.Form
	if err := m.findByID(ctx, formsCollection, "form", id, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

func (m *MongoDatabase) UpdateForm(ctx context.Context, f *models.Form) error {
	f.UpdatedAt = time.Now().UTC()
	return m.replaceByID(ctx, formsCollection, "form", f.ID, f)
}

func (m *MongoDatabase) DeleteForm(ctx context.Context, id string) error {
	res, err := m.col(formsCollection).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete form: %w", err)
	}
	if res.DeletedCount == 0 {
		return notFound("form")
	}
	_, err = m.col(foldersCollection).UpdateMany(ctx,
		bson.M{"form_ids": id},
		bson.M{"$pull": bson.M{"form_ids": id}},
	)
	if err != nil {
		return fmt.Errorf("failed to detach form from folders: %w", err)
	}
	return nil
}

func (m *MongoDatabase) ListFormsByWorkspace(ctx context.Context, workspaceID string) ([]models.Form, error) {
	list, err := findAll[models.Form](ctx, m.col(formsCollection), bson.M{"workspace_id": workspaceID})
	if err != nil {
		return nil, fmt.Errorf("failed to list forms: %w", err)
	}
	return list, nil
}

func (m *MongoDatabase) IncrementVisitCount(ctx context.Context, id string) error {
	res, err := m.col(formsCollection).UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$inc": bson.M{"visit_count": 1}})
	if err != nil {
		return fmt.Errorf("failed to count visit: %w", err)
	}
	if res.MatchedCount == 0 {
		return notFound("form")
	}
	return nil
}

// ================= Responses =================

func (m *MongoDatabase) CreateResponse(ctx context.Context, r *models.Response) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.Answers == nil {
		r.Answers = []models.Answer{}
	}
	now := time.Now().UTC()
	r.CreatedAt = now
	r.UpdatedAt = now
	if _, err := m.col(responsesCollection).InsertOne(ctx, r); err != nil {
		return fmt.Errorf("failed to create response: %w", err)
	}
	return nil
}

func (m *MongoDatabase) GetResponse(ctx context.Context, id string) (*models.Response, error) {
	var r models.Response
	if err := m.findByID(ctx, responsesCollection, "response", id, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (m *MongoDatabase) UpdateResponse(ctx context.Context, r *models.Response) error {
	r.UpdatedAt = time.Now().UTC()
	return m.replaceByID(ctx, responsesCollection, "response", r.ID, r)
}

func (m *MongoDatabase) ListResponsesByForm(ctx context.Context, formID string) ([]models.Response, error) {
	list, err := findAll[models.Response](ctx, m.col(responsesCollection), bson.M{"form_id": formID})
	if err != nil {
		return nil, fmt.Errorf("failed to list responses: %w", err)
	}
	return list, nil
}

func (m *MongoDatabase) HealthCheck(ctx context.Context) error {
	return m.client.Ping(ctx, nil)
}

func (m *MongoDatabase) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}
