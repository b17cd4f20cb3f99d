package access

import (
	"context"
	"errors"
	"time"

	"formflow-backend/pkg/database"
	"formflow-backend/pkg/models"
	"formflow-backend/pkg/utils"

	"github.com/sirupsen/logrus"
)

// DefaultInviteTTL is how long an invite stays redeemable
const DefaultInviteTTL = 48 * time.Hour

// inviteTokenBytes gives 128-bit tokens
const inviteTokenBytes = 16

// Clock supplies the current time
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// TokenGenerator mints invite tokens
type TokenGenerator interface {
	NewToken() (string, error)
}

// TokenFunc adapts a function to TokenGenerator
type TokenFunc func() (string, error)

func (f TokenFunc) NewToken() (string, error) { return f() }

// RandomTokens returns URL-safe tokens from crypto/rand
func RandomTokens() TokenGenerator {
	return TokenFunc(func() (string, error) { return utils.GenerateURLToken(inviteTokenBytes) })
}

// LedgerStore is what the Ledger reads and writes
type LedgerStore interface {
	database.UserStore
	database.WorkspaceStore
	database.InviteStore
}

// LedgerOptions tunes invite issuance; zero values pick defaults
type LedgerOptions struct {
	TTL       time.Duration
	SingleUse bool
	Clock     Clock
	Tokens    TokenGenerator
}

// Ledger issues and redeems workspace invites
type Ledger struct {
	store     LedgerStore
	ttl       time.Duration
	singleUse bool
	clock     Clock
	tokens    TokenGenerator
	log       logrus.FieldLogger
}

// Redemption is returned to the client after a successful RedeemInvite
type Redemption struct {
	OwnerName   string            `json:"owner_name"`
	WorkspaceID string            `json:"workspace_id"`
	Permission  models.Permission `json:"permission"`
}

func NewLedger(store LedgerStore, opts LedgerOptions, log logrus.FieldLogger) *Ledger {
	if opts.TTL <= 0 {
		opts.TTL = DefaultInviteTTL
	}
	if opts.Clock == nil {
		opts.Clock = ClockFunc(time.Now)
	}
	if opts.Tokens == nil {
		opts.Tokens = RandomTokens()
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Ledger{
		store:     store,
		ttl:       opts.TTL,
		singleUse: opts.SingleUse,
		clock:     opts.Clock,
		tokens:    opts.Tokens,
		log:       log.WithField("component", "invites"),
	}
}

// IssueInvite records a new invite on workspaceID. The issuer needs edit permission.
func (l *Ledger) IssueInvite(ctx context.Context, issuerID, workspaceID string, perm models.Permission) (*models.WorkspaceInvite, error) {
	if perm == "" {
		return nil, newError(KindInvalidArgument, "permission is required")
	}
	if !perm.Valid() {
		return nil, newError(KindInvalidArgument, "permission must be view or edit")
	}
	if workspaceID == "" {
		return nil, newError(KindInvalidArgument, "workspace id is required")
	}

	ws, err := l.store.GetWorkspace(ctx, workspaceID)
	if err != nil {
		return nil, storeError("workspace", err)
	}
	if _, err := authorize(issuerID, ws, models.PermissionEdit); err != nil {
		return nil, err
	}
	issuer, err := l.store.GetUserByID(ctx, issuerID)
	if err != nil {
		return nil, storeError("user", err)
	}

	token, err := l.tokens.NewToken()
	if err != nil {
		return nil, wrapError(KindInternal, "failed to generate invite token", err)
	}
	now := l.clock.Now().UTC()
	inv := &models.WorkspaceInvite{
		Token:       token,
		WorkspaceID: ws.ID,
		Permission:  perm,
		OwnerName:   issuer.Name,
		CreatedAt:   now,
		ExpiresAt:   now.Add(l.ttl),
	}
	if err := l.store.CreateInvite(ctx, inv); err != nil {
		return nil, storeError("invite", err)
	}

	l.log.WithFields(logrus.Fields{
		"workspace_id": ws.ID,
		"issuer_id":    issuerID,
		"permission":   perm,
		"expires_at":   inv.ExpiresAt,
	}).Info("invite issued")
	return inv, nil
}

// RedeemInvite adds userID to the invite's workspace with the invite's permission.
// Redeeming again, or as the owner, changes nothing and still succeeds.
// The returned Permission is the user's effective permission afterwards.
func (l *Ledger) RedeemInvite(ctx context.Context, token, userID string) (*Redemption, error) {
	if token == "" {
		return nil, newError(KindNotFound, "invite not found")
	}
	inv, err := l.store.GetInviteByToken(ctx, token)
	if err != nil {
		return nil, storeError("invite", err)
	}

	if inv.ExpiredAt(l.clock.Now()) {
		if err := l.store.DeleteInvite(ctx, token); err != nil && !errors.Is(err, database.ErrNotFound) {
			l.log.WithError(err).WithField("workspace_id", inv.WorkspaceID).Warn("failed to delete expired invite")
		}
		return nil, newError(KindExpired, "invite has expired")
	}

	ws, err := l.store.GetWorkspace(ctx, inv.WorkspaceID)
	if err != nil {
		return nil, storeError("workspace", err)
	}
	user, err := l.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, storeError("user", err)
	}

	owner := ws.IsOwner(user.ID)
	if !owner && !ws.SharedWith.Contains(user.ID) {
		ws.SharedWith.Upsert(user.ID, inv.Permission)
		if err := l.store.SaveWorkspace(ctx, ws); err != nil {
			return nil, storeError("workspace", err)
		}
		l.log.WithFields(logrus.Fields{
			"workspace_id": ws.ID,
			"user_id":      user.ID,
			"permission":   inv.Permission,
		}).Info("invite redeemed")
	}
	if !owner && user.AddWorkspaceAccess(ws.ID) {
		if err := l.store.UpdateUser(ctx, user); err != nil {
			return nil, wrapError(KindInternal, "failed to update user access", err)
		}
	}

	if l.singleUse {
		if err := l.store.DeleteInvite(ctx, token); err != nil && !errors.Is(err, database.ErrNotFound) {
			l.log.WithError(err).WithField("workspace_id", ws.ID).Warn("failed to retire single-use invite")
		}
	}

	// report what the user holds now, which an earlier grant may have kept below the invite's level
	perm, _ := ws.PermissionFor(user.ID)
	return &Redemption{OwnerName: inv.OwnerName, WorkspaceID: ws.ID, Permission: perm}, nil
}

// SweepExpired removes every invite whose expiry has passed
func (l *Ledger) SweepExpired(ctx context.Context) (int64, error) {
	n, err := l.store.DeleteExpiredInvites(ctx, l.clock.Now())
	if err != nil {
		return n, wrapError(KindInternal, "failed to sweep invites", err)
	}
	if n > 0 {
		l.log.WithField("removed", n).Info("expired invites swept")
	}
	return n, nil
}

// RunSweeper calls SweepExpired every interval until ctx is done
func (l *Ledger) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := l.SweepExpired(ctx); err != nil {
				l.log.WithError(err).Error("invite sweep failed")
			}
		}
	}
}
