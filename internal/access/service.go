package access

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketwatch-backend/pkg/db/models"
	"github.com/angelmondragon/marketwatch-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketwatch-backend/pkg/errors"
	"github.com/angelmondragon/marketwatch-backend/pkg/outbox"
	"github.com/angelmondragon/marketwatch-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/marketwatch-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// OutboxEmitter queues domain events inside a transaction.
type OutboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service provisions accounts and resolves their roles.
type Service interface {
	EnsureAccount(ctx context.Context, identity Identity) (*AccountDTO, error)
	ResolveRole(ctx context.Context, accountID uuid.UUID) (enums.Role, error)
	GetAccount(ctx context.Context, caller Caller, accountID uuid.UUID) (*AccountDTO, error)
	ChangeRole(ctx context.Context, caller Caller, accountID uuid.UUID, role enums.Role) (*AccountDTO, error)
	ListAccounts(ctx context.Context, caller Caller, filter AccountFilter, page, limit int) ([]AccountDTO, int64, error)
}

type service struct {
	repo   *Repository
	tx     txRunner
	outbox OutboxEmitter
}

// NewService builds the access service.
func NewService(repo *Repository, tx txRunner, outbox OutboxEmitter) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("accounts repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{repo: repo, tx: tx, outbox: outbox}, nil
}

// EnsureAccount creates the account with the default role on first sight and
// returns the stored record. Repeated calls never change the role.
func (s *service) EnsureAccount(ctx context.Context, identity Identity) (*AccountDTO, error) {
	email := strings.ToLower(strings.TrimSpace(identity.Email))
	if identity.AccountID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "account id is required")
	}
	if email == "" || !strings.Contains(email, "@") {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "a valid email is required")
	}

	account := &models.Account{
		ID:          identity.AccountID,
		Email:       email,
		DisplayName: strings.TrimSpace(identity.DisplayName),
		Role:        enums.DefaultRole,
	}
	if err := s.repo.InsertIfAbsent(ctx, account); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "ensure account")
	}

	stored, err := s.repo.FindByID(ctx, identity.AccountID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "email is registered to another account")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load account")
	}
	return FromModel(stored), nil
}

// ResolveRole is the authoritative role lookup for an account.
func (s *service) ResolveRole(ctx context.Context, accountID uuid.UUID) (enums.Role, error) {
	account, err := s.repo.FindByID(ctx, accountID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", pkgerrors.New(pkgerrors.CodeNotFound, "account not provisioned")
	}
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve role")
	}
	return account.Role, nil
}

func (s *service) GetAccount(ctx context.Context, caller Caller, accountID uuid.UUID) (*AccountDTO, error) {
	if err := Authorize(caller, ActionView, accountID); err != nil {
		return nil, err
	}
	account, err := s.repo.FindByID(ctx, accountID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "account not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load account")
	}
	return FromModel(account), nil
}

// ChangeRole is the only path that mutates an account role outside merchant approval.
func (s *service) ChangeRole(ctx context.Context, caller Caller, accountID uuid.UUID, role enums.Role) (*AccountDTO, error) {
	if err := Authorize(caller, ActionChangeRole, accountID); err != nil {
		return nil, err
	}
	if !role.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid role %q", role)
	}

	var updated *models.Account
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		account, err := repo.FindByID(ctx, accountID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "account not found")
		}
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load account")
		}
		if account.Role == role {
			updated = account
			return nil
		}
		if err := ApplyRoleChange(ctx, tx, s.outbox, caller, account, role); err != nil {
			return err
		}
		updated = account
		return nil
	})
	if err != nil {
		return nil, err
	}
	return FromModel(updated), nil
}

// ApplyRoleChange writes the new role and its outbox event inside tx. The
// account is updated in place.
func ApplyRoleChange(ctx context.Context, tx *gorm.DB, publisher OutboxEmitter, caller Caller, account *models.Account, role enums.Role) error {
	from := account.Role
	if _, err := NewRepository(tx).UpdateRole(ctx, account.ID, role); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update role")
	}
	account.Role = role
	return publisher.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventAccountRoleChange,
		AggregateType: enums.AggregateAccount,
		AggregateID:   account.ID,
		Actor:         caller.Actor(),
		Data: payloads.AccountRoleChangedEvent{
			AccountID: account.ID,
			From:      from,
			To:        role,
			ChangedBy: caller.AccountID,
		},
	})
}

func (s *service) ListAccounts(ctx context.Context, caller Caller, filter AccountFilter, page, limit int) ([]AccountDTO, int64, error) {
	if !caller.IsAdmin() {
		return nil, 0, pkgerrors.New(pkgerrors.CodeForbidden, "permission denied")
	}
	if filter.Role != nil && !filter.Role.IsValid() {
		return nil, 0, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid role %q", *filter.Role)
	}
	limit, offset := pagination.Window(page, limit)
	rows, total, err := s.repo.List(ctx, filter, limit, offset)
	if err != nil {
		return nil, 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list accounts")
	}
	out := make([]AccountDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *FromModel(&rows[i]))
	}
	return out, total, nil
}
