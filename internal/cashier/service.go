package cashier

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/vela-pos/vela/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, sessionID int64) (Session, error)
	List(ctx context.Context, registerID int64, limit, offset int) ([]Session, error)
	Totals(ctx context.Context, sessionID int64) (Totals, error)
	Movements(ctx context.Context, sessionID int64) ([]Movement, error)
}

// Service handles cash register shifts.
type Service struct {
	logger *slog.Logger
	repo   RepositoryPort
	audit  *shared.AuditLogger
	clock  shared.Clock
}

// NewService builds Service. audit may be nil.
func NewService(logger *slog.Logger, repo RepositoryPort, audit *shared.AuditLogger, clock shared.Clock) *Service {
	return &Service{logger: logger, repo: repo, audit: audit, clock: clock}
}

// Open starts a new session. A register can host one open session at a
// time and a user can run one open session at a time.
func (s *Service) Open(ctx context.Context, registerID, openedBy int64, opening decimal.Decimal) (Session, error) {
	if opening.IsNegative() {
		return Session{}, ErrInvalidAmount
	}

	var session Session
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		exists, err := tx.HasOpenSession(ctx, registerID, openedBy)
		if err != nil {
			return err
		}
		if exists {
			return ErrAlreadyOpen
		}
		session, err = tx.InsertSession(ctx, registerID, openedBy, opening)
		return err
	})
	if err != nil {
		return Session{}, err
	}

	s.auditAction(ctx, openedBy, "cash_session.open", session.ID)
	return session, nil
}

// RecordMovement adds a drawer movement to an open session.
func (s *Service) RecordMovement(ctx context.Context, input MovementInput) (Movement, error) {
	if !input.Type.Valid() {
		return Movement{}, ErrInvalidType
	}
	if !input.Amount.IsPositive() {
		return Movement{}, ErrInvalidAmount
	}
	input.Reason = strings.TrimSpace(input.Reason)
	if input.Type.RequiresReason() && input.Reason == "" {
		return Movement{}, ErrReasonRequired
	}

	var movement Movement
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		session, err := tx.GetSessionForUpdate(ctx, input.SessionID)
		if err != nil {
			return err
		}
		if session.Status != SessionOpen {
			return ErrSessionClosed
		}
		movement, err = tx.InsertMovement(ctx, Movement{
			SessionID: input.SessionID,
			Type:      input.Type,
			Amount:    input.Amount,
			Reason:    input.Reason,
			CreatedBy: input.CreatedBy,
		})
		return err
	})
	if err != nil {
		return Movement{}, err
	}
	return movement, nil
}

// Close counts the drawer and freezes the session. Expected cash is
// the opening float plus sales and supplies, minus withdrawals and
// refunds, plus adjustments.
func (s *Service) Close(ctx context.Context, sessionID int64, closing decimal.Decimal, closedBy int64, notes string) (Session, error) {
	if closing.IsNegative() {
		return Session{}, ErrInvalidAmount
	}

	var session Session
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetSessionForUpdate(ctx, sessionID)
		if err != nil {
			return err
		}
		if current.Status != SessionOpen {
			return ErrSessionClosed
		}

		totals, err := tx.SessionTotals(ctx, sessionID)
		if err != nil {
			return err
		}
		expected := ExpectedAmount(current.OpeningAmount, totals)
		difference := closing.Sub(expected)
		session, err = tx.CloseSession(ctx, sessionID, closing, expected, difference,
			Consistent(difference), strings.TrimSpace(notes))
		return err
	})
	if err != nil {
		return Session{}, err
	}

	if session.IsConsistent != nil && !*session.IsConsistent {
		s.logger.Warn("cash session closed with discrepancy",
			slog.Int64("session_id", session.ID),
			slog.String("difference", session.Difference.String()))
	}
	s.auditAction(ctx, closedBy, "cash_session.close", session.ID)
	return session, nil
}

// Get returns one session.
func (s *Service) Get(ctx context.Context, sessionID int64) (Session, error) {
	return s.repo.Get(ctx, sessionID)
}

// List returns sessions, optionally scoped to one register.
func (s *Service) List(ctx context.Context, registerID int64, limit, offset int) ([]Session, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.repo.List(ctx, registerID, limit, offset)
}

// Report returns the session with totals and the full drawer trail.
func (s *Service) Report(ctx context.Context, sessionID int64) (Report, error) {
	session, err := s.repo.Get(ctx, sessionID)
	if err != nil {
		return Report{}, err
	}
	totals, err := s.repo.Totals(ctx, sessionID)
	if err != nil {
		return Report{}, err
	}
	movements, err := s.repo.Movements(ctx, sessionID)
	if err != nil {
		return Report{}, err
	}
	return Report{
		Session:   session,
		Totals:    totals,
		Expected:  ExpectedAmount(session.OpeningAmount, totals),
		Movements: movements,
	}, nil
}

func (s *Service) auditAction(ctx context.Context, actorID int64, action string, sessionID int64) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "cash_session",
		EntityID: strconv.FormatInt(sessionID, 10),
		At:       s.clock.Now(),
	})
}
