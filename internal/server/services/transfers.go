package services

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/bankapp/internal/common"
	"github.com/dmitrijs2005/bankapp/internal/logging"
	"github.com/dmitrijs2005/bankapp/internal/server/config"
	"github.com/dmitrijs2005/bankapp/internal/server/metrics"
	"github.com/dmitrijs2005/bankapp/internal/server/models"
	"github.com/dmitrijs2005/bankapp/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/bankapp/internal/server/validation"
	"github.com/dmitrijs2005/bankapp/internal/timex"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

type TransferService struct {
	repos      repomanager.RepositoryManager
	logger     logging.Logger
	metrics    *metrics.Metrics
	clock      timex.Clock
	timeout    time.Duration
	pendingTTL time.Duration
}

func NewTransferService(repos repomanager.RepositoryManager, logger logging.Logger, m *metrics.Metrics, cfg *config.Config) *TransferService {
	return &TransferService{
		repos:      repos,
		logger:     logger,
		metrics:    m,
		clock:      timex.SystemClock,
		timeout:    cfg.StoreTimeout,
		pendingTTL: cfg.PendingTransferTTL,
	}
}

func recipientField(mode string) string {
	if mode == common.RecipientByAccount {
		return validation.FieldRecipientAccount
	}
	return validation.FieldRecipientUsername
}

// Initiate validates a transfer and returns it for review. Checks run in a
// fixed order: amount, recipient presence, recipient lookup, self transfer,
// sender status. Nothing is written.
func (s *TransferService) Initiate(ctx context.Context, senderID int64, mode, selector string, amount decimal.Decimal) (*models.PendingTransfer, error) {
	if msg := validation.AmountRule(amount); msg != "" {
		return nil, validation.FieldError(validation.FieldAmount, msg).WithCause(common.ErrInvalidAmount)
	}

	field := recipientField(mode)
	if mode != common.RecipientByUsername && mode != common.RecipientByAccount {
		return nil, validation.FieldError(validation.FieldTransferType, "Invalid transfer type")
	}
	if selector == "" {
		msg := "Please enter the recipient's username."
		if mode == common.RecipientByAccount {
			msg = "Please enter the recipient's account number."
		}
		return nil, validation.FieldError(field, msg).WithCause(common.ErrMissingRecipient)
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	repo := s.repos.Users()
	var (
		recipient *models.User
		err       error
	)
	if mode == common.RecipientByAccount {
		recipient, err = repo.GetByAccountNumber(ctx, selector)
	} else {
		recipient, err = repo.GetByUsername(ctx, selector)
	}
	if errors.Is(err, common.ErrorNotFound) {
		return nil, validation.FieldError(field, "Recipient not found.").WithCause(common.ErrRecipientNotFound)
	}
	if err != nil {
		return nil, storeFailure(ctx, s.logger, "initiate transfer", err)
	}

	if recipient.ID == senderID {
		return nil, validation.FieldError(field, "You cannot transfer money to yourself.").WithCause(common.ErrSelfTransfer)
	}

	sender, err := repo.GetByID(ctx, senderID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrAccountNotFound
		}
		return nil, storeFailure(ctx, s.logger, "initiate transfer", err)
	}
	if err := activeStatus(sender); err != nil {
		return nil, err
	}

	now := s.clock()
	return &models.PendingTransfer{
		ID:                     uuid.NewString(),
		SenderID:               senderID,
		RecipientID:            recipient.ID,
		RecipientUsername:      recipient.Username,
		RecipientAccountNumber: recipient.AccountNumber,
		Amount:                 amount,
		Mode:                   mode,
		CreatedAt:              now,
		ExpiresAt:              now.Add(s.pendingTTL),
	}, nil
}

func activeStatus(u *models.User) error {
	switch u.Status {
	case common.StatusActive:
		return nil
	case common.StatusPending:
		return common.ErrAccountPending
	default:
		return common.ErrAccountDeactivated
	}
}

// Confirm executes a pending transfer atomically: both balances change and
// the transaction is recorded, or nothing happens. The transaction takes the
// pending transfer's id, so a pending transfer can be spent only once.
func (s *TransferService) Confirm(ctx context.Context, senderID int64, pending *models.PendingTransfer) (*models.Transaction, error) {
	if pending == nil || pending.ID == "" || pending.SenderID != senderID {
		return nil, common.ErrNoPendingTransfer
	}
	if pending.Expired(s.clock()) {
		return nil, common.ErrPendingTransferGone
	}
	if validation.AmountRule(pending.Amount) != "" {
		return nil, common.ErrInvalidAmount
	}
	if pending.RecipientID == senderID {
		return nil, common.ErrSelfTransfer
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	var out *models.Transaction
	err := s.repos.WithTx(ctx, func(ctx context.Context, r repomanager.Repositories) error {
		sender, recipient, err := lockPair(ctx, r, senderID, pending.RecipientID)
		if err != nil {
			return err
		}
		if err := activeStatus(sender); err != nil {
			return err
		}
		if sender.Balance.LessThan(pending.Amount) {
			return common.ErrInsufficientFunds
		}

		if err := r.Users().UpdateBalance(ctx, sender.ID, sender.Balance.Sub(pending.Amount)); err != nil {
			return err
		}
		if err := r.Users().UpdateBalance(ctx, recipient.ID, recipient.Balance.Add(pending.Amount)); err != nil {
			return err
		}

		sid := sender.ID
		out = &models.Transaction{
			ID:               pending.ID,
			SenderID:         &sid,
			ReceiverID:       recipient.ID,
			Amount:           pending.Amount,
			Type:             common.TransactionTransfer,
			Status:           common.TransactionCompleted,
			SenderUsername:   sender.Username,
			ReceiverUsername: recipient.Username,
		}
		if err := r.Transactions().Create(ctx, out); err != nil {
			if errors.Is(err, common.ErrorAlreadyExists) {
				return common.ErrNoPendingTransfer
			}
			return err
		}
		return nil
	})
	if err != nil {
		s.metrics.Transfer(common.TransactionTransfer, outcome(err))
		return nil, storeFailure(ctx, s.logger, "confirm transfer", err)
	}

	s.metrics.Transfer(common.TransactionTransfer, "ok")
	s.logger.Info(ctx, "transfer completed", "transaction_id", out.ID, "sender_id", senderID, "receiver_id", out.ReceiverID)
	return out, nil
}

// lockPair locks both rows in ascending id order.
func lockPair(ctx context.Context, r repomanager.Repositories, senderID, recipientID int64) (*models.User, *models.User, error) {
	ids := []int64{senderID, recipientID}
	if recipientID < senderID {
		ids[0], ids[1] = recipientID, senderID
	}

	locked := make(map[int64]*models.User, 2)
	for _, id := range ids {
		u, err := r.Users().GetByIDForUpdate(ctx, id)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				if id == recipientID {
					return nil, nil, common.ErrRecipientNotFound
				}
				return nil, nil, common.ErrAccountNotFound
			}
			return nil, nil, err
		}
		locked[id] = u
	}
	return locked[senderID], locked[recipientID], nil
}

func outcome(err error) string {
	switch {
	case errors.Is(err, common.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, common.ErrRecipientNotFound), errors.Is(err, common.ErrAccountNotFound):
		return "not_found"
	default:
		return "error"
	}
}

// Deposit credits an account identified by its number.
func (s *TransferService) Deposit(ctx context.Context, accountNumber string, amount decimal.Decimal) (*models.Transaction, error) {
	if validation.AmountRule(amount) != "" {
		return nil, common.ErrInvalidAmount
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	var out *models.Transaction
	err := s.repos.WithTx(ctx, func(ctx context.Context, r repomanager.Repositories) error {
		found, err := r.Users().GetByAccountNumber(ctx, accountNumber)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrAccountNotFound
			}
			return err
		}
		user, err := r.Users().GetByIDForUpdate(ctx, found.ID)
		if err != nil {
			return err
		}
		if err := r.Users().UpdateBalance(ctx, user.ID, user.Balance.Add(amount)); err != nil {
			return err
		}

		out = &models.Transaction{
			ID:               uuid.NewString(),
			ReceiverID:       user.ID,
			Amount:           amount,
			Type:             common.TransactionDeposit,
			Status:           common.TransactionCompleted,
			ReceiverUsername: user.Username,
		}
		return r.Transactions().Create(ctx, out)
	})
	if err != nil {
		s.metrics.Transfer(common.TransactionDeposit, outcome(err))
		return nil, storeFailure(ctx, s.logger, "deposit", err)
	}

	s.metrics.Transfer(common.TransactionDeposit, "ok")
	s.logger.Info(ctx, "deposit completed", "transaction_id", out.ID, "receiver_id", out.ReceiverID)
	return out, nil
}

// History returns the user's most recent transactions, newest first.
func (s *TransferService) History(ctx context.Context, userID int64, limit int) ([]*models.Transaction, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	txs, err := s.repos.Transactions().ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, storeFailure(ctx, s.logger, "history", err)
	}
	return txs, nil
}
