package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	ledgerdomain "github.com/smallbiznis/meterbill/internal/ledger/domain"
	"github.com/smallbiznis/meterbill/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
}

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
}

func NewService(p Params) ledgerdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("ledger.service"),
		genID: p.GenID,
	}
}

func (s *Service) Debit(ctx context.Context, ref string, accountID snowflake.ID, amount decimal.Decimal, memo string) (*ledgerdomain.Transaction, error) {
	return s.post(ctx, ref, accountID, ledgerdomain.TransactionDirectionDebit, amount, memo)
}

func (s *Service) Credit(ctx context.Context, ref string, accountID snowflake.ID, amount decimal.Decimal, memo string) (*ledgerdomain.Transaction, error) {
	return s.post(ctx, ref, accountID, ledgerdomain.TransactionDirectionCredit, amount, memo)
}

// post applies one balance movement inside a transaction. The account row is
// locked for the duration, and the unique ref index turns replays into a
// lookup of the recorded posting.
func (s *Service) post(
	ctx context.Context,
	ref string,
	accountID snowflake.ID,
	direction ledgerdomain.TransactionDirection,
	amount decimal.Decimal,
	memo string,
) (*ledgerdomain.Transaction, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, ledgerdomain.ErrInvalidRef
	}
	if !amount.IsPositive() {
		return nil, ledgerdomain.ErrInvalidAmount
	}

	var posted *ledgerdomain.Transaction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := findTransactionByRef(tx, ref)
		if err != nil {
			return err
		}
		if existing != nil {
			s.log.Info("duplicate posting ignored",
				zap.String("ref", ref),
				zap.String("direction", string(direction)),
			)
			posted = existing
			return nil
		}

		var account ledgerdomain.Account
		err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", accountID).
			First(&account).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ledgerdomain.ErrAccountNotFound
			}
			return err
		}

		balance := account.Balance
		if direction == ledgerdomain.TransactionDirectionDebit {
			if balance.LessThan(amount) {
				return fmt.Errorf("account %s balance %s below %s: %w",
					account.ID, balance, amount, ledgerdomain.ErrInsufficientFunds)
			}
			balance = balance.Sub(amount)
		} else {
			balance = balance.Add(amount)
		}

		if err := tx.Model(&ledgerdomain.Account{}).
			Where("id = ?", account.ID).
			Update("balance", balance).Error; err != nil {
			return err
		}

		txn := &ledgerdomain.Transaction{
			ID:        s.genID.Generate(),
			Ref:       ref,
			AccountID: account.ID,
			Direction: direction,
			Amount:    amount,
			Memo:      memo,
		}
		if err := tx.Create(txn).Error; err != nil {
			// A concurrent posting with the same ref won the insert; treat
			// ours as already applied. The recorded posting cannot be read
			// here: on postgres the unique violation aborts the transaction.
			if db.IsDuplicateKeyErr(err) {
				return errRefRaced
			}
			return err
		}

		posted = txn
		return nil
	})
	if errors.Is(err, errRefRaced) {
		return s.recoverRacedPosting(ctx, ref, direction)
	}
	if err != nil {
		return nil, err
	}
	return posted, nil
}

// errRefRaced rolls the posting transaction back after losing the unique-ref
// insert race so the recorded posting can be read on a fresh connection.
var errRefRaced = errors.New("ledger: posting ref raced")

func (s *Service) recoverRacedPosting(ctx context.Context, ref string, direction ledgerdomain.TransactionDirection) (*ledgerdomain.Transaction, error) {
	existing, err := findTransactionByRef(s.db.WithContext(ctx), ref)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, fmt.Errorf("posting ref %s: %w", ref, gorm.ErrRecordNotFound)
	}

	s.log.Info("duplicate posting ignored",
		zap.String("ref", ref),
		zap.String("direction", string(direction)),
	)
	return existing, nil
}

func (s *Service) EnsureAccount(ctx context.Context, subscriberID snowflake.ID, currencyCode string) (*ledgerdomain.Account, error) {
	var account ledgerdomain.Account
	err := s.db.WithContext(ctx).
		Where("subscriber_id = ? AND currency_code = ?", subscriberID, currencyCode).
		First(&account).Error
	if err == nil {
		return &account, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	account = ledgerdomain.Account{
		ID:           s.genID.Generate(),
		SubscriberID: subscriberID,
		CurrencyCode: currencyCode,
		Balance:      decimal.Zero,
	}
	if err := s.db.WithContext(ctx).Create(&account).Error; err != nil {
		if db.IsDuplicateKeyErr(err) {
			var raced ledgerdomain.Account
			ferr := s.db.WithContext(ctx).
				Where("subscriber_id = ? AND currency_code = ?", subscriberID, currencyCode).
				First(&raced).Error
			if ferr != nil {
				return nil, ferr
			}
			return &raced, nil
		}
		return nil, err
	}
	return &account, nil
}

func (s *Service) GetAccount(ctx context.Context, accountID snowflake.ID) (*ledgerdomain.Account, error) {
	var account ledgerdomain.Account
	err := s.db.WithContext(ctx).Where("id = ?", accountID).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ledgerdomain.ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

func findTransactionByRef(tx *gorm.DB, ref string) (*ledgerdomain.Transaction, error) {
	var txn ledgerdomain.Transaction
	err := tx.Where("ref = ?", ref).First(&txn).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &txn, nil
}
