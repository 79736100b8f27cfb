package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/gridbox/tictactoe-match/internal/apperror"
	"github.com/gridbox/tictactoe-match/internal/entity"
)

type AccountRepository interface {
	Save(ctx context.Context, account *entity.Account) error
	Username(ctx context.Context, userID string) (string, error)
}

type accountRepository struct {
	conn *sql.DB
}

func NewAccountRepository(conn *sql.DB) AccountRepository {
	return &accountRepository{
		conn: conn,
	}
}

func (that *accountRepository) Save(ctx context.Context, account *entity.Account) error {
	query := `INSERT INTO accounts (id, username) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET username = excluded.username`

	_, err := that.conn.ExecContext(ctx, query, account.ID, account.Username)
	if err != nil {
		return fmt.Errorf("can't save account: %w", err)
	}

	return nil
}

func (that *accountRepository) Username(ctx context.Context, userID string) (string, error) {
	query := `SELECT username FROM accounts WHERE id = ?`

	var username string

	err := that.conn.QueryRowContext(ctx, query, userID).Scan(&username)
	if errors.Is(err, sql.ErrNoRows) {
		return "", apperror.ErrAccountNotFound
	}
	if err != nil {
		return "", fmt.Errorf("can't find account: %w", err)
	}

	return username, nil
}
