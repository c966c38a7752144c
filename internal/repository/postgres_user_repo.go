package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/hitoshi/usergate/internal/model"
)

const uniqueViolation pq.ErrorCode = "23505"

const userColumns = `id, firebase_uid, email, name, email_verified, roles, created_at, updated_at, last_login`

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*model.User, error) {
	var (
		u         model.User
		email     sql.NullString
		roles     []string
		lastLogin sql.NullTime
	)
	err := row.Scan(&u.ID, &u.FirebaseUID, &email, &u.Name, &u.EmailVerified,
		pq.Array(&roles), &u.CreatedAt, &u.UpdatedAt, &lastLogin)
	if err != nil {
		return nil, err
	}

	u.Email = email.String
	if lastLogin.Valid {
		t := lastLogin.Time
		u.LastLogin = &t
	}
	u.Roles, err = model.ParseRoleSet(roles)
	if err != nil {
		return nil, fmt.Errorf("invalid roles stored for user %s: %w", u.ID, err)
	}
	return &u, nil
}

// nullableEmail は空文字をNULLとして保存するための変換。
// 空文字同士が一意制約で衝突しないようにする。
func nullableEmail(email string) sql.NullString {
	return sql.NullString{String: email, Valid: email != ""}
}

func nullableTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func (r *PostgresUserRepo) findOne(ctx context.Context, query string, arg any) (*model.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return u, err
}

// FindAll は全ユーザーを作成日時順に取得する。
func (r *PostgresUserRepo) FindAll(ctx context.Context) ([]*model.User, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := make([]*model.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}
	return users, nil
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	u, err := r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}
	return u, nil
}

// FindByFirebaseUID は外部IdPのサブジェクトIDでユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByFirebaseUID(ctx context.Context, uid string) (*model.User, error) {
	u, err := r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE firebase_uid = $1`, uid)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by firebase uid: %w", err)
	}
	return u, nil
}

// FindByEmail はメールアドレスでユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	if email == "" {
		return nil, nil
	}
	u, err := r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	return u, nil
}

// Create はユーザーを作成する。
func (r *PostgresUserRepo) Create(ctx context.Context, user *model.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		user.ID, user.FirebaseUID, nullableEmail(user.Email), user.Name, user.EmailVerified,
		pq.Array(user.Roles.Strings()), user.CreatedAt, user.UpdatedAt, nullableTime(user.LastLogin),
	)
	if err != nil {
		if isPqErr(err, uniqueViolation) {
			return fmt.Errorf("failed to insert user: %w", ErrDuplicate)
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// Update は対象行をSELECT FOR UPDATEでロックし、fnを適用した結果を書き戻す。
// 同一ユーザーへの並行更新（ロール追加・削除など）は直列化される。
func (r *PostgresUserRepo) Update(ctx context.Context, id string, fn func(u *model.User) error) (*model.User, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	u, err := scanUser(tx.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock user: %w", err)
	}

	if err := fn(u); err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE users
		 SET email = $2, name = $3, email_verified = $4, roles = $5, updated_at = $6, last_login = $7
		 WHERE id = $1`,
		u.ID, nullableEmail(u.Email), u.Name, u.EmailVerified,
		pq.Array(u.Roles.Strings()), u.UpdatedAt, nullableTime(u.LastLogin),
	)
	if err != nil {
		if isPqErr(err, uniqueViolation) {
			return nil, fmt.Errorf("failed to update user: %w", ErrDuplicate)
		}
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return u, nil
}

// DeleteByID は指定IDのユーザーを削除する。
func (r *PostgresUserRepo) DeleteByID(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM users WHERE id = $1`,
		id,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete user: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

func isPqErr(err error, code pq.ErrorCode) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == code
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
