// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/usergate/internal/model"
)

// ErrDuplicate は一意制約（firebase_uid、email）違反を表す。
var ErrDuplicate = errors.New("duplicate key")

// UserRepository はユーザーデータの永続化インターフェース。
// 読み取り系は見つからない場合にnil, nilを返す。
type UserRepository interface {
	// FindAll は全ユーザーを作成日時順に取得する。
	FindAll(ctx context.Context) ([]*model.User, error)

	// FindByID は指定IDのユーザーを取得する。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByFirebaseUID は外部IdPのサブジェクトIDでユーザーを取得する。
	FindByFirebaseUID(ctx context.Context, uid string) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを取得する。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// Create はユーザーを作成する。一意制約違反の場合はErrDuplicateを返す。
	Create(ctx context.Context, user *model.User) error

	// Update は対象行をロックした上でfnを適用し、結果を書き戻す。
	// 行が存在しない場合はfnを呼ばずにnil, nilを返す。
	// fnがエラーを返した場合は何も書き込まずにそのエラーを返す。
	Update(ctx context.Context, id string, fn func(u *model.User) error) (*model.User, error)

	// DeleteByID は指定IDのユーザーを削除する。削除した場合にtrueを返す。
	DeleteByID(ctx context.Context, id string) (bool, error)
}

// Pinger はデータストアの疎通確認用のインターフェース。
type Pinger interface {
	PingContext(ctx context.Context) error
}
