// Package user はユーザー管理のドメインロジックを提供する。
// 外部IdPのアカウントとローカルのユーザーレコードを組み合わせてライフサイクルを管理する。
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/usergate/internal/identity"
	"github.com/hitoshi/usergate/internal/model"
	"github.com/hitoshi/usergate/internal/repository"
)

const (
	msgEmailExists = "A user with this email already exists"
	msgEmailInUse  = "This email is already in use"
)

// Service はユーザー管理のサービス層。
// IdPとストアの間にアトミック性は無い。作成・更新はIdPを先に、削除はストアを正とする。
type Service struct {
	repo     repository.UserRepository
	provider identity.Provider

	now   func() time.Time
	newID func() string
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(repo repository.UserRepository, provider identity.Provider) *Service {
	return &Service{
		repo:     repo,
		provider: provider,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// FindAll は全ユーザーを返す。
func (s *Service) FindAll(ctx context.Context) ([]*model.UserDTO, error) {
	users, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("ユーザー一覧の取得に失敗しました: %w", err)
	}
	dtos := make([]*model.UserDTO, 0, len(users))
	for _, u := range users {
		dtos = append(dtos, u.ToDTO())
	}
	return dtos, nil
}

// FindByID は指定IDのユーザーを返す。存在しない場合はUSER_NOT_FOUND。
func (s *Service) FindByID(ctx context.Context, id string) (*model.UserDTO, error) {
	u, err := s.mustFind(ctx, id)
	if err != nil {
		return nil, err
	}
	return u.ToDTO(), nil
}

// FindByFirebaseUID は外部IdPのサブジェクトIDでユーザーを返す。存在しない場合はnil。
func (s *Service) FindByFirebaseUID(ctx context.Context, uid string) (*model.UserDTO, error) {
	u, err := s.repo.FindByFirebaseUID(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if u == nil {
		return nil, nil
	}
	return u.ToDTO(), nil
}

// FindInternalByFirebaseUID はFindByFirebaseUIDの内部用射影版。
func (s *Service) FindInternalByFirebaseUID(ctx context.Context, uid string) (*model.InternalUserDTO, error) {
	u, err := s.repo.FindByFirebaseUID(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if u == nil {
		return nil, nil
	}
	return u.ToInternalDTO(), nil
}

// Create はIdP側アカウントとローカルレコードを作成する。
// passwordが空の場合はランダムなパスワードを生成してIdPに設定する。
func (s *Service) Create(ctx context.Context, input model.CreateUserInput, password string) (*model.UserDTO, error) {
	if input.Email != "" {
		existing, err := s.repo.FindByEmail(ctx, input.Email)
		if err != nil {
			return nil, fmt.Errorf("メールアドレスの重複確認に失敗しました: %w", err)
		}
		if existing != nil {
			return nil, model.NewEmailConflictError(msgEmailExists)
		}
	}

	if password == "" {
		generated, err := identity.GeneratePassword()
		if err != nil {
			return nil, err
		}
		password = generated
	}

	uid, err := s.provider.CreateAccount(ctx, identity.CreateAccountParams{
		Email:       input.Email,
		Password:    password,
		DisplayName: input.Name,
	})
	if err != nil {
		return nil, model.NewIdentityProviderError("create", err)
	}

	now := s.now()
	u := &model.User{
		ID:          s.newID(),
		FirebaseUID: uid,
		Email:       input.Email,
		Name:        input.Name,
		Roles:       model.DefaultRoles(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Create(ctx, u); err != nil {
		// IdP側に孤立したアカウントを残さないよう取り消しを試みる
		if delErr := s.provider.DeleteAccount(ctx, uid); delErr != nil {
			slog.Error("IdPアカウントの取り消しに失敗しました",
				slog.String("firebase_uid", uid),
				slog.String("error", delErr.Error()),
			)
		}
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, model.NewEmailConflictError(msgEmailExists)
		}
		return nil, fmt.Errorf("ユーザーの作成に失敗しました: %w", err)
	}

	slog.Info("ユーザーを作成しました",
		slog.String("user_id", u.ID),
		slog.String("firebase_uid", uid),
	)
	return u.ToDTO(), nil
}

// Update はメールアドレス・表示名を部分更新する。
// 実際に変わるフィールドのみIdPに送信し、IdPが失敗した場合はローカルを変更しない。
func (s *Service) Update(ctx context.Context, id string, input model.UpdateUserInput) (*model.UserDTO, error) {
	current, err := s.mustFind(ctx, id)
	if err != nil {
		return nil, err
	}

	var params identity.UpdateAccountParams
	if input.Email != nil && *input.Email != current.Email {
		params.Email = input.Email
	}
	if input.Name != nil && *input.Name != current.Name {
		params.DisplayName = input.Name
	}

	if params.Email != nil && *params.Email != "" {
		existing, err := s.repo.FindByEmail(ctx, *params.Email)
		if err != nil {
			return nil, fmt.Errorf("メールアドレスの重複確認に失敗しました: %w", err)
		}
		if existing != nil && existing.ID != id {
			return nil, model.NewEmailConflictError(msgEmailInUse)
		}
	}

	if params.IsEmpty() {
		return current.ToDTO(), nil
	}

	if err := s.provider.UpdateAccount(ctx, current.FirebaseUID, params); err != nil {
		return nil, model.NewIdentityProviderError("update", err)
	}

	updated, err := s.repo.Update(ctx, id, func(u *model.User) error {
		if params.Email != nil {
			u.Email = *params.Email
		}
		if params.DisplayName != nil {
			u.Name = *params.DisplayName
		}
		u.UpdatedAt = s.now()
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			// IdP側は更新済みのまま残る。次回の更新で再送される
			slog.Warn("IdPとローカルのメールアドレスが不一致になりました",
				slog.String("user_id", id),
				slog.String("firebase_uid", current.FirebaseUID),
			)
			return nil, model.NewEmailConflictError(msgEmailInUse)
		}
		return nil, fmt.Errorf("ユーザーの更新に失敗しました: %w", err)
	}
	if updated == nil {
		return nil, model.NewUserNotFoundError()
	}
	return updated.ToDTO(), nil
}

// UpdateLastLogin は最終ログイン日時を現在時刻にする。updatedAtは変更しない。
func (s *Service) UpdateLastLogin(ctx context.Context, id string) error {
	_, err := s.mutate(ctx, id, func(u *model.User) error {
		now := s.now()
		u.LastLogin = &now
		return nil
	})
	return err
}

// AddRole はロールを付与する。既に持っている場合は何もしない。
func (s *Service) AddRole(ctx context.Context, id string, role model.Role) (*model.UserDTO, error) {
	return s.mutate(ctx, id, func(u *model.User) error {
		if u.Roles.Contains(role) {
			return nil
		}
		u.Roles.Add(role)
		u.UpdatedAt = s.now()
		return nil
	})
}

// RemoveRole はロールを剥奪する。持っていない場合は何もしない。
// ロール集合が空になる場合はINVALID_ROLE_STATE。
func (s *Service) RemoveRole(ctx context.Context, id string, role model.Role) (*model.UserDTO, error) {
	return s.mutate(ctx, id, func(u *model.User) error {
		if !u.Roles.Contains(role) {
			return nil
		}
		if len(u.Roles) == 1 {
			return model.NewInvalidRoleStateError(role)
		}
		u.Roles.Remove(role)
		u.UpdatedAt = s.now()
		return nil
	})
}

// SetEmailVerified はメールアドレス確認済みフラグを設定する。
func (s *Service) SetEmailVerified(ctx context.Context, id string, verified bool) (*model.UserDTO, error) {
	return s.mutate(ctx, id, func(u *model.User) error {
		if u.EmailVerified == verified {
			return nil
		}
		u.EmailVerified = verified
		u.UpdatedAt = s.now()
		return nil
	})
}

// Delete はユーザーを削除する。
// IdP側の削除失敗はログに残して無視し、ローカルレコードは必ず削除する。
func (s *Service) Delete(ctx context.Context, id string) error {
	u, err := s.mustFind(ctx, id)
	if err != nil {
		return err
	}

	if err := s.provider.DeleteAccount(ctx, u.FirebaseUID); err != nil {
		slog.Warn("IdPアカウントの削除に失敗しました",
			slog.String("user_id", id),
			slog.String("firebase_uid", u.FirebaseUID),
			slog.String("error", err.Error()),
		)
	}

	deleted, err := s.repo.DeleteByID(ctx, id)
	if err != nil {
		return fmt.Errorf("ユーザーの削除に失敗しました: %w", err)
	}
	if !deleted {
		return model.NewUserNotFoundError()
	}

	slog.Info("ユーザーを削除しました", slog.String("user_id", id))
	return nil
}

// NewSession は認証済みリクエスト用のSessionを組み立てる。
// メール確認状態はトークンのクレームで確認済みならそれを優先する。
func (s *Service) NewSession(u *model.InternalUserDTO, token *identity.VerifiedToken) *model.Session {
	sess := &model.Session{
		UserID:        u.ID,
		FirebaseUID:   u.FirebaseUID,
		Email:         u.Email,
		Name:          u.Name,
		Roles:         model.NewRoleSet(u.Roles...),
		EmailVerified: u.EmailVerified,
		LastLogin:     u.LastLogin,
		ResolvedAt:    s.now(),
	}
	if token != nil {
		if token.EmailVerified {
			sess.EmailVerified = true
		}
		if sess.Email == "" {
			sess.Email = token.Email
		}
	}
	return sess
}

func (s *Service) mustFind(ctx context.Context, id string) (*model.User, error) {
	u, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if u == nil {
		return nil, model.NewUserNotFoundError()
	}
	return u, nil
}

// mutate は行ロック付きでfnを適用する。行が無ければUSER_NOT_FOUND。
func (s *Service) mutate(ctx context.Context, id string, fn func(u *model.User) error) (*model.UserDTO, error) {
	updated, err := s.repo.Update(ctx, id, fn)
	if err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) {
			return nil, apiErr
		}
		return nil, fmt.Errorf("ユーザーの更新に失敗しました: %w", err)
	}
	if updated == nil {
		return nil, model.NewUserNotFoundError()
	}
	return updated.ToDTO(), nil
}
