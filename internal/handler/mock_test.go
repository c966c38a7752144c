package handler

import (
	"context"
	"time"

	"github.com/hitoshi/usergate/internal/identity"
	"github.com/hitoshi/usergate/internal/model"
)

// --- モック定義 ---

// mockUserService はUserServiceInterfaceのモック実装。
// 未設定の関数は「見つからない」または成功として振る舞う。
type mockUserService struct {
	findAllFn                   func(ctx context.Context) ([]*model.UserDTO, error)
	findByIDFn                  func(ctx context.Context, id string) (*model.UserDTO, error)
	findByFirebaseUIDFn         func(ctx context.Context, uid string) (*model.UserDTO, error)
	findInternalByFirebaseUIDFn func(ctx context.Context, uid string) (*model.InternalUserDTO, error)
	createFn                    func(ctx context.Context, input model.CreateUserInput, password string) (*model.UserDTO, error)
	updateFn                    func(ctx context.Context, id string, input model.UpdateUserInput) (*model.UserDTO, error)
	deleteFn                    func(ctx context.Context, id string) error
	addRoleFn                   func(ctx context.Context, id string, role model.Role) (*model.UserDTO, error)
	removeRoleFn                func(ctx context.Context, id string, role model.Role) (*model.UserDTO, error)
	setEmailVerifiedFn          func(ctx context.Context, id string, verified bool) (*model.UserDTO, error)
	updateLastLoginFn           func(ctx context.Context, id string) error

	lastLoginCalls int
}

func (m *mockUserService) FindAll(ctx context.Context) ([]*model.UserDTO, error) {
	if m.findAllFn != nil {
		return m.findAllFn(ctx)
	}
	return []*model.UserDTO{}, nil
}

func (m *mockUserService) FindByID(ctx context.Context, id string) (*model.UserDTO, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, model.NewUserNotFoundError()
}

func (m *mockUserService) FindByFirebaseUID(ctx context.Context, uid string) (*model.UserDTO, error) {
	if m.findByFirebaseUIDFn != nil {
		return m.findByFirebaseUIDFn(ctx, uid)
	}
	if m.findInternalByFirebaseUIDFn != nil {
		u, err := m.findInternalByFirebaseUIDFn(ctx, uid)
		if u == nil || err != nil {
			return nil, err
		}
		return &u.UserDTO, nil
	}
	return nil, nil
}

func (m *mockUserService) FindInternalByFirebaseUID(ctx context.Context, uid string) (*model.InternalUserDTO, error) {
	if m.findInternalByFirebaseUIDFn != nil {
		return m.findInternalByFirebaseUIDFn(ctx, uid)
	}
	return nil, nil
}

func (m *mockUserService) Create(ctx context.Context, input model.CreateUserInput, password string) (*model.UserDTO, error) {
	if m.createFn != nil {
		return m.createFn(ctx, input, password)
	}
	return &model.UserDTO{ID: "00000000-0000-0000-0000-000000000001", Email: input.Email, Name: input.Name}, nil
}

func (m *mockUserService) Update(ctx context.Context, id string, input model.UpdateUserInput) (*model.UserDTO, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, id, input)
	}
	return &model.UserDTO{ID: id}, nil
}

func (m *mockUserService) Delete(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

func (m *mockUserService) AddRole(ctx context.Context, id string, role model.Role) (*model.UserDTO, error) {
	if m.addRoleFn != nil {
		return m.addRoleFn(ctx, id, role)
	}
	return &model.UserDTO{ID: id, Roles: []model.Role{role}}, nil
}

func (m *mockUserService) RemoveRole(ctx context.Context, id string, role model.Role) (*model.UserDTO, error) {
	if m.removeRoleFn != nil {
		return m.removeRoleFn(ctx, id, role)
	}
	return &model.UserDTO{ID: id}, nil
}

func (m *mockUserService) SetEmailVerified(ctx context.Context, id string, verified bool) (*model.UserDTO, error) {
	if m.setEmailVerifiedFn != nil {
		return m.setEmailVerifiedFn(ctx, id, verified)
	}
	return &model.UserDTO{ID: id, EmailVerified: verified}, nil
}

func (m *mockUserService) UpdateLastLogin(ctx context.Context, id string) error {
	m.lastLoginCalls++
	if m.updateLastLoginFn != nil {
		return m.updateLastLoginFn(ctx, id)
	}
	return nil
}

// NewSession は認証ゲートのSessionResolverとして使うためのもの。
func (m *mockUserService) NewSession(u *model.InternalUserDTO, token *identity.VerifiedToken) *model.Session {
	return &model.Session{
		UserID:      u.ID,
		FirebaseUID: u.FirebaseUID,
		Email:       u.Email,
		Roles:       model.NewRoleSet(u.Roles...),
		ResolvedAt:  time.Now(),
	}
}

// mockTokenVerifier はmiddleware.TokenVerifierのモック実装。
type mockTokenVerifier struct {
	verifyFn func(ctx context.Context, token string) (*identity.VerifiedToken, error)
}

func (m *mockTokenVerifier) Verify(ctx context.Context, token string) (*identity.VerifiedToken, error) {
	return m.verifyFn(ctx, token)
}

// mockPinger はrepository.Pingerのモック実装。
type mockPinger struct {
	err error
}

func (m *mockPinger) PingContext(ctx context.Context) error {
	return m.err
}
