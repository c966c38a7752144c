package model

import "time"

// User はサービス利用ユーザーのローカルレコードを表す。
// 資格情報の検証は外部IdP（Firebase Authentication）が担い、
// このレコードはロールやプロフィールなどアプリケーション固有の情報を保持する。
type User struct {
	ID            string  // 内部ID（UUID、作成時に採番し以後不変）
	FirebaseUID   string  // 外部IdPのサブジェクトID（一意、不変）
	Email         string  // 空文字はメールアドレス未設定を表す
	Name          string  // 表示名
	EmailVerified bool
	Roles         RoleSet // 空になることはない
	CreatedAt     time.Time
	UpdatedAt     time.Time
	LastLogin     *time.Time
}

// Clone はUserの複製を返す。RoleSetとLastLoginは共有しない。
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	c.Roles = u.Roles.Clone()
	if u.LastLogin != nil {
		t := *u.LastLogin
		c.LastLogin = &t
	}
	return &c
}

// UserDTO は外部公開用のユーザー射影。外部IdPのサブジェクトIDは含めない。
type UserDTO struct {
	ID            string     `json:"id"`
	Email         string     `json:"email,omitempty"`
	Name          string     `json:"name,omitempty"`
	EmailVerified bool       `json:"emailVerified"`
	Roles         []Role     `json:"roles"`
	LastLogin     *time.Time `json:"lastLogin"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// InternalUserDTO は内部用のユーザー射影。外部IdPのサブジェクトIDを含む。
type InternalUserDTO struct {
	UserDTO
	FirebaseUID string `json:"firebaseUid"`
}

// ToDTO はUserを公開用の射影に変換する。
func (u *User) ToDTO() *UserDTO {
	return &UserDTO{
		ID:            u.ID,
		Email:         u.Email,
		Name:          u.Name,
		EmailVerified: u.EmailVerified,
		Roles:         u.Roles.Slice(),
		LastLogin:     u.LastLogin,
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}
}

// ToInternalDTO はUserを内部用の射影に変換する。
// 公開用射影と同じ値を埋め込むため、両者が食い違うことはない。
func (u *User) ToInternalDTO() *InternalUserDTO {
	return &InternalUserDTO{
		UserDTO:     *u.ToDTO(),
		FirebaseUID: u.FirebaseUID,
	}
}

// CreateUserInput はユーザー作成時の入力。
type CreateUserInput struct {
	Email string
	Name  string
}

// UpdateUserInput はユーザー更新時の部分入力。nilのフィールドは変更しない。
type UpdateUserInput struct {
	Email *string
	Name  *string
}
