package model

import "time"

// Session は認証済みリクエストごとに組み立てる読み取り専用の射影。
// 永続化はせず、リクエストの寿命を超えて保持しない。
type Session struct {
	UserID        string
	FirebaseUID   string
	Email         string
	Name          string
	Roles         RoleSet
	EmailVerified bool
	LastLogin     *time.Time
	ResolvedAt    time.Time
}

// HasRole はセッションのユーザーがロールを持つかを返す。
func (s *Session) HasRole(r Role) bool {
	return s.Roles.Contains(r)
}
