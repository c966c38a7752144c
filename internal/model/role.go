package model

import (
	"fmt"
	"sort"
	"strings"
)

// Role はユーザーに付与される権限タグ。階層は持たない。
type Role string

const (
	// RoleUser は全ユーザーが持つ基本ロール。
	RoleUser Role = "USER"
	// RoleAdmin は管理操作を許可するロール。
	RoleAdmin Role = "ADMIN"
)

// AllRoles は定義済みの全ロールを返す。
func AllRoles() []Role {
	return []Role{RoleUser, RoleAdmin}
}

// IsValid は定義済みのロールかどうかを返す。
func (r Role) IsValid() bool {
	switch r {
	case RoleUser, RoleAdmin:
		return true
	default:
		return false
	}
}

// ParseRole は文字列をRoleに変換する。大文字小文字は区別しない。
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	if !r.IsValid() {
		return "", fmt.Errorf("unknown role: %q", s)
	}
	return r, nil
}

// RoleSet はロールの集合。複数ロールは加算的に扱い、優先順位はない。
type RoleSet map[Role]struct{}

// NewRoleSet は指定ロールからRoleSetを生成する。
func NewRoleSet(roles ...Role) RoleSet {
	s := make(RoleSet, len(roles))
	for _, r := range roles {
		s[r] = struct{}{}
	}
	return s
}

// DefaultRoles は新規ユーザーに付与するロール集合 {USER} を返す。
func DefaultRoles() RoleSet {
	return NewRoleSet(RoleUser)
}

// Contains はロールが含まれているかを返す。
func (s RoleSet) Contains(r Role) bool {
	_, ok := s[r]
	return ok
}

// Add はロールを追加する。既に含まれている場合は何もしない。
func (s RoleSet) Add(r Role) {
	s[r] = struct{}{}
}

// Remove はロールを削除する。含まれていない場合は何もしない。
func (s RoleSet) Remove(r Role) {
	delete(s, r)
}

// Intersects は他の集合と1つでも共通のロールを持つかを返す（any-of判定）。
func (s RoleSet) Intersects(other RoleSet) bool {
	for r := range other {
		if s.Contains(r) {
			return true
		}
	}
	return false
}

// Union は2つの集合の和集合を新しく返す。
func (s RoleSet) Union(other RoleSet) RoleSet {
	u := make(RoleSet, len(s)+len(other))
	for r := range s {
		u[r] = struct{}{}
	}
	for r := range other {
		u[r] = struct{}{}
	}
	return u
}

// Clone は集合の複製を返す。
func (s RoleSet) Clone() RoleSet {
	return s.Union(nil)
}

// Slice は名前順にソートしたロールのスライスを返す。
// 永続化とJSON出力で順序を安定させるために使う。
func (s RoleSet) Slice() []Role {
	out := make([]Role, 0, len(s))
	for r := range s {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Strings はSliceの文字列版。
func (s RoleSet) Strings() []string {
	roles := s.Slice()
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = string(r)
	}
	return out
}

// ParseRoleSet は文字列スライスからRoleSetを生成する。未知のロールはエラーとする。
func ParseRoleSet(values []string) (RoleSet, error) {
	s := make(RoleSet, len(values))
	for _, v := range values {
		r, err := ParseRole(v)
		if err != nil {
			return nil, err
		}
		s.Add(r)
	}
	return s, nil
}
