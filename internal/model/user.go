// Package model はドメインモデルを定義する。
package model

import "time"

// Role はユーザーの権限を表す。
type Role string

const (
	// RoleCustomer は一般の購入者。
	RoleCustomer Role = "customer"
	// RoleAdmin は商品カタログを管理できる管理者。
	RoleAdmin Role = "admin"
)

// User はストアの利用ユーザーを表す。
type User struct {
	ID           int64
	Email        string
	PasswordHash string
	Name         string
	Role         Role
	CreatedAt    time.Time
}

// IsAdmin は管理者権限を持つかどうかを返す。
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// Session はユーザーのログインセッションを表す。
type Session struct {
	ID        string
	UserID    int64
	ExpiresAt time.Time
	CreatedAt time.Time
}
