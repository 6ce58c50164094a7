// Package model はドメインモデルを定義する。
package model

import "time"

// Role はユーザーの権限種別を表す。
type Role string

const (
	// RoleUser は一般ユーザー。登録時は常にこの値になる。
	RoleUser Role = "user"
	// RoleAdmin は管理者。
	RoleAdmin Role = "admin"
)

// User はIDプロバイダーのアカウントをミラーしたプロフィールを表す。
// IDはIDプロバイダー側のユーザーIDと同一。
type User struct {
	ID        string
	Email     string
	Username  string
	Role      Role
	CreatedAt time.Time
}

// RegisterInput はユーザー登録の入力を表す。
type RegisterInput struct {
	Email    string
	Password string
	Username string
}

// LoginInput はログインの入力を表す。
type LoginInput struct {
	Email    string
	Password string
}

// RevokedToken はログアウトにより失効させたセッショントークンを表す。
type RevokedToken struct {
	JTI       string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}
