package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type User struct {
	gorm.Model
	Name                   string                       `json:"name" gorm:"size:100;not null"`
	Username               string                       `json:"username" gorm:"size:50;uniqueIndex;not null"`
	Email                  string                       `json:"email" gorm:"size:150;uniqueIndex;not null"`
	Phone                  string                       `json:"phone" gorm:"size:20;uniqueIndex;not null"`
	Address                string                       `json:"address" gorm:"type:text"`
	PasswordHash           string                       `json:"-" gorm:"not null"`
	ProfilePhoto           datatypes.JSONType[ImageRef] `json:"profilePhoto"`
	Role                   Role                         `json:"role" gorm:"type:varchar(20);not null;default:customer"`
	IsEmailVerified        bool                         `json:"isEmailVerified" gorm:"not null;default:false"`
	EmailVerificationToken string                       `json:"-" gorm:"size:191;index"`
	PasswordResetToken     string                       `json:"-" gorm:"size:191"`
	PasswordResetExpires   *time.Time                   `json:"-"`
}

func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

type LoginData struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type RegisterData struct {
	Name     string `json:"name" binding:"required,max=100"`
	Username string `json:"username" binding:"required,min=3,max=50"`
	Email    string `json:"email" binding:"required,email,max=150"`
	Phone    string `json:"phone" binding:"required,max=20"`
	Address  string `json:"address"`
	Password string `json:"password" binding:"required,min=6"`
}
