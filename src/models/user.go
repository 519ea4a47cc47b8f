package models

import (
	"reflect"
)

var UserType = reflect.TypeOf(User{})

type User struct {
	ID    int    `db:"id" json:"id"`
	Name  string `db:"name" json:"name"`
	Color string `db:"color" json:"color"`

	// Nil until a password has been set. Never sent to clients.
	Password *string `db:"password" json:"-"`
}

func (u *User) HasPassword() bool {
	return u.Password != nil && *u.Password != ""
}
