package domain

import (
	"time"
)

type Role string

const (
	RoleCitizen  Role = "citizen"
	RoleOfficial Role = "official"
)

func (r Role) Valid() bool {
	return r == RoleCitizen || r == RoleOfficial
}

// Connection is the registry's view of one live socket. Created on register,
// destroyed on disconnect, never persisted.
type Connection struct {
	ConnectionID string    `json:"connectionId"`
	UserID       string    `json:"userId"`
	DisplayName  string    `json:"displayName"`
	Role         Role      `json:"role"`
	ConnectedAt  time.Time `json:"connectedAt"`
}

type RegisterRequest struct {
	UserID      string `json:"userId" validate:"required"`
	Role        Role   `json:"role" validate:"required,oneof=citizen official"`
	DisplayName string `json:"displayName"`
}

type RegisteredResponse struct {
	SocketID string `json:"socketId"`
}
