package main

// User 基本用户信息
type User struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Email  string  `json:"email"`
	Role   string  `json:"role"`
	TeamID *string `json:"teamId,omitempty"`
}

// Team 队伍信息
type Team struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Points int    `json:"points"`
	Status string `json:"status"` // active | banned
}

// 请求类型
type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type registerMember struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type registerRequest struct {
	TeamName string           `json:"teamName" binding:"required"`
	Members  []registerMember `json:"members" binding:"required"`
}
