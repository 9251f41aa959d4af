package dto

type RegisterRequest struct {
	Name        string `json:"name" binding:"required,min=2,max=50"`
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=8,max=64"`
	Role        string `json:"role" binding:"required,oneof=EMPLOYEE GUARDIAN"`
	PhoneNumber string `json:"phoneNumber"`
	OrgCode     string `json:"orgCode"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Token  string `json:"token"`
	UserID int    `json:"userId"`
	Role   string `json:"role"`
}

type OrgCodeRequest struct {
	OrgID       int    `json:"orgId" binding:"required"`
	PhoneNumber string `json:"phoneNumber" binding:"required"`
}
