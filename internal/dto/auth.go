package dto

// ── 认证模块 DTO ──

// SignUpRequest 注册请求
type SignUpRequest struct {
	Email       string `json:"email"        binding:"required,email"`
	Password    string `json:"password"     binding:"required,min=8,max=64"`
	DisplayName string `json:"display_name" binding:"required,min=1,max=40"`
}

// SignInRequest 登录请求
type SignInRequest struct {
	Email    string `json:"email"    binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// RefreshTokenRequest 刷新 Token 请求
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// ── 个人资料 DTO ──

// UpdateProfileRequest 更新个人资料请求
type UpdateProfileRequest struct {
	DisplayName *string `json:"display_name" binding:"omitempty,max=40"`
	Bio         *string `json:"bio"          binding:"omitempty,max=500"`
}
