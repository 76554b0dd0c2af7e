package common

// APIResponse 成功响应信封,所有业务接口共用
// Error 仅在请求整体成功但附带告警信息时使用
type APIResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ErrorResponse 错误响应信封,Code 供客户端做程序化区分
type ErrorResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}
