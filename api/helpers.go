package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// HealthResponse 健康检查响应体
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

// HealthCheck 存活探针
// @Summary 服务健康检查
// @Description 进程存活即返回 healthy,知识库规模等状态见 stats 接口
// @Tags System
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /health [get]
func HealthCheck() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, HealthResponse{
			Status:  "healthy",
			Service: "DocQA",
		})
	}
}
