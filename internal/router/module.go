package router

import "github.com/gin-gonic/gin"

// Module registers one feature's routes (users, health, debug) on the /api group.
type Module interface {
	Register(rg *gin.RouterGroup)
}
