package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/dekont-api/internal/middleware"
	"github.com/noah-isme/dekont-api/internal/models"
	"github.com/noah-isme/dekont-api/internal/service"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	return middleware.ClaimsFrom(c)
}

func actorFromContext(c *gin.Context) service.Actor {
	return service.ActorFromClaims(claimsFromContext(c), c.ClientIP(), c.GetHeader("User-Agent"))
}
