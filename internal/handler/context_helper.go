package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-select-api/internal/middleware"
	"github.com/noah-isme/course-select-api/internal/models"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

// actingStudentID resolves the student a request operates on. Students act
// on their own record; admins name the student in the explicit parameter.
func actingStudentID(c *gin.Context, explicit int64) int64 {
	claims := claimsFromContext(c)
	if claims == nil {
		return 0
	}
	if claims.Role == models.RoleStudent {
		if claims.StudentID == nil {
			return 0
		}
		return *claims.StudentID
	}
	return explicit
}
