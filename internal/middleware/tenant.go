package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/skillcore/skillcore-backend/internal/model"
	"github.com/skillcore/skillcore-backend/internal/repository"
	"github.com/skillcore/skillcore-backend/internal/response"
)

// GetScope builds the tenant scope from the authenticated claims.
// Guardian tokens carry a district but no school.
func GetScope(c *gin.Context) model.TenantScope {
	claims := GetClaims(c)
	if claims == nil {
		return model.TenantScope{}
	}
	return claims.Scope()
}

// CheckStaffActive rejects tokens whose staff account was deactivated
// after the token was issued. Tokens outlive an admin flipping the
// is_active switch, so the account state is the source of truth here.
func CheckStaffActive(staffRepo *repository.StaffRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		staff, err := staffRepo.GetByID(c.Request.Context(), claims.DistrictID, claims.UserID)
		if err != nil || !staff.IsActive {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrAccountDeactivated)
			return
		}

		c.Next()
	}
}
