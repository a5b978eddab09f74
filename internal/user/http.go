package user

import (
	"net/http"
	"time"

	"github.com/FleetDVCR/FleetDVCR/internal/common/server"
	"github.com/gin-gonic/gin"
)

// userOut 用户对外视图（不含密码哈希）。
type userOut struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

func toUserOut(u *User) userOut {
	return userOut{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
}

// roleOut 命名角色对外视图。
type roleOut struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Permissions []string `json:"permissions"`
}

func toRoleOut(r *Role) roleOut {
	return roleOut{ID: r.ID, Name: r.Name, Permissions: r.PermissionsSlice()}
}

// RegisterRoutes 挂载认证与用户/角色管理路由。
func RegisterRoutes(router *gin.Engine, svc *Service) {
	router.POST("/auth/login", handleLogin(svc))
	router.GET("/me", handleMe(svc))

	router.GET("/users", handleListUsers(svc))
	router.POST("/users", handleCreateUser(svc))
	router.PATCH("/users/:id", handlePatchUser(svc))
	router.DELETE("/users/:id", handleDeleteUser(svc))

	router.GET("/roles", handleListRoles(svc))
	router.POST("/roles", handleCreateRole(svc))
	router.PATCH("/roles/:id", handlePatchRole(svc))
	router.DELETE("/roles/:id", handleDeleteRole(svc))
}

func handleLogin(svc *Service) gin.HandlerFunc {
	type loginIn struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	return func(c *gin.Context) {
		var in loginIn
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid request body"})
			return
		}
		res, err := svc.Login(c.Request.Context(), in.Email, in.Password)
		if err != nil {
			server.AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"access_token": res.AccessToken,
			"token_type":   "bearer",
			"expires_at":   res.ExpiresAt,
			"user":         toUserOut(res.User),
		})
	}
}

func handleMe(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := server.ResolvePrincipal(c, svc)
		if err != nil {
			server.AbortWithError(c, err)
			return
		}
		u, err := svc.GetUser(c.Request.Context(), p.ID)
		if err != nil {
			server.AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, toUserOut(u))
	}
}

func handleListUsers(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := server.ResolvePrincipal(c, svc)
		if err != nil {
			server.AbortWithError(c, err)
			return
		}
		users, err := svc.ListUsers(c.Request.Context(), p)
		if err != nil {
			server.AbortWithError(c, err)
			return
		}
		out := make([]userOut, 0, len(users))
		for i := range users {
			out = append(out, toUserOut(&users[i]))
		}
		c.JSON(http.StatusOK, out)
	}
}

func handleCreateUser(svc *Service) gin.HandlerFunc {
	type createIn struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Role     string `json:"role"`
		Password string `json:"password"`
	}
	return func(c *gin.Context) {
		p, err := server.ResolvePrincipal(c, svc)
		if err != nil {
			server.AbortWithError(c, err)
			return
		}
		var in createIn
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid request body"})
			return
		}
		u, err := svc.CreateUser(c.Request.Context(), p, CreateUserInput{
			Name:     in.Name,
			Email:    in.Email,
			Role:     in.Role,
			Password: in.Password,
		})
		if err != nil {
			server.AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusCreated, toUserOut(u))
	}
}

func handlePatchUser(svc *Service) gin.HandlerFunc {
	type patchIn struct {
		Name     *string `json:"name"`
		Email    *string `json:"email"`
		Role     *string `json:"role"`
		Password *string `json:"password"`
	}
	return func(c *gin.Context) {
		p, err := server.ResolvePrincipal(c, svc)
		if err != nil {
			server.AbortWithError(c, err)
			return
		}
		var in patchIn
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid request body"})
			return
		}
		u, err := svc.PatchUser(c.Request.Context(), p, c.Param("id"), UserPatch{
			Name:     in.Name,
			Email:    in.Email,
			Role:     in.Role,
			Password: in.Password,
		})
		if err != nil {
			server.AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, toUserOut(u))
	}
}

func handleDeleteUser(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := server.ResolvePrincipal(c, svc)
		if err != nil {
			server.AbortWithError(c, err)
			return
		}
		if err := svc.DeleteUser(c.Request.Context(), p, c.Param("id")); err != nil {
			server.AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

func handleListRoles(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := server.ResolvePrincipal(c, svc)
		if err != nil {
			server.AbortWithError(c, err)
			return
		}
		roles, err := svc.ListRoles(c.Request.Context(), p)
		if err != nil {
			server.AbortWithError(c, err)
			return
		}
		out := make([]roleOut, 0, len(roles))
		for i := range roles {
			out = append(out, toRoleOut(&roles[i]))
		}
		c.JSON(http.StatusOK, out)
	}
}

func handleCreateRole(svc *Service) gin.HandlerFunc {
	type roleIn struct {
		Name        string   `json:"name"`
		Permissions []string `json:"permissions"`
	}
	return func(c *gin.Context) {
		p, err := server.ResolvePrincipal(c, svc)
		if err != nil {
			server.AbortWithError(c, err)
			return
		}
		var in roleIn
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid request body"})
			return
		}
		role, err := svc.CreateRole(c.Request.Context(), p, RoleInput{Name: in.Name, Permissions: in.Permissions})
		if err != nil {
			server.AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusCreated, toRoleOut(role))
	}
}

func handlePatchRole(svc *Service) gin.HandlerFunc {
	type roleIn struct {
		Name        string   `json:"name"`
		Permissions []string `json:"permissions"`
	}
	return func(c *gin.Context) {
		p, err := server.ResolvePrincipal(c, svc)
		if err != nil {
			server.AbortWithError(c, err)
			return
		}
		var in roleIn
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid request body"})
			return
		}
		role, err := svc.PatchRole(c.Request.Context(), p, c.Param("id"), RoleInput{Name: in.Name, Permissions: in.Permissions})
		if err != nil {
			server.AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, toRoleOut(role))
	}
}

func handleDeleteRole(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := server.ResolvePrincipal(c, svc)
		if err != nil {
			server.AbortWithError(c, err)
			return
		}
		if err := svc.DeleteRole(c.Request.Context(), p, c.Param("id")); err != nil {
			server.AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}
