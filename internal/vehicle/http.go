package vehicle

import (
	"net/http"
	"time"

	"github.com/FleetDVCR/FleetDVCR/internal/common/server"
	"github.com/FleetDVCR/FleetDVCR/internal/guard"
	"github.com/gin-gonic/gin"
)

// vehicleOut 车辆对外视图。
type vehicleOut struct {
	ID        string    `json:"id"`
	Number    string    `json:"number"`
	VIN       string    `json:"vin"`
	Active    bool      `json:"active"`
	Odometer  int64     `json:"odometer"`
	CreatedAt time.Time `json:"created_at"`
}

func toVehicleOut(v *Vehicle) vehicleOut {
	return vehicleOut{
		ID:        v.ID,
		Number:    v.Number,
		VIN:       v.VIN,
		Active:    v.Active,
		Odometer:  v.Odometer,
		CreatedAt: v.CreatedAt,
	}
}

// RegisterRoutes 挂载车辆档案路由；读接口开放，写接口经 Guard 审核。
func RegisterRoutes(router *gin.Engine, svc *Service, resolver guard.Resolver) {
	router.GET("/vehicles", handleListVehicles(svc))
	router.GET("/vehicles/:id", handleGetVehicle(svc))
	router.POST("/vehicles", handleCreateVehicle(svc, resolver))
	router.PATCH("/vehicles/:id", handlePatchVehicle(svc, resolver))
	router.DELETE("/vehicles/:id", handleDeleteVehicle(svc, resolver))
}

func handleListVehicles(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		vehicles, err := svc.ListVehicles(c.Request.Context())
		if err != nil {
			server.AbortWithError(c, err)
			return
		}
		out := make([]vehicleOut, 0, len(vehicles))
		for i := range vehicles {
			out = append(out, toVehicleOut(&vehicles[i]))
		}
		c.JSON(http.StatusOK, out)
	}
}

func handleGetVehicle(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		v, err := svc.GetVehicle(c.Request.Context(), c.Param("id"))
		if err != nil {
			server.AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, toVehicleOut(v))
	}
}

func handleCreateVehicle(svc *Service, resolver guard.Resolver) gin.HandlerFunc {
	type createIn struct {
		Number   string `json:"number"`
		VIN      string `json:"vin"`
		Odometer int64  `json:"odometer"`
	}
	return func(c *gin.Context) {
		p, err := server.ResolvePrincipal(c, resolver)
		if err != nil {
			server.AbortWithError(c, err)
			return
		}
		var in createIn
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid request body"})
			return
		}
		v, err := svc.CreateVehicle(c.Request.Context(), p, CreateVehicleInput{
			Number:   in.Number,
			VIN:      in.VIN,
			Odometer: in.Odometer,
		})
		if err != nil {
			server.AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusCreated, toVehicleOut(v))
	}
}

func handlePatchVehicle(svc *Service, resolver guard.Resolver) gin.HandlerFunc {
	type patchIn struct {
		Number   *string `json:"number"`
		VIN      *string `json:"vin"`
		Active   *bool   `json:"active"`
		Odometer *int64  `json:"odometer"`
	}
	return func(c *gin.Context) {
		p, err := server.ResolvePrincipal(c, resolver)
		if err != nil {
			server.AbortWithError(c, err)
			return
		}
		var in patchIn
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid request body"})
			return
		}
		v, err := svc.PatchVehicle(c.Request.Context(), p, c.Param("id"), VehiclePatch{
			Number:   in.Number,
			VIN:      in.VIN,
			Active:   in.Active,
			Odometer: in.Odometer,
		})
		if err != nil {
			server.AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, toVehicleOut(v))
	}
}

func handleDeleteVehicle(svc *Service, resolver guard.Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := server.ResolvePrincipal(c, resolver)
		if err != nil {
			server.AbortWithError(c, err)
			return
		}
		if err := svc.DeleteVehicle(c.Request.Context(), p, c.Param("id")); err != nil {
			server.AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}
