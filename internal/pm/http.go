package pm

import (
	"net/http"
	"strconv"
	"time"

	"github.com/FleetDVCR/FleetDVCR/internal/common/server"
	"github.com/FleetDVCR/FleetDVCR/internal/guard"
	"github.com/gin-gonic/gin"
)

// serviceOut 保养记录对外视图。
type serviceOut struct {
	ID          string    `json:"id"`
	VehicleID   string    `json:"vehicle_id"`
	ServiceType Category  `json:"service_type"`
	Odometer    int64     `json:"odometer"`
	Notes       string    `json:"notes"`
	CreatedAt   time.Time `json:"created_at"`
}

func toServiceOut(r *ServiceRecord) serviceOut {
	return serviceOut{
		ID:          r.ID,
		VehicleID:   r.VehicleID,
		ServiceType: r.Category,
		Odometer:    r.Odometer,
		Notes:       r.Notes,
		CreatedAt:   r.CreatedAt,
	}
}

// appointmentOut 预约对外视图。
type appointmentOut struct {
	ID          string            `json:"id"`
	VehicleID   string            `json:"vehicle_id"`
	ServiceType Category          `json:"service_type"`
	Shop        string            `json:"shop"`
	ScheduledAt time.Time         `json:"scheduled_at"`
	Status      AppointmentStatus `json:"status"`
	CompletedAt *time.Time        `json:"completed_at"`
	CancelledAt *time.Time        `json:"cancelled_at"`
}

func toAppointmentOut(a *PMAppointment) appointmentOut {
	return appointmentOut{
		ID:          a.ID,
		VehicleID:   a.VehicleID,
		ServiceType: a.Category,
		Shop:        a.Shop,
		ScheduledAt: a.ScheduledAt,
		Status:      a.Status,
		CompletedAt: a.CompletedAt,
		CancelledAt: a.CancelledAt,
	}
}

// alertOut 告警对外视图。
type alertOut struct {
	VehicleID          string          `json:"vehicle_id"`
	VehicleNumber      string          `json:"vehicle_number"`
	Status             PmStatus        `json:"status"`
	OilDueSoon         bool            `json:"oil_due_soon"`
	ChassisDueSoon     bool            `json:"chassis_due_soon"`
	Urgency            int64           `json:"urgency"`
	OilAppointment     *appointmentOut `json:"oil_appointment,omitempty"`
	ChassisAppointment *appointmentOut `json:"chassis_appointment,omitempty"`
}

func toAlertOut(e *AlertEntry) alertOut {
	out := alertOut{
		VehicleID:      e.Vehicle.ID,
		VehicleNumber:  e.Vehicle.Number,
		Status:         e.Status,
		OilDueSoon:     e.OilDueSoon,
		ChassisDueSoon: e.ChassisDueSoon,
		Urgency:        e.Urgency,
	}
	if e.OilAppointment != nil {
		a := toAppointmentOut(e.OilAppointment)
		out.OilAppointment = &a
	}
	if e.ChassisAppointment != nil {
		a := toAppointmentOut(e.ChassisAppointment)
		out.ChassisAppointment = &a
	}
	return out
}

// RegisterRoutes 挂载保养到期/记录/预约/告警路由。
func RegisterRoutes(router *gin.Engine, svc *Service, resolver guard.Resolver) {
	router.GET("/vehicles/:id/pm-next", handlePmNext(svc, resolver))
	router.GET("/pm/alerts", handleListAlerts(svc, resolver))
	router.POST("/vehicles/:id/service", handleCreateService(svc, resolver))
	router.GET("/vehicles/:id/service", handleListService(svc, resolver))
	router.DELETE("/service/:id", handleDeleteService(svc, resolver))
	router.POST("/vehicles/:id/appointments", handleCreateAppointment(svc, resolver))
	router.GET("/vehicles/:id/appointments", handleListAppointments(svc, resolver))
	router.PATCH("/appointments/:id", handlePatchAppointment(svc, resolver))
	router.DELETE("/appointments/:id", handleDeleteAppointment(svc, resolver))
}

func handlePmNext(svc *Service, resolver guard.Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := server.ResolvePrincipal(c, resolver); err != nil {
			server.AbortWithError(c, err)
			return
		}
		status, err := svc.PmNext(c.Request.Context(), c.Param("id"))
		if err != nil {
			server.AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, status)
	}
}

// handleListAlerts 支持 ?oil= 和 ?chassis= 覆盖阈值，
// ?appointments=true 附带最近的 scheduled 预约。
func handleListAlerts(svc *Service, resolver guard.Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := server.ResolvePrincipal(c, resolver)
		if err != nil {
			server.AbortWithError(c, err)
			return
		}
		oil := parseThreshold(c.Query("oil"))
		chassis := parseThreshold(c.Query("chassis"))
		withAppointments := c.Query("appointments") == "true" || c.Query("appointments") == "1"

		entries, err := svc.ListAlerts(c.Request.Context(), p, oil, chassis, withAppointments)
		if err != nil {
			server.AbortWithError(c, err)
			return
		}
		out := make([]alertOut, 0, len(entries))
		for i := range entries {
			out = append(out, toAlertOut(&entries[i]))
		}
		c.JSON(http.StatusOK, out)
	}
}

// parseThreshold 非法或缺省的阈值返回 0，由服务层取配置默认。
func parseThreshold(raw string) int64 {
	if raw == "" {
		return 0
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}

func handleCreateService(svc *Service, resolver guard.Resolver) gin.HandlerFunc {
	type serviceIn struct {
		ServiceType string `json:"service_type"`
		Odometer    int64  `json:"odometer"`
		Notes       string `json:"notes"`
	}
	return func(c *gin.Context) {
		p, err := server.ResolvePrincipal(c, resolver)
		if err != nil {
			server.AbortWithError(c, err)
			return
		}
		var in serviceIn
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid request body"})
			return
		}
		status, err := svc.CreateServiceRecord(c.Request.Context(), p, c.Param("id"), ServiceInput{
			Category: in.ServiceType,
			Odometer: in.Odometer,
			Notes:    in.Notes,
		})
		if err != nil {
			server.AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, status)
	}
}

func handleListService(svc *Service, resolver guard.Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := server.ResolvePrincipal(c, resolver); err != nil {
			server.AbortWithError(c, err)
			return
		}
		recs, err := svc.ListServiceRecords(c.Request.Context(), c.Param("id"))
		if err != nil {
			server.AbortWithError(c, err)
			return
		}
		out := make([]serviceOut, 0, len(recs))
		for i := range recs {
			out = append(out, toServiceOut(&recs[i]))
		}
		c.JSON(http.StatusOK, out)
	}
}

func handleDeleteService(svc *Service, resolver guard.Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := server.ResolvePrincipal(c, resolver)
		if err != nil {
			server.AbortWithError(c, err)
			return
		}
		if err := svc.DeleteServiceRecord(c.Request.Context(), p, c.Param("id")); err != nil {
			server.AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

func handleCreateAppointment(svc *Service, resolver guard.Resolver) gin.HandlerFunc {
	type appointmentIn struct {
		ServiceType string    `json:"service_type"`
		Shop        string    `json:"shop"`
		ScheduledAt time.Time `json:"scheduled_at"`
	}
	return func(c *gin.Context) {
		p, err := server.ResolvePrincipal(c, resolver)
		if err != nil {
			server.AbortWithError(c, err)
			return
		}
		var in appointmentIn
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid request body"})
			return
		}
		a, err := svc.CreateAppointment(c.Request.Context(), p, c.Param("id"), AppointmentInput{
			Category:    in.ServiceType,
			Shop:        in.Shop,
			ScheduledAt: in.ScheduledAt,
		})
		if err != nil {
			server.AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusCreated, toAppointmentOut(a))
	}
}

func handleListAppointments(svc *Service, resolver guard.Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := server.ResolvePrincipal(c, resolver); err != nil {
			server.AbortWithError(c, err)
			return
		}
		apps, err := svc.ListAppointments(c.Request.Context(), c.Param("id"))
		if err != nil {
			server.AbortWithError(c, err)
			return
		}
		out := make([]appointmentOut, 0, len(apps))
		for i := range apps {
			out = append(out, toAppointmentOut(&apps[i]))
		}
		c.JSON(http.StatusOK, out)
	}
}

func handlePatchAppointment(svc *Service, resolver guard.Resolver) gin.HandlerFunc {
	type patchIn struct {
		Shop        *string    `json:"shop"`
		ScheduledAt *time.Time `json:"scheduled_at"`
		Status      *string    `json:"status"`
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
		a, err := svc.PatchAppointment(c.Request.Context(), p, c.Param("id"), AppointmentPatch{
			Shop:        in.Shop,
			ScheduledAt: in.ScheduledAt,
			Status:      in.Status,
		})
		if err != nil {
			server.AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, toAppointmentOut(a))
	}
}

func handleDeleteAppointment(svc *Service, resolver guard.Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := server.ResolvePrincipal(c, resolver)
		if err != nil {
			server.AbortWithError(c, err)
			return
		}
		if err := svc.DeleteAppointment(c.Request.Context(), p, c.Param("id")); err != nil {
			server.AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}
