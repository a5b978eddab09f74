package inspection

import (
	"io"
	"net/http"
	"time"

	"github.com/FleetDVCR/FleetDVCR/internal/common/server"
	"github.com/FleetDVCR/FleetDVCR/internal/guard"
	"github.com/gin-gonic/gin"
)

// photoOut 照片对外视图。
type photoOut struct {
	ID       string `json:"id"`
	DefectID string `json:"defect_id"`
	Path     string `json:"path"`
	Caption  string `json:"caption"`
}

func toPhotoOut(p *Photo) photoOut {
	return photoOut{ID: p.ID, DefectID: p.DefectID, Path: p.Path, Caption: p.Caption}
}

// defectOut 缺陷对外视图。
type defectOut struct {
	ID           string     `json:"id"`
	ReportID     string     `json:"report_id"`
	Component    string     `json:"component"`
	Severity     string     `json:"severity"`
	Description  string     `json:"description"`
	X            *float64   `json:"x"`
	Y            *float64   `json:"y"`
	Resolved     bool       `json:"resolved"`
	ResolvedByID *string    `json:"resolved_by_id"`
	ResolvedAt   *time.Time `json:"resolved_at"`
	Photos       []photoOut `json:"photos"`
}

func toDefectOut(d *Defect) defectOut {
	photos := make([]photoOut, 0, len(d.Photos))
	for i := range d.Photos {
		photos = append(photos, toPhotoOut(&d.Photos[i]))
	}
	return defectOut{
		ID:           d.ID,
		ReportID:     d.ReportID,
		Component:    d.Component,
		Severity:     d.Severity,
		Description:  d.Description,
		X:            d.X,
		Y:            d.Y,
		Resolved:     d.Resolved,
		ResolvedByID: d.ResolvedByID,
		ResolvedAt:   d.ResolvedAt,
		Photos:       photos,
	}
}

// noteOut 备注对外视图。
type noteOut struct {
	ID        string    `json:"id"`
	ReportID  string    `json:"report_id"`
	AuthorID  string    `json:"author_id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

func toNoteOut(n *Note) noteOut {
	return noteOut{ID: n.ID, ReportID: n.ReportID, AuthorID: n.AuthorID, Text: n.Text, CreatedAt: n.CreatedAt}
}

// reportOut 报告对外视图（详情接口带缺陷和备注）。
type reportOut struct {
	ID        string      `json:"id"`
	VehicleID string      `json:"vehicle_id"`
	DriverID  string      `json:"driver_id"`
	Type      ReportType  `json:"type"`
	Status    Status      `json:"status"`
	Odometer  *int64      `json:"odometer"`
	Summary   string      `json:"summary"`
	CreatedAt time.Time   `json:"created_at"`
	ClosedAt  *time.Time  `json:"closed_at"`
	Defects   []defectOut `json:"defects"`
	Notes     []noteOut   `json:"notes"`
}

func toReportOut(r *Report) reportOut {
	defects := make([]defectOut, 0, len(r.Defects))
	for i := range r.Defects {
		defects = append(defects, toDefectOut(&r.Defects[i]))
	}
	notes := make([]noteOut, 0, len(r.Notes))
	for i := range r.Notes {
		notes = append(notes, toNoteOut(&r.Notes[i]))
	}
	return reportOut{
		ID:        r.ID,
		VehicleID: r.VehicleID,
		DriverID:  r.DriverID,
		Type:      r.Type,
		Status:    r.Status,
		Odometer:  r.Odometer,
		Summary:   r.Summary,
		CreatedAt: r.CreatedAt,
		ClosedAt:  r.ClosedAt,
		Defects:   defects,
		Notes:     notes,
	}
}

// RegisterRoutes 挂载报告/缺陷/照片/备注路由。
func RegisterRoutes(router *gin.Engine, svc *Service, resolver guard.Resolver) {
	router.GET("/vehicles/:id/reports", handleListReports(svc))
	router.POST("/vehicles/:id/reports", handleCreateReport(svc, resolver))
	router.GET("/reports/:id", handleGetReport(svc))
	router.PATCH("/reports/:id", handlePatchReport(svc, resolver))
	router.POST("/reports/:id/notes", handleAddNote(svc, resolver))
	router.POST("/reports/:id/defects", handleAddDefect(svc, resolver))
	router.PATCH("/defects/:id", handlePatchDefect(svc, resolver))
	router.DELETE("/defects/:id", handleDeleteDefect(svc, resolver))
	router.POST("/defects/:id/photos", handleAddPhotos(svc, resolver))
	router.DELETE("/photos/:id", handleDeletePhoto(svc, resolver))
}

func handleListReports(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		reports, err := svc.ListReports(c.Request.Context(), c.Param("id"))
		if err != nil {
			server.AbortWithError(c, err)
			return
		}
		out := make([]reportOut, 0, len(reports))
		for i := range reports {
			out = append(out, toReportOut(&reports[i]))
		}
		c.JSON(http.StatusOK, out)
	}
}

func handleCreateReport(svc *Service, resolver guard.Resolver) gin.HandlerFunc {
	type createIn struct {
		Type     string `json:"type"`
		Odometer *int64 `json:"odometer"`
		Summary  string `json:"summary"`
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
		rep, err := svc.CreateReport(c.Request.Context(), p, c.Param("id"), CreateReportInput{
			Type:     in.Type,
			Odometer: in.Odometer,
			Summary:  in.Summary,
		})
		if err != nil {
			server.AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusCreated, toReportOut(rep))
	}
}

func handleGetReport(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		rep, err := svc.GetReport(c.Request.Context(), c.Param("id"))
		if err != nil {
			server.AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, toReportOut(rep))
	}
}

func handlePatchReport(svc *Service, resolver guard.Resolver) gin.HandlerFunc {
	type patchIn struct {
		Status   *string `json:"status"`
		Summary  *string `json:"summary"`
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
		rep, err := svc.PatchReport(c.Request.Context(), p, c.Param("id"), ReportPatch{
			Status:   in.Status,
			Summary:  in.Summary,
			Odometer: in.Odometer,
		})
		if err != nil {
			server.AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, toReportOut(rep))
	}
}

func handleAddNote(svc *Service, resolver guard.Resolver) gin.HandlerFunc {
	type noteIn struct {
		Text string `json:"text"`
	}
	return func(c *gin.Context) {
		p, err := server.ResolvePrincipal(c, resolver)
		if err != nil {
			server.AbortWithError(c, err)
			return
		}
		var in noteIn
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid request body"})
			return
		}
		n, err := svc.AddNote(c.Request.Context(), p, c.Param("id"), in.Text)
		if err != nil {
			server.AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusCreated, toNoteOut(n))
	}
}

func handleAddDefect(svc *Service, resolver guard.Resolver) gin.HandlerFunc {
	type defectIn struct {
		Component   string   `json:"component"`
		Severity    string   `json:"severity"`
		Description string   `json:"description"`
		X           *float64 `json:"x"`
		Y           *float64 `json:"y"`
	}
	return func(c *gin.Context) {
		p, err := server.ResolvePrincipal(c, resolver)
		if err != nil {
			server.AbortWithError(c, err)
			return
		}
		var in defectIn
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid request body"})
			return
		}
		d, err := svc.AddDefect(c.Request.Context(), p, c.Param("id"), DefectInput{
			Component:   in.Component,
			Severity:    in.Severity,
			Description: in.Description,
			X:           in.X,
			Y:           in.Y,
		})
		if err != nil {
			server.AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusCreated, toDefectOut(d))
	}
}

func handlePatchDefect(svc *Service, resolver guard.Resolver) gin.HandlerFunc {
	type patchIn struct {
		Description *string `json:"description"`
		Resolved    *bool   `json:"resolved"`
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
		d, err := svc.PatchDefect(c.Request.Context(), p, c.Param("id"), DefectPatch{
			Description: in.Description,
			Resolved:    in.Resolved,
		})
		if err != nil {
			server.AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, toDefectOut(d))
	}
}

func handleDeleteDefect(svc *Service, resolver guard.Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := server.ResolvePrincipal(c, resolver)
		if err != nil {
			server.AbortWithError(c, err)
			return
		}
		if err := svc.DeleteDefect(c.Request.Context(), p, c.Param("id")); err != nil {
			server.AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

// handleAddPhotos 接收 multipart 批量上传：files 为文件列表，
// captions 是整批共用的一个说明文字。
func handleAddPhotos(svc *Service, resolver guard.Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := server.ResolvePrincipal(c, resolver)
		if err != nil {
			server.AbortWithError(c, err)
			return
		}
		form, err := c.MultipartForm()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid multipart form"})
			return
		}
		headers := form.File["files"]
		if len(headers) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "no files in batch"})
			return
		}

		files := make([]PhotoFile, 0, len(headers))
		for _, fh := range headers {
			f, err := fh.Open()
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"detail": "unreadable file " + fh.Filename})
				return
			}
			data, err := io.ReadAll(f)
			f.Close()
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"detail": "unreadable file " + fh.Filename})
				return
			}
			files = append(files, PhotoFile{Name: fh.Filename, Data: data})
		}

		saved, err := svc.AddPhotos(c.Request.Context(), p, c.Param("id"), files, c.PostForm("captions"))
		if err != nil {
			// 批次中途失败：已落库的照片保留，错误照常上抛。
			server.AbortWithError(c, err)
			return
		}
		out := make([]photoOut, 0, len(saved))
		for i := range saved {
			out = append(out, toPhotoOut(&saved[i]))
		}
		c.JSON(http.StatusCreated, out)
	}
}

func handleDeletePhoto(svc *Service, resolver guard.Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := server.ResolvePrincipal(c, resolver)
		if err != nil {
			server.AbortWithError(c, err)
			return
		}
		if err := svc.DeletePhoto(c.Request.Context(), p, c.Param("id")); err != nil {
			server.AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}
