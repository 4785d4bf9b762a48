package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/dekont-api/internal/middleware"
	"github.com/noah-isme/dekont-api/internal/models"
)

// Routes bundles the handlers and guards mounted under the API prefix.
type Routes struct {
	Auth           *AuthHandler
	Receipts       *ReceiptHandler
	Files          *ReceiptFileHandler
	Analysis       *AnalysisHandler
	Reconciliation *ReconciliationHandler

	Authenticate   gin.HandlerFunc
	BatchRateLimit gin.HandlerFunc
	Audit          func(action, resource string) gin.HandlerFunc
}

// Register mounts every API route on group.
func (r Routes) Register(group *gin.RouterGroup) {
	audit := r.Audit
	if audit == nil {
		audit = func(string, string) gin.HandlerFunc { return func(c *gin.Context) { c.Next() } }
	}
	rateLimit := r.BatchRateLimit
	if rateLimit == nil {
		rateLimit = func(c *gin.Context) { c.Next() }
	}
	anyRole := middleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin, models.RoleTeacher, models.RoleStudent)
	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin, models.RoleTeacher)
	admins := middleware.Admins()

	group.POST("/auth/login", r.Auth.Login)
	// Signed links carry their own authorisation.
	group.GET("/receipts/files/download", r.Files.Download)

	secured := group.Group("")
	secured.Use(r.Authenticate)
	secured.GET("/auth/me", r.Auth.Me)

	receipts := secured.Group("/receipts")
	receipts.POST("/files", anyRole, audit(models.AuditActionFileUpload, models.AuditResourceReceipt), r.Files.Upload)
	receipts.POST("", anyRole, r.Receipts.Submit)
	receipts.GET("", r.Receipts.List)
	receipts.POST("/analyze/batch", admins, rateLimit, audit(models.AuditActionBatchAnalyze, models.AuditResourceReceipt), r.Analysis.Batch)
	receipts.GET("/:id", r.Receipts.Get)
	receipts.GET("/:id/file-url", r.Files.FileURL)
	receipts.PATCH("/:id", r.Receipts.Update)
	receipts.DELETE("/:id", r.Receipts.Delete)
	receipts.POST("/:id/approve", admins, r.Receipts.Approve)
	receipts.POST("/:id/reject", admins, r.Receipts.Reject)
	receipts.POST("/:id/analyze", admins, r.Analysis.Analyze)

	reconciliation := secured.Group("/reconciliation", staff)
	reconciliation.GET("/missing", r.Reconciliation.Missing)
	reconciliation.GET("/missing/export", audit(models.AuditActionExport, models.AuditResourceReconciliation), r.Reconciliation.Export)
	reconciliation.POST("/reminders", admins, audit(models.AuditActionReminders, models.AuditResourceReconciliation), r.Reconciliation.Reminders)

	secured.GET("/internships/:id/compliance", staff, r.Reconciliation.Compliance)
}
