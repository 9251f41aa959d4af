package server

import (
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"

	"github.com/carelink/backend/internal/config"
	"github.com/carelink/backend/internal/handlers"
	"github.com/carelink/backend/internal/middleware"
	"github.com/carelink/backend/internal/models"
	"github.com/carelink/backend/pkg/auth"
)

func APIEndpoints(
	r *gin.Engine,
	cfg *config.Config,
	jwtMgr *auth.JWTManager,
	rdb *redis.Client,
	authH *handlers.AuthHandler,
	availH *handlers.AvailabilityHandler,
	consultH *handlers.ConsultationHandler,
	matchH *handlers.MatchingHandler,
	videoH *handlers.VideoHandler,
	drugH *handlers.DrugHandler,
	wsH *handlers.WebSocketHandler,
) {
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	// Auth endpoints
	authGroup := r.Group("/auth")
	{
		authGroup.POST("/register", authH.Register)
		authGroup.POST("/login", authH.Login)
		authGroup.POST("/logout", middleware.AuthMiddleware(jwtMgr, rdb), authH.Logout)
	}

	// Provider callbacks carry their own signature, not a user token.
	r.POST("/webhooks/session", videoH.Webhook)

	api := r.Group("/api/v1", middleware.AuthMiddleware(jwtMgr, rdb))
	{
		avail := api.Group("/availability")
		{
			avail.POST("/guardian", middleware.RequireRole(models.RoleGuardian), availH.SubmitGuardianRequest)
			avail.GET("/guardian/:seniorId", middleware.RequireRole(models.RoleGuardian), availH.GetGuardianRequest)
			avail.DELETE("/guardian/:seniorId", middleware.RequireRole(models.RoleGuardian), availH.CancelGuardianRequest)
			avail.POST("/employee", middleware.RequireRole(models.RoleEmployee), availH.SubmitEmployeeSchedule)
			avail.GET("/employee", middleware.RequireRole(models.RoleEmployee), availH.GetEmployeeSchedule)
		}

		consult := api.Group("/consultations")
		{
			consult.GET("", consultH.ListConsultations)
			consult.GET("/:id", consultH.GetConsultation)
			consult.POST("", middleware.RequireRole(models.RoleEmployee), consultH.CreateConsultation)
			consult.POST("/doctor", middleware.RequireRole(models.RoleEmployee), consultH.CreateDoctorConsultation)
			consult.PUT("/:id", middleware.RequireRole(models.RoleEmployee), consultH.UpdateConsultation)
			consult.PATCH("/:id/status", middleware.RequireRole(models.RoleEmployee), consultH.UpdateStatus)
		}

		match := api.Group("/matching", middleware.RequireRole(models.RoleAdmin))
		{
			match.POST("/run", matchH.RunMatching)
			match.POST("/senior/:seniorId", matchH.MatchSenior)
		}

		video := api.Group("/video")
		{
			video.POST("/meetings/:id/code", middleware.RequireRole(models.RoleEmployee), videoH.IssueMeetingCode)
			video.GET("/codes/:code", videoH.ResolveCode)
			video.POST("/join", videoH.Join)
			video.POST("/recordings/start", videoH.StartRecording)
			video.POST("/recordings/stop", videoH.StopRecording)
			video.GET("/recordings/:room", videoH.LatestRecording)
		}

		api.GET("/seniors", availH.ListSeniors)
		api.POST("/seniors/:seniorId/drugs", drugH.UploadDrugImage)

		admin := api.Group("/admin", middleware.RequireRole(models.RoleAdmin))
		{
			admin.POST("/org-codes", authH.IssueOrgCode)
		}
	}

	r.GET("/ws/session", middleware.WSAuthMiddleware(jwtMgr, rdb), wsH.HandleSession)
}
