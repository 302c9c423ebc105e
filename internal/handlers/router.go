package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/learning-service/internal/models"
	"github.com/SAP-F-2025/learning-service/internal/services"
)

const healthCheckTimeout = 3 * time.Second

type HandlerManager struct {
	BaseHandler
	serviceManager    services.ServiceManager
	authHandler       *AuthHandler
	userHandler       *UserHandler
	courseHandler     *CourseHandler
	enrollmentHandler *EnrollmentHandler
	examHandler       *ExamHandler
	forumHandler      *ForumHandler
	authMiddleware    *AuthMiddleware
}

func NewHandlerManager(serviceManager services.ServiceManager, opts HandlerOptions) *HandlerManager {
	return &HandlerManager{
		BaseHandler:       NewBaseHandler(opts),
		serviceManager:    serviceManager,
		authHandler:       NewAuthHandler(serviceManager.Auth(), opts),
		userHandler:       NewUserHandler(serviceManager.User(), opts),
		courseHandler:     NewCourseHandler(serviceManager.Course(), serviceManager.Content(), opts),
		enrollmentHandler: NewEnrollmentHandler(serviceManager.Enrollment(), opts),
		examHandler:       NewExamHandler(serviceManager.Exam(), serviceManager.Grading(), serviceManager.Gradebook(), opts),
		forumHandler:      NewForumHandler(serviceManager.Forum(), opts),
		authMiddleware:    NewAuthMiddleware(serviceManager.Auth(), opts),
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	auth := hm.authMiddleware.RequireAuth()
	optional := hm.authMiddleware.OptionalAuth()
	tutor := hm.authMiddleware.RequireRole(models.RoleTutor)
	admin := hm.authMiddleware.RequireRole(models.RoleAdmin)

	v1 := router.Group("/api/v1")
	{
		authRoutes := v1.Group("/auth")
		{
			authRoutes.POST("/register", hm.authHandler.Register)
			authRoutes.POST("/login", hm.authHandler.Login)
			authRoutes.POST("/refresh", hm.authHandler.Refresh)
			authRoutes.POST("/sso/casdoor", hm.authHandler.CasdoorLogin)

			authRoutes.POST("/logout", auth, hm.authHandler.Logout)
			authRoutes.GET("/me", auth, hm.authHandler.Me)
			authRoutes.POST("/change-password", auth, hm.authHandler.ChangePassword)
		}

		// User management - Admins only
		users := v1.Group("/users")
		users.Use(auth, admin)
		{
			users.GET("/stats", hm.userHandler.GetUserStats)
			users.GET("", hm.userHandler.ListUsers)
			users.GET("/:id", hm.userHandler.GetUser)
			users.POST("", hm.userHandler.CreateUser)
			users.PUT("/:id", hm.userHandler.UpdateUser)
			users.DELETE("/:id", hm.userHandler.DeleteUser)
			users.PATCH("/:id/status", hm.userHandler.SetUserStatus)
		}

		courses := v1.Group("/courses")
		{
			courses.GET("", optional, hm.courseHandler.ListCourses)
			courses.GET("/:id", optional, hm.courseHandler.GetCourse)
			courses.GET("/:id/modules", optional, hm.courseHandler.ListModules)

			// Authoring - Tutors and Admins; ownership is checked by the services
			courses.POST("", auth, tutor, hm.courseHandler.CreateCourse)
			courses.PUT("/:id", auth, tutor, hm.courseHandler.UpdateCourse)
			courses.DELETE("/:id", auth, tutor, hm.courseHandler.DeleteCourse)
			courses.POST("/:id/publish", auth, tutor, hm.courseHandler.PublishCourse)
			courses.PATCH("/:id/toggle-status", auth, admin, hm.courseHandler.ToggleCourseStatus)
			courses.POST("/:id/modules", auth, tutor, hm.courseHandler.CreateModule)

			courses.PUT("/modules/:moduleId", auth, tutor, hm.courseHandler.UpdateModule)
			courses.DELETE("/modules/:moduleId", auth, tutor, hm.courseHandler.DeleteModule)
			courses.POST("/modules/:moduleId/lessons", auth, tutor, hm.courseHandler.CreateLesson)

			courses.GET("/lessons/:id", auth, hm.courseHandler.GetLesson)
			courses.PUT("/lessons/:id", auth, tutor, hm.courseHandler.UpdateLesson)
			courses.DELETE("/lessons/:id", auth, tutor, hm.courseHandler.DeleteLesson)
			courses.POST("/lessons/:id/videos", auth, tutor, hm.courseHandler.AddVideo)
			courses.POST("/lessons/:id/documents", auth, tutor, hm.courseHandler.AddDocument)
		}

		enrollments := v1.Group("/enrollments")
		enrollments.Use(auth)
		{
			enrollments.POST("", hm.enrollmentHandler.RequestEnrollment)
			enrollments.GET("", hm.enrollmentHandler.ListMyEnrollments)
			enrollments.GET("/courses/:courseId/enrollments", tutor, hm.enrollmentHandler.ListCourseEnrollments)
			enrollments.GET("/courses/:courseId/stats", tutor, hm.enrollmentHandler.GetCourseStats)
			enrollments.POST("/:id/approve", tutor, hm.enrollmentHandler.Approve)
			enrollments.POST("/:id/reject", tutor, hm.enrollmentHandler.Reject)
			enrollments.GET("/:id/progress", hm.enrollmentHandler.GetProgress)
			enrollments.POST("/:id/lessons/:lessonId/complete", hm.enrollmentHandler.CompleteLesson)
		}

		exams := v1.Group("/exams")
		exams.Use(auth)
		{
			exams.POST("/courses/:courseId/exams", tutor, hm.examHandler.CreateExam)
			exams.GET("/courses/:courseId/exams", hm.examHandler.ListCourseExams)
			exams.GET("/:id", hm.examHandler.GetExam)
			exams.POST("/:id/questions", tutor, hm.examHandler.AddQuestion)
			exams.POST("/:id/publish", tutor, hm.examHandler.PublishExam)
			exams.POST("/:id/submit", hm.examHandler.SubmitExam)
			exams.GET("/:id/gradebook", tutor, hm.examHandler.ExportGradebook)

			exams.POST("/submissions/:submissionId/grade", tutor, hm.examHandler.GradeSubmission)
			exams.GET("/submissions/:submissionId", hm.examHandler.GetSubmission)
			exams.GET("/students/submissions", hm.examHandler.ListMySubmissions)
			exams.GET("/tutors/pending-grading", tutor, hm.examHandler.ListPendingGrading)
		}

		forum := v1.Group("/forum")
		{
			forum.GET("/categories", hm.forumHandler.ListCategories)
			forum.POST("/categories", auth, admin, hm.forumHandler.CreateCategory)

			forum.GET("/threads", optional, hm.forumHandler.ListThreads)
			forum.POST("/threads", auth, hm.forumHandler.CreateThread)
			forum.GET("/threads/:id", optional, hm.forumHandler.GetThread)
			forum.DELETE("/threads/:id", auth, hm.forumHandler.DeleteThread)
			forum.GET("/threads/:id/replies", optional, hm.forumHandler.ListReplies)
			forum.POST("/threads/:id/replies", auth, hm.forumHandler.CreateReply)
			forum.POST("/threads/:id/like", auth, hm.forumHandler.ToggleThreadLike)
			forum.POST("/threads/:id/pin", auth, hm.forumHandler.TogglePin)
			forum.POST("/threads/:id/lock", auth, hm.forumHandler.ToggleLock)

			forum.POST("/replies/:id/like", auth, hm.forumHandler.ToggleReplyLike)
			forum.POST("/replies/:id/solution", auth, hm.forumHandler.MarkSolution)
		}
	}

	router.GET("/health", hm.Health)

	router.NoRoute(func(c *gin.Context) {
		hm.writeError(c, http.StatusNotFound, "Route not found", map[string]interface{}{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
		})
	})
}

// Health reports database and cache connectivity
func (hm *HandlerManager) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	if err := hm.serviceManager.HealthCheck(ctx); err != nil {
		hm.LogError(c, err, "Health check failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":    "unhealthy",
			"service":   "learning-service",
			"error":     err.Error(),
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   "learning-service",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
