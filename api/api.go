package api

import (
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"factortrader/internal/app"
	"factortrader/internal/domain"
	"factortrader/internal/logger"
	l1_service "factortrader/internal/service/l1"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ApiHandler struct {
	Db            *sql.DB
	CommandApp    app.CommandApp
	FactorService l1_service.FactorService
	// bearer tokens are only checked when set
	JwtSecret string
}

func (m ApiHandler) InitializeRouterEngine() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:          12 * time.Hour,
	}))
	router.Use(m.logRequestMiddleware)

	router.GET("/", func(ctx *gin.Context) {
		ctx.JSON(200, map[string]string{"message": "welcome to factortrader"})
	})

	authed := router.Group("/", m.authMiddleware)
	authed.POST("/command", m.command)
	authed.GET("/factors", m.listFactors)
	authed.POST("/factors", m.createFactor)
	authed.GET("/factors/:id", m.getFactor)
	authed.PATCH("/factors/:id", m.updateFactor)
	authed.DELETE("/factors/:id", m.deleteFactor)

	return router
}

func (m ApiHandler) StartApi(port int) error {
	return m.InitializeRouterEngine().Run(fmt.Sprintf(":%d", port))
}

func statusForError(err error) int {
	switch {
	case domain.IsValidation(err), domain.IsParse(err):
		return http.StatusBadRequest
	case domain.IsNotFound(err):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func returnErrorJson(err error, c *gin.Context) {
	returnErrorJsonCode(err, c, statusForError(err))
}

func returnErrorJsonCode(err error, c *gin.Context, code int) {
	log := logger.FromContext(c.Request.Context())
	if code >= 500 {
		log.Error(err.Error())
	} else {
		log.Info(err.Error())
	}
	c.AbortWithStatusJSON(code, gin.H{
		"error": err.Error(),
	})
}

// logRequestMiddleware attaches a request-scoped logger to the request
// context and logs the outcome.
func (m ApiHandler) logRequestMiddleware(c *gin.Context) {
	start := time.Now().UTC()
	requestID := uuid.New().String()

	log := zap.S().With(
		"requestID", requestID,
		"method", c.Request.Method,
		"route", c.Request.URL.Path,
	)
	c.Request = c.Request.WithContext(logger.WithLogger(c.Request.Context(), log))
	c.Header("X-Request-ID", requestID)

	c.Next()

	log.Infow("request complete",
		"status", c.Writer.Status(),
		"durationMs", time.Since(start).Milliseconds(),
		"ip", c.ClientIP(),
	)
}
