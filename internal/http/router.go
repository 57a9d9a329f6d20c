package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/driveline/internal/http/handlers"
	httpMW "github.com/yungbote/driveline/internal/http/middleware"
)

type RouterConfig struct {
	RecordHandler *httpH.RecordHandler
	HealthHandler *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.Default()
	r.Use(otelgin.Middleware("driveline"))
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.CORS())

	if cfg.HealthHandler != nil {
		r.GET("/healthz", cfg.HealthHandler.HealthCheck)
	}

	api := r.Group("/api")
	{
		if cfg.RecordHandler != nil {
			api.GET("/records", cfg.RecordHandler.ListRecords)
			api.GET("/records/:pipeline_id", cfg.RecordHandler.GetRecord)
		}
	}
	return r
}
