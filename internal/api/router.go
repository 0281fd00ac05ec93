package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tistis/secure-booking/internal/auth"
	"github.com/tistis/secure-booking/internal/booking"
	bookingHttp "github.com/tistis/secure-booking/internal/booking/http"
	"github.com/tistis/secure-booking/internal/confirmation"
	confirmationHttp "github.com/tistis/secure-booking/internal/confirmation/http"
	"github.com/tistis/secure-booking/internal/hold"
	holdHttp "github.com/tistis/secure-booking/internal/hold/http"
	"github.com/tistis/secure-booking/internal/penalty"
	penaltyHttp "github.com/tistis/secure-booking/internal/penalty/http"
	"github.com/tistis/secure-booking/internal/pkg/clock"
	"github.com/tistis/secure-booking/internal/pkg/fingerprint"
	"github.com/tistis/secure-booking/internal/policy"
	policyHttp "github.com/tistis/secure-booking/internal/policy/http"
	"github.com/tistis/secure-booking/internal/trust"
	trustHttp "github.com/tistis/secure-booking/internal/trust/http"
)

// Pinger reports database reachability for the health check.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config holds the dependencies required to initialize the router.
type Config struct {
	IsProduction bool
	ProdOrigins  []string

	HoldService         hold.Service
	ConfirmationService confirmation.Service
	BookingService      booking.Service
	TrustService        trust.Service
	PenaltyService      penalty.Service
	PolicyService       policy.Service

	Hasher     *fingerprint.Hasher
	JWTManager *auth.JWTManager
	Clock      clock.Clock
	DB         Pinger
	Logger     *zap.Logger
}

// NewRouter initializes the HTTP router engine.
// It is responsible for assembling middleware (CORS, Logger, Auth) and registering routes for various modules.
func NewRouter(cfg Config) *gin.Engine {
	if cfg.IsProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global Middleware:
	// - RequestLogger: Logs request information through zap.
	// - Recovery: Captures panics to prevent server crashes and returns a 500 error.
	r.Use(RequestLogger(cfg.Logger), gin.Recovery())

	// Configure CORS (Cross-Origin Resource Sharing).
	corsConfig := cors.DefaultConfig()
	if cfg.IsProduction {
		corsConfig.AllowOrigins = cfg.ProdOrigins
	} else {
		corsConfig.AllowOrigins = append([]string{
			"http://localhost:3000",
			"http://localhost:8081", // Swagger
		}, cfg.ProdOrigins...)
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	if len(corsConfig.AllowOrigins) > 0 {
		r.Use(cors.New(corsConfig))
	}

	r.GET("/healthz", healthz(cfg.DB))

	// authMiddleware: Validates if the request contains a valid JWT.
	authMiddleware := auth.AuthRequired(cfg.JWTManager)
	// staffMiddleware: Front desk operations; admins may do everything staff can.
	staffMiddleware := auth.RequireRole(auth.RoleStaff, auth.RoleAdmin)
	// adminMiddleware: Policy changes, manual penalties and block lifting.
	adminMiddleware := auth.RequireRole(auth.RoleAdmin)
	// systemMiddleware: Machine callers such as the messaging webhook.
	systemMiddleware := auth.RequireRole(auth.RoleSystem)

	// Initialize HTTP Handlers for each module (injecting Service dependencies).
	holdHandler := holdHttp.NewHandler(cfg.HoldService, cfg.Hasher, cfg.Logger)
	confirmationHandler := confirmationHttp.NewHandler(cfg.ConfirmationService, cfg.Logger)
	bookingHandler := bookingHttp.NewHandler(cfg.BookingService, cfg.Logger)
	trustHandler := trustHttp.NewHandler(cfg.TrustService, cfg.Logger)
	penaltyHandler := penaltyHttp.NewHandler(cfg.PenaltyService, cfg.Clock, cfg.Logger)
	policyHandler := policyHttp.NewHandler(cfg.PolicyService, cfg.Logger)

	// Register API routes under /v1
	v1 := r.Group("/v1")
	{
		holdHttp.RegisterRoutes(v1, holdHandler, authMiddleware, staffMiddleware)
		confirmationHttp.RegisterRoutes(v1, confirmationHandler, authMiddleware, staffMiddleware, systemMiddleware)
		bookingHttp.RegisterRoutes(v1, bookingHandler, authMiddleware, staffMiddleware)
		trustHttp.RegisterRoutes(v1, trustHandler, authMiddleware, staffMiddleware)
		penaltyHttp.RegisterRoutes(v1, penaltyHandler, authMiddleware, staffMiddleware, adminMiddleware)
		policyHttp.RegisterRoutes(v1, policyHandler, authMiddleware, staffMiddleware, adminMiddleware)
	}

	return r
}

func healthz(db Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if db != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := db.Ping(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
