package app

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/tistis/secure-booking/internal/api"
	"github.com/tistis/secure-booking/internal/auth"
	"github.com/tistis/secure-booking/internal/booking"
	"github.com/tistis/secure-booking/internal/confirmation"
	"github.com/tistis/secure-booking/internal/db"
	"github.com/tistis/secure-booking/internal/hold"
	"github.com/tistis/secure-booking/internal/penalty"
	"github.com/tistis/secure-booking/internal/pkg/clock"
	"github.com/tistis/secure-booking/internal/pkg/fingerprint"
	"github.com/tistis/secure-booking/internal/policy"
	"github.com/tistis/secure-booking/internal/sweeper"
	"github.com/tistis/secure-booking/internal/trust"
)

// Config holds the dependencies and settings required to start the application.
type Config struct {
	IsProduction    bool
	ProdOrigins     []string
	DBPool          *pgxpool.Pool
	JWTSecret       string
	JWTTTL          time.Duration
	FingerprintKey  string
	HoldLockTimeout time.Duration
	SweepInterval   time.Duration
	SweepBatchSize  int
	ScoreDecayAge   time.Duration
	Logger          *zap.Logger
}

// Container holds the initialized components that are needed externally.
type Container struct {
	Router     *gin.Engine
	Sweeper    *sweeper.Runner
	JWTManager *auth.JWTManager
}

// NewContainer initializes all modules and returns the container.
func NewContainer(cfg Config) (*Container, error) {
	// Init Components
	clk := clock.NewSystem()
	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTTTL)
	hasher, err := fingerprint.NewHasher(cfg.FingerprintKey)
	if err != nil {
		return nil, fmt.Errorf("fingerprint hasher: %w", err)
	}
	gormDB, err := db.NewGorm(cfg.DBPool)
	if err != nil {
		return nil, err
	}

	// Policy Module
	policyService := policy.NewService(policy.NewGormRepository(gormDB))

	// Trust Module
	trustRepo := trust.NewPgxRepository(cfg.DBPool)
	trustService := trust.NewService(trustRepo, policyService, clk, cfg.Logger.Named("trust"))

	// Penalty Module
	penaltyRepo := penalty.NewPgxRepository(cfg.DBPool)
	penaltyService := penalty.NewService(penaltyRepo, trustService, policyService, clk, cfg.Logger.Named("penalty"),
		penalty.WithLockTimeout(cfg.HoldLockTimeout))

	// Booking Module
	bookingRepo := booking.NewPgxRepository(cfg.DBPool)
	bookingService := booking.NewService(bookingRepo, policyService, trustService, penaltyService, clk, cfg.Logger.Named("booking"))

	// Hold Module: conversions write through the booking repository inside the hold transaction.
	confirmationRepo := confirmation.NewPgxRepository(cfg.DBPool)
	holdRepo := hold.NewPgxRepository(cfg.DBPool)
	holdService := hold.NewService(holdRepo, bookingRepo, penaltyService, confirmationRepo, policyService, clk, cfg.Logger.Named("hold"),
		hold.WithLockTimeout(cfg.HoldLockTimeout))

	// Confirmation Module
	sender := confirmation.NewLogSender(cfg.Logger.Named("sender"))
	confirmationService := confirmation.NewService(confirmationRepo, holdService, policyService, sender, clk, cfg.Logger.Named("confirmation"))

	// Sweeper
	sweepRunner := sweeper.New(holdService, confirmationService, trustService, cfg.Logger.Named("sweeper"),
		sweeper.WithBatchSize(cfg.SweepBatchSize),
		sweeper.WithInterval(cfg.SweepInterval),
		sweeper.WithScoreAge(cfg.ScoreDecayAge),
	)

	// API Router Config
	routerParams := api.Config{
		IsProduction:        cfg.IsProduction,
		ProdOrigins:         cfg.ProdOrigins,
		HoldService:         holdService,
		ConfirmationService: confirmationService,
		BookingService:      bookingService,
		TrustService:        trustService,
		PenaltyService:      penaltyService,
		PolicyService:       policyService,
		Hasher:              hasher,
		JWTManager:          jwtManager,
		Clock:               clk,
		DB:                  cfg.DBPool,
		Logger:              cfg.Logger,
	}

	// Router
	router := api.NewRouter(routerParams)

	return &Container{
		Router:     router,
		Sweeper:    sweepRunner,
		JWTManager: jwtManager,
	}, nil
}
