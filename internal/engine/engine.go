package engine

import (
	"github.com/shopspring/decimal"
	"github.com/tradementor/capitalengine/internal/config"
	"github.com/tradementor/capitalengine/internal/database"
	"github.com/tradementor/capitalengine/internal/logging"
)

// Config tunes the engine's numeric policies.
type Config struct {
	// DefaultCapital is assigned when a user has no positive capital anywhere.
	DefaultCapital decimal.Decimal
	// DriftEpsilon bounds the tolerated gap between the persisted available
	// funds and the computed value before reconciliation heals it.
	DriftEpsilon decimal.Decimal
	// OutcomeTolerance widens the target and stop bands when classifying a
	// closed trade's outcome.
	OutcomeTolerance decimal.Decimal
	// AllowNegativeAvailable accepts reserved exposure exceeding total
	// capital as a transient state instead of failing the availability check.
	AllowNegativeAvailable bool
}

// DefaultConfig mirrors the engine defaults in the application config.
func DefaultConfig() Config {
	return Config{
		DefaultCapital:         decimal.NewFromInt(100000),
		DriftEpsilon:           decimal.NewFromFloat(0.01),
		OutcomeTolerance:       decimal.NewFromFloat(0.10),
		AllowNegativeAvailable: true,
	}
}

// ConfigFromApp converts the application-level engine settings.
func ConfigFromApp(cfg config.EngineConfig) Config {
	return Config{
		DefaultCapital:         decimal.NewFromFloat(cfg.DefaultCapital),
		DriftEpsilon:           decimal.NewFromFloat(cfg.DriftEpsilon),
		OutcomeTolerance:       decimal.NewFromFloat(cfg.OutcomeTolerance),
		AllowNegativeAvailable: cfg.AllowNegativeAvailable,
	}
}

// Engine is the capital and risk reconciliation engine. It owns every
// computation of total capital, reserved exposure, available funds, realized
// P&L, and per-trade risk metrics; rendering surfaces consume its outputs and
// never reimplement the formulas.
type Engine struct {
	pool    database.DBPool
	profile Profile
	cfg     Config
	log     *logging.StandardLogger
}

// New builds an engine around a detected schema profile.
func New(pool database.DBPool, profile Profile, cfg Config, log *logging.StandardLogger) *Engine {
	return &Engine{
		pool:    pool,
		profile: profile,
		cfg:     cfg,
		log:     log.WithComponent("engine"),
	}
}

// Profile exposes the schema capabilities the engine was built with.
func (e *Engine) Profile() Profile {
	return e.profile
}

// Config exposes the engine's numeric policies.
func (e *Engine) Config() Config {
	return e.cfg
}
