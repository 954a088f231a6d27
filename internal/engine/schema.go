package engine

import (
	"context"
	"strings"
	"sync"

	"github.com/tradementor/capitalengine/internal/database"
	"github.com/tradementor/capitalengine/internal/logging"
)

const (
	tableUsers  = "users"
	tableTrades = "trades"
)

// Candidate columns for the exposure cascade, in lookup order.
var (
	allocationColumns = []string{"allocation_amount", "allocated_amount", "capital_allocated", "risk_amount"}
	percentColumns    = []string{"position_percent", "risk_pct"}
)

// SchemaDetector answers "does column X exist on table Y" against the live
// database catalog. Results are memoized for the process lifetime; a schema
// migration requires a redeploy to be picked up. Any catalog query failure is
// treated as "does not exist" so the engine never references a column it
// cannot prove present.
type SchemaDetector struct {
	pool database.DBPool
	kind database.DBType
	log  *logging.StandardLogger

	mu      sync.RWMutex
	columns map[string]bool
	tables  map[string]bool
}

func NewSchemaDetector(pool database.DBPool, kind database.DBType, log *logging.StandardLogger) *SchemaDetector {
	return &SchemaDetector{
		pool:    pool,
		kind:    kind,
		log:     log.WithComponent("schema_detector"),
		columns: make(map[string]bool),
		tables:  make(map[string]bool),
	}
}

// HasColumn reports whether table.column exists. The catalog match is
// case-insensitive.
func (d *SchemaDetector) HasColumn(ctx context.Context, table, column string) bool {
	key := table + "." + column

	d.mu.RLock()
	if cached, ok := d.columns[key]; ok {
		d.mu.RUnlock()
		return cached
	}
	d.mu.RUnlock()

	exists := d.lookupColumn(ctx, table, column)

	d.mu.Lock()
	d.columns[key] = exists
	d.mu.Unlock()

	return exists
}

// HasTable reports whether the table exists.
func (d *SchemaDetector) HasTable(ctx context.Context, table string) bool {
	d.mu.RLock()
	if cached, ok := d.tables[table]; ok {
		d.mu.RUnlock()
		return cached
	}
	d.mu.RUnlock()

	exists := d.lookupTable(ctx, table)

	d.mu.Lock()
	d.tables[table] = exists
	d.mu.Unlock()

	return exists
}

func (d *SchemaDetector) lookupColumn(ctx context.Context, table, column string) bool {
	var query string
	var args []any
	switch d.kind {
	case database.DBTypePostgres:
		query = `SELECT COUNT(*) FROM information_schema.columns
			WHERE table_schema = current_schema()
			AND LOWER(table_name) = LOWER($1) AND LOWER(column_name) = LOWER($2)`
		args = []any{table, column}
	default:
		query = `SELECT COUNT(*) FROM pragma_table_info($1) WHERE LOWER(name) = LOWER($2)`
		args = []any{table, column}
	}

	var count int64
	if err := d.pool.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		d.log.WithError(err).Warn("column lookup failed, assuming absent")
		return false
	}
	return count > 0
}

func (d *SchemaDetector) lookupTable(ctx context.Context, table string) bool {
	var query string
	switch d.kind {
	case database.DBTypePostgres:
		query = `SELECT COUNT(*) FROM information_schema.tables
			WHERE table_schema = current_schema() AND LOWER(table_name) = LOWER($1)`
	default:
		query = `SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND LOWER(name) = LOWER($1)`
	}

	var count int64
	if err := d.pool.QueryRow(ctx, query, table).Scan(&count); err != nil {
		d.log.WithError(err).Warn("table lookup failed, assuming absent")
		return false
	}
	return count > 0
}

// Profile is the precomputed capability set the engine is built with.
// Computing it once at startup replaces per-call catalog queries.
type Profile struct {
	UsersTable  bool
	TradesTable bool

	TotalCapital   bool
	AvailableFunds bool

	EntryPrice  bool
	StopLoss    bool
	TargetPrice bool
	ExitPrice   bool
	Outcome     bool
	ClosedAt    bool
	CloseDate   bool
	DeletedAt   bool
	PnL         bool
	PLPercent   bool

	// AllocationColumn is the first existing direct-allocation column, or
	// empty when the deployment has none.
	AllocationColumn string
	// PercentColumn is the first existing percent-of-capital column.
	PercentColumn string
}

// TradeColumns maps the profile onto the repository's column capability
// set, so trade reads and writes negotiate the same schema the engine does.
func (p Profile) TradeColumns() database.TradeColumns {
	return database.TradeColumns{
		EntryPrice:    p.EntryPrice,
		StopLoss:      p.StopLoss,
		TargetPrice:   p.TargetPrice,
		ExitPrice:     p.ExitPrice,
		Outcome:       p.Outcome,
		ClosedAt:      p.ClosedAt,
		DeletedAt:     p.DeletedAt,
		PnL:           p.PnL,
		PLPercent:     p.PLPercent,
		PercentColumn: p.PercentColumn,
	}
}

// DetectProfile probes the catalog for every column the engine can use.
func (d *SchemaDetector) DetectProfile(ctx context.Context) Profile {
	p := Profile{
		UsersTable:  d.HasTable(ctx, tableUsers),
		TradesTable: d.HasTable(ctx, tableTrades),
	}

	if p.UsersTable {
		p.TotalCapital = d.HasColumn(ctx, tableUsers, "total_capital")
		p.AvailableFunds = d.HasColumn(ctx, tableUsers, "available_funds")
	}

	if p.TradesTable {
		p.EntryPrice = d.HasColumn(ctx, tableTrades, "entry_price")
		p.StopLoss = d.HasColumn(ctx, tableTrades, "stop_loss")
		p.TargetPrice = d.HasColumn(ctx, tableTrades, "target_price")
		p.ExitPrice = d.HasColumn(ctx, tableTrades, "exit_price")
		p.Outcome = d.HasColumn(ctx, tableTrades, "outcome")
		p.ClosedAt = d.HasColumn(ctx, tableTrades, "closed_at")
		p.CloseDate = d.HasColumn(ctx, tableTrades, "close_date")
		p.DeletedAt = d.HasColumn(ctx, tableTrades, "deleted_at")
		p.PnL = d.HasColumn(ctx, tableTrades, "pnl")
		p.PLPercent = d.HasColumn(ctx, tableTrades, "pl_percent")

		for _, col := range allocationColumns {
			if d.HasColumn(ctx, tableTrades, col) {
				p.AllocationColumn = col
				break
			}
		}
		for _, col := range percentColumns {
			if d.HasColumn(ctx, tableTrades, col) {
				p.PercentColumn = col
				break
			}
		}
	}

	return p
}

// openPredicate builds the SQL predicate selecting open, non-deleted trades.
// Present open signals are OR'd together: a trade counts as open if any of
// them says so. With no signal columns at all the predicate is unsatisfiable.
func (p Profile) openPredicate() string {
	var signals []string
	if p.Outcome {
		signals = append(signals, "UPPER(COALESCE(outcome, 'OPEN')) NOT IN ('TARGET_HIT', 'SL_HIT', 'MANUAL_CLOSE')")
	}
	if p.ClosedAt {
		signals = append(signals, "closed_at IS NULL")
	}
	if p.CloseDate {
		signals = append(signals, "close_date IS NULL")
	}

	pred := "1 = 0"
	if len(signals) > 0 {
		pred = "(" + strings.Join(signals, " OR ") + ")"
	}

	if p.DeletedAt {
		pred += " AND (deleted_at IS NULL OR CAST(deleted_at AS TEXT) = '')"
	}
	return pred
}
