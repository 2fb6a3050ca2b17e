package license

import (
	"context"
	"database/sql"

	"github.com/jonboulle/clockwork"

	"github.com/allisson/rotator/internal/database"
	"github.com/allisson/rotator/internal/errors"
)

// Collector counts managed resources. The queries are portable between PostgreSQL
// and MySQL.
type Collector struct {
	db    *sql.DB
	clock clockwork.Clock
}

// NewCollector creates a usage collector.
func NewCollector(db *sql.DB, clock clockwork.Clock) *Collector {
	return &Collector{db: db, clock: clock}
}

// Collect runs one count query per resource.
func (c *Collector) Collect(ctx context.Context) (Usage, error) {
	usage := Usage{GeneratedAt: c.clock.Now().UTC()}
	querier := database.GetTx(ctx, c.db)

	counts := []struct {
		name  string
		query string
		dest  *int64
	}{
		{"projects", `SELECT COUNT(DISTINCT project_id) FROM rotations`, &usage.Projects},
		{"connections", `SELECT COUNT(*) FROM connections`, &usage.Connections},
		{"rotations", `SELECT COUNT(*) FROM rotations`, &usage.Rotations},
		{"active_rotations", `SELECT COUNT(*) FROM rotations WHERE status = 'active'`, &usage.ActiveRotations},
		{"auto_rotations", `SELECT COUNT(*) FROM rotations WHERE auto_rotate = TRUE`, &usage.AutoRotations},
		{"secrets", `SELECT COUNT(*) FROM (SELECT DISTINCT project_id, environment, path, secret_key FROM secrets) s`, &usage.Secrets},
		{"approval_policies", `SELECT COUNT(*) FROM approval_policies`, &usage.ApprovalPolicies},
		{"clients", `SELECT COUNT(*) FROM clients WHERE is_active = TRUE`, &usage.Clients},
	}

	for _, count := range counts {
		if err := querier.QueryRowContext(ctx, count.query).Scan(count.dest); err != nil {
			return Usage{}, errors.Wrapf(err, "failed to count %s", count.name)
		}
	}
	return usage, nil
}
