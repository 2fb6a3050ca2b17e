package app

import (
	"fmt"

	"github.com/allisson/rotator/internal/license"
)

// UsageCollector returns the collector behind offline usage reports.
func (c *Container) UsageCollector() (*license.Collector, error) {
	return resolve(c, &c.usageCollectorInit, "usageCollector", &c.usageCollector, func() (*license.Collector, error) {
		db, err := c.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get database for usage collector: %w", err)
		}
		return license.NewCollector(db, c.Clock()), nil
	})
}
