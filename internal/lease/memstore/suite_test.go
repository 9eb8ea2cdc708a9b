package memstore

import (
	"testing"
	"time"

	"github.com/marmos91/dfs/internal/lease"
	"github.com/marmos91/dfs/internal/lease/leasetest"
)

func TestConformance(t *testing.T) {
	leasetest.Run(t, func(t *testing.T, lifetime time.Duration) (lease.Manager, leasetest.Clock) {
		m, clock := newManager(t, lifetime)
		return m, clock
	})
}
