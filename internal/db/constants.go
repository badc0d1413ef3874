package db

import "github.com/j-veylop/credit-reset-dashboard/internal/models"

const (
	// timeLayout is fixed-width so stored timestamps sort as text. Values are UTC.
	timeLayout = "2006-01-02 15:04:05.000000000"

	// singletonID keys the one-row settings tables.
	singletonID = 1

	defaultRetention = models.DefaultAuditRetention

	// defaultLimit bounds list queries called with a non-positive limit.
	defaultLimit = 100
)
