package tenant

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestLicenseValidAt(t *testing.T) {
	tn := &Tenant{IsActive: true, LicenseExpiration: date(2026, 3, 10)}

	// The expiration day itself still counts.
	assert.True(t, tn.LicenseValidAt(time.Date(2026, 3, 10, 23, 0, 0, 0, time.UTC)))
	assert.False(t, tn.LicenseValidAt(time.Date(2026, 3, 11, 0, 30, 0, 0, time.UTC)))

	tn.LicenseExpiration = nil
	assert.True(t, tn.LicenseValidAt(time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)))

	tn.IsActive = false
	assert.False(t, tn.LicenseValidAt(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)))
}

func TestDaysLeftAt(t *testing.T) {
	tn := &Tenant{IsActive: true}
	assert.Equal(t, -1, tn.DaysLeftAt(time.Now()))

	tn.LicenseExpiration = date(2026, 3, 10)
	assert.Equal(t, 6, tn.DaysLeftAt(time.Date(2026, 3, 5, 12, 0, 0, 0, time.UTC)))
	assert.Equal(t, 1, tn.DaysLeftAt(time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)))
	assert.Equal(t, 0, tn.DaysLeftAt(time.Date(2026, 3, 12, 8, 0, 0, 0, time.UTC)))
}
