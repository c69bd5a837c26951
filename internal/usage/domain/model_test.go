package domain

import (
	"testing"
	"time"

	featuredomain "github.com/smallbiznis/entitlement/internal/feature/domain"
	"github.com/stretchr/testify/assert"
)

func TestPeriodStart(t *testing.T) {
	at := time.Date(2024, time.March, 17, 13, 4, 5, 0, time.UTC)

	assert.Equal(t, time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC), PeriodStart(featuredomain.ResetCalendarMonth, at))
	assert.Equal(t, time.Unix(0, 0).UTC(), PeriodStart(featuredomain.ResetNever, at))

	jakarta := time.FixedZone("WIB", 7*3600)
	local := time.Date(2024, time.April, 1, 3, 0, 0, 0, jakarta)
	assert.Equal(t, time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC), PeriodStart(featuredomain.ResetCalendarMonth, local),
		"month boundaries are UTC")
}

func TestCounterEffective(t *testing.T) {
	march := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	c := Counter{Count: 7, PeriodAnchor: march}

	assert.Equal(t, int64(7), c.Effective(featuredomain.ResetCalendarMonth, march.Add(20*24*time.Hour)))
	assert.Equal(t, int64(0), c.Effective(featuredomain.ResetCalendarMonth, march.AddDate(0, 1, 0)))
	assert.Equal(t, int64(7), c.Effective(featuredomain.ResetNever, march.AddDate(1, 0, 0)))
}
