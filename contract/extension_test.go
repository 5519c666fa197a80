package contract

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/satlend/hub/installment"
)

var extensionStart = time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)

func principalGivenWithSchedule(t *testing.T) (*Contract, *installment.Schedule) {
	t.Helper()
	c := newApprovedContract(t)
	require.NoError(t, c.ObserveCollateral(10000, false))
	require.NoError(t, c.ReportDisbursement())
	s, err := installment.Generate(c.ID, installment.InterestOnlyWeekly, extensionStart, 28, 1000, 0.05)
	require.NoError(t, err)
	return c, s
}

func TestExtendAfterHalfway(t *testing.T) {
	c, s := principalGivenWithSchedule(t)

	// Before the midpoint the extension is refused.
	_, _, err := Extend(c, s, 14, 90, extensionStart.AddDate(0, 0, 10))
	require.Error(t, err)
	require.Equal(t, StatusPrincipalGiven, c.Status)

	child, extended, err := Extend(c, s, 14, 90, extensionStart.AddDate(0, 0, 15))
	require.NoError(t, err)

	require.Equal(t, StatusExtended, c.Status)
	require.Equal(t, StatusPrincipalGiven, child.Status)
	require.NotEqual(t, c.ID, child.ID)
	require.Equal(t, c.ID, *child.ExtensionOf)
	require.Equal(t, child.ID, *c.ExtendedTo)
	require.Equal(t, child.ID, extended.ContractID)
	require.Equal(t, 42, extended.DurationDays)
	for _, inst := range extended.Installments {
		require.Equal(t, child.ID, inst.ContractID)
	}
}

func TestExtendMaxDuration(t *testing.T) {
	c, s := principalGivenWithSchedule(t)
	_, _, err := Extend(c, s, 14, 40, extensionStart.AddDate(0, 0, 15))
	require.Error(t, err)
	require.Equal(t, StatusPrincipalGiven, c.Status)
}

func TestExtendOnlyFromPrincipalGiven(t *testing.T) {
	c := newApprovedContract(t)
	s, err := installment.Generate(c.ID, installment.InterestOnlyWeekly, extensionStart, 28, 1000, 0.05)
	require.NoError(t, err)
	_, _, err = Extend(c, s, 14, 90, extensionStart.AddDate(0, 0, 20))
	require.Error(t, err)
}

func TestExtendBlockedByPaidInstallment(t *testing.T) {
	c, s := principalGivenWithSchedule(t)
	s.Installments[0].Status = installment.Paid
	_, _, err := Extend(c, s, 14, 90, extensionStart.AddDate(0, 0, 20))
	require.Error(t, err)
	require.Equal(t, StatusPrincipalGiven, c.Status)
}
