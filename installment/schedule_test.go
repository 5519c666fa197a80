package installment

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

var scheduleStart = time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)

func TestGenerateBullet(t *testing.T) {
	contractID := uuid.New()
	s, err := Generate(contractID, Bullet, scheduleStart, 30, 1000, 0.05)
	require.NoError(t, err)

	require.Len(t, s.Installments, 1)
	inst := s.Installments[0]
	require.Equal(t, contractID, inst.ContractID)
	require.Equal(t, scheduleStart.AddDate(0, 0, 30), inst.DueDate)
	require.Equal(t, 1000.0, inst.PrincipalComponent)
	require.InDelta(t, 1000*0.05*30.0/360.0, inst.InterestComponent, 1e-9)
	require.InDelta(t, 4.1667, inst.InterestComponent, 1e-4)
}

func TestGenerateWeekly(t *testing.T) {
	s, err := Generate(uuid.New(), InterestOnlyWeekly, scheduleStart, 28, 1000, 0.05)
	require.NoError(t, err)

	require.Len(t, s.Installments, 4)
	weeklyInterest := 1000 * 0.05 * 7.0 / 360.0
	for i, inst := range s.Installments[:3] {
		require.Equal(t, scheduleStart.AddDate(0, 0, 7*(i+1)), inst.DueDate)
		require.Zero(t, inst.PrincipalComponent)
		require.InDelta(t, weeklyInterest, inst.InterestComponent, 1e-9)
	}
	balloon := s.Installments[3]
	require.Equal(t, scheduleStart.AddDate(0, 0, 28), balloon.DueDate)
	require.Equal(t, 1000.0, balloon.PrincipalComponent)
	require.InDelta(t, weeklyInterest, balloon.InterestComponent, 1e-9)
}

func TestGenerateWeeklyLeftoverDays(t *testing.T) {
	// 31 days at 7-day cadence: 4 periods, the last covering 10 days.
	s, err := Generate(uuid.New(), InterestOnlyWeekly, scheduleStart, 31, 1000, 0.05)
	require.NoError(t, err)

	require.Len(t, s.Installments, 4)
	balloon := s.Installments[3]
	require.Equal(t, scheduleStart.AddDate(0, 0, 31), balloon.DueDate)
	require.InDelta(t, 1000*0.05*10.0/360.0, balloon.InterestComponent, 1e-9)
}

func TestGenerateMonthlyShortTerm(t *testing.T) {
	// A 20-day monthly plan still yields its balloon at term end, never an
	// empty schedule.
	s, err := Generate(uuid.New(), InterestOnlyMonthly, scheduleStart, 20, 500, 0.1)
	require.NoError(t, err)
	require.Len(t, s.Installments, 1)
	require.Equal(t, scheduleStart.AddDate(0, 0, 20), s.Installments[0].DueDate)
	require.Equal(t, 500.0, s.Installments[0].PrincipalComponent)
}

func TestGenerateZeroRateFiltersInterestOnly(t *testing.T) {
	s, err := Generate(uuid.New(), InterestOnlyWeekly, scheduleStart, 28, 1000, 0)
	require.NoError(t, err)
	// Zero-rate interest-only periods carry nothing and are filtered; only
	// the balloon survives.
	require.Len(t, s.Installments, 1)
	require.Equal(t, 1000.0, s.Installments[0].PrincipalComponent)
}

func TestGenerateRejectsBadInput(t *testing.T) {
	_, err := Generate(uuid.New(), Bullet, scheduleStart, 0, 1000, 0.05)
	require.Error(t, err)
	_, err = Generate(uuid.New(), Bullet, scheduleStart, 30, 0, 0.05)
	require.Error(t, err)
}

func TestExactlyOneBalloon(t *testing.T) {
	for _, plan := range []Plan{Bullet, InterestOnlyWeekly, InterestOnlyMonthly} {
		s, err := Generate(uuid.New(), plan, scheduleStart, 90, 2500, 0.08)
		require.NoError(t, err)
		var balloons int
		for _, inst := range s.Installments {
			if inst.Status != Cancelled && inst.IsBalloon() {
				balloons++
			}
		}
		require.Equal(t, 1, balloons, "plan %s", plan)
	}
}

func TestOutstanding(t *testing.T) {
	s, err := Generate(uuid.New(), InterestOnlyWeekly, scheduleStart, 28, 1000, 0.05)
	require.NoError(t, err)

	var total float64
	for _, inst := range s.Installments {
		total += inst.TotalDue()
	}
	require.InDelta(t, total, s.Outstanding(), 1e-9)

	// Confirming an installment moves it out of the outstanding balance;
	// outstanding plus confirmed still covers the full amount due.
	s.Installments[0].Status = Confirmed
	confirmed := s.Installments[0].TotalDue()
	require.InDelta(t, total-confirmed, s.Outstanding(), 1e-9)
	require.InDelta(t, total, s.Outstanding()+confirmed, 1e-9)

	s.Installments[1].Status = Late
	require.InDelta(t, total-confirmed, s.Outstanding(), 1e-9)
}

func TestExtendWeekly(t *testing.T) {
	contractID := uuid.New()
	s, err := Generate(contractID, InterestOnlyWeekly, scheduleStart, 28, 1000, 0.05)
	require.NoError(t, err)

	extended, err := Extend(s, 14)
	require.NoError(t, err)
	require.Equal(t, 42, extended.DurationDays)
	require.Len(t, extended.Installments, 6)

	weeklyInterest := 1000 * 0.05 * 7.0 / 360.0
	// The four original installments keep their dates and interest but no
	// longer carry principal.
	for i, inst := range extended.Installments[:4] {
		require.Equal(t, scheduleStart.AddDate(0, 0, 7*(i+1)), inst.DueDate)
		require.Zero(t, inst.PrincipalComponent)
		require.InDelta(t, weeklyInterest, inst.InterestComponent, 1e-9)
	}
	require.Equal(t, scheduleStart.AddDate(0, 0, 35), extended.Installments[4].DueDate)
	require.Zero(t, extended.Installments[4].PrincipalComponent)
	require.Equal(t, scheduleStart.AddDate(0, 0, 42), extended.Installments[5].DueDate)
	require.Equal(t, 1000.0, extended.Installments[5].PrincipalComponent)

	balloon, ok := extended.Balloon()
	require.True(t, ok)
	require.Equal(t, scheduleStart.AddDate(0, 0, 42), balloon.DueDate)
}

func TestExtendBlockedByPaidOrLate(t *testing.T) {
	s, err := Generate(uuid.New(), InterestOnlyWeekly, scheduleStart, 28, 1000, 0.05)
	require.NoError(t, err)
	s.Installments[0].Status = Paid
	_, err = Extend(s, 14)
	require.Error(t, err)

	s.Installments[0].Status = Late
	_, err = Extend(s, 14)
	require.Error(t, err)
}

func TestExtendRejectsBullet(t *testing.T) {
	s, err := Generate(uuid.New(), Bullet, scheduleStart, 30, 1000, 0.05)
	require.NoError(t, err)
	_, err = Extend(s, 30)
	require.Error(t, err)
}
