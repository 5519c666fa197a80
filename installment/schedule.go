// Package installment generates and extends repayment schedules: bullet,
// weekly interest-only, and monthly interest-only plans, all accruing
// interest on a 360-day year.
package installment

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Plan selects how a loan's principal and interest are broken into
// installments.
type Plan uint8

const (
	Bullet Plan = iota
	InterestOnlyWeekly
	InterestOnlyMonthly
)

func (p Plan) String() string {
	switch p {
	case Bullet:
		return "bullet"
	case InterestOnlyWeekly:
		return "interest_only_weekly"
	case InterestOnlyMonthly:
		return "interest_only_monthly"
	default:
		return "unknown"
	}
}

func (p Plan) cadenceDays() int {
	switch p {
	case InterestOnlyWeekly:
		return 7
	case InterestOnlyMonthly:
		return 30
	default:
		return 0
	}
}

// Status is the repayment state of a single installment.
type Status uint8

const (
	Pending Status = iota
	Paid
	Confirmed
	Late
	Cancelled
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Paid:
		return "paid"
	case Confirmed:
		return "confirmed"
	case Late:
		return "late"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Installment is one scheduled repayment obligation.
type Installment struct {
	ID                 uuid.UUID
	ContractID         uuid.UUID
	PrincipalComponent float64
	InterestComponent  float64
	DueDate            time.Time
	Status             Status
}

// TotalDue is the amount owed for this installment.
func (i Installment) TotalDue() float64 { return i.PrincipalComponent + i.InterestComponent }

// IsBalloon reports whether i carries the schedule's principal repayment.
func (i Installment) IsBalloon() bool { return i.PrincipalComponent > 0 }

const dayYearBasis = 360

func interestForSegment(principal, yearlyRate float64, segmentDays int) float64 {
	return principal * yearlyRate * float64(segmentDays) / dayYearBasis
}

// Schedule bundles a contract's installment list with the origination
// parameters that produced it, so Outstanding and Extend stay pure
// functions against it.
type Schedule struct {
	ContractID   uuid.UUID
	Plan         Plan
	Start        time.Time
	DurationDays int
	Principal    float64
	YearlyRate   float64
	Installments []Installment
}

// Generate builds a fresh Schedule for contractID.
func Generate(contractID uuid.UUID, plan Plan, start time.Time, durationDays int, principal, yearlyRate float64) (*Schedule, error) {
	if durationDays <= 0 {
		return nil, errors.New("installment: duration must be positive")
	}
	if principal <= 0 {
		return nil, errors.New("installment: principal must be positive")
	}

	var installments []Installment
	switch plan {
	case Bullet:
		interest := interestForSegment(principal, yearlyRate, durationDays)
		installments = append(installments, Installment{
			ID:                 uuid.New(),
			ContractID:         contractID,
			PrincipalComponent: principal,
			InterestComponent:  interest,
			DueDate:            start.AddDate(0, 0, durationDays),
			Status:             Pending,
		})
	case InterestOnlyWeekly, InterestOnlyMonthly:
		installments = generateInterestOnly(contractID, plan, start, durationDays, principal, yearlyRate, 1)
	default:
		return nil, fmt.Errorf("installment: unknown plan %d", plan)
	}

	return &Schedule{
		ContractID:   contractID,
		Plan:         plan,
		Start:        start,
		DurationDays: durationDays,
		Principal:    principal,
		YearlyRate:   yearlyRate,
		Installments: filterZero(installments),
	}, nil
}

// generateInterestOnly builds periods [fromPeriod..durationDays/cadence],
// each interest-only except the last, which also carries the balloon
// principal and any leftover-day interest for the final partial period.
func generateInterestOnly(contractID uuid.UUID, plan Plan, start time.Time, durationDays int, principal, yearlyRate float64, fromPeriod int) []Installment {
	cadence := plan.cadenceDays()
	lastPeriod := durationDays / cadence
	if lastPeriod < fromPeriod {
		lastPeriod = fromPeriod
	}

	var installments []Installment
	for i := fromPeriod; i <= lastPeriod; i++ {
		due := start.AddDate(0, 0, cadence*i)
		segmentDays := cadence
		principalComponent := 0.0
		if i == lastPeriod {
			due = start.AddDate(0, 0, durationDays)
			segmentDays = durationDays - cadence*(lastPeriod-1)
			principalComponent = principal
		}
		installments = append(installments, Installment{
			ID:                 uuid.New(),
			ContractID:         contractID,
			PrincipalComponent: principalComponent,
			InterestComponent:  interestForSegment(principal, yearlyRate, segmentDays),
			DueDate:            due,
			Status:             Pending,
		})
	}
	return installments
}

// filterZero drops installments with no principal and no interest
// component; an empty obligation is never emitted.
func filterZero(installments []Installment) []Installment {
	out := installments[:0]
	for _, inst := range installments {
		if inst.PrincipalComponent == 0 && inst.InterestComponent == 0 {
			continue
		}
		out = append(out, inst)
	}
	return out
}

// Outstanding sums every installment not yet cancelled or confirmed closed.
func (s *Schedule) Outstanding() float64 {
	var total float64
	for _, inst := range s.Installments {
		if inst.Status == Pending || inst.Status == Paid || inst.Status == Late {
			total += inst.TotalDue()
		}
	}
	return total
}

// Balloon returns the single non-cancelled installment carrying principal,
// or false if none does (should not happen on a valid schedule).
func (s *Schedule) Balloon() (Installment, bool) {
	for _, inst := range s.Installments {
		if inst.Status != Cancelled && inst.IsBalloon() {
			return inst, true
		}
	}
	return Installment{}, false
}

// Extend re-parents schedule s into a longer one: the current balloon's
// principal is stripped (its interest is left unchanged), and fresh
// interest-only installments are appended out to the new duration, the
// final one carrying the shifted balloon. Only interest-only plans extend;
// a Bullet schedule has nothing to extend into. Blocked if any installment
// has already been paid or is late.
func Extend(s *Schedule, additionalDays int) (*Schedule, error) {
	if s.Plan == Bullet {
		return nil, errors.New("installment: a bullet schedule cannot be extended")
	}
	if additionalDays <= 0 {
		return nil, errors.New("installment: additionalDays must be positive")
	}
	for _, inst := range s.Installments {
		if inst.Status == Paid || inst.Status == Late {
			return nil, errors.New("installment: paid or late installments block extension")
		}
	}

	extended := &Schedule{
		ContractID:   s.ContractID,
		Plan:         s.Plan,
		Start:        s.Start,
		DurationDays: s.DurationDays + additionalDays,
		Principal:    s.Principal,
		YearlyRate:   s.YearlyRate,
		Installments: make([]Installment, len(s.Installments)),
	}
	copy(extended.Installments, s.Installments)
	for i := range extended.Installments {
		extended.Installments[i].PrincipalComponent = 0
	}

	cadence := s.Plan.cadenceDays()
	fromPeriod := s.DurationDays/cadence + 1
	tail := generateInterestOnly(s.ContractID, s.Plan, s.Start, extended.DurationDays, s.Principal, s.YearlyRate, fromPeriod)
	extended.Installments = append(extended.Installments, filterZero(tail)...)

	return extended, nil
}
