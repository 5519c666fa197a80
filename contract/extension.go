package contract

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/satlend/hub/huberr"
	"github.com/satlend/hub/installment"
)

// Extend grants an extension to original, which must be PrincipalGiven.
// Admissible only after the midpoint of the original term (AfterHalfway
// policy) and only if the resulting total duration stays within
// maxDurationDays. On success original is marked Extended, a new child
// Contract in PrincipalGiven is returned alongside its extended schedule,
// and the two contracts are linked via ExtensionOf/ExtendedTo.
func Extend(original *Contract, schedule *installment.Schedule, additionalDays, maxDurationDays int, at time.Time) (*Contract, *installment.Schedule, error) {
	if original.Status != StatusPrincipalGiven {
		return nil, nil, huberr.New(huberr.KindConflict, "contract.Extend",
			fmt.Errorf("only a principal_given contract may be extended, got %s", original.Status))
	}

	halfway := schedule.Start.AddDate(0, 0, schedule.DurationDays/2)
	if at.Before(halfway) {
		return nil, nil, huberr.New(huberr.KindConflict, "contract.Extend",
			fmt.Errorf("extension is only admissible after the term's midpoint (%s)", halfway))
	}
	if schedule.DurationDays+additionalDays > maxDurationDays {
		return nil, nil, huberr.New(huberr.KindValidation, "contract.Extend",
			fmt.Errorf("extended duration %d exceeds max_duration_days %d", schedule.DurationDays+additionalDays, maxDurationDays))
	}

	extendedSchedule, err := installment.Extend(schedule, additionalDays)
	if err != nil {
		return nil, nil, huberr.New(huberr.KindConflict, "contract.Extend", err)
	}

	if err := original.transition(StatusExtended); err != nil {
		return nil, nil, err
	}

	child := original.Clone()
	child.ID = uuid.New()
	child.Status = StatusPrincipalGiven
	child.ExtensionOf = &original.ID
	child.ExtendedTo = nil
	child.CreatedAt = now()
	child.UpdatedAt = now()
	original.ExtendedTo = &child.ID
	extendedSchedule.ContractID = child.ID
	for i := range extendedSchedule.Installments {
		extendedSchedule.Installments[i].ContractID = child.ID
	}

	return child, extendedSchedule, nil
}
