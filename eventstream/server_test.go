package eventstream

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/satlend/hub/contract"
)

func TestEventPayload(t *testing.T) {
	id := uuid.New()
	payload, err := eventPayload(contract.StatusChanged{
		ContractID: id,
		From:       contract.StatusApproved,
		To:         contract.StatusCollateralConfirmed,
	})
	require.NoError(t, err)

	fields := payload.AsMap()
	require.Equal(t, "contract.status_changed", fields["type"])
	require.Equal(t, id.String(), fields["ContractID"])
	require.Equal(t, float64(contract.StatusApproved), fields["From"])
	require.Equal(t, float64(contract.StatusCollateralConfirmed), fields["To"])
}

func TestEmitFansOutToSubscribers(t *testing.T) {
	server := NewServer(nil)

	ch := make(chan *structpb.Struct, subscriberBuffer)
	server.mu.Lock()
	server.subs[ch] = struct{}{}
	server.mu.Unlock()

	server.Emit(contract.CollateralObserved{ContractID: uuid.New(), Sats: 5000})

	select {
	case payload := <-ch:
		fields := payload.AsMap()
		require.Equal(t, "contract.collateral_observed", fields["type"])
		require.Equal(t, float64(5000), fields["Sats"])
	default:
		t.Fatal("no event delivered")
	}
}

func TestEmitDropsWhenSubscriberFull(t *testing.T) {
	server := NewServer(nil)

	ch := make(chan *structpb.Struct) // unbuffered, never drained
	server.mu.Lock()
	server.subs[ch] = struct{}{}
	server.mu.Unlock()

	// Must not block.
	server.Emit(contract.CollateralObserved{ContractID: uuid.New(), Sats: 1})
}
