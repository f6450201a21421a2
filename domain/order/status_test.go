package order

import (
	"testing"

	"order-service/domain/shared"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from Status
		to   Status
		want bool
	}{
		{StatusPending, StatusProcessing, true},
		{StatusPending, StatusCancelled, true},
		{StatusPending, StatusShipped, false},
		{StatusPending, StatusDelivered, false},
		{StatusProcessing, StatusShipped, true},
		{StatusProcessing, StatusCancelled, true},
		{StatusProcessing, StatusPending, false},
		{StatusShipped, StatusDelivered, true},
		{StatusShipped, StatusReturned, true},
		{StatusShipped, StatusCancelled, false},
		{StatusDelivered, StatusReturned, true},
		{StatusDelivered, StatusCancelled, false},
		{StatusCancelled, StatusPending, false},
		{StatusReturned, StatusDelivered, false},
	}

	for _, tt := range tests {
		t.Run(tt.from.String()+"->"+tt.to.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestStatus_TerminalStatesHaveNoExits(t *testing.T) {
	for _, from := range []Status{StatusCancelled, StatusReturned} {
		assert.True(t, from.IsTerminal())
		for _, to := range AllStatuses() {
			assert.False(t, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
	assert.False(t, StatusPending.IsTerminal())
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus(" shipped ")
	require.NoError(t, err)
	assert.Equal(t, StatusShipped, s)

	_, err = ParseStatus("LOST")
	assert.ErrorIs(t, err, ErrInvalidStatus)
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestStatus_AllowedTransitionsIsACopy(t *testing.T) {
	allowed := StatusPending.AllowedTransitions()
	allowed[0] = StatusReturned
	assert.True(t, StatusPending.CanTransitionTo(StatusProcessing))
}
