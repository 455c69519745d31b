package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBillStatus_Transitions(t *testing.T) {
	cases := []struct {
		from BillStatus
		to   BillStatus
		want bool
	}{
		{BillStatusPending, BillStatusProcessing, true},
		{BillStatusPending, BillStatusCancelled, true},
		{BillStatusPending, BillStatusPaid, false},
		{BillStatusPending, BillStatusFailed, false},
		{BillStatusProcessing, BillStatusPaid, true},
		{BillStatusProcessing, BillStatusFailed, true},
		{BillStatusProcessing, BillStatusCancelled, false},
		{BillStatusFailed, BillStatusPending, true},
		{BillStatusFailed, BillStatusCancelled, false},
		{BillStatusPaid, BillStatusPending, false},
		{BillStatusPaid, BillStatusProcessing, false},
		{BillStatusCancelled, BillStatusPending, false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.from.CanTransitionTo(tc.to),
			"%s -> %s", tc.from, tc.to)
	}
}

func TestBillStatus_IsTerminal(t *testing.T) {
	assert.True(t, BillStatusPaid.IsTerminal())
	assert.True(t, BillStatusCancelled.IsTerminal())
	assert.False(t, BillStatusPending.IsTerminal())
	assert.False(t, BillStatusProcessing.IsTerminal())
	assert.False(t, BillStatusFailed.IsTerminal())
}
