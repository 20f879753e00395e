package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderTransitions(t *testing.T) {
	cases := []struct {
		name string
		from OrderStatus
		to   OrderStatus
		ok   bool
	}{
		{"pending to paid", OrderPending, OrderPaid, true},
		{"pending to failed", OrderPending, OrderFailed, true},
		{"pending to cancelled", OrderPending, OrderCancelled, true},
		{"paid to cancelled", OrderPaid, OrderCancelled, true},
		{"paid to paid is noop", OrderPaid, OrderPaid, true},
		{"cancelled to cancelled is noop", OrderCancelled, OrderCancelled, true},
		{"paid to failed", OrderPaid, OrderFailed, false},
		{"failed to paid", OrderFailed, OrderPaid, false},
		{"cancelled to paid", OrderCancelled, OrderPaid, false},
		{"failed to cancelled", OrderFailed, OrderCancelled, false},
		{"pending to pending", OrderPending, OrderPending, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			o := &Order{ID: 1, Status: tc.from}
			err := o.Transition(tc.to)
			if tc.ok {
				require.NoError(t, err)
				assert.Equal(t, tc.to, o.Status)
			} else {
				require.Error(t, err)
				assert.Equal(t, tc.from, o.Status, "failed transition must not mutate status")
			}
		})
	}
}

func TestOrderTerminal(t *testing.T) {
	assert.False(t, (&Order{Status: OrderPending}).Terminal())
	assert.False(t, (&Order{Status: OrderPaid}).Terminal())
	assert.True(t, (&Order{Status: OrderFailed}).Terminal())
	assert.True(t, (&Order{Status: OrderCancelled}).Terminal())
}

func TestTicketTransitions(t *testing.T) {
	cases := []struct {
		name string
		from TicketStatus
		to   TicketStatus
		ok   bool
	}{
		{"reserved to valid", TicketReserved, TicketValid, true},
		{"reserved to refunded", TicketReserved, TicketRefunded, true},
		{"valid to used", TicketValid, TicketUsed, true},
		{"valid to refunded", TicketValid, TicketRefunded, true},
		{"used is terminal", TicketUsed, TicketRefunded, false},
		{"refunded is terminal", TicketRefunded, TicketValid, false},
		{"reserved to used skips payment", TicketReserved, TicketUsed, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tk := &Ticket{ID: 1, Status: tc.from}
			err := tk.Transition(tc.to)
			if tc.ok {
				require.NoError(t, err)
				assert.Equal(t, tc.to, tk.Status)
			} else {
				require.Error(t, err)
				assert.Equal(t, tc.from, tk.Status)
			}
		})
	}
}

func TestTicketLive(t *testing.T) {
	assert.True(t, (&Ticket{Status: TicketReserved}).Live())
	assert.True(t, (&Ticket{Status: TicketValid}).Live())
	assert.True(t, (&Ticket{Status: TicketUsed}).Live())
	assert.False(t, (&Ticket{Status: TicketRefunded}).Live())
}

func TestTimeWindowContains(t *testing.T) {
	plain := TimeWindow{StartMin: 600, EndMin: 720} // 10:00-12:00
	assert.True(t, plain.Contains(600))
	assert.True(t, plain.Contains(719))
	assert.False(t, plain.Contains(720))
	assert.False(t, plain.Contains(599))

	wrap := TimeWindow{StartMin: 1320, EndMin: 120} // 22:00-02:00
	assert.True(t, wrap.Contains(1320))
	assert.True(t, wrap.Contains(1439))
	assert.True(t, wrap.Contains(0))
	assert.True(t, wrap.Contains(119))
	assert.False(t, wrap.Contains(120))
	assert.False(t, wrap.Contains(1319))

	assert.Equal(t, uint16(120), plain.Span())
	assert.Equal(t, uint16(240), wrap.Span())
}
