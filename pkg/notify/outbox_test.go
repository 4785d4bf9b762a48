package notify

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func openTestOutbox(t *testing.T) *Outbox {
	t.Helper()
	o, err := OpenOutbox(filepath.Join(t.TempDir(), "outbox.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = o.Close() })
	return o
}

func TestOutboxDeliverIsIdempotent(t *testing.T) {
	o := openTestOutbox(t)
	r := Reminder{InternshipID: "int-1", Period: "2024-05", Tier: "CRITICAL", Day: "2024-06-03"}

	created, err := o.Deliver(r)
	require.NoError(t, err)
	require.True(t, created)

	created, err = o.Deliver(r)
	require.NoError(t, err)
	require.False(t, created)

	r.Tier = "OVERDUE"
	r.Day = "2024-06-12"
	created, err = o.Deliver(r)
	require.NoError(t, err)
	require.True(t, created)

	pending, err := o.Pending(0)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	require.Equal(t, ReminderKey("int-1", "2024-05", "CRITICAL", "2024-06-03"), pending[0].Key)
}

func TestOutboxAck(t *testing.T) {
	o := openTestOutbox(t)
	_, err := o.Deliver(Reminder{Key: "k1", InternshipID: "int-1"})
	require.NoError(t, err)
	_, err = o.Deliver(Reminder{Key: "k2", InternshipID: "int-2"})
	require.NoError(t, err)

	require.NoError(t, o.Ack("k1", time.Now()))
	require.ErrorIs(t, o.Ack("missing", time.Now()), ErrReminderNotFound)

	pending, err := o.Pending(10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, "k2", pending[0].Key)
}

func TestSharedOutboxLeavesFileFreeForDrain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "outbox.db")
	shared := NewSharedOutbox(path)
	require.NoError(t, shared.Init())

	created, err := shared.Deliver(Reminder{Key: "k1", InternshipID: "int-1"})
	require.NoError(t, err)
	require.True(t, created)

	drain, err := OpenOutbox(path)
	require.NoError(t, err)
	pending, err := drain.Pending(0)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.NoError(t, drain.Ack("k1", time.Now()))
	require.NoError(t, drain.Close())

	created, err = shared.Deliver(Reminder{Key: "k2", InternshipID: "int-2"})
	require.NoError(t, err)
	require.True(t, created)

	pending, err = shared.Pending(0)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, "k2", pending[0].Key)
}

func TestSharedOutboxWaitsOutHeldLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "outbox.db")
	held, err := OpenOutbox(path)
	require.NoError(t, err)

	shared := &SharedOutbox{path: path, timeout: 50 * time.Millisecond}
	_, err = shared.Deliver(Reminder{Key: "k1"})
	require.Error(t, err)

	require.NoError(t, held.Close())
	created, err := shared.Deliver(Reminder{Key: "k1"})
	require.NoError(t, err)
	require.True(t, created)
}
