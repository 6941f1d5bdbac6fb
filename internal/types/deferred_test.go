package types

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeferredFirstCompleteWins(t *testing.T) {
	d := NewDeferred[AllowOrDeny]()

	assert.True(t, d.Complete(Allow))
	assert.False(t, d.Complete(Deny))

	v, ok := d.Value()
	require.True(t, ok)
	assert.Equal(t, Allow, v)
}

func TestDeferredThenBeforeAndAfter(t *testing.T) {
	d := NewDeferred[string]()

	var got []string
	d.Then(func(s string) { got = append(got, "early:"+s) })
	d.Complete("x")
	d.Then(func(s string) { got = append(got, "late:"+s) })

	assert.Equal(t, []string{"early:x", "late:x"}, got)
}

func TestDeferredPanickingCallbackDoesNotStopOthers(t *testing.T) {
	d := NewDeferred[AllowOrDeny]()

	var got []AllowOrDeny
	d.Then(func(v AllowOrDeny) { got = append(got, v) })
	d.Then(func(AllowOrDeny) { panic("settle failed") })
	d.Then(func(v AllowOrDeny) { got = append(got, v) })

	assert.PanicsWithValue(t, "settle failed", func() { d.Complete(Deny) })
	assert.Equal(t, []AllowOrDeny{Deny, Deny}, got)

	v, ok := d.Value()
	require.True(t, ok)
	assert.Equal(t, Deny, v)
	assert.False(t, d.Complete(Allow))
}

func TestDeferredWait(t *testing.T) {
	d := NewDeferred[int]()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		time.Sleep(5 * time.Millisecond)
		d.Complete(7)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	v, err := d.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, v)
	wg.Wait()
}

func TestDeferredWaitCancelled(t *testing.T) {
	d := NewDeferred[int]()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSessionIDValid(t *testing.T) {
	assert.False(t, NoSession.Valid())
	assert.True(t, SessionID(3).Valid())
	assert.Equal(t, "3", SessionID(3).String())
}
