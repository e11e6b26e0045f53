package uevent

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_DrainBlocksUntilAppend(t *testing.T) {
	q := newQueue()
	ctx := context.Background()

	done := make(chan []*Event, 1)
	go func() {
		batch, ok := q.Drain(ctx)
		require.True(t, ok)
		done <- batch
	}()

	time.Sleep(10 * time.Millisecond)
	ev := &Event{Kernel: "sda"}
	q.AppendBatch([]*Event{ev})

	select {
	case batch := <-done:
		assert.Equal(t, []*Event{ev}, batch)
	case <-time.After(time.Second):
		t.Fatal("Drain did not return after AppendBatch")
	}
}

func TestQueue_CloseUnblocksDrain(t *testing.T) {
	q := newQueue()
	ctx := context.Background()

	done := make(chan bool, 1)
	go func() {
		_, ok := q.Drain(ctx)
		done <- ok
	}()

	time.Sleep(10 * time.Millisecond)
	q.Close()

	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("Drain did not unblock after Close")
	}
}

func TestQueue_IsBusyReflectsPendingAndInFlight(t *testing.T) {
	q := newQueue()
	assert.False(t, q.IsBusy())

	q.AppendBatch([]*Event{{Kernel: "sda"}})
	assert.True(t, q.IsBusy())

	batch, ok := q.Drain(context.Background())
	require.True(t, ok)
	require.Len(t, batch, 1)
	assert.True(t, q.IsBusy())
}

func TestQueue_DrainRemainingDoesNotBlock(t *testing.T) {
	q := newQueue()
	q.AppendBatch([]*Event{{Kernel: "sda"}, {Kernel: "sdb"}})
	remaining := q.drainRemaining()
	assert.Len(t, remaining, 2)
	assert.Empty(t, q.drainRemaining())
}
