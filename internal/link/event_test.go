package link

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResponderAnswersOnce(t *testing.T) {
	r := NewResponder()
	require.NoError(t, r.Respond(ResponseSuccess))
	assert.ErrorIs(t, r.Respond(ResponseError), ErrAlreadyResponded)

	resp, err := r.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ResponseSuccess, resp)
	assert.ErrorIs(t, r.Respond(ResponseSuccess), ErrAlreadyResponded)
}

func TestResponderWaitTimeoutAbandons(t *testing.T) {
	r := NewResponder()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	_, err := r.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.ErrorIs(t, r.Respond(ResponseSuccess), ErrResponderGone)
	r.Abandon()
}

func TestEventKinds(t *testing.T) {
	assert.Equal(t, "write-request", WriteRequest{}.Kind())
	assert.Equal(t, "connection-changed", ConnectionChanged{}.Kind())
	assert.Equal(t, "success", ResponseSuccess.String())
	assert.Equal(t, "error", ResponseError.String())
}

func TestResponderAbandonedBeforeAnswer(t *testing.T) {
	r := NewResponder()
	r.Abandon()
	assert.ErrorIs(t, r.Respond(ResponseSuccess), ErrResponderGone)
	assert.ErrorIs(t, r.Respond(ResponseSuccess), ErrResponderGone)
}

func TestResponderAbandonAfterAnswerIsNoop(t *testing.T) {
	r := NewResponder()
	require.NoError(t, r.Respond(ResponseSuccess))
	r.Abandon()

	resp, err := r.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ResponseSuccess, resp)
}

// An answer racing a timing-out Wait is either delivered or rejected, never
// accepted and then lost.
func TestResponderAnswerRacingTimeout(t *testing.T) {
	for i := 0; i < 500; i++ {
		r := NewResponder()
		ctx, cancel := context.WithCancel(context.Background())
		respondErr := make(chan error, 1)
		go func() { respondErr <- r.Respond(ResponseSuccess) }()
		cancel()

		resp, waitErr := r.Wait(ctx)
		err := <-respondErr
		if err == nil {
			require.NoError(t, waitErr, "iteration %d: accepted answer was dropped", i)
			assert.Equal(t, ResponseSuccess, resp)
		} else {
			require.ErrorIs(t, err, ErrResponderGone, "iteration %d", i)
			require.ErrorIs(t, waitErr, context.Canceled, "iteration %d", i)
		}
	}
}
