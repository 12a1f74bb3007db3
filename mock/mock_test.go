package mock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pior/openwire"
	"github.com/pior/openwire/commands"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu       sync.Mutex
	commands []commands.Command
	errs     []error
}

func (r *recorder) OnCommand(cmd commands.Command) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands = append(r.commands, cmd)
}

func (r *recorder) OnException(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func textMessage(text string) *commands.ActiveMQTextMessage {
	msg := &commands.ActiveMQTextMessage{}
	_ = msg.SetText(text, false)
	return msg
}

func TestFailOnSendMessage(t *testing.T) {
	for _, useRequest := range []bool{false, true} {
		name := "oneway"
		if useRequest {
			name = "request"
		}
		t.Run(name, func(t *testing.T) {
			tr := New(Acknowledge)
			observed := &recorder{}
			tr.SetOutgoingListener(observed)
			tr.FailOnSendMessage(2)

			send := func(cmd commands.Command) error {
				if useRequest {
					_, err := tr.Request(context.Background(), cmd)
					return err
				}
				return tr.Oneway(context.Background(), cmd)
			}

			require.NoError(t, send(textMessage("one")))
			require.NoError(t, send(textMessage("two")))

			err := send(textMessage("three"))
			var sendErr *openwire.SendError
			require.ErrorAs(t, err, &sendErr)
			assert.ErrorIs(t, err, ErrSendFailed)

			assert.Len(t, observed.commands, 2)
			assert.Equal(t, 2, tr.MessagesSent())
		})
	}
}

func TestSendFaultIgnoresNonMessages(t *testing.T) {
	tr := New(Acknowledge)
	tr.FailOnSendMessage(0)

	require.NoError(t, tr.Oneway(context.Background(), &commands.KeepAliveInfo{}))
	require.Error(t, tr.Oneway(context.Background(), textMessage("x")))

	tr.FailOnSendMessage(-1)
	require.NoError(t, tr.Oneway(context.Background(), textMessage("x")))
}

func TestFailOnReceiveMessage(t *testing.T) {
	tr := New(Acknowledge)
	rec := &recorder{}
	tr.SetListener(rec)
	tr.FailOnReceiveMessage(1)

	tr.Fire(textMessage("one"))
	tr.Fire(&commands.KeepAliveInfo{})
	tr.Fire(textMessage("two"))

	assert.Len(t, rec.commands, 2)
	require.Len(t, rec.errs, 1)
	assert.ErrorIs(t, rec.errs[0], ErrReceiveFailed)
	assert.Equal(t, 1, tr.MessagesReceived())
}

func TestOnewayResponseRequired(t *testing.T) {
	tr := New(Acknowledge)
	rec := &recorder{}
	tr.SetListener(rec)

	cmd := &commands.SessionInfo{}
	cmd.SetCommandID(7)
	cmd.SetResponseRequired(true)
	require.NoError(t, tr.Oneway(context.Background(), cmd))

	require.Len(t, rec.commands, 1)
	resp, ok := rec.commands[0].(*commands.Response)
	require.True(t, ok)
	assert.EqualValues(t, 7, resp.CorrelationID)

	require.NoError(t, tr.Oneway(context.Background(), &commands.ShutdownInfo{}))
	assert.Len(t, rec.commands, 1)
}

func TestRequestAssignsIncreasingIDs(t *testing.T) {
	tr := New(Acknowledge)

	first := &commands.KeepAliveInfo{}
	second := &commands.KeepAliveInfo{}

	resp1, err := tr.Request(context.Background(), first)
	require.NoError(t, err)
	resp2, err := tr.Request(context.Background(), second)
	require.NoError(t, err)

	assert.True(t, first.IsResponseRequired())
	assert.Greater(t, second.CommandID(), first.CommandID())
	assert.Equal(t, first.CommandID(), resp1.Correlation())
	assert.Equal(t, second.CommandID(), resp2.Correlation())
}

func TestRequestWithoutBuilder(t *testing.T) {
	tr := New(nil)

	_, err := tr.Request(context.Background(), &commands.KeepAliveInfo{})
	var sendErr *openwire.SendError
	require.ErrorAs(t, err, &sendErr)
	assert.ErrorIs(t, err, ErrNoBuilder)
}

func TestRequestTimeout(t *testing.T) {
	silent := ResponseBuilderFunc(func(commands.Command) commands.ResponseCommand { return nil })
	tr := New(silent)

	start := time.Now()
	_, err := tr.RequestTimeout(context.Background(), &commands.KeepAliveInfo{}, 50*time.Millisecond)
	assert.ErrorIs(t, err, openwire.ErrTimeout)
	assert.Less(t, time.Since(start), time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = tr.Request(ctx, &commands.KeepAliveInfo{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClosed(t *testing.T) {
	tr := New(Acknowledge)
	require.NoError(t, tr.Start(context.Background()))
	require.NoError(t, tr.Close())

	assert.ErrorIs(t, tr.Oneway(context.Background(), &commands.KeepAliveInfo{}), openwire.ErrClosed)
	_, err := tr.Request(context.Background(), &commands.KeepAliveInfo{})
	assert.ErrorIs(t, err, openwire.ErrClosed)
	assert.ErrorIs(t, tr.Start(context.Background()), openwire.ErrClosed)
}

func TestConnOverMock(t *testing.T) {
	tr := New(Acknowledge)
	conn := openwire.NewConn(tr, tr.RemoteAddress())

	require.NoError(t, conn.Handshake(context.Background(), "client", "", ""))
	require.NotNil(t, conn.ConnectionID())

	observed := &recorder{}
	tr.SetOutgoingListener(observed)

	queue := &commands.ActiveMQQueue{}
	queue.PhysicalName = "orders"
	msg := textMessage("hello")
	msg.Persistent = true
	require.NoError(t, conn.Send(context.Background(), queue, msg))

	require.Len(t, observed.commands, 1)
	sent := observed.commands[0].(*commands.ActiveMQTextMessage)
	assert.True(t, commands.Equal(queue, sent.Destination))
	assert.EqualValues(t, 1, sent.MessageID.ProducerSequenceID)

	tr.FailOnReceiveMessage(0)
	tr.Fire(textMessage("inbound"))
	assert.True(t, errors.Is(conn.Err(), ErrReceiveFailed))
}
