package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/cwrk-planet/call-service/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignalService_RelaysToOthersOnly(t *testing.T) {
	e := newEnv(t, 2)
	ctx := context.Background()
	a, as := e.connect("a")
	b, bs := e.connect("b")
	c, cs := e.connect("c")

	_, _ = e.rooms.Join(ctx, a, "R1", domain.Identity{ID: "a"})
	_, _ = e.rooms.Join(ctx, b, "R1", domain.Identity{ID: "b"})
	_, _ = e.rooms.Join(ctx, c, "R2", domain.Identity{ID: "c"})
	as.take()
	bs.take()
	cs.take()

	payload := json.RawMessage(`{"sdp":"v=0\r\no=- 1 2 IN IP4 127.0.0.1","type":"offer"}`)
	n, err := e.signals.Relay(domain.EventOffer, "R1", a, payload)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	evs := bs.take()
	require.Len(t, evs, 1)
	assert.Equal(t, domain.EventOffer, evs[0].Type)
	assert.Equal(t, "R1", evs[0].RoomID)
	assert.Equal(t, a, evs[0].From)
	assert.JSONEq(t, string(payload), string(evs[0].Payload))
	assert.Equal(t, []byte(payload), []byte(evs[0].Payload), "payload passes through untouched")

	assert.Empty(t, as.take(), "sender gets no echo")
	assert.Empty(t, cs.take(), "other rooms see nothing")
}

func TestSignalService_KeepsPerSenderOrder(t *testing.T) {
	e := newEnv(t, 2)
	ctx := context.Background()
	a, _ := e.connect("a")
	b, bs := e.connect("b")
	_, _ = e.rooms.Join(ctx, a, "R1", domain.Identity{ID: "a"})
	_, _ = e.rooms.Join(ctx, b, "R1", domain.Identity{ID: "b"})
	bs.take()

	for i := 0; i < 20; i++ {
		_, err := e.signals.Relay(domain.EventICECandidate, "R1", a, json.RawMessage([]byte{'0' + byte(i%10)}))
		require.NoError(t, err)
	}

	evs := bs.take()
	require.Len(t, evs, 20)
	for i, ev := range evs {
		assert.Equal(t, string([]byte{'0' + byte(i%10)}), string(ev.Payload))
	}
}

func TestSignalService_DropsNonMembers(t *testing.T) {
	e := newEnv(t, 2)
	ctx := context.Background()
	a, _ := e.connect("a")
	b, bs := e.connect("b")
	_, _ = e.rooms.Join(ctx, a, "R1", domain.Identity{ID: "a"})
	_, _ = e.rooms.Join(ctx, b, "R1", domain.Identity{ID: "b"})
	e.rooms.Leave(ctx, a, "R1")
	bs.take()

	n, err := e.signals.Relay(domain.EventAnswer, "R1", a, json.RawMessage(`{}`))
	assert.ErrorIs(t, err, domain.ErrNotAMember)
	assert.Zero(t, n)
	assert.Empty(t, bs.take())
}

func TestSignalService_RejectsOtherKinds(t *testing.T) {
	e := newEnv(t, 2)
	a, _ := e.connect("a")
	_, _ = e.rooms.Join(context.Background(), a, "R1", domain.Identity{ID: "a"})

	_, err := e.signals.Relay(domain.EventNewMessage, "R1", a, nil)
	assert.ErrorIs(t, err, domain.ErrValidation)
}
