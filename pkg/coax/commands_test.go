package coax

import (
	"context"
	"testing"

	"github.com/aretw0/coaxterm/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type reply struct {
	data []byte
	err  error
}

// fakeLink answers commands from a table keyed by command code and, for
// READ_FEATURE_ID, feature address.
type fakeLink struct {
	replies  map[byte]reply
	features map[uint8]byte
	calls    []Command
}

func (f *fakeLink) Execute(ctx context.Context, addr Address, cmd Command) ([]byte, error) {
	f.calls = append(f.calls, cmd)
	if cmd.Code == CodeReadFeatureID {
		if id, ok := f.features[cmd.Data[0]]; ok {
			return []byte{id}, nil
		}
		return nil, ErrReceiveTimeout
	}
	r, ok := f.replies[cmd.Code]
	if !ok {
		return nil, ErrReceiveTimeout
	}
	return r.data, r.err
}

func (f *fakeLink) Features() Features { return 0 }
func (f *fakeLink) Name() string       { return "fake" }

func TestGetIDs(t *testing.T) {
	ctx := context.Background()

	t.Run("With extended id", func(t *testing.T) {
		link := &fakeLink{replies: map[byte]reply{
			CodeReadTerminalID: {data: []byte{0x04}},
			CodeReadExtendedID: {data: []byte{0xc1, 0x34, 0x83, 0x00}},
		}}
		tid, eid, err := GetIDs(ctx, link, DirectAddress)
		require.NoError(t, err)
		assert.Equal(t, domain.TerminalTypeCUT, tid.Type)
		assert.Equal(t, 2, tid.Model)
		assert.Equal(t, domain.ExtendedID("c1348300"), eid)
	})

	t.Run("Extended id not answered", func(t *testing.T) {
		link := &fakeLink{replies: map[byte]reply{
			CodeReadTerminalID: {data: []byte{0x04}},
		}}
		_, eid, err := GetIDs(ctx, link, DirectAddress)
		require.NoError(t, err)
		assert.False(t, eid.Present())
	})

	t.Run("Terminal id not answered", func(t *testing.T) {
		link := &fakeLink{}
		_, _, err := GetIDs(ctx, link, DirectAddress)
		assert.ErrorIs(t, err, ErrReceiveTimeout)
		assert.Len(t, link.calls, 1)
	})

	t.Run("Malformed extended id", func(t *testing.T) {
		link := &fakeLink{replies: map[byte]reply{
			CodeReadTerminalID: {data: []byte{0x04}},
			CodeReadExtendedID: {data: []byte{0xc1}},
		}}
		_, _, err := GetIDs(ctx, link, DirectAddress)
		assert.ErrorIs(t, err, ErrProtocolError)
	})
}

func TestGetFeatures(t *testing.T) {
	link := &fakeLink{features: map[uint8]byte{7: byte(domain.FeatureEAB)}}

	features, err := GetFeatures(context.Background(), link, DirectAddress)
	require.NoError(t, err)
	assert.Equal(t, domain.Features{domain.FeatureEAB: 7}, features)
	assert.Len(t, link.calls, 14)
}

func TestParsePollResponse(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		want    PollResponse
		wantErr bool
	}{
		{name: "Empty is TT/AR", data: nil, want: PollResponse{Kind: PollTTAR}},
		{name: "Power on reset", data: []byte{1}, want: PollResponse{Kind: PollPowerOnReset}},
		{name: "Keystroke", data: []byte{2, 0x60}, want: PollResponse{Kind: PollKeystroke, ScanCode: 0x60}},
		{name: "Keystroke without scan code", data: []byte{2}, wantErr: true},
		{name: "Unknown", data: []byte{9}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePollResponse(tt.data)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrProtocolError)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	assert.False(t, PollResponse{Kind: PollTTAR}.NeedsAck())
	assert.True(t, PollResponse{Kind: PollKeystroke}.NeedsAck())
}

func TestPoll_SendsAction(t *testing.T) {
	link := &fakeLink{replies: map[byte]reply{CodePoll: {data: []byte{2, 0x21}}}}

	res, err := Poll(context.Background(), link, DirectAddress, PollActionEnableClicker)
	require.NoError(t, err)
	assert.Equal(t, uint8(0x21), res.ScanCode)
	assert.Equal(t, []byte{byte(PollActionEnableClicker)}, link.calls[0].Data)
}
