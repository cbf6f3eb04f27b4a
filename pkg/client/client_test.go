package client

import (
	"context"
	"encoding/json"
	"testing"

	natsclient "github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sdkerrors "github.com/wehubfusion/Daedalus/pkg/errors"
	"github.com/wehubfusion/Daedalus/pkg/process"
)

type fakeRequester struct {
	reply string
	err   error
	msgs  []*natsclient.Msg
}

func (f *fakeRequester) RequestMsgWithContext(_ context.Context, msg *natsclient.Msg) (*natsclient.Msg, error) {
	f.msgs = append(f.msgs, msg)
	if f.err != nil {
		return nil, f.err
	}
	return &natsclient.Msg{Data: []byte(f.reply)}, nil
}

func TestClient_Fetch(t *testing.T) {
	r := &fakeRequester{reply: `{"statusCode":200,"body":"eyJvayI6dHJ1ZX0="}`}
	c := NewClientWithRequester(r, Subjects{})

	resp, err := c.Fetch(context.Background(), process.FetchRequest{URL: "https://x", Method: "GET", Path: "src"})
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, `{"ok":true}`, string(resp.Body))

	require.Len(t, r.msgs, 1)
	assert.Equal(t, DefaultFetchSubject, r.msgs[0].Subject)

	var sent process.FetchRequest
	require.NoError(t, json.Unmarshal(r.msgs[0].Data, &sent))
	assert.Equal(t, "https://x", sent.URL)
	assert.Equal(t, "src", sent.Path)
}

func TestClient_IsUnique(t *testing.T) {
	tests := []struct {
		name     string
		reply    string
		expected bool
		code     string
	}{
		{"unique", `{"unique":true}`, true, ""},
		{"taken", `{"unique":false}`, false, ""},
		{"remote error", `{"error":"db down"}`, false, sdkerrors.CodeRemote},
		{"garbage", `not json`, false, sdkerrors.CodeDecode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &fakeRequester{reply: tt.reply}
			c := NewClientWithRequester(r, Subjects{Unique: "forms.unique"})

			unique, err := c.IsUnique(context.Background(), process.UniqueQuery{Form: "f1", Path: "email", Key: "email", Value: "a@b.c"})
			if tt.code != "" {
				require.Error(t, err)
				assert.Equal(t, tt.code, sdkerrors.CodeOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, unique)
			assert.Equal(t, "forms.unique", r.msgs[0].Subject)
		})
	}
}

func TestClient_RequestFailures(t *testing.T) {
	c := NewClientWithRequester(&fakeRequester{err: natsclient.ErrNoResponders}, Subjects{})
	_, err := c.IsUnique(context.Background(), process.UniqueQuery{Path: "a"})
	require.ErrorIs(t, err, sdkerrors.ErrNoResponse)
	require.ErrorIs(t, err, natsclient.ErrNoResponders)

	c = NewClientWithRequester(&fakeRequester{err: natsclient.ErrTimeout}, Subjects{})
	_, err = c.Fetch(context.Background(), process.FetchRequest{URL: "https://x"})
	assert.True(t, sdkerrors.IsTimeout(err))

	c = NewClient("nats://localhost:4222")
	assert.False(t, c.IsConnected())
	_, err = c.Fetch(context.Background(), process.FetchRequest{URL: "https://x"})
	assert.True(t, sdkerrors.IsNotConnected(err))
	assert.NoError(t, c.Close())
}
