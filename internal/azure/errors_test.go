package azure

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/stretchr/testify/assert"
)

func TestRemoteServiceError(t *testing.T) {
	t.Parallel()

	cause := errors.New("boom")
	err := remoteErr("CreateStorageAccount", "acct1", cause)

	var rse *RemoteServiceError
	assert.ErrorAs(t, err, &rse)
	assert.Equal(t, "CreateStorageAccount", rse.Op)
	assert.Contains(t, err.Error(), "acct1")
	assert.ErrorIs(t, err, cause)

	assert.NoError(t, remoteErr("CreateStorageAccount", "acct1", nil))

	bare := remoteErr("Ping", "", cause)
	assert.Equal(t, "Ping: boom", bare.Error())
}

func TestIsNotFound(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "404 response",
			err:  &azcore.ResponseError{StatusCode: http.StatusNotFound},
			want: true,
		},
		{
			name: "wrapped 404",
			err:  fmt.Errorf("get vm: %w", &azcore.ResponseError{StatusCode: http.StatusNotFound}),
			want: true,
		},
		{
			name: "409 response",
			err:  &azcore.ResponseError{StatusCode: http.StatusConflict},
			want: false,
		},
		{
			name: "plain error",
			err:  errors.New("boom"),
			want: false,
		},
		{
			name: "nil",
			err:  nil,
			want: false,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, IsNotFound(tt.err))
		})
	}
}

func TestIsConflict(t *testing.T) {
	t.Parallel()

	assert.True(t, IsConflict(&azcore.ResponseError{StatusCode: http.StatusConflict}))
	assert.False(t, IsConflict(&azcore.ResponseError{StatusCode: http.StatusNotFound}))
	assert.False(t, IsConflict(errors.New("boom")))
}
