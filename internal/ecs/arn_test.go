package ecs

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		arn     string
		want    TaskIdentifier
		wantErr bool
	}{
		{
			name: "short form",
			arn:  "arn:aws:ecs:us-east-1:123:ecs/clusterA/abc",
			want: TaskIdentifier{Encoded: "arn:aws:ecs:us-east-1:123:ecs/clusterA/abc", ResourceID: "abc", Region: "us-east-1", Cluster: "clusterA"},
		},
		{
			name: "task resource",
			arn:  "arn:aws:ecs:eu-west-1:111122223333:task/prod/0123456789abcdef",
			want: TaskIdentifier{Encoded: "arn:aws:ecs:eu-west-1:111122223333:task/prod/0123456789abcdef", ResourceID: "0123456789abcdef", Region: "eu-west-1", Cluster: "prod"},
		},
		{name: "old format without cluster", arn: "arn:aws:ecs:us-east-1:123:task/abc", wantErr: true},
		{name: "too few segments", arn: "arn:aws:ecs:us-east-1", wantErr: true},
		{name: "too many segments", arn: "arn:aws:ecs:us-east-1:123:task/a/b:extra", wantErr: true},
		{name: "empty", arn: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.arn)
			if tt.wantErr {
				var parseErr *ParseError
				require.True(t, errors.As(err, &parseErr))
				assert.Equal(t, tt.arn, parseErr.ARN)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTaskIdentifier_Equal(t *testing.T) {
	a, err := Parse("arn:aws:ecs:us-east-1:123:ecs/clusterA/abc")
	require.NoError(t, err)
	b, err := Parse("arn:aws-cn:ecs:us-east-1:999:task/clusterA/abc")
	require.NoError(t, err)
	c, err := Parse("arn:aws:ecs:us-east-1:123:ecs/clusterB/abc")
	require.NoError(t, err)

	assert.True(t, a.Equal(b))
	assert.Equal(t, a.Key(), b.Key())
	assert.NotEqual(t, a.Encoded, b.Encoded)
	assert.False(t, a.Equal(c))
}
