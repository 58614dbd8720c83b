package clickhouse

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBuildDSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  ClientConfig
		want string
	}{
		{
			name: "native minimal",
			cfg:  ClientConfig{Host: "ch", Port: 9000, Database: "patternscope", User: "default"},
			want: "clickhouse://default:@ch:9000/patternscope",
		},
		{
			name: "http with settings",
			cfg: ClientConfig{
				Host: "ch", Port: 8123, Database: "db", User: "u", Password: "p", UseHTTP: true,
				DialTimeout: 5 * time.Second, MaxExecTime: time.Minute, AsyncInsert: true, WaitForAsync: true,
			},
			want: "clickhouse+http://u:p@ch:8123/db?dial_timeout=5s&max_execution_time=60&async_insert=1&wait_for_async_insert=1",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, buildDSN(tt.cfg))
		})
	}
}

func TestNewClientRequiresHost(t *testing.T) {
	_, err := NewClient(WithPort(9000))
	assert.Error(t, err)
}
