package api

import (
	"context"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/factorlab/pkg/config"
	"github.com/wonny/factorlab/pkg/logger"
)

func testServerConfig() *config.Config {
	return &config.Config{
		Port: "0",
		Env:  "development",
		HTTP: config.HTTPConfig{
			ReadTimeout:     time.Second,
			WriteTimeout:    time.Second,
			IdleTimeout:     time.Second,
			ShutdownTimeout: 2 * time.Second,
		},
	}
}

func TestServer_ServeUntilCancelled(t *testing.T) {
	arrived := make(chan struct{})
	release := make(chan struct{})
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(arrived)
		<-release
		_, _ = io.WriteString(w, "done")
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	srv := New(testServerConfig(), logger.Nop(), handler)

	stopped := make(chan error, 1)
	go func() { stopped <- srv.Serve(ctx, ln) }()

	// 종료 신호 이후에도 처리 중 요청은 완료됨
	body := make(chan string, 1)
	go func() {
		resp, err := http.Get("http://" + ln.Addr().String() + "/")
		if err != nil {
			body <- err.Error()
			return
		}
		defer resp.Body.Close()
		b, _ := io.ReadAll(resp.Body)
		body <- string(b)
	}()

	<-arrived
	cancel()
	time.Sleep(50 * time.Millisecond)
	close(release)

	assert.Equal(t, "done", <-body)
	require.NoError(t, <-stopped)
}

func TestServer_ServeFailsOnClosedListener(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	require.NoError(t, ln.Close())

	srv := New(testServerConfig(), logger.Nop(), http.NotFoundHandler())
	assert.Error(t, srv.Serve(context.Background(), ln))
}
