package client

import (
	"bytes"
	"context"
	"net"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"

	api "github.com/oshokin/catpoint/internal/api/grpc/security"
	"github.com/oshokin/catpoint/internal/config"
	domain "github.com/oshokin/catpoint/internal/domain/security"
	repo "github.com/oshokin/catpoint/internal/repository/security"
	"github.com/oshokin/catpoint/internal/service/common"
	service "github.com/oshokin/catpoint/internal/service/security"
)

type fakeAnalyzer struct{}

func (fakeAnalyzer) ImageContainsCat(context.Context, []byte, float32) (bool, error) {
	return true, nil
}

// syncBuffer is a bytes.Buffer safe for a writer and a concurrent reader.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.String()
}

// startServer serves a controller on a local port and returns its address.
func startServer(t *testing.T) string {
	t.Helper()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	controller := service.NewController(repo.NewMemoryRepository(), fakeAnalyzer{})
	grpcServer := grpc.NewServer()
	api.RegisterSecurityServiceServer(grpcServer, api.NewServer(controller))

	go func() {
		_ = grpcServer.Serve(lis)
	}()

	t.Cleanup(grpcServer.Stop)

	return lis.Addr().String()
}

func connect(t *testing.T, address string) *common.Client {
	t.Helper()

	c, err := Connect(context.Background(), &Options{
		ConfigPath:    filepath.Join(t.TempDir(), "missing.yaml"),
		ServerAddress: address,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = c.Close()
	})

	return c
}

// TestConnect_UsesSettings falls back to the configured server address.
func TestConnect_UsesSettings(t *testing.T) {
	t.Parallel()

	address := startServer(t)
	cfgPath := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, config.Save(cfgPath, &config.Config{ServerAddress: address}))

	c, err := Connect(context.Background(), &Options{ConfigPath: cfgPath})
	require.NoError(t, err)

	defer func() {
		_ = c.Close()
	}()

	_, err = c.Status(context.Background())
	require.NoError(t, err)

	_, err = Connect(context.Background(), &Options{ConfigPath: filepath.Join(t.TempDir(), "missing.yaml")})
	require.Error(t, err)
}

// TestArm confirms the arming status change.
func TestArm(t *testing.T) {
	t.Parallel()

	c := connect(t, startServer(t))

	resp, err := Arm(context.Background(), c, domain.ArmedHome, false)
	require.NoError(t, err)
	require.Equal(t, domain.ArmedHome, resp.ArmingStatus)
}

// TestArm_RetriesUntilCanceled gives up when the server never answers.
func TestArm_RetriesUntilCanceled(t *testing.T) {
	t.Parallel()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	address := lis.Addr().String()
	require.NoError(t, lis.Close())

	c := connect(t, address)

	ctx, cancel := context.WithTimeout(context.Background(), 1500*time.Millisecond)
	defer cancel()

	_, err = Arm(ctx, c, domain.ArmedAway, true)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

// TestWatch prints events until the context is canceled.
func TestWatch(t *testing.T) {
	t.Parallel()

	c := connect(t, startServer(t))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := new(syncBuffer)
	done := make(chan error, 1)

	go func() {
		done <- Watch(ctx, c, out)
	}()

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "alarm_status alarm=NO_ALARM")
	}, 5*time.Second, 10*time.Millisecond)

	_, err := c.ProcessImage(context.Background(), []byte("jpeg"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "cat_detected cat=yes")
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

// TestPrintStatus renders the status report.
func TestPrintStatus(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer

	PrintStatus(&out, &api.StatusResponse{
		AlarmStatus:  domain.PendingAlarm,
		ArmingStatus: domain.ArmedAway,
		Sensors: []domain.Sensor{
			{Name: "front", Type: domain.Door, Active: true},
		},
	})

	text := out.String()
	require.Contains(t, text, "Alarm:   PENDING_ALARM")
	require.Contains(t, text, "Arming:  ARMED_AWAY")
	require.Contains(t, text, "Cat:     no")
	require.Contains(t, text, "DOOR  front  yes")

	out.Reset()
	PrintSensors(&out, nil)
	require.Equal(t, "No sensors.\n", out.String())
}
