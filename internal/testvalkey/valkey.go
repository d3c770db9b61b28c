// Package testvalkey starts a throwaway valkey server for shared tier tests.
package testvalkey

import (
	"context"
	"testing"
	"time"

	"github.com/pitabwire/util"
	"github.com/testcontainers/testcontainers-go"
	tcValKey "github.com/testcontainers/testcontainers-go/modules/valkey"
)

const (
	ValKeyImage = "docker.io/valkey/valkey:latest"

	logProductionTimeout = 10 * time.Second
)

// Start runs a valkey container for the lifetime of t and returns its
// redis:// connection string. The test is skipped without a healthy docker
// provider.
func Start(ctx context.Context, t *testing.T) string {
	t.Helper()
	testcontainers.SkipIfProviderIsNotHealthy(t)

	valkeyContainer, err := tcValKey.Run(ctx, ValKeyImage,
		testcontainers.WithLogConsumerConfig(logConfig(ctx)),
	)
	testcontainers.CleanupContainer(t, valkeyContainer)
	if err != nil {
		t.Fatalf("failed to start valkey container: %v", err)
	}

	conn, err := valkeyContainer.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("failed to get connection string for valkey container: %v", err)
	}
	return conn
}

func logConfig(ctx context.Context) *testcontainers.LogConsumerConfig {
	return &testcontainers.LogConsumerConfig{
		Opts:      []testcontainers.LogProductionOption{testcontainers.WithLogProductionTimeout(logProductionTimeout)},
		Consumers: []testcontainers.LogConsumer{&logConsumer{log: util.Log(ctx)}},
	}
}

type logConsumer struct {
	log *util.LogEntry
}

func (c *logConsumer) Accept(l testcontainers.Log) {
	if l.LogType == testcontainers.StderrLog {
		c.log.Error(string(l.Content))
		return
	}
	c.log.Debug(string(l.Content))
}
