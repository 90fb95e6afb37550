package testutil

import (
	"context"
	"io"
	"log"
	"os"
	"testing"

	"github.com/docker/go-connections/nat"
	"github.com/testcontainers/testcontainers-go"
)

// ContainerTestsEnv must be set to 1 for tests that start docker containers.
const ContainerTestsEnv = "GRADEWATCH_CONTAINER_TESTS"

// RequireContainers skips the test unless container tests are enabled.
func RequireContainers(t testing.TB) {
	t.Helper()
	if os.Getenv(ContainerTestsEnv) != "1" {
		t.Skipf("set %s=1 to run container tests", ContainerTestsEnv)
	}
}

// StartContainer starts req and returns the host and mapped port of
// exposedPort, the container is terminated when the test ends.
func StartContainer(t testing.TB, req testcontainers.ContainerRequest, exposedPort string) (string, string) {
	t.Helper()
	RequireContainers(t)

	// suppress logging
	testcontainers.Logger = log.New(io.Discard, "", 0)

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		Started:          true,
		ContainerRequest: req,
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		err := container.Terminate(context.Background())
		if err != nil {
			t.Error(err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatal(err)
	}
	port, err := container.MappedPort(ctx, nat.Port(exposedPort))
	if err != nil {
		t.Fatal(err)
	}
	return host, port.Port()
}
