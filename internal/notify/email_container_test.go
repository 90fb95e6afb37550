package notify

import (
	"context"
	"strconv"
	"testing"

	"gradewatch/lib/testutil"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestEmailAgainstFakeSmtp(t *testing.T) {
	host, port := testutil.StartContainer(t, testcontainers.ContainerRequest{
		Image:        "haravich/fake-smtp-server",
		ExposedPorts: []string{"1025/tcp"},
		WaitingFor:   wait.ForLog("smtp://0.0.0.0:1025"),
	}, "1025/tcp")

	p, err := strconv.Atoi(port)
	require.NoError(t, err)

	ch := NewEmailChannel(EmailOptions{
		SmtpServer: host,
		Port:       p,
		From:       "gradewatch@email.com",
		Password:   "default",
		To:         []string{"student@email.com"},
	})
	require.NoError(t, ch.Send(context.Background(), Render(graded("A", "4.00"))))
}
