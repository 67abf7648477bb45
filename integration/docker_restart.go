//go:build integration

package integration

import (
	"context"
	"os/exec"
	"testing"
)

// restartService bounces the compose service so the next requests are served
// from whatever the blob store persisted.
func restartService(t *testing.T, ctx context.Context, service string) {
	t.Helper()

	cmd := exec.CommandContext(ctx, "docker", "compose", "restart", service)
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("docker compose restart %s failed: %v\n%s", service, err, string(out))
	}
}
