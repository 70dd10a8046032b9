package e2e_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/topolord/topolord/pkg/client"
)

// TestEndToEnd drives a running topolord-d through the SDK. Start the daemon
// first, then run with E2E=true.
func TestEndToEnd(t *testing.T) {
	if os.Getenv("E2E") != "true" {
		t.Skip("Skipping e2e test")
	}

	endpoint := os.Getenv("TOPOLORD_ENDPOINT")
	if endpoint == "" {
		endpoint = "http://localhost:8090"
	}

	c := client.NewClient(endpoint)
	ctx := context.Background()

	// Poll Ping until success
	var err error
	for i := 0; i < 30; i++ {
		_, err = c.Ping(ctx)
		if err == nil {
			break
		}
		time.Sleep(time.Second)
	}
	require.NoError(t, err, "failed to ping daemon after 30 seconds")

	// Manual service lifecycle
	svc, err := c.CreateService(ctx, client.ServiceRequest{ID: "e2e-api", DisplayName: "E2E API", Team: "e2e"})
	require.NoError(t, err)
	assert.True(t, svc.IsManual)

	_, err = c.CreateService(ctx, client.ServiceRequest{ID: "e2e-db", DisplayName: "E2E DB", Category: "database"})
	require.NoError(t, err)

	err = c.CreateDependency(ctx, client.DependencyRequest{SourceID: "e2e-api", TargetID: "e2e-db", Protocol: "tcp"})
	require.NoError(t, err)

	// The edge shows up in the snapshot
	graph, err := c.GetTopology(ctx)
	require.NoError(t, err)
	found := false
	for _, dep := range graph.Dependencies {
		if dep.SourceID == "e2e-api" && dep.TargetID == "e2e-db" {
			found = true
		}
	}
	assert.True(t, found, "dependency missing from snapshot")

	// Group into an application
	app, err := c.CreateApplication(ctx, client.ApplicationRequest{Name: "E2E Stack", ServiceIDs: []string{"e2e-api", "e2e-db"}})
	require.NoError(t, err)
	assert.NotEmpty(t, app.ID)

	// Export round-trips through import
	exported, err := c.Export(ctx, "yaml")
	require.NoError(t, err)
	assert.Contains(t, string(exported), "e2e-api")

	result, err := c.Import(ctx, "yaml", exported)
	require.NoError(t, err)
	assert.Equal(t, "yaml", result.Format)

	// Cleanup
	err = c.DeleteApplication(ctx, app.ID)
	assert.NoError(t, err)
	deleted, err := c.DeleteServices(ctx, []string{"e2e-api", "e2e-db"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, deleted)
}
