package onboarding

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medimart/platform/pkg/types"
)

func TestStateRoundTripEquality(t *testing.T) {
	store := NewMemorySessionStore()
	ctx := context.Background()

	state := NewState()
	state.Step = types.StepDocuments
	state.Form.OwnerName = "A. Rao"
	state.Form.Services = []types.ServiceItem{{Name: "CBC", Price: 250}, {Name: "Lipid", Price: 700}}
	state.Form.Documents[types.SlotLicense] = &types.Attachment{
		FileName: "license.pdf", ContentType: "application/pdf", Size: 3, Data: []byte{1, 2, 3},
	}
	state.Errors = map[string]string{"email": "stale"}
	state.Submitting = true

	require.NoError(t, store.SaveState(ctx, "s1", state))
	loaded, err := store.LoadState(ctx, "s1")
	require.NoError(t, err)

	assert.Equal(t, state.Form, loaded.Form)
	assert.Equal(t, state.Step, loaded.Step)
	// Errors and the submitting flag are transient and never persist.
	assert.Empty(t, loaded.Errors)
	assert.False(t, loaded.Submitting)

	// Order of services survives the round trip.
	assert.Equal(t, "CBC", loaded.Form.Services[0].Name)
	assert.Equal(t, "Lipid", loaded.Form.Services[1].Name)
}

func TestLoadStateUnknownSession(t *testing.T) {
	store := NewMemorySessionStore()
	_, err := store.LoadState(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestStoredStateDoesNotAliasLiveState(t *testing.T) {
	store := NewMemorySessionStore()
	ctx := context.Background()

	state := NewState()
	state.Form.OwnerName = "Before"
	require.NoError(t, store.SaveState(ctx, "s1", state))

	state.Form.OwnerName = "After"

	loaded, err := store.LoadState(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "Before", loaded.Form.OwnerName)
}

func TestCheckpointLifecycle(t *testing.T) {
	store := NewMemorySessionStore()
	ctx := context.Background()

	form := NewForm()
	form.LabName = "City Diagnostics"
	require.NoError(t, store.SaveCheckpoint(ctx, "s1", form))

	restored, err := store.LoadCheckpoint(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "City Diagnostics", restored.LabName)

	require.NoError(t, store.DeleteCheckpoint(ctx, "s1"))
	_, err = store.LoadCheckpoint(ctx, "s1")
	require.Error(t, err)
}

func TestKYCTokenLifecycle(t *testing.T) {
	store := NewMemorySessionStore()
	ctx := context.Background()

	require.NoError(t, store.SaveKYCToken(ctx, "s1", "tok-123"))
	token, err := store.LoadKYCToken(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "tok-123", token)

	require.NoError(t, store.DeleteKYCToken(ctx, "s1"))
	_, err = store.LoadKYCToken(ctx, "s1")
	require.Error(t, err)
}

func TestClearRemovesEverything(t *testing.T) {
	store := NewMemorySessionStore()
	ctx := context.Background()

	require.NoError(t, store.SaveState(ctx, "s1", NewState()))
	require.NoError(t, store.SaveCheckpoint(ctx, "s1", NewForm()))
	require.NoError(t, store.SaveKYCToken(ctx, "s1", "tok"))

	require.NoError(t, store.Clear(ctx, "s1"))

	_, err := store.LoadState(ctx, "s1")
	require.Error(t, err)
	_, err = store.LoadCheckpoint(ctx, "s1")
	require.Error(t, err)
	_, err = store.LoadKYCToken(ctx, "s1")
	require.Error(t, err)
}

func TestLoadStateClampsCorruptStep(t *testing.T) {
	store := NewMemorySessionStore()
	ctx := context.Background()

	state := NewState()
	state.Step = types.WizardStep(42)
	require.NoError(t, store.SaveState(ctx, "s1", state))

	loaded, err := store.LoadState(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, types.StepFirst, loaded.Step)
}
