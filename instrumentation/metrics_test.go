package instrumentation

import (
	"context"
	"testing"
)

func newTestInstrumentation(t *testing.T) *Instrumentation {
	t.Helper()
	inst, err := New(Config{
		Enabled: true,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = inst.Shutdown(context.Background()) })
	return inst
}

func TestMetrics_AllInstrumentsCreated(t *testing.T) {
	metrics := newTestInstrumentation(t).Metrics()

	if metrics.TokensIssued == nil {
		t.Error("TokensIssued not created")
	}
	if metrics.TokensRefreshed == nil {
		t.Error("TokensRefreshed not created")
	}
	if metrics.TokensRevoked == nil {
		t.Error("TokensRevoked not created")
	}
	if metrics.RefreshRotations == nil {
		t.Error("RefreshRotations not created")
	}
	if metrics.PKCEFailures == nil {
		t.Error("PKCEFailures not created")
	}
	if metrics.CodesIssued == nil {
		t.Error("CodesIssued not created")
	}
	if metrics.CodesConsumed == nil {
		t.Error("CodesConsumed not created")
	}
	if metrics.DeviceCodesIssued == nil {
		t.Error("DeviceCodesIssued not created")
	}
	if metrics.DeviceCodesApproved == nil {
		t.Error("DeviceCodesApproved not created")
	}
	if metrics.SweepDeletions == nil {
		t.Error("SweepDeletions not created")
	}
	if metrics.RegistrationsRejected == nil {
		t.Error("RegistrationsRejected not created")
	}
	if metrics.SectorFetches == nil {
		t.Error("SectorFetches not created")
	}
	if metrics.SectorFetchErrors == nil {
		t.Error("SectorFetchErrors not created")
	}
	if metrics.StorageAccessTokensCount == nil {
		t.Error("StorageAccessTokensCount not created")
	}
	if metrics.StorageRefreshTokensCount == nil {
		t.Error("StorageRefreshTokensCount not created")
	}
	if metrics.StorageClientsCount == nil {
		t.Error("StorageClientsCount not created")
	}
	if metrics.StorageCodesCount == nil {
		t.Error("StorageCodesCount not created")
	}
	if metrics.StorageDeviceCodesCount == nil {
		t.Error("StorageDeviceCodesCount not created")
	}
}

func TestMetrics_RecordTokenLifecycle(t *testing.T) {
	ctx := context.Background()
	metrics := newTestInstrumentation(t).Metrics()

	// All recordings must complete without panic
	metrics.TokensIssued.Add(ctx, 1)
	metrics.TokensRefreshed.Add(ctx, 1)
	metrics.TokensRevoked.Add(ctx, 2)
	metrics.RefreshRotations.Add(ctx, 1)
	metrics.PKCEFailures.Add(ctx, 1)
}

func TestMetrics_RecordAuthorizationArtifacts(t *testing.T) {
	ctx := context.Background()
	metrics := newTestInstrumentation(t).Metrics()

	metrics.CodesIssued.Add(ctx, 1)
	metrics.CodesConsumed.Add(ctx, 1)
	metrics.DeviceCodesIssued.Add(ctx, 1)
	metrics.DeviceCodesApproved.Add(ctx, 1)
}

func TestMetrics_RecordPolicyAndMaintenance(t *testing.T) {
	ctx := context.Background()
	metrics := newTestInstrumentation(t).Metrics()

	metrics.RegistrationsRejected.Add(ctx, 1)
	metrics.SectorFetches.Add(ctx, 1)
	metrics.SectorFetchErrors.Add(ctx, 1)
	metrics.SweepDeletions.Add(ctx, 100)
}
