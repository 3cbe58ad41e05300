package monitor

import (
	"context"
	"time"

	"github.com/ayltai/espartan/internal/cache"
	"github.com/ayltai/espartan/internal/gateway"
)

const (
	TagConfig cache.Tag = "config"
	TagDevice cache.Tag = "device"
)

const (
	resourceConfiguration    = "configuration"
	resourceDevice           = "device"
	resourceDevices          = "device-list"
	resourceRelayState       = "relay-state"
	resourceTelemetry        = "telemetry"
	resourceRecentTelemetry  = "telemetry-recent"
	resourceTelemetryHistory = "telemetry-history"
)

func configurationQuery(gw gateway.Gateway) cache.Query {
	return cache.Query{
		Key:      cache.NewKey(resourceConfiguration),
		Provides: []cache.Tag{TagConfig},
		Fetch: func(ctx context.Context) (any, error) {
			return gw.GetConfiguration(ctx)
		},
	}
}

func deviceQuery(gw gateway.Gateway, id string) cache.Query {
	return cache.Query{
		Key:      cache.NewKey(resourceDevice, id),
		Provides: []cache.Tag{TagDevice},
		Fetch: func(ctx context.Context) (any, error) {
			return gw.GetDevice(ctx, id)
		},
	}
}

func devicesQuery(gw gateway.Gateway) cache.Query {
	return cache.Query{
		Key:      cache.NewKey(resourceDevices),
		Provides: []cache.Tag{TagDevice},
		Fetch: func(ctx context.Context) (any, error) {
			return gw.ListDevices(ctx)
		},
	}
}

func relayStateQuery(gw gateway.Gateway, deviceID string) cache.Query {
	return cache.Query{
		Key: cache.NewKey(resourceRelayState, deviceID),
		Fetch: func(ctx context.Context) (any, error) {
			return gw.GetCurrentRelayState(ctx, deviceID)
		},
	}
}

func telemetryQuery(gw gateway.Gateway) cache.Query {
	return cache.Query{
		Key: cache.NewKey(resourceTelemetry),
		Fetch: func(ctx context.Context) (any, error) {
			return gw.GetAllTelemetry(ctx)
		},
	}
}

func recentTelemetryQuery(gw gateway.Gateway, window time.Duration) cache.Query {
	return cache.Query{
		Key: cache.NewKey(resourceRecentTelemetry, int64(window/time.Second)),
		Fetch: func(ctx context.Context) (any, error) {
			return gw.GetRecentTelemetry(ctx, window)
		},
	}
}

func historyQuery(gw gateway.Gateway, deviceID string, window time.Duration) cache.Query {
	return cache.Query{
		Key: cache.NewKey(resourceTelemetryHistory, deviceID, int64(window/time.Second)),
		Fetch: func(ctx context.Context) (any, error) {
			return gw.GetTelemetryHistory(ctx, deviceID, window)
		},
	}
}
