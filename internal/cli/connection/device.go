package connection

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/yndnr/crmdesk-go/internal/core/domain"
	"github.com/yndnr/crmdesk-go/internal/storage"
)

// DeviceID returns the persisted device identifier, generating and
// storing a random UUID on first use. It is kept across logouts.
func DeviceID(ctx context.Context, kv storage.KV) (string, error) {
	res := kv.Get(ctx, domain.KeyDeviceID)
	switch res.Status {
	case storage.StatusFailed:
		return "", fmt.Errorf("read device id: %w", res.Err)
	case storage.StatusFound:
		if id, err := uuid.Parse(res.Value); err == nil {
			return id.String(), nil
		}
		// Unparseable value: replace it.
	}

	id := uuid.NewString()
	if err := kv.Set(ctx, domain.KeyDeviceID, id); err != nil {
		return "", fmt.Errorf("store device id: %w", err)
	}
	return id, nil
}
