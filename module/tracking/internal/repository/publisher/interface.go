package publisher

import (
	"context"

	"github.com/Michaelch2406/MascotaLink-sub003/module/tracking/domain"
)

// LiveTransport is the low-latency channel watchers follow a walk on.
type LiveTransport interface {
	Connected() bool
	Connect(ctx context.Context) error
	Send(ctx context.Context, pos *domain.LivePosition) error
}
