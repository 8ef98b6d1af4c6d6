package grant

import (
	"context"
	"time"

	"github.com/embygate/embygate/internal/emby"
)

// AccountProvider owns the external accounts.
type AccountProvider interface {
	CreateAccount(ctx context.Context, name string) (string, error)
	SetPassword(ctx context.Context, accountID, password string) error
	ApplyDefaultPolicy(ctx context.Context, accountID string) error
	ApplyBannedPolicy(ctx context.Context, accountID string) error
	AccountInfo(ctx context.Context, accountID string) (emby.User, error)
	CountCatalog(ctx context.Context) (emby.Counts, error)
}

// LineRouter selects playback lines for accounts.
type LineRouter interface {
	Lines(ctx context.Context) ([]emby.Line, error)
	UserLine(ctx context.Context, accountID string) (emby.Line, error)
	SelectLine(ctx context.Context, accountID, index string) error
}

// Observer receives operation outcomes.
type Observer interface {
	ObserveOperation(op, outcome string, elapsed time.Duration)
	ObserveQuota(remainingSeats int, registeredTotal int64)
}

var (
	_ AccountProvider = (*emby.Client)(nil)
	_ LineRouter      = (*emby.RouterClient)(nil)
)

type disabledProvider struct{}

func (disabledProvider) CreateAccount(context.Context, string) (string, error) {
	return "", ErrProviderUnavailable
}

func (disabledProvider) SetPassword(context.Context, string, string) error {
	return ErrProviderUnavailable
}

func (disabledProvider) ApplyDefaultPolicy(context.Context, string) error {
	return ErrProviderUnavailable
}

func (disabledProvider) ApplyBannedPolicy(context.Context, string) error {
	return ErrProviderUnavailable
}

func (disabledProvider) AccountInfo(context.Context, string) (emby.User, error) {
	return emby.User{}, ErrProviderUnavailable
}

func (disabledProvider) CountCatalog(context.Context) (emby.Counts, error) {
	return emby.Counts{}, ErrProviderUnavailable
}

type nopObserver struct{}

func (nopObserver) ObserveOperation(string, string, time.Duration) {}
func (nopObserver) ObserveQuota(int, int64)                        {}
