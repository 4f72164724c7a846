package testutil

import (
	"context"
	"time"

	id "custody/pkg/domain"
	"custody/pkg/requestcontext"
)

// As returns a context carrying caller as the authenticated account and now
// as the request time, the state the HTTP middleware establishes.
func As(caller id.AccountID, now time.Time) context.Context {
	ctx := requestcontext.WithCaller(context.Background(), caller)
	return requestcontext.WithTime(ctx, now)
}
