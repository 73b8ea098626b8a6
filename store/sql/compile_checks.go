package sqlstore

import (
	"github.com/goliatone/go-carriers/core"
	"github.com/goliatone/go-carriers/ratelimit"
)

var (
	_ core.JournalStore           = (*JournalStore)(nil)
	_ core.BatchStore             = (*BatchStore)(nil)
	_ core.ActivitySink           = (*ActivityStore)(nil)
	_ core.StoreProvider          = (*RepositoryFactory)(nil)
	_ core.RepositoryStoreFactory = (*RepositoryFactory)(nil)
	_ ratelimit.StateStore        = (*RateLimitStateStore)(nil)
)
