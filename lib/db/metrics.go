package db

import (
	"github.com/VictoriaMetrics/metrics"
)

// --------------------------------------------------------------------------
// Metrics
// --------------------------------------------------------------------------

// Counters for the node cache and the database lifecycle. They are exposed
// through the default metrics set; embedders can publish them with
// metrics.WritePrometheus.
var (
	mCacheHits     = metrics.NewCounter("nxdb_node_cache_hits_total")
	mCacheMisses   = metrics.NewCounter("nxdb_node_cache_misses_total")
	mResyncRuns    = metrics.NewCounter("nxdb_cache_resync_runs_total")
	mResyncEvicted = metrics.NewCounter("nxdb_cache_resync_evicted_total")
	mResyncMoved   = metrics.NewCounter("nxdb_cache_resync_moved_total")
	mOpened        = metrics.NewCounter("nxdb_databases_opened_total")
	mDisposed      = metrics.NewCounter("nxdb_databases_disposed_total")
)
