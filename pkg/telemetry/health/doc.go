// Package health provides the liveness and readiness endpoints of the
// dcmprune daemon.
//
// # Endpoints
//
//   - /healthz: Liveness probe, 200 while the process is running
//   - /readyz: Readiness probe, runs every registered check
//   - /version: Build information
//
// # Usage
//
//	checker := health.New(5 * time.Second)
//	checker.RegisterCheck("storage_root", health.StorageRootCheck(l))
//	checker.RegisterCheck("last_run", health.LastRunCheck(scheduler.Last, 2*time.Hour, time.Now))
//
//	mux := http.NewServeMux()
//	health.Register(mux, checker, version, commit, buildTime)
//
// Checks run concurrently, each bounded by the checker timeout. Readiness
// reports "degraded" with 503 when any check fails, so a supervisor can
// alert on a storage root that went away or a retention run that keeps
// failing.
package health
