// Package trackingtest provides an in-memory tracking service for tests.
//
// Server speaks the subset of the GraphQL API used by tracking.Client:
// run listing with filters and cursor pagination, full history scans and
// sampled history. Runs are registered up front and every request is
// recorded:
//
//	srv := trackingtest.NewServer()
//	defer srv.Close()
//	srv.AddRun("lab", "locomotion", trackingtest.Run{
//		Name:    "run-1",
//		Group:   "g1",
//		History: trackingtest.Series("reward", 1, 2, 3),
//	})
//
//	client := tracking.NewClient(srv.APIConfig())
package trackingtest
