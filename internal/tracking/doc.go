// Package tracking is a read-only client for a Weights & Biases compatible
// experiment-tracking service.
//
// The service is reached through its GraphQL endpoint with a single
// http.Client and one fixed timeout. Requests may be paced client-side but
// are never retried: a failed call surfaces as an
// *errors.RemoteServiceError and the caller decides what to abandon.
//
//	client := tracking.NewClient(settings.API, tracking.WithLogger(logger))
//	defer client.Close()
//
//	runs, err := client.ListRuns(ctx, "lab", "locomotion", filter)
//	history, err := client.History(ctx, runs[0], []string{"reward"}, 0)
//
// Tests use the fake server in package trackingtest.
package tracking
