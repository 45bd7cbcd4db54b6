// Package query turns a resolved experiment into the filter sent to the
// tracking service together with the predicate applied to the runs it
// returns.
//
// The remote filter is a Mongo-style document:
//
//	{"$or":[{"group":"g1","jobType":{"$in":["t1"]}},{"group":"g2"}],
//	 "config.lr":{"$gte":0.001}}
//
// Per-group constraints are embedded in the $or clauses. When groups is
// "all" or absent, job type and run name cannot be expressed remotely and
// are checked locally by LocalFilter.
package query
