// Package extract pulls one value sequence per requested field out of each
// run's history. The tracking service is passed in explicitly.
package extract
