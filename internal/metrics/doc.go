// Package metrics defines the Prometheus metrics exported by the
// tagify server. All metrics live in the tagify_* namespace and are
// registered automatically via promauto.
package metrics
