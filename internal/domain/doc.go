// Package domain defines the core types of the creative optimizer: normalized
// performance records, derived KPIs, recommendations, cluster summaries and
// the insight payload handed to brief generation.
//
// Types in this package are pure value objects with no behavior, no storage
// dependencies, and no HTTP concerns. They are the shared language between
// the normalizer, the KPI calculator, the decision engine, the cluster
// analyzer and the adapters around them.
//
// Rules for this package:
//   - No imports from other internal/ packages
//   - No *sql.DB, no http.Request, no context.Context in struct fields
//   - JSON tags are allowed (they're metadata, not behavior)
//   - Validation methods are allowed (they're pure functions on the type)
//   - Constants and enums belong here
package domain
