// Package domain defines the core value types of the newsletter
// experimentation and personalization engine.
//
// Types in this package are pure value objects with no behavior beyond
// small pure helpers, no storage dependencies, and no HTTP concerns. They
// are the shared language between the experiment registry, the
// segmentation and personalization components, the analytics service and
// the collaborators (API, tracking, snapshots) that sit around them.
//
// Rules for this package:
//   - No imports from other internal/ packages
//   - No *sql.DB, no http.Request, no context.Context in struct fields
//   - JSON tags are allowed (they're metadata, not behavior)
//   - Validation and parsing helpers are allowed (they're pure functions on the type)
//   - Constants and enums belong here
package domain
