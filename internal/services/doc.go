// Package services holds cross-cutting helpers shared by the external
// capability clients: sentinel error markers with a Wrap helper for
// classification, and context annotations (project, segment, request id)
// that the logging package turns into structured fields.
package services
