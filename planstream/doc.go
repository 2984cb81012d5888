// Package planstream is an incremental aggregation engine for PlanExe
// plan streams. It consumes the typed event stream a transport
// delivers (status transitions, log lines, heartbeats, and per
// interaction LLM events), reconstructs growing text, reasoning, and
// JSON buffers per interaction, and publishes immutable snapshots to
// subscribers. Snapshot publication is coalesced so bursts of small
// deltas cost a single notification, while lifecycle events (start,
// final, end, status changes) publish immediately.
package planstream
