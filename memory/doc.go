// Package memory connects an agent runtime to a hosted long-term memory
// service (memU). It decides when to recall, how to shape the query and how
// to render recalled records into a bounded prompt block.
//
// Architecture:
//   - Client: transport to the remote service (see store/memu)
//   - QueryBuilder: turns the recent conversation into a search request
//   - Formatter: orders and renders records within a character budget
//   - Workflow: the Manager implementation that ties them together
//
// Integration:
//   - AutoRecall: prompt-injection hook, run before every reply; never fails
//   - ExplicitRecall: backs the "recall_information" tool
//   - RecordMemory: backs the "record_memory" tool
//
// Storage, embeddings and ranking all live in the remote service. Nothing in
// this package outlives the turn that created it: there is no cache and no
// session state, so a single Workflow may serve concurrent conversations.
package memory
