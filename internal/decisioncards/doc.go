// Package decisioncards generates, persists and reviews the decision cards
// extracted from a run's plan.
//
// A decision is approved when its approvedHash equals Hash of its current
// content. Regenerating the cards merges by id, so operator answers and
// approvals survive plan updates as long as the content did not change.
package decisioncards
