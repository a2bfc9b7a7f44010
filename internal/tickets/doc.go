// Package tickets manages the ticket files a run starts from. Tickets live
// under <artifact root>/tickets as YYYY-MM-DD-<slug>.md and are written by
// the project lead agent, which names each ticket with a short slug and
// drafts or amends its markdown content.
package tickets
