// Package workflow drives a run through its phases.
//
// Runtime.Run executes one phase handler at a time and persists the next
// phase before the following handler starts, so an interrupted run always
// resumes at a phase boundary. Handlers talk to agents through the runner
// table, to the operator through the prompt adapter and to the worktree
// through git; all of them are reached through a Runtime.
//
// Agents coordinate with the workflow through plain-text tags: a reply is
// complete when it ends with <OK> on its own line, and the lead chooses a
// task outcome with <DECISION>...</DECISION>.
package workflow
