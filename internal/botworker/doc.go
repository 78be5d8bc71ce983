// Package botworker implements the command protocol between request-scoped
// browser-bot proxies and the single long-running worker that computes each
// client's next form submission.
//
// The worker owns all session and prepared-submit state and executes one
// command at a time, pulled from a sharded set of listen channels. Callers
// never touch that state directly: every interaction is a request envelope
// pushed onto a listen channel and exactly one response envelope pushed back
// onto a single-use response key.
package botworker
