// Package secrets detects and redacts credentials in free text.
//
// User input is scrubbed before it is sent to a text provider, so API keys,
// bearer tokens and database URLs pasted into a turn never leave the
// process. Findings keep the rule id and line but never the matched value.
package secrets
