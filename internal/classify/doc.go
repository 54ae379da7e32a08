// Package classify assigns a priority label to mail messages. It defines
// the rule Scorer (weighted keyword scoring), the Completer interface for
// an LLM backend, and the Classifier that selects a strategy per
// configuration and falls back from the LLM to the rules.
package classify
