// Package fallback decides when a failed GPU-accelerated phase should be
// retried on the CPU.
//
// Classify recognises accelerator failures in worker error text. Policy keeps
// a one-way latch per component: the first accelerator failure asks the
// Prompter once, and an accepted fallback forces that component onto the CPU
// for the rest of the process and persists the choice.
package fallback
