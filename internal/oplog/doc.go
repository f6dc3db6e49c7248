// Package oplog provides the deterministic building blocks of the command
// log: content hashes over canonical state encodings and the compressed
// snapshot codec. The log rows themselves live in the project store; this
// package guarantees that equal states always hash equal so replay can
// verify every step.
package oplog
