// Package audit records completed rerolls.
//
// A record lists every rerolled die with its prior, fresh and final value
// and the signed change, plus the total change across the reroll. Records
// reference their message by id and are written once.
//
// Audit writes are best effort: a failed write never undoes the reroll it
// describes. Callers log the failure and move on.
package audit
