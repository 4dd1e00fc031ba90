package entity

import "context"

type HookAction int

const (
	HookActionInvalid          HookAction = iota // default, not to be used
	HookActionProceed                            // continue processing of this sub-record
	HookActionSkip                               // drop this sub-record from the output and take next
	HookActionUnretryableError                   // fail the whole input record (original data is returned)
)

// PreTransformHookFunc is a client-provided function which the Transformer calls for each
// de-aggregated sub-record, prior to field normalization. This way the client could modify or
// enrich each sub-record, or filter it out.
// The sub-record is provided as a mutable argument to avoid requiring the client to always
// return data even if not used.
// The recordId of the input record owning the sub-record is provided for context.
type PreTransformHookFunc func(ctx context.Context, recordId string, subRecord *[]byte) HookAction
