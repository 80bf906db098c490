package service

import "errors"

// ErrPartialSuccess marks the one deliberately two-faced outcome in the
// flow: the ledger expense was created, but the follow-up update embedding
// its id into the comment failed. The expense exists; the annotation does
// not. Callers must surface this distinctly, never as a total failure.
var ErrPartialSuccess = errors.New("expense created but comment annotation failed")
