package kvstore

import "errors"

// ErrNotInteger indicates Incr was called on a key whose value is not an
// integer counter (including a key written by Set with arbitrary content).
var ErrNotInteger = errors.New("kvstore: value is not an integer")
