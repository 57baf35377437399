package masks

import "errors"

// ErrInvalidState means a hash mismatch between expected and produced
// payload sizes, or a corrupted persistent shape record (spec §7
// InvalidState). The caller may recover by reloading from Persistence.ReadAll.
var ErrInvalidState = errors.New("masks: invalid shape state")
