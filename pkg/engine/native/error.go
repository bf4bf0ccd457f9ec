package native

import "errors"

// ErrNotBuilt reports that the binary was compiled without the cuda build
// tag and carries no accelerator runtime.
var ErrNotBuilt = errors.New("native: engine support not built (rebuild with -tags cuda)")
