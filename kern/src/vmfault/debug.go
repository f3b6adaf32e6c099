package vmfault

import (
	"fmt"
	"os"
)

// / Debug gates the fault handler's trace output. When false, logf returns
// / before formatting or printing anything; its arguments are still
// / evaluated at the call site.
var Debug = false

func logf(format string, args ...any) {
	if !Debug {
		return
	}
	fmt.Fprintf(os.Stderr, "vmfault: "+format+"\n", args...)
}
