package triangle

import (
	"flag"
	"os"
	"strings"
)

// ParseLoggingArgs parses the glog flags from the string, e.g.
// "-logtostderr=true -v=2". The program's own arguments aren't touched.
func ParseLoggingArgs(s string) {
	args := make([]string, 1, 12)
	args[0] = os.Args[0]
	args = append(args, strings.Split(s, " ")...)
	orgArgs := os.Args
	os.Args = args
	flag.Parse()
	os.Args = orgArgs
}
