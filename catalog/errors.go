package catalog

import (
	"fmt"

	"github.com/alpacahq/streamspy/utils/io"
)

type NotADirectory string

func (msg NotADirectory) Error() string {
	return errReport("%s: Streams root is not a directory", string(msg))
}

func errReport(base string, msg string) string {
	base = io.GetCallerFileContext(2) + ":" + base
	return fmt.Sprintf(base, msg)
}
