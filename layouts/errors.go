package layouts

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/alpacahq/streamspy/utils/io"
)

// ErrMalformedHeader is returned when the metadata header of a streams file
// cannot describe a valid layout.
var ErrMalformedHeader = errors.New("malformed streams layout header")

type UnableToCreateFile string

func (msg UnableToCreateFile) Error() string {
	return errReport("%s: Unable to create streams file", string(msg))
}

type UnableToMapRegion string

func (msg UnableToMapRegion) Error() string {
	return errReport("%s: Unable to map region", string(msg))
}

func errReport(base string, msg string) string {
	base = io.GetCallerFileContext(2) + ":" + base
	return fmt.Sprintf(base, msg)
}
