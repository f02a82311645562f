// Command implantgen generates the synthetic implant datasets, fits the
// teaching models on them and exports the results.
package main

import (
	"os"

	"github.com/periospot/implantgen/pkg/errors"
	"github.com/periospot/implantgen/pkg/log"
)

func main() {
	root := newRootCmd(newApp())
	if err := errors.SafeExecute("implantgen", root.Execute); err != nil {
		log.GetLogger().Error("implantgen failed", err)
		os.Exit(1)
	}
}
